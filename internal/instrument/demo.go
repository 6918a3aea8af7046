package instrument

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// DemoProvider generates simulated gauge traffic for development and
// testing: fixed-digit readings with CR terminators, occasional negative
// values, and the idle byte runs real gauges emit between measurements.
type DemoProvider struct {
	mu      sync.Mutex
	running bool
	t       float64 // virtual time accumulator
	pending []byte
}

func NewDemo() *DemoProvider {
	return &DemoProvider{}
}

func (d *DemoProvider) Name() string { return "Demo Gauge (Simulated)" }

func (d *DemoProvider) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	return nil
}

func (d *DemoProvider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.pending = nil
	return nil
}

func (d *DemoProvider) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Read paces itself like a real gauge (a few readings per second) and hands
// out chunks at arbitrary boundaries so the segmenter gets exercised.
func (d *DemoProvider) Read(p []byte) (int, error) {
	time.Sleep(60 * time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return 0, fmt.Errorf("instrument: not connected")
	}

	if len(d.pending) == 0 {
		d.refill()
	}

	// Deliver a random-sized slice of the pending bytes so frames straddle
	// chunk boundaries.
	n := 1 + rand.Intn(len(d.pending))
	if n > len(p) {
		n = len(p)
	}
	copy(p, d.pending[:n])
	d.pending = d.pending[n:]
	return n, nil
}

// refill queues the next simulated transmission.
func (d *DemoProvider) refill() {
	d.t += 0.25

	// Occasional idle traffic between readings.
	if rand.Float64() < 0.1 {
		idle := make([]byte, 4+rand.Intn(4))
		for i := range idle {
			idle[i] = 0x55
		}
		d.pending = append(d.pending, idle...)
		d.pending = append(d.pending, '\r')
		return
	}

	// A dial plunger sweeping back and forth across zero, with jitter.
	mm := 12.5*math.Sin(d.t*0.2) + rand.Float64()*0.01
	micrometers := int(math.Round(mm * 1000))

	if micrometers < 0 {
		d.pending = append(d.pending, '-')
		micrometers = -micrometers
	}
	d.pending = append(d.pending, []byte(fmt.Sprintf("%06d", micrometers))...)
	d.pending = append(d.pending, '\r')
}

package instrument

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialProvider reads raw bytes from a dial gauge on a serial or USB-serial
// port. The gauges this was built against talk 9600 baud, 8 data bits, no
// parity, one stop bit.
type SerialProvider struct {
	portPath string
	baudRate int

	mu        sync.Mutex
	port      serial.Port
	connected bool
}

// SerialConfig holds connection configuration for the serial provider.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// readTimeout keeps Read from blocking forever so the decode engine's stall
// timeouts still get evaluated during silence.
const readTimeout = 200 * time.Millisecond

// NewSerial creates a serial transport for the given port.
func NewSerial(cfg SerialConfig) *SerialProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	return &SerialProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
	}
}

func (s *SerialProvider) Name() string { return "Serial Gauge" }

// Connect opens the serial port.
func (s *SerialProvider) Connect() error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portPath, mode)
	if err != nil {
		return fmt.Errorf("instrument: failed to open %s: %w", s.portPath, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("instrument: failed to set timeout: %w", err)
	}

	s.mu.Lock()
	s.port = port
	s.connected = true
	s.mu.Unlock()

	log.Printf("[instrument] opened %s at %d baud", s.portPath, s.baudRate)
	return nil
}

func (s *SerialProvider) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}

func (s *SerialProvider) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Read returns the next chunk from the port. Timeouts surface as (0, nil).
func (s *SerialProvider) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if port == nil {
		return 0, fmt.Errorf("instrument: not connected")
	}
	return port.Read(p)
}

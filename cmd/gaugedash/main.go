package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tyeth/digital-dial-gauge-web-serial/internal/instrument"
	"github.com/tyeth/digital-dial-gauge-web-serial/internal/server"
	"github.com/tyeth/digital-dial-gauge-web-serial/web"
)

func main() {
	configPath := flag.String("config", "/etc/gaugedash/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated gauge")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	portPath := flag.String("port", "", "Override serial port path (e.g. /dev/ttyUSB0)")
	mode := flag.String("mode", "", "Override decode mode (ascii or binary)")
	count := flag.Int("count", 0, "Number of values to read before exiting (0 = infinite)")
	timeout := flag.Duration("timeout", 0, "Stop after this long (0 = no timeout)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] gaugedash starting")

	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.Instrument.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *portPath != "" {
		cfg.Instrument.Type = "serial"
		cfg.Instrument.PortPath = *portPath
	}
	if *mode != "" {
		cfg.Decode.Mode = *mode
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, *timeout)
		defer tcancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	var prov instrument.Provider
	switch cfg.Instrument.Type {
	case "serial":
		prov = instrument.NewSerial(instrument.SerialConfig{
			PortPath: cfg.Instrument.PortPath,
			BaudRate: cfg.Instrument.BaudRate,
		})
	default:
		prov = instrument.NewDemo()
	}

	// Connect with exponential backoff (non-blocking — dashboard starts regardless)
	go connectWithRetry(ctx, prov, 10)

	srv := server.New(cfg, prov, web.FS, *count)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, prov instrument.Provider, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := prov.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
					prov.Name(), attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
					prov.Name(), attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[%s] connected successfully (attempt %d)", prov.Name(), attempt+1)
			return
		}
	}
}

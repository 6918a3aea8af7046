package instrument

// Provider is the interface for instrument transports. SerialProvider is the
// real implementation; DemoProvider simulates a gauge for development.
type Provider interface {
	// Name returns the human-readable name of this transport.
	Name() string
	// Connect opens the connection to the instrument.
	Connect() error
	// Close cleanly shuts down the connection.
	Close() error
	// IsConnected returns whether the provider has an active connection.
	IsConnected() bool

	// Read fills p with the next raw chunk and returns the byte count.
	// Chunk boundaries are arbitrary and not frame-aligned. A read timeout
	// returns (0, nil) so the host can tick the decode engine during
	// silence.
	Read(p []byte) (int, error)
}

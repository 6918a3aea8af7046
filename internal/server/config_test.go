package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyeth/digital-dial-gauge-web-serial/internal/gauge"
)

func TestDefaultGaugeConfig(t *testing.T) {
	cfg := DefaultConfig().GaugeConfig()

	assert.Equal(t, gauge.ModeASCII, cfg.Mode)
	assert.Equal(t, 6, cfg.ExpectedDigits)
	assert.Equal(t, 8, cfg.FrameSize)
	assert.Equal(t, 500*time.Millisecond, cfg.FlushAfter)
	assert.Equal(t, 10*time.Second, cfg.ResizeAfter)
	assert.Equal(t, 1.0, cfg.JumpThreshold)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
instrument:
  type: serial
  port_path: /dev/ttyUSB3
  baud_rate: 9600
decode:
  mode: binary
  frame_size: 6
  jump_threshold: 2.5
server:
  listen_addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg := LoadConfig(path)
	assert.Equal(t, "serial", cfg.Instrument.Type)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Instrument.PortPath)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)

	gc := cfg.GaugeConfig()
	assert.Equal(t, gauge.ModeBinary, gc.Mode)
	assert.Equal(t, 6, gc.FrameSize)
	assert.Equal(t, 2.5, gc.JumpThreshold)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "demo", cfg.Instrument.Type)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GAUGE_MODE", "binary")
	t.Setenv("GAUGE_PORT", "/dev/ttyACM0")
	t.Setenv("LISTEN_ADDR", ":7070")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "binary", cfg.Decode.Mode)
	assert.Equal(t, "/dev/ttyACM0", cfg.Instrument.PortPath)
	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
}

func TestUpdateFromJSONPreservesUnsetFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Instrument.PortPath = "/dev/ttyUSB0"

	err := cfg.UpdateFromJSON([]byte(`{"decode":{"jumpThreshold":3.0}}`))
	require.NoError(t, err)

	assert.Equal(t, 3.0, cfg.Decode.JumpThreshold)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Instrument.PortPath)
	assert.Equal(t, "ascii", cfg.Decode.Mode)
}

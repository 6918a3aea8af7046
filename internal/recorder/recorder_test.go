package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyeth/digital-dial-gauge-web-serial/internal/gauge"
)

func sampleRecords(n int) []gauge.Record {
	out := make([]gauge.Record, n)
	for i := range out {
		out[i] = gauge.Record{
			Timestamp: time.Date(2024, 3, 1, 12, 0, i, 0, time.UTC),
			Value:     float64(i) + 0.5,
			Unit:      "mm",
			RawHex:    "30 31 32 33 34 35",
			Method:    "ascii-fixed6",
			Accepted:  true,
		}
	}
	return out
}

func readRows(t *testing.T, dir string) [][]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSyncWritesNewRecordsOnly(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: true, Path: dir})
	defer r.Close()

	records := sampleRecords(3)
	r.Sync(records)
	r.Sync(records) // same log again: nothing new to write
	r.Sync(sampleRecords(5))
	r.Close()

	rows := readRows(t, dir)
	require.Len(t, rows, 6) // header + 5
	assert.Equal(t, []string{"timestamp", "value", "unit", "raw_hex", "method", "accepted"}, rows[0])
	assert.Equal(t, "0.500", rows[1][1])
	assert.Equal(t, "mm", rows[1][2])
	assert.Equal(t, "ascii-fixed6", rows[1][4])
	assert.Equal(t, "1", rows[1][5])
	assert.Equal(t, "4.500", rows[5][1])
}

func TestDisabledRecorderWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: false, Path: dir})
	defer r.Close()

	r.Sync(sampleRecords(3))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetEnabledToggles(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Enabled: false, Path: dir})
	defer r.Close()

	assert.False(t, r.IsEnabled())
	r.SetEnabled(true)
	assert.True(t, r.IsEnabled())

	r.Sync(sampleRecords(2))
	r.Close()

	rows := readRows(t, dir)
	assert.Len(t, rows, 3) // header + 2
}

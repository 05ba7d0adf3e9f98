package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSnapshotMissingFileYieldsDefaults(t *testing.T) {
	snap := LoadSnapshot(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Equal(t, 100, snap.VolumePercent)
	assert.Equal(t, 1.0, snap.FxWidth)
}

func TestLoadSnapshotInvalidJSONYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	snap := LoadSnapshot(path)
	assert.Equal(t, 100, snap.VolumePercent)
}

func TestLoadSnapshotPartialFileFillsMissingFieldsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fx_pan": 0.4}`), 0o644))
	snap := LoadSnapshot(path)
	assert.Equal(t, 0.4, snap.FxPan)
	assert.Equal(t, 100, snap.VolumePercent)
	assert.Equal(t, 1.0, snap.FxWidth)
}

func TestPersisterDebouncesBurstsIntoOneWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPersister(path, nil)
	defer p.Shutdown()

	p.Enqueue(FxSnapshot{FxPan: 0.1})
	p.Enqueue(FxSnapshot{FxPan: 0.2})
	p.Enqueue(FxSnapshot{FxPan: 0.3})

	time.Sleep(500 * time.Millisecond)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap FxSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 0.3, snap.FxPan)

	info1, err := os.Stat(path)
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime(), "exactly one write should have occurred")
}

func TestPersisterFlushesPendingOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	p := NewPersister(path, nil)
	p.Enqueue(FxSnapshot{FxPan: 0.7})
	p.Shutdown()

	time.Sleep(50 * time.Millisecond)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap FxSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 0.7, snap.FxPan)
}

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeClampsToDeclaredRange(t *testing.T) {
	s := NewStore(FxSnapshot{VolumePercent: 100, FxWidth: 1}, nil)
	s.SetVolume(-50)
	assert.Equal(t, 0, s.Snapshot().VolumePercent)

	s.SetVolume(9999)
	assert.Equal(t, 200, s.Snapshot().VolumePercent)
}

func TestAudioFxClampsEachField(t *testing.T) {
	s := NewStore(FxSnapshot{VolumePercent: 100, FxWidth: 1}, nil)
	pan := 5.0
	width := -1.0
	bass := 99.0
	mix := 2.0
	s.SetAudioFx(FxDelta{Pan: &pan, Width: &width, BassDb: &bass, ReverbMix: &mix})

	got := s.Snapshot()
	assert.Equal(t, 1.0, got.FxPan)
	assert.Equal(t, 0.0, got.FxWidth)
	assert.Equal(t, 18.0, got.FxBassDb)
	assert.Equal(t, 1.0, got.FxReverbMix)
}

func TestAudioFxLeavesUnspecifiedFieldsUnchanged(t *testing.T) {
	s := NewStore(FxSnapshot{VolumePercent: 100, FxWidth: 1, FxPan: 0.2}, nil)
	width := 2.0
	s.SetAudioFx(FxDelta{Width: &width})

	got := s.Snapshot()
	assert.Equal(t, 0.2, got.FxPan)
	assert.Equal(t, 2.0, got.FxWidth)
}

func TestStateTransitionsFollowTable(t *testing.T) {
	s := NewStore(FxSnapshot{VolumePercent: 100, FxWidth: 1}, nil)
	require.Equal(t, Idle, s.Snapshot().State)

	assert.False(t, s.Pause(), "pause from IDLE must fail")
	assert.False(t, s.Resume(), "resume from IDLE must fail")

	s.BeginPlay("a", "url-a")
	require.Equal(t, Playing, s.Snapshot().State)

	assert.True(t, s.Pause())
	assert.Equal(t, Paused, s.Snapshot().State)

	assert.True(t, s.Resume())
	assert.Equal(t, Playing, s.Snapshot().State)

	s.StopToIdle()
	got := s.Snapshot()
	assert.Equal(t, Idle, got.State)
	assert.Empty(t, got.NowPlayingTitle)
	assert.Empty(t, got.NowPlayingSourceURL)
}

func TestNowPlayingNonEmptyIffActive(t *testing.T) {
	s := NewStore(FxSnapshot{VolumePercent: 100, FxWidth: 1}, nil)
	s.BeginPlay("title", "url")
	got := s.Snapshot()
	assert.NotEmpty(t, got.NowPlayingTitle)
	assert.NotEmpty(t, got.NowPlayingSourceURL)

	s.StopToIdle()
	got = s.Snapshot()
	assert.Empty(t, got.NowPlayingTitle)
	assert.Empty(t, got.NowPlayingSourceURL)
}

func TestSetVolumeNotifiesPersistenceSink(t *testing.T) {
	var got FxSnapshot
	calls := 0
	s := NewStore(FxSnapshot{VolumePercent: 100, FxWidth: 1}, func(snap FxSnapshot) {
		calls++
		got = snap
	})
	s.SetVolume(42)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 42, got.VolumePercent)
}

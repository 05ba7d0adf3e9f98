// Package state holds SharedStatus and the control-plane state transitions.
// The mutex is held only across field reads/writes, never across I/O or
// channel sends — every volume/FX mutator takes a value snapshot before
// releasing the lock, keeping the critical section narrow.
package state

import "sync"

// PlaybackState mirrors voicepb.PlaybackState without importing the control
// package, keeping this package dependency-free of the RPC layer.
type PlaybackState int

const (
	Idle PlaybackState = iota
	Playing
	Paused
)

// Status is the full SharedStatus record.
type Status struct {
	State               PlaybackState
	NowPlayingTitle     string
	NowPlayingSourceURL string
	VolumePercent       int

	FxPan       float64
	FxWidth     float64
	FxSwapLR    bool
	FxBassDb    float64
	FxReverbMix float64
}

// FxSnapshot is the subset of Status persisted to disk.
type FxSnapshot struct {
	VolumePercent int     `json:"volume_percent"`
	FxPan         float64 `json:"fx_pan"`
	FxWidth       float64 `json:"fx_width"`
	FxSwapLR      bool    `json:"fx_swap_lr"`
	FxBassDb      float64 `json:"fx_bass_db"`
	FxReverbMix   float64 `json:"fx_reverb_mix"`
}

func defaultStatus() Status {
	return Status{
		State:         Idle,
		VolumePercent: 100,
		FxWidth:       1.0,
	}
}

// Store guards Status with a mutex and notifies a persistence sink on every
// FX/volume mutation.
type Store struct {
	mu     sync.Mutex
	status Status

	onFxChange func(FxSnapshot)
}

// NewStore builds a Store seeded from a loaded (or default) snapshot. onFxChange
// is invoked (outside the lock) after every FX/volume mutation; it is
// expected to be non-blocking (the persistence task owns its own queue).
func NewStore(initial FxSnapshot, onFxChange func(FxSnapshot)) *Store {
	st := defaultStatus()
	applySnapshot(&st, initial)
	return &Store{status: st, onFxChange: onFxChange}
}

func applySnapshot(st *Status, s FxSnapshot) {
	st.VolumePercent = clampInt(s.VolumePercent, 0, 200)
	st.FxPan = clampFloat(s.FxPan, -1, 1)
	st.FxWidth = clampFloat(s.FxWidth, 0, 3)
	st.FxSwapLR = s.FxSwapLR
	st.FxBassDb = clampFloat(s.FxBassDb, 0, 18)
	st.FxReverbMix = clampFloat(s.FxReverbMix, 0, 1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Snapshot returns a copy of the current status.
func (s *Store) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// FxSnapshot returns the persistable subset.
func (s *Store) FxSnapshot() FxSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fxSnapshotLocked(&s.status)
}

func fxSnapshotLocked(st *Status) FxSnapshot {
	return FxSnapshot{
		VolumePercent: st.VolumePercent,
		FxPan:         st.FxPan,
		FxWidth:       st.FxWidth,
		FxSwapLR:      st.FxSwapLR,
		FxBassDb:      st.FxBassDb,
		FxReverbMix:   st.FxReverbMix,
	}
}

// BeginPlay transitions to PLAYING with the given title/url.
// Any prior playback must already have been stopped by the caller via
// control.Service.stopCurrent before calling this.
func (s *Store) BeginPlay(title, sourceURL string) {
	s.mu.Lock()
	s.status.State = Playing
	s.status.NowPlayingTitle = title
	s.status.NowPlayingSourceURL = sourceURL
	s.mu.Unlock()
}

// Pause transitions PLAYING -> PAUSED. Returns false if the precondition
// (state==PLAYING) isn't met.
func (s *Store) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != Playing {
		return false
	}
	s.status.State = Paused
	return true
}

// Resume transitions PAUSED -> PLAYING. Returns false if the precondition
// (state==PAUSED) isn't met.
func (s *Store) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != Paused {
		return false
	}
	s.status.State = Playing
	return true
}

// StopToIdle transitions to IDLE and clears now-playing fields,
// unconditionally legal from any state.
func (s *Store) StopToIdle() {
	s.mu.Lock()
	s.status.State = Idle
	s.status.NowPlayingTitle = ""
	s.status.NowPlayingSourceURL = ""
	s.mu.Unlock()
}

// SetVolume clamps and stores volume_percent, then notifies the persistence
// sink with a fresh snapshot.
func (s *Store) SetVolume(percent int) {
	s.mu.Lock()
	s.status.VolumePercent = clampInt(percent, 0, 200)
	snap := fxSnapshotLocked(&s.status)
	s.mu.Unlock()
	s.notify(snap)
}

// FxDelta carries the optional per-field updates of SetAudioFx; nil means
// "leave unchanged".
type FxDelta struct {
	Pan       *float64
	Width     *float64
	SwapLR    *bool
	BassDb    *float64
	ReverbMix *float64
}

// SetAudioFx applies only the non-nil fields, clamping each, then notifies
// the persistence sink.
func (s *Store) SetAudioFx(d FxDelta) {
	s.mu.Lock()
	if d.Pan != nil {
		s.status.FxPan = clampFloat(*d.Pan, -1, 1)
	}
	if d.Width != nil {
		s.status.FxWidth = clampFloat(*d.Width, 0, 3)
	}
	if d.SwapLR != nil {
		s.status.FxSwapLR = *d.SwapLR
	}
	if d.BassDb != nil {
		s.status.FxBassDb = clampFloat(*d.BassDb, 0, 18)
	}
	if d.ReverbMix != nil {
		s.status.FxReverbMix = clampFloat(*d.ReverbMix, 0, 1)
	}
	snap := fxSnapshotLocked(&s.status)
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) notify(snap FxSnapshot) {
	if s.onFxChange != nil {
		s.onFxChange(snap)
	}
}

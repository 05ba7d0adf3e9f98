package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PersistQueueCapacity is the bounded persist-snapshot queue depth.
const PersistQueueCapacity = 32

// debounceWindow is the quiescence period before a pending snapshot is
// flushed to disk.
const debounceWindow = 200 * time.Millisecond

// Persister owns the debounced JSON snapshot writer. Every incoming
// snapshot replaces the pending value and resets the debounce timer;
// writes are atomic-via-overwrite.
type Persister struct {
	path   string
	logger *slog.Logger

	queue     chan FxSnapshot
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewPersister starts the persistence task's background goroutine.
func NewPersister(path string, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Persister{
		path:    path,
		logger:  logger,
		queue:   make(chan FxSnapshot, PersistQueueCapacity),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue submits a new snapshot non-blockingly; on overflow the oldest
// queued (not-yet-debounced) snapshot is effectively superseded since only
// the latest matters, so a full queue just drops the oldest unread entry.
// Enqueue must not be called after Shutdown.
func (p *Persister) Enqueue(snap FxSnapshot) {
	select {
	case p.queue <- snap:
	default:
		select {
		case <-p.queue:
		default:
		}
		select {
		case p.queue <- snap:
		default:
		}
	}
}

func (p *Persister) run() {
	var pending *FxSnapshot
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if pending == nil {
			return
		}
		if err := p.write(*pending); err != nil {
			p.logger.Warn("persist write failed", "error", err)
		}
		pending = nil
	}

	defer close(p.stopped)
	for {
		select {
		case snap, ok := <-p.queue:
			if !ok {
				flush()
				return
			}
			pending = &snap
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounceWindow)
			timerC = timer.C
		case <-timerC:
			flush()
			timerC = nil
		}
	}
}

func (p *Persister) write(snap FxSnapshot) error {
	dir := filepath.Dir(p.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create persist dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Shutdown closes the queue, which drains and flushes any pending snapshot
// before the background goroutine exits. Blocks until fully stopped.
func (p *Persister) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	<-p.stopped
}

// LoadSnapshot reads the persisted FX snapshot; a missing or invalid file
// yields defaults rather than an error.
func LoadSnapshot(path string) FxSnapshot {
	defaults := FxSnapshot{VolumePercent: 100, FxWidth: 1.0}
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults
	}
	// Missing fields take defaults (spec): unmarshal onto a copy pre-filled
	// with them so a partial file doesn't zero out unmentioned fields.
	snap := defaults
	if err := json.Unmarshal(data, &snap); err != nil {
		return defaults
	}
	return snap
}

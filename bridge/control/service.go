// Package control implements the RPC-equivalent control surface: the
// IDLE/PLAYING/PAUSED state machine, stop_current()'s cancel-then-bounded-join
// semantics (nothing is aborted when the wait runs out), and the filtered
// event subscription stream. No .proto exists
// for this service; service.go holds the plain-Go business logic, server.go
// wires it to a real grpc.Server by hand.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yichen11818/NeteaseTSBot/bridge/dsp"
	"github.com/yichen11818/NeteaseTSBot/bridge/events"
	"github.com/yichen11818/NeteaseTSBot/bridge/playback"
	"github.com/yichen11818/NeteaseTSBot/bridge/state"
	"github.com/yichen11818/NeteaseTSBot/bridge/ts3"
	"github.com/yichen11818/NeteaseTSBot/bridge/voicepb"
)

// maxDescriptionLen is the precondition on set_client_description.
const maxDescriptionLen = 700

// stopJoinTimeout is how long stop_current() waits for the outgoing
// playback task to join before it stops waiting.
const stopJoinTimeout = 2 * time.Second

// version is reported by Ping; a real build would stamp this via ldflags.
const version = "dev"

// actorPort is the narrow surface Service needs from the TS3 actor: queue a
// chat notice, a raw command, or an audio frame.
type actorPort interface {
	SubmitNotice(ts3.Notice)
	SubmitRawCommand(ts3.Command)
	playback.Sink
}

type playbackControl struct {
	handle            *playback.Handle
	title             string
	stoppedExternally bool
}

// Service holds every dependency the control-plane operations need and owns
// the single in-flight playback task.
type Service struct {
	store  *state.Store
	bus    *events.Bus
	actor  actorPort
	logger *slog.Logger

	mu      sync.Mutex
	current *playbackControl
}

// NewService wires the store, event bus, and TS3 actor into one control
// surface.
func NewService(store *state.Store, bus *events.Bus, actor actorPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, bus: bus, actor: actor, logger: logger}
}

func (s *Service) fxProvider() dsp.Params {
	st := s.store.Snapshot()
	return dsp.Params{
		VolumePercent: st.VolumePercent,
		Pan:           st.FxPan,
		Width:         st.FxWidth,
		SwapLR:        st.FxSwapLR,
		BassDb:        st.FxBassDb,
		ReverbMix:     st.FxReverbMix,
	}
}

// Ping is a liveness check.
func (s *Service) Ping(ctx context.Context, _ *voicepb.PingRequest) (*voicepb.PingResponse, error) {
	return &voicepb.PingResponse{Version: version}, nil
}

// Play stops whatever is running, transitions to PLAYING, emits STARTED
// synchronously, then spawns the new task.
func (s *Service) Play(ctx context.Context, req *voicepb.PlayRequest) (*voicepb.OpResponse, error) {
	s.stopCurrent()

	s.store.BeginPlay(req.Title, req.SourceURL)
	s.bus.PublishPlayback(voicepb.PlaybackEvent{Type: voicepb.PlaybackEventStarted, Title: req.Title})

	handle := playback.Start(context.Background(), req.SourceURL, s.fxProvider, s.actor, s.logger)

	pc := &playbackControl{handle: handle, title: req.Title}
	s.mu.Lock()
	s.current = pc
	s.mu.Unlock()

	go s.awaitOutcome(pc)

	if req.Notice != "" {
		s.actor.SubmitNotice(ts3.Notice{TargetMode: 2, Message: req.Notice})
	}
	return &voicepb.OpResponse{Ok: true}, nil
}

// awaitOutcome blocks until a playback task finishes and emits exactly one
// terminal PlaybackEvent, unless the task was ended by an explicit
// stop/skip (which emits only a log).
func (s *Service) awaitOutcome(pc *playbackControl) {
	<-pc.handle.Done()

	s.mu.Lock()
	if s.current == pc {
		s.current = nil
	}
	stoppedExternally := pc.stoppedExternally
	s.mu.Unlock()

	if stoppedExternally {
		return
	}

	if err := pc.handle.Err(); err != nil {
		s.bus.PublishPlayback(voicepb.PlaybackEvent{Type: voicepb.PlaybackEventError, Title: pc.title, Message: err.Error()})
		s.logger.Warn("playback task ended in error", "title", pc.title, "error", err)
		return
	}
	s.store.StopToIdle()
	s.bus.PublishPlayback(voicepb.PlaybackEvent{Type: voicepb.PlaybackEventFinished, Title: pc.title})
}

// stopCurrent cancels any in-flight playback task and waits up to
// stopJoinTimeout for it to join before giving up. This bounds the time
// before the next play() can spawn a new task. Nothing is aborted when the
// wait runs out: a task that has not joined by then keeps running until it
// observes its cancellation, and may overlap with its replacement.
func (s *Service) stopCurrent() {
	s.mu.Lock()
	cur := s.current
	if cur != nil {
		cur.stoppedExternally = true
	}
	s.mu.Unlock()
	if cur == nil {
		return
	}

	cur.handle.Cancel()
	select {
	case <-cur.handle.Done():
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("playback task did not join within timeout, no longer waiting", "title", cur.title)
	}

	s.mu.Lock()
	if s.current == cur {
		s.current = nil
	}
	s.mu.Unlock()
}

// Pause pauses the current playback task, if any.
func (s *Service) Pause(ctx context.Context, _ *voicepb.EmptyRequest) (*voicepb.OpResponse, error) {
	if !s.store.Pause() {
		return &voicepb.OpResponse{Ok: false, Message: "not playing"}, nil
	}
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.handle.Pause()
	}
	s.logger.Info("playback paused")
	return &voicepb.OpResponse{Ok: true}, nil
}

// Resume resumes a paused playback task, if any.
func (s *Service) Resume(ctx context.Context, _ *voicepb.EmptyRequest) (*voicepb.OpResponse, error) {
	if !s.store.Resume() {
		return &voicepb.OpResponse{Ok: false, Message: "not paused"}, nil
	}
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.handle.Resume()
	}
	s.logger.Info("playback resumed")
	return &voicepb.OpResponse{Ok: true}, nil
}

// Stop ends the current playback task and returns to IDLE.
func (s *Service) Stop(ctx context.Context, _ *voicepb.EmptyRequest) (*voicepb.OpResponse, error) {
	s.stopCurrent()
	s.store.StopToIdle()
	s.logger.Info("playback stopped")
	return &voicepb.OpResponse{Ok: true}, nil
}

// Skip is an alias for Stop; both name the same transition.
func (s *Service) Skip(ctx context.Context, req *voicepb.EmptyRequest) (*voicepb.OpResponse, error) {
	return s.Stop(ctx, req)
}

// SetVolume clamps and stores volume_percent.
func (s *Service) SetVolume(ctx context.Context, req *voicepb.SetVolumeRequest) (*voicepb.OpResponse, error) {
	s.store.SetVolume(int(req.VolumePercent))
	return &voicepb.OpResponse{Ok: true}, nil
}

// SetAudioFx applies only the fields present in the request.
func (s *Service) SetAudioFx(ctx context.Context, req *voicepb.SetAudioFxRequest) (*voicepb.OpResponse, error) {
	s.store.SetAudioFx(state.FxDelta{
		Pan:       req.Pan,
		Width:     req.Width,
		SwapLR:    req.SwapLR,
		BassDb:    req.BassDb,
		ReverbMix: req.ReverbMix,
	})
	return &voicepb.OpResponse{Ok: true}, nil
}

// GetAudioFx is a read-only snapshot.
func (s *Service) GetAudioFx(ctx context.Context, _ *voicepb.EmptyRequest) (*voicepb.GetAudioFxResponse, error) {
	st := s.store.Snapshot()
	return &voicepb.GetAudioFxResponse{
		Pan:       st.FxPan,
		Width:     st.FxWidth,
		SwapLR:    st.FxSwapLR,
		BassDb:    st.FxBassDb,
		ReverbMix: st.FxReverbMix,
	}, nil
}

// SetClientDescription forwards a raw clientupdate command after validating
// length.
func (s *Service) SetClientDescription(ctx context.Context, req *voicepb.SetClientDescriptionRequest) (*voicepb.OpResponse, error) {
	if len(req.Description) > maxDescriptionLen {
		return &voicepb.OpResponse{Ok: false, Message: "description too long"}, nil
	}
	s.actor.SubmitRawCommand(ts3.ClientUpdateDescription(req.Description))
	return &voicepb.OpResponse{Ok: true}, nil
}

// SendNotice queues a chat notice; target mode 3 (server) is only used when
// explicitly requested.
func (s *Service) SendNotice(ctx context.Context, req *voicepb.SendNoticeRequest) (*voicepb.OpResponse, error) {
	mode := 2
	if req.TargetMode == voicepb.TargetModeServer {
		mode = 3
	}
	s.actor.SubmitNotice(ts3.Notice{TargetMode: mode, Message: req.Message})
	return &voicepb.OpResponse{Ok: true}, nil
}

// GetStatus is a read-only snapshot.
func (s *Service) GetStatus(ctx context.Context, _ *voicepb.EmptyRequest) (*voicepb.GetStatusResponse, error) {
	st := s.store.Snapshot()
	return &voicepb.GetStatusResponse{
		State:               toProtoState(st.State),
		NowPlayingTitle:     st.NowPlayingTitle,
		NowPlayingSourceURL: st.NowPlayingSourceURL,
		VolumePercent:       int32(st.VolumePercent),
	}, nil
}

func toProtoState(s state.PlaybackState) voicepb.PlaybackState {
	switch s {
	case state.Playing:
		return voicepb.PlaybackStatePlaying
	case state.Paused:
		return voicepb.PlaybackStatePaused
	default:
		return voicepb.PlaybackStateIdle
	}
}

// SubscribeEvents opens a filtered broadcast stream and pushes events to
// send until ctx is cancelled or the bus subscription is closed.
func (s *Service) SubscribeEvents(ctx context.Context, req *voicepb.SubscribeEventsRequest, send func(*voicepb.Event) error) error {
	sub := s.bus.Subscribe(events.Filter{
		IncludeChat:     req.IncludeChat,
		IncludePlayback: req.IncludePlayback,
		IncludeLog:      req.IncludeLog,
	})
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := send(&ev); err != nil {
				return fmt.Errorf("subscribe_events send: %w", err)
			}
		}
	}
}

package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yichen11818/NeteaseTSBot/bridge/dsp"
	"github.com/yichen11818/NeteaseTSBot/bridge/pcm"
)

const (
	audioFormatSampleRate = 48000
	audioFormatChannels   = 2

	readerQueueCapacity = 50
	preBufferFrames     = 5

	tickInterval      = 20 * time.Millisecond
	readStallTimeout  = 200 * time.Millisecond
	localWaitTimeout  = 3 * time.Millisecond

	underrunFatalThreshold = 150
	underrunLogInterval    = 50

	diagnosticsInterval = 5 * time.Second
)

// wireFormat describes the interleaved s16le stereo frame the transcoder
// emits on stdout every tick; readerTask sizes its reads off FrameBytes().
var wireFormat = pcm.AudioFormat{
	SampleRate: audioFormatSampleRate,
	Channels:   audioFormatChannels,
	FrameDur:   tickInterval,
}

// Sink receives encoded Opus frames bound for the TS3 send queue.
type Sink interface {
	SubmitAudio(frame []byte)
}

// FxProvider returns a fresh snapshot of the current FX parameters; called
// once per tick so a frame's processing sees a single consistent snapshot
// for this tick.
type FxProvider func() dsp.Params

// Handle lets the control layer drive a running playback task: pause/resume,
// cooperative cancellation, and a join point for stop_current()'s 2 s wait.
type Handle struct {
	cancel context.CancelFunc
	pause  *pauseGate

	done chan struct{}
	err  error
}

// Pause parks the encode/send loop before its next tick.
func (h *Handle) Pause() { h.pause.set(true) }

// Resume releases a paused encode/send loop.
func (h *Handle) Resume() { h.pause.set(false) }

// Cancel requests cooperative shutdown; Done() closes once torn down.
func (h *Handle) Cancel() { h.cancel() }

// Done reports task completion (natural end, error, or cancellation).
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err is valid only after Done() has fired; nil means a clean end-of-stream
// or a cancellation.
func (h *Handle) Err() error { return h.err }

// Start launches one playback task: transcoder -> reader -> DSP -> Opus ->
// sink. It returns immediately with a Handle; the pipeline runs on its own
// goroutines until Done() fires.
func Start(ctx context.Context, sourceURL string, fx FxProvider, sink Sink, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	innerCtx, cancel := context.WithCancel(ctx)
	gate := newPauseGate()

	h := &Handle{cancel: cancel, pause: gate, done: make(chan struct{})}

	go func() {
		<-innerCtx.Done()
		gate.wake()
	}()

	go func() {
		err := run(innerCtx, sourceURL, fx, sink, gate, logger)
		h.err = err
		close(h.done)
		cancel()
	}()

	return h
}

func run(ctx context.Context, sourceURL string, fx FxProvider, sink Sink, gate *pauseGate, logger *slog.Logger) error {
	tc, err := startTranscoder(ctx, sourceURL, logger)
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	queue := make(chan []byte, readerQueueCapacity)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return readerTask(gctx, tc.stdout, queue)
	})
	g.Go(func() error {
		return encodeSendTask(gctx, queue, fx, sink, gate, logger)
	})

	runErr := g.Wait()
	if runErr != nil {
		// A reader or encoder failure cancels only gctx, not the context the
		// process was started with, so kill it here before reaping.
		_ = tc.cmd.Process.Kill()
	}
	waitErr := tc.wait()

	if runErr != nil {
		return runErr
	}
	if waitErr != nil && ctx.Err() == nil {
		// Process exited non-zero after the pipeline itself reported success
		// (e.g. ffmpeg's own late-stage error after flushing stdout); surface it.
		return fmt.Errorf("transcoder exited: %w", waitErr)
	}
	return nil
}

// pauseGate is a level-triggered pause flag with context-aware waiting.
type pauseGate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

func newPauseGate() *pauseGate {
	g := &pauseGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *pauseGate) set(p bool) {
	g.mu.Lock()
	g.paused = p
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *pauseGate) wake() {
	g.cond.Broadcast()
}

// waitWhilePaused blocks while paused, waking on either resume or ctx
// cancellation. Returns false if ctx was the reason it returned.
func (g *pauseGate) waitWhilePaused(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused {
		if ctx.Err() != nil {
			return false
		}
		g.cond.Wait()
	}
	return ctx.Err() == nil
}

type frameResult struct {
	data []byte
	err  error
}

// readerTask performs blocking full-frame reads and pushes them onto queue
// It owns queue's close, decoupling the blocking reader from the fixed-cadence encode loop.
func readerTask(ctx context.Context, stdout io.Reader, queue chan<- []byte) error {
	defer close(queue)

	results := make(chan frameResult)
	go func() {
		for {
			buf := make([]byte, wireFormat.FrameBytes())
			_, err := io.ReadFull(stdout, buf)
			select {
			case results <- frameResult{data: buf, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	sawFrame := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) || errors.Is(r.err, io.ErrUnexpectedEOF) {
					if !sawFrame {
						return fmt.Errorf("transcoder stdout EOF before any frame")
					}
					return nil
				}
				return fmt.Errorf("transcoder stdout read: %w", r.err)
			}
			sawFrame = true
			select {
			case queue <- r.data:
			case <-ctx.Done():
				return nil
			}
		case <-time.After(readStallTimeout):
			return fmt.Errorf("transcoder stdout read stalled past %s", readStallTimeout)
		}
	}
}

// frameBuffer is a local buffer distinct from
// the reader's channel: frames non-blockingly drained from the channel sit
// here until consumed, so pre-buffering and closed-channel detection don't
// have to infer state from channel length alone.
type frameBuffer struct {
	pending [][]byte
	queue   <-chan []byte
	closed  bool
}

func newFrameBuffer(queue <-chan []byte) *frameBuffer {
	return &frameBuffer{queue: queue}
}

// drainNonBlocking pulls every currently-ready frame off the channel.
func (fb *frameBuffer) drainNonBlocking() {
	for {
		select {
		case f, ok := <-fb.queue:
			if !ok {
				fb.closed = true
				return
			}
			fb.pending = append(fb.pending, f)
		default:
			return
		}
	}
}

// next returns one frame, waiting up to timeout if none is immediately
// available. ok is false on timeout; closed is true once the channel has
// been drained and closed with nothing left pending.
func (fb *frameBuffer) next(timeout time.Duration) (frame []byte, ok bool, closed bool) {
	if len(fb.pending) > 0 {
		frame = fb.pending[0]
		fb.pending = fb.pending[1:]
		return frame, true, false
	}
	if fb.closed {
		return nil, false, true
	}
	select {
	case f, chOK := <-fb.queue:
		if !chOK {
			fb.closed = true
			return nil, false, true
		}
		return f, true, false
	case <-time.After(timeout):
		return nil, false, false
	}
}

func (fb *frameBuffer) len() int { return len(fb.pending) }

// encodeSendTask runs the fixed 20ms ticker: pre-buffer, per-tick DSP +
// Opus encode, underrun accounting, periodic diagnostics, and the
// end-of-stream zero-length packet.
func encodeSendTask(ctx context.Context, queue <-chan []byte, fx FxProvider, sink Sink, gate *pauseGate, logger *slog.Logger) error {
	enc, err := NewEncoder(audioFormatSampleRate, audioFormatChannels)
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	kernel := dsp.NewKernel(audioFormatSampleRate)
	diag := &dsp.Diagnostics{}

	l := make([]float64, dsp.FrameSamples)
	r := make([]float64, dsp.FrameSamples)
	pcmBuf := make([]int16, dsp.FrameSamples*audioFormatChannels)

	fb := newFrameBuffer(queue)
	sawRealFrame := false
	consecutiveUnderruns := 0
	totalUnderruns := 0
	lastDiagLog := time.Now()

	preBuffer(ctx, fb, preBufferFrames)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !gate.waitWhilePaused(ctx) {
			return nil
		}

		fb.drainNonBlocking()
		frame, ok, closed := fb.next(localWaitTimeout)

		isSilence := false
		switch {
		case ok:
			sawRealFrame = true
			consecutiveUnderruns = 0
			pcm.DecodeStereoFrame(frame, l, r)
		case closed:
			if sawRealFrame {
				sink.SubmitAudio(nil) // EOS: zero-length opus packet, decoder flush signal
			}
			return nil
		default:
			isSilence = true
			consecutiveUnderruns++
			totalUnderruns++
			if sawRealFrame && consecutiveUnderruns >= underrunFatalThreshold {
				return fmt.Errorf("playback: %d consecutive underrun frames", consecutiveUnderruns)
			}
			if totalUnderruns%underrunLogInterval == 0 {
				logger.Info("playback underrun", "count", totalUnderruns)
			}
			zeroFrame(l, r)
		}

		params := fx()
		kernel.Process(l, r, params, isSilence, diag)

		pcm.EncodeStereoFrameInterleaved(l, r, pcmBuf)
		encoded, err := enc.Encode(pcmBuf)
		if err != nil {
			return fmt.Errorf("playback: %w", err)
		}
		out := make([]byte, len(encoded))
		copy(out, encoded)
		sink.SubmitAudio(out)

		if time.Since(lastDiagLog) >= diagnosticsInterval {
			logger.Info("playback diagnostics",
				"underruns", totalUnderruns,
				"clipped", diag.ClippedCount,
				"peak", diag.PeakAbs,
			)
			diag.Reset()
			lastDiagLog = time.Now()
		}
	}
}

// preBuffer waits until the reader has queued enough frames to absorb
// initial jitter, or until the source turns out to be shorter
// than the pre-buffer window (channel closes first).
func preBuffer(ctx context.Context, fb *frameBuffer, need int) {
	for fb.len() < need && !fb.closed {
		fb.drainNonBlocking()
		if fb.len() >= need || fb.closed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(localWaitTimeout):
		}
	}
}

func zeroFrame(l, r []float64) {
	for i := range l {
		l[i] = 0
	}
	for i := range r {
		r[i] = 0
	}
}

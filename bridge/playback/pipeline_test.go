package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferDrainAndNext(t *testing.T) {
	ch := make(chan []byte, 4)
	ch <- []byte{1}
	ch <- []byte{2}

	fb := newFrameBuffer(ch)
	fb.drainNonBlocking()
	assert.Equal(t, 2, fb.len())

	f, ok, closed := fb.next(time.Millisecond)
	require.True(t, ok)
	require.False(t, closed)
	assert.Equal(t, []byte{1}, f)
	assert.Equal(t, 1, fb.len())
}

func TestFrameBufferDetectsClosedChannel(t *testing.T) {
	ch := make(chan []byte)
	close(ch)

	fb := newFrameBuffer(ch)
	_, ok, closed := fb.next(5 * time.Millisecond)
	assert.False(t, ok)
	assert.True(t, closed)
}

func TestFrameBufferNextTimesOutWhenEmpty(t *testing.T) {
	ch := make(chan []byte)
	fb := newFrameBuffer(ch)

	_, ok, closed := fb.next(5 * time.Millisecond)
	assert.False(t, ok)
	assert.False(t, closed)
}

func TestPreBufferStopsOnceThresholdReached(t *testing.T) {
	ch := make(chan []byte, preBufferFrames)
	for i := 0; i < preBufferFrames; i++ {
		ch <- []byte{byte(i)}
	}
	fb := newFrameBuffer(ch)

	preBuffer(context.Background(), fb, preBufferFrames)
	assert.Equal(t, preBufferFrames, fb.len())
}

func TestPreBufferReturnsEarlyOnShortSource(t *testing.T) {
	ch := make(chan []byte, 2)
	ch <- []byte{1}
	close(ch)
	fb := newFrameBuffer(ch)

	preBuffer(context.Background(), fb, preBufferFrames)
	assert.True(t, fb.closed)
	assert.Equal(t, 1, fb.len())
}

func TestPauseGateBlocksUntilResumed(t *testing.T) {
	g := newPauseGate()
	g.set(true)

	var resumed sync.WaitGroup
	resumed.Add(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ok := g.waitWhilePaused(context.Background())
		assert.True(t, ok)
	}()

	select {
	case <-done:
		t.Fatal("waitWhilePaused returned before resume")
	case <-time.After(20 * time.Millisecond):
	}

	g.set(false)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitWhilePaused did not return after resume")
	}
}

func TestPauseGateUnblocksOnContextCancel(t *testing.T) {
	g := newPauseGate()
	g.set(true)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		done <- g.waitWhilePaused(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	g.wake()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waitWhilePaused did not unblock on cancel")
	}
}

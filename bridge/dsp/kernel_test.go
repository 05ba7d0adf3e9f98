package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentParams() Params {
	return Params{VolumePercent: 100, Width: 1}
}

func TestVolumeGainCurve(t *testing.T) {
	assert.InDelta(t, 1.0, volumeGain(100), 1e-9)
	assert.InDelta(t, 0, volumeGain(0), 1e-9)
	assert.Less(t, volumeGain(50), 0.5) // perceptual taper pulls below linear
	assert.InDelta(t, 2.0, volumeGain(200), 1e-9)
}

func TestFadeInRampsToUnityThenHoldsSteady(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()

	var last float64
	for frame := 0; frame < 5; frame++ {
		l := make([]float64, FrameSamples)
		r := make([]float64, FrameSamples)
		for i := range l {
			l[i], r[i] = 1, 1
		}
		k.Process(l, r, p, false, nil)
		last = l[len(l)-1]
	}
	assert.InDelta(t, 1.0, last, 1e-6, "fade should reach unity well within 5 frames")
}

func TestFadeInDoesNotAdvanceOnSilenceFrames(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()

	silent := make([]float64, FrameSamples)
	silentR := make([]float64, FrameSamples)
	for i := 0; i < 10; i++ {
		buf := make([]float64, FrameSamples)
		bufR := make([]float64, FrameSamples)
		k.Process(buf, bufR, p, true, nil)
	}
	require.Equal(t, 0, k.fadeCursor)

	real := make([]float64, FrameSamples)
	realR := make([]float64, FrameSamples)
	for i := range real {
		real[i], realR[i] = 1, 1
	}
	k.Process(real, realR, p, false, nil)
	assert.Greater(t, k.fadeCursor, 0)
	_ = silent
	_ = silentR
}

func TestPanBalanceKeepsCenterUnity(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()
	p.Pan = 0

	l := []float64{0.5}
	r := []float64{0.5}
	k.Process(l, r, p, true, nil)
	assert.InDelta(t, 0.5, l[0], 1e-9)
	assert.InDelta(t, 0.5, r[0], 1e-9)
}

func TestPanPositiveAttenuatesLeft(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()
	p.Pan = 1

	l := []float64{0.5}
	r := []float64{0.5}
	k.Process(l, r, p, true, nil)
	assert.InDelta(t, 0, l[0], 1e-9)
	assert.InDelta(t, 0.5, r[0], 1e-9)
}

func TestWidthZeroCollapsesToMono(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()
	p.Width = 0

	l := []float64{1}
	r := []float64{-1}
	k.Process(l, r, p, true, nil)
	assert.InDelta(t, l[0], r[0], 1e-9)
}

func TestSwapLRExchangesChannels(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()
	p.SwapLR = true

	l := []float64{0.3}
	r := []float64{0.7}
	k.Process(l, r, p, true, nil)
	assert.InDelta(t, 0.7, l[0], 1e-9)
	assert.InDelta(t, 0.3, r[0], 1e-9)
}

func TestBassBypassWhenFlat(t *testing.T) {
	k := NewKernel(48000)
	// bassDb=0, reverbMix=0 => bypass; signal should pass through unchanged
	// aside from unity gain.
	l, r := k.applyBass(0.42, -0.17, 0, 0)
	assert.InDelta(t, 0.42, l, 1e-9)
	assert.InDelta(t, -0.17, r, 1e-9)
}

func TestBassBoostRaisesLowFrequencyEnergy(t *testing.T) {
	// Feed a constant (DC-like / fully low-frequency) signal and confirm the
	// shelf raises its steady-state level when boosted.
	var flatOut, boostOut float64
	kFlat := NewKernel(48000)
	kBoost := NewKernel(48000)
	for i := 0; i < 2000; i++ {
		flatOut, _ = kFlat.applyBass(1, 1, 0, 0)
		boostOut, _ = kBoost.applyBass(1, 1, 6, 0)
	}
	assert.Greater(t, boostOut, flatOut)
}

func TestDiagnosticsTracksClipAndPeak(t *testing.T) {
	var diag Diagnostics
	diag.observe(1.5, -0.2)
	diag.observe(0.1, 2.0)
	assert.Equal(t, 2, diag.ClippedCount)
	assert.InDelta(t, 2.0, diag.PeakAbs, 1e-9)

	diag.Reset()
	assert.Equal(t, 0, diag.ClippedCount)
	assert.Equal(t, 0.0, diag.PeakAbs)
}

func TestReverbBypassAtZeroMix(t *testing.T) {
	k := NewKernel(48000)
	p := silentParams()
	p.ReverbMix = 0

	l := []float64{0.25}
	r := []float64{-0.25}
	k.Process(l, r, p, true, nil)
	assert.InDelta(t, 0.25, l[0], 1e-9)
	assert.InDelta(t, -0.25, r[0], 1e-9)
}

func TestReverbWetSignalStaysBounded(t *testing.T) {
	n := newReverbNetwork()
	for i := 0; i < 10000; i++ {
		l, r := n.process(1, -1, 1.0)
		assert.False(t, math.IsNaN(l) || math.IsInf(l, 0))
		assert.False(t, math.IsNaN(r) || math.IsInf(r, 0))
		assert.Less(t, math.Abs(l), 10.0)
		assert.Less(t, math.Abs(r), 10.0)
	}
}

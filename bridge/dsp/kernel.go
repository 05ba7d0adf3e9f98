// Package dsp implements the per-frame audio effects chain: volume curve,
// fade-in, bass low-shelf, stereo reverb, width/swap/pan. Every kernel here
// owns its state exclusively; nothing is shared across playback tasks.
package dsp

import "math"

// FrameSamples is the fixed per-channel sample count of one 20ms @ 48kHz frame.
const FrameSamples = 960

// fadeInSamplesPerChannel is the fade-in ramp length: 80ms @ 48kHz = 3840
// samples per channel.
const fadeInSamplesPerChannel = 3840

// Params is a read-once-per-frame snapshot of the FX parameters a frame is
// processed with. Taking a snapshot up front (rather than reading shared
// state mid-frame) guarantees in-frame consistency.
type Params struct {
	VolumePercent int
	Pan           float64
	Width         float64
	SwapLR        bool
	BassDb        float64
	ReverbMix     float64
}

// Diagnostics accumulates clip/peak stats over a rolling window; the caller
// resets it every 5s and logs the snapshot.
type Diagnostics struct {
	ClippedCount int
	PeakAbs      float64
}

func (d *Diagnostics) observe(l, r float64) {
	if a := math.Abs(l); a > d.PeakAbs {
		d.PeakAbs = a
	}
	if a := math.Abs(r); a > d.PeakAbs {
		d.PeakAbs = a
	}
	if math.Abs(l) > 1 {
		d.ClippedCount++
	}
	if math.Abs(r) > 1 {
		d.ClippedCount++
	}
}

func (d *Diagnostics) Reset() {
	d.ClippedCount = 0
	d.PeakAbs = 0
}

// Kernel holds per-playback DSP state: fade cursor, bass filter state,
// reverb network. A fresh Kernel must be created for every new playback.
type Kernel struct {
	fadeCursor int // samples of real audio seen so far, saturates at fadeInSamplesPerChannel

	bassLP [2]float64 // one-pole lowpass state, per channel

	reverb *reverbNetwork

	sampleRate int
}

// NewKernel builds a Kernel for the given sample rate (48000 in production;
// parameterized for test coverage at other rates).
func NewKernel(sampleRate int) *Kernel {
	return &Kernel{
		reverb:     newReverbNetwork(),
		sampleRate: sampleRate,
	}
}

// Process applies the full effects chain in place to one stereo frame. l and
// r must each have length FrameSamples. isSilence indicates an
// underrun-filled frame (which must not advance the fade cursor).
func (k *Kernel) Process(l, r []float64, p Params, isSilence bool, diag *Diagnostics) {
	gain := volumeGain(p.VolumePercent)

	for i := 0; i < len(l) && i < len(r); i++ {
		lv, rv := l[i], r[i]

		lv *= gain
		rv *= gain

		if !isSilence {
			lv, rv = k.applyFadeIn(lv, rv)
		}

		lv, rv = k.applyBass(lv, rv, p.BassDb, p.ReverbMix)

		if p.ReverbMix > 1e-4 {
			lv, rv = k.reverb.process(lv, rv, p.ReverbMix)
		}

		if p.SwapLR {
			lv, rv = rv, lv
		}
		if math.Abs(p.Width-1) > 1e-9 {
			mid := (lv + rv) / 2
			side := (lv - rv) / 2 * p.Width
			lv = mid + side
			rv = mid - side
		}
		if p.Pan != 0 {
			if p.Pan >= 0 {
				lv *= 1 - p.Pan
			} else {
				rv *= 1 + p.Pan
			}
		}

		if diag != nil {
			diag.observe(lv, rv)
		}

		l[i], r[i] = lv, rv
	}
}

// volumeGain implements the perceptual volume taper: r^1.6 below unity,
// linear above.
func volumeGain(volumePercent int) float64 {
	r := float64(volumePercent) / 100
	if r <= 1 {
		return math.Pow(r, 1.6)
	}
	return r
}

// applyFadeIn returns samples scaled by the current linear fade-in ramp and
// advances the cursor by one sample (per channel, so both channels move
// together — the cursor is a single scalar across the stereo pair).
func (k *Kernel) applyFadeIn(l, r float64) (float64, float64) {
	if k.fadeCursor >= fadeInSamplesPerChannel {
		return l, r
	}
	ramp := float64(k.fadeCursor) / float64(fadeInSamplesPerChannel)
	k.fadeCursor++
	return l * ramp, r * ramp
}

// applyBass implements the one-pole low-shelf: lp += alpha*(x-lp); output =
// (x-lp) + lp*10^(db/20). Bypassed in the hot path when both bass and reverb
// are negligible.
func (k *Kernel) applyBass(l, r, bassDb, reverbMix float64) (float64, float64) {
	gainLinear := math.Pow(10, bassDb/20)
	if math.Abs(gainLinear-1) < 1e-4 && reverbMix < 1e-4 {
		return l, r
	}
	const cutoffHz = 150.0
	alpha := (2 * math.Pi * cutoffHz) / (float64(k.sampleRate) + 2*math.Pi*cutoffHz)

	k.bassLP[0] += alpha * (l - k.bassLP[0])
	k.bassLP[1] += alpha * (r - k.bassLP[1])

	outL := (l - k.bassLP[0]) + k.bassLP[0]*gainLinear
	outR := (r - k.bassLP[1]) + k.bassLP[1]*gainLinear
	return outL, outR
}

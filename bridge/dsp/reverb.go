package dsp

// reverbNetwork implements a stereo Schroeder-style reverb: two parallel
// comb filters per channel summed and halved, followed by one all-pass,
// crossfaded against dry by the caller-supplied mix.
type reverbNetwork struct {
	combL [2]combFilter
	combR [2]combFilter
	apL   allpassFilter
	apR   allpassFilter
}

func newReverbNetwork() *reverbNetwork {
	return &reverbNetwork{
		combL: [2]combFilter{
			newCombFilter(1487, 0.78),
			newCombFilter(1601, 0.78),
		},
		combR: [2]combFilter{
			newCombFilter(1559, 0.78),
			newCombFilter(1699, 0.78),
		},
		apL: newAllpassFilter(556, 0.5),
		apR: newAllpassFilter(579, 0.5),
	}
}

const reverbWetScale = 0.28

func (n *reverbNetwork) process(l, r, mix float64) (float64, float64) {
	wetL := (n.combL[0].process(l) + n.combL[1].process(l)) / 2
	wetR := (n.combR[0].process(r) + n.combR[1].process(r)) / 2

	wetL = n.apL.process(wetL)
	wetR = n.apR.process(wetR)

	wetL *= reverbWetScale
	wetR *= reverbWetScale

	outL := l*(1-mix) + wetL*mix
	outR := r*(1-mix) + wetR*mix
	return outL, outR
}

// combFilter is a simple feedback comb: y[n] = x[n] + feedback*y[n-delay].
type combFilter struct {
	buf      []float64
	pos      int
	feedback float64
}

func newCombFilter(delaySamples int, feedback float64) combFilter {
	return combFilter{
		buf:      make([]float64, delaySamples),
		feedback: feedback,
	}
}

func (c *combFilter) process(x float64) float64 {
	delayed := c.buf[c.pos]
	y := x + c.feedback*delayed
	c.buf[c.pos] = y
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return y
}

// allpassFilter is the standard Schroeder all-pass section.
type allpassFilter struct {
	buf      []float64
	pos      int
	feedback float64
}

func newAllpassFilter(delaySamples int, feedback float64) allpassFilter {
	return allpassFilter{
		buf:      make([]float64, delaySamples),
		feedback: feedback,
	}
}

func (a *allpassFilter) process(x float64) float64 {
	delayed := a.buf[a.pos]
	y := -a.feedback*x + delayed
	a.buf[a.pos] = x + a.feedback*y
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return y
}

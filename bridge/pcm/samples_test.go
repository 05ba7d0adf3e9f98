package pcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEncodeStereoFrameRoundTrips(t *testing.T) {
	data := []byte{
		0x00, 0x40, // L = 16384
		0x00, 0xC0, // R = -16384
	}
	l := make([]float64, 1)
	r := make([]float64, 1)
	DecodeStereoFrame(data, l, r)
	assert.InDelta(t, 0.5, l[0], 1e-4)
	assert.InDelta(t, -0.5, r[0], 1e-4)

	out := make([]int16, 2)
	EncodeStereoFrameInterleaved(l, r, out)
	assert.Equal(t, int16(16384), out[0])
	assert.Equal(t, int16(-16384), out[1])
}

func TestEncodeStereoFrameInterleavedClampsOutOfRange(t *testing.T) {
	l := []float64{2.0}
	r := []float64{-2.0}
	out := make([]int16, 2)
	EncodeStereoFrameInterleaved(l, r, out)

	assert.Equal(t, int16(32767), out[0])
	assert.Equal(t, int16(-32768), out[1])
}

// Package playback runs one decoded-audio pipeline per play request: spawn a
// transcoder, decode its s16le output, push it through the DSP kernel,
// Opus-encode, and hand frames to the TS3 send queue.
package playback

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

const (
	opusMaxPacketBytes = 1275 // upper bound per encoded frame
	opusApplication    = opus.AppAudio
)

// Encoder wraps a stereo 48kHz Opus encoder with a fixed output buffer so
// each call to Encode never allocates.
type Encoder struct {
	enc *opus.Encoder
	buf []byte
}

// NewEncoder constructs an encoder for the given sample rate/channel count
// (always 48000/2 in this bridge, per the transcoder contract).
func NewEncoder(sampleRate, channels int) (*Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opusApplication)
	if err != nil {
		return nil, fmt.Errorf("init opus encoder: %w", err)
	}
	return &Encoder{enc: enc, buf: make([]byte, opusMaxPacketBytes)}, nil
}

// Encode compresses one interleaved stereo PCM frame and returns a slice
// backed by the encoder's reusable buffer; callers that need to retain the
// bytes past the next Encode call must copy.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	return e.buf[:n], nil
}

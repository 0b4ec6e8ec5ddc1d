// Package energy implements the voice-activity detection capability with an
// RMS energy threshold over 16-bit PCM audio. It needs no external service,
// which makes it the default detector for deployments without a dedicated
// VAD model.
package energy

import (
	"context"
	"encoding/binary"
	"math"
)

// defaultThresholdDB marks the energy level above which a chunk is treated
// as speech. Typical quiet-room noise sits well below -50 dBFS.
const defaultThresholdDB = -40.0

// Detector classifies audio chunks by comparing their RMS energy against a
// fixed decibel threshold.
type Detector struct {
	thresholdDB float64
}

// Option customizes a detector at construction.
type Option func(*Detector)

// WithThresholdDB overrides the speech energy threshold, in dBFS.
func WithThresholdDB(threshold float64) Option {
	return func(d *Detector) { d.thresholdDB = threshold }
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{thresholdDB: defaultThresholdDB}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect reports whether the chunk's energy exceeds the speech threshold.
// The chunk is interpreted as little-endian 16-bit PCM; a trailing odd byte
// is ignored.
func (d *Detector) Detect(_ context.Context, chunk []byte) (bool, error) {
	return energyDB(chunk) >= d.thresholdDB, nil
}

func energyDB(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for i := 0; i < samples*2; i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(chunk[i:])))
		sum += sample * sample
	}

	rms := math.Sqrt(sum / float64(samples))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/math.MaxInt16)
}

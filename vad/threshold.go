package vad

import (
	"encoding/binary"
	"math"
)

// Threshold is the RMS-amplitude policy. A frame is speech when its RMS over
// normalized samples exceeds the configured silence threshold. Confidence
// carries the raw RMS value, not a probability.
type Threshold struct {
	silenceThreshold float64
}

func NewThreshold(silenceThreshold float64) *Threshold {
	return &Threshold{silenceThreshold: silenceThreshold}
}

func (t *Threshold) Evaluate(frame []byte) Verdict {
	rms := RMS(frame)
	return Verdict{
		IsSpeech:   rms > t.silenceThreshold,
		Confidence: rms,
	}
}

func (t *Threshold) Reset() {}

func (t *Threshold) Ready() bool { return true }

// RMS computes sqrt(mean(sample^2)) over normalized int16 samples.
func RMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(frame[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(n))
}

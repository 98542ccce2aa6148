// Package cue plays short audible ticks at session boundaries so the user
// knows the hotkey landed without looking at a terminal: a high tick when
// recording starts, a lower one when text is delivered, and a double buzz on
// failure. Playback is fire-and-forget; a missing output device silently
// disables cues.
package cue

import "math"

var disabled bool

// Disable turns all cues off, for headless and test runs.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	startFreq   = 1100.0
	startVolume = 0.5
	startDecay  = 60.0

	doneFreq   = 850.0
	doneVolume = 0.5
	doneDecay  = 40.0

	failFreq   = 320.0
	failVolume = 0.6
	failDecay  = 30.0
)

// synthTone renders a decaying sine tick as mono int16 samples.
func synthTone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

// synthDouble renders two ticks separated by a gap.
func synthDouble(freq, tickDur, gapDur, volume, decay float64) []int16 {
	tick := synthTone(freq, tickDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, len(tick)*2+len(gap))
	out = append(out, tick...)
	out = append(out, gap...)
	out = append(out, tick...)
	return out
}

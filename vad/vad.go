// Package vad classifies capture-format audio frames as speech or silence.
// Two policies exist: a cheap RMS threshold and a streaming neural model
// (Silero). The recording state machine consumes verdicts; it never talks to
// an engine directly.
package vad

// Verdict is the outcome of evaluating one audio frame. Transient; not
// persisted anywhere.
type Verdict struct {
	IsSpeech   bool
	Confidence float64 // 0..1; meaning differs per policy, see implementations

	// Most recent speech segment in milliseconds from session start.
	// Only the model policy populates these.
	SegmentStartMs int64
	SegmentEndMs   int64
}

// Policy evaluates frames of 16-bit mono LE PCM. Evaluate runs on the capture
// callback path: it must return quickly and must never propagate an engine
// error to the caller. Reset clears streaming state and is called at the start
// of every recording session; policies are never shared across concurrent
// sessions.
type Policy interface {
	Evaluate(frame []byte) Verdict
	Reset()

	// Ready reports whether the policy is fully initialized. The threshold
	// policy is always ready; the model policy loads asynchronously and
	// falls back to threshold behavior until ready.
	Ready() bool
}

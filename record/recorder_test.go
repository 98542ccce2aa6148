package record

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"scribe/audio"
	"scribe/vad"
)

// fakeClock advances a fixed step on every read, so hysteresis durations are
// deterministic no matter how fast the fake capture delivers frames.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func fakeCapture(t *testing.T, pcm []byte) audio.CaptureDevice {
	t.Helper()
	ctx := audio.NewFakePCMContext(pcm, false)
	cap, err := ctx.NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return cap
}

func pcmTone(amplitude float64, ms int) []byte {
	frames := ms / frameMs
	frame := genFrame(amplitude)
	out := make([]byte, 0, frames*len(frame))
	for i := 0; i < frames; i++ {
		out = append(out, frame...)
	}
	return out
}

func TestRecorderCollectsAllFrames(t *testing.T) {
	pcm := pcmTone(0.2, 900)
	cap := fakeCapture(t, pcm)

	m := NewMachine(Config{Mode: ModeAlways}, &sinkEvents{})
	r := NewRecorder(m, cap)

	sess := NewSession(time.Now())
	if err := r.Start(sess); err != nil {
		t.Fatal(err)
	}

	got := r.Stop()
	if got != sess {
		t.Fatal("Stop did not return the started session")
	}
	// Trailing silence frames may land during the stop grace; the fed PCM
	// must be an intact prefix.
	if len(got.Bytes()) < len(pcm) || !bytes.Equal(got.Bytes()[:len(pcm)], pcm) {
		t.Errorf("buffer lost frames: %d bytes, fed %d", len(got.Bytes()), len(pcm))
	}
	if got.AudioDuration() < 900*time.Millisecond {
		t.Errorf("AudioDuration = %v, want >= 900ms", got.AudioDuration())
	}
}

func TestRecorderSecondStartRejected(t *testing.T) {
	cap := fakeCapture(t, pcmTone(0.2, 300))
	m := NewMachine(Config{Mode: ModeAlways}, &sinkEvents{})
	r := NewRecorder(m, cap)

	if err := r.Start(NewSession(time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(NewSession(time.Now())); err != ErrNotIdle {
		t.Fatalf("second start: got %v, want ErrNotIdle", err)
	}
	r.Stop()
}

func TestRecorderStopIdempotent(t *testing.T) {
	cap := fakeCapture(t, pcmTone(0.2, 300))
	m := NewMachine(Config{Mode: ModeAlways}, &sinkEvents{})
	r := NewRecorder(m, cap)

	if err := r.Start(NewSession(time.Now())); err != nil {
		t.Fatal(err)
	}
	if r.Stop() == nil {
		t.Fatal("first Stop returned nil")
	}
	if r.Stop() != nil {
		t.Fatal("second Stop returned a session")
	}
	if r.Phase() != PhaseIdle {
		t.Errorf("phase = %v, want idle", r.Phase())
	}
}

func TestRecorderAutoStopOnConfirmedSilence(t *testing.T) {
	// 1s of tone then enough silence to clear minSilence. The fake clock
	// steps 30ms per frame so the hysteresis sees real durations.
	pcm := append(pcmTone(0.2, 990), pcmTone(0.0, 900)...)
	cap := fakeCapture(t, pcm)

	ev := &sinkEvents{}
	m := NewMachine(Config{
		Mode:       ModeThreshold,
		Policy:     vad.NewThreshold(0.05),
		MinSpeech:  300 * time.Millisecond,
		MinSilence: 500 * time.Millisecond,
	}, ev)
	r := NewRecorder(m, cap)
	r.now = newFakeClock(frameMs * time.Millisecond).Now

	sess := NewSession(time.Now())
	if err := r.Start(sess); err != nil {
		t.Fatal(err)
	}

	select {
	case <-r.AutoStop():
	case <-time.After(2 * time.Second):
		t.Fatal("auto-stop never signaled")
	}

	got := r.Stop()
	if got != sess {
		t.Fatal("Stop after auto-stop did not return the session")
	}
	if len(ev.started) != 1 || len(ev.ended) != 1 {
		t.Errorf("events: %d started, %d ended, want 1/1", len(ev.started), len(ev.ended))
	}
	if got.AudioDuration() < 990*time.Millisecond {
		t.Errorf("AudioDuration = %v, want speech plus trailing silence", got.AudioDuration())
	}
}

func TestRecorderCancelDiscards(t *testing.T) {
	cap := fakeCapture(t, pcmTone(0.2, 300))
	m := NewMachine(Config{Mode: ModeAlways}, &sinkEvents{})
	r := NewRecorder(m, cap)

	sess := NewSession(time.Now())
	if err := r.Start(sess); err != nil {
		t.Fatal(err)
	}

	got := r.Cancel()
	if got != sess {
		t.Fatal("Cancel did not return the active session")
	}
	if !got.Cancelled() {
		t.Error("session not marked cancelled")
	}
	if r.Phase() != PhaseIdle {
		t.Errorf("phase = %v after cancel, want idle", r.Phase())
	}
	if r.Cancel() != nil {
		t.Error("Cancel while idle returned a session")
	}
}

// panicPolicy simulates a VAD engine fault inside the capture callback.
type panicPolicy struct{}

func (panicPolicy) Evaluate([]byte) vad.Verdict { panic("vad engine fault") }
func (panicPolicy) Reset()                      {}
func (panicPolicy) Ready() bool                 { return true }

func TestRecorderFaultSignal(t *testing.T) {
	cap := fakeCapture(t, pcmTone(0.2, 300))
	m := NewMachine(Config{
		Mode:       ModeThreshold,
		Policy:     panicPolicy{},
		MinSpeech:  300 * time.Millisecond,
		MinSilence: 500 * time.Millisecond,
	}, &sinkEvents{})
	r := NewRecorder(m, cap)

	sess := NewSession(time.Now())
	if err := r.Start(sess); err != nil {
		t.Fatal(err)
	}

	select {
	case <-r.Fault():
	case <-time.After(2 * time.Second):
		t.Fatal("fault never signaled")
	}

	if got := r.Cancel(); got == nil || !got.Cancelled() {
		t.Fatal("cancel after fault did not discard the session")
	}
}

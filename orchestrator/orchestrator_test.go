package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"scribe/audio"
	"scribe/record"
	"scribe/vad"
)

// fakeRecognizer scripts the recognition result and records invocations.
type fakeRecognizer struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(ctx context.Context, pcm []byte) (string, bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", false, nil
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", false, f.err
	}
	return f.text, f.text != "", nil
}

func (f *fakeRecognizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeInjector struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeInjector) Inject(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeInjector) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// chanSink forwards completion events to a channel and counts the rest.
type chanSink struct {
	NopSink
	mu        sync.Mutex
	started   int
	stopped   int
	cancelled int
	complete  chan completion
}

type completion struct {
	sessionID string
	text      string
	hasText   bool
}

func newChanSink() *chanSink {
	return &chanSink{complete: make(chan completion, 4)}
}

func (s *chanSink) RecordingStarted(string, time.Time) {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
}

func (s *chanSink) RecordingStopped(string, time.Time) {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

func (s *chanSink) RecordingCancelled(string, time.Time) {
	s.mu.Lock()
	s.cancelled++
	s.mu.Unlock()
}

func (s *chanSink) RecognitionComplete(sessionID, text string, hasText bool, _ time.Time) {
	s.complete <- completion{sessionID, text, hasText}
}

func (s *chanSink) counts() (started, stopped, cancelled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped, s.cancelled
}

func tonePCM(amplitude float64, ms int) []byte {
	n := 16000 * ms / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

// stepClock advances 30ms per read, matching the fake capture's frame size.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(30 * time.Millisecond)
	return c.t
}

func newOrch(t *testing.T, pcm []byte, mcfg record.Config, rec Recognizer) (*Orchestrator, *fakeInjector, *chanSink) {
	t.Helper()
	ctx := audio.NewFakePCMContext(pcm, false)
	cap, err := ctx.NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	sink := newChanSink()
	machine := record.NewMachine(mcfg, sink)
	recorder := record.NewRecorder(machine, cap)
	inj := &fakeInjector{}
	o := New(Config{RecognitionTimeout: 5 * time.Second}, recorder, rec, inj, sink)
	return o, inj, sink
}

func waitComplete(t *testing.T, sink *chanSink) completion {
	t.Helper()
	select {
	case c := <-sink.complete:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("recognition never completed")
		return completion{}
	}
}

func TestStartStopInjectsText(t *testing.T) {
	rec := &fakeRecognizer{text: "hello world"}
	o, inj, sink := newOrch(t, tonePCM(0.2, 600), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	if got := o.Phase(); !got.Recording() {
		t.Fatalf("phase = %v while recording", got)
	}
	o.Stop()

	c := waitComplete(t, sink)
	if !c.hasText || c.text != "hello world" {
		t.Fatalf("completion = %+v", c)
	}
	if got := inj.Texts(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("injected = %v", got)
	}
	if o.Phase() != record.PhaseIdle {
		t.Errorf("phase = %v after completion, want idle", o.Phase())
	}
	started, stopped, cancelled := sink.counts()
	if started != 1 || stopped != 1 || cancelled != 0 {
		t.Errorf("events = %d/%d/%d, want 1/1/0", started, stopped, cancelled)
	}
}

func TestStartWhileActiveReturnsBusy(t *testing.T) {
	rec := &fakeRecognizer{text: "x"}
	o, _, sink := newOrch(t, tonePCM(0.2, 600), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	if err := o.Start(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second start: got %v, want ErrBusy", err)
	}
	o.Stop()
	waitComplete(t, sink)
}

func TestStartDuringRecognitionTailReturnsBusy(t *testing.T) {
	rec := &fakeRecognizer{text: "slow", delay: 400 * time.Millisecond}
	o, _, sink := newOrch(t, tonePCM(0.2, 300), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	go o.Stop()

	// Wait until the tail is observable, then a new start must be rejected.
	deadline := time.Now().Add(2 * time.Second)
	for o.Phase() != record.PhaseStopping && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := o.Start(); !errors.Is(err, ErrBusy) {
		t.Fatalf("start during recognition: got %v, want ErrBusy", err)
	}
	waitComplete(t, sink)
	if err := o.Start(); err != nil {
		t.Fatalf("start after completion: %v", err)
	}
	o.Cancel()
}

func TestCancelDiscardsWithoutRecognition(t *testing.T) {
	rec := &fakeRecognizer{text: "never"}
	o, inj, sink := newOrch(t, tonePCM(0.2, 600), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	o.Cancel()

	if rec.Calls() != 0 {
		t.Error("recognizer invoked for a cancelled session")
	}
	if len(inj.Texts()) != 0 {
		t.Error("injection happened for a cancelled session")
	}
	if o.Phase() != record.PhaseIdle {
		t.Errorf("phase = %v after cancel, want idle", o.Phase())
	}
	if _, _, cancelled := sink.counts(); cancelled != 1 {
		t.Error("RecordingCancelled not emitted")
	}
	if err := o.Start(); err != nil {
		t.Fatalf("start after cancel: %v", err)
	}
	o.Cancel()
}

func TestCancelDuringRecognitionAbandonsResult(t *testing.T) {
	rec := &fakeRecognizer{text: "abandoned", delay: 2 * time.Second}
	o, inj, sink := newOrch(t, tonePCM(0.2, 300), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	go o.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for rec.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	o.Cancel()

	c := waitComplete(t, sink)
	if c.hasText {
		t.Fatalf("cancelled recognition produced text %q", c.text)
	}
	if len(inj.Texts()) != 0 {
		t.Error("injection happened for abandoned recognition")
	}
}

func TestRecognitionErrorCompletesWithoutText(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("engine exploded")}
	o, inj, sink := newOrch(t, tonePCM(0.2, 300), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}
	o.Stop()

	c := waitComplete(t, sink)
	if c.hasText {
		t.Fatal("failed recognition reported text")
	}
	if len(inj.Texts()) != 0 {
		t.Error("injection happened after recognition error")
	}
	if o.Phase() != record.PhaseIdle {
		t.Errorf("phase = %v, want idle", o.Phase())
	}
}

func TestEmptyBufferSkipsRecognizer(t *testing.T) {
	rec := &fakeRecognizer{text: "never"}
	o, inj, sink := newOrch(t, nil, record.Config{Mode: record.ModeAlways}, rec)

	o.finish(record.NewSession(time.Now()))

	c := waitComplete(t, sink)
	if c.hasText {
		t.Fatal("empty session reported text")
	}
	if rec.Calls() != 0 {
		t.Error("recognizer invoked on empty buffer")
	}
	if len(inj.Texts()) != 0 {
		t.Error("injection happened on empty buffer")
	}
}

func TestAutoStopDrivesFullPipeline(t *testing.T) {
	// 1s speech then 1s silence with a threshold policy: confirmed silence
	// must stop the session and run recognition without an explicit trigger.
	pcm := append(tonePCM(0.2, 990), tonePCM(0.0, 990)...)
	rec := &fakeRecognizer{text: "auto stopped"}
	o, inj, sink := newOrch(t, pcm, record.Config{
		Mode:       record.ModeThreshold,
		Policy:     vad.NewThreshold(0.05),
		MinSpeech:  300 * time.Millisecond,
		MinSilence: 500 * time.Millisecond,
	}, rec)
	o.recorder.SetClock((&stepClock{t: time.Unix(1000, 0)}).Now)

	if err := o.Start(); err != nil {
		t.Fatal(err)
	}

	c := waitComplete(t, sink)
	if !c.hasText || c.text != "auto stopped" {
		t.Fatalf("completion = %+v", c)
	}
	if got := inj.Texts(); len(got) != 1 {
		t.Fatalf("injected = %v", got)
	}
	if o.Phase() != record.PhaseIdle {
		t.Errorf("phase = %v, want idle", o.Phase())
	}
}

func TestToggle(t *testing.T) {
	rec := &fakeRecognizer{text: "toggled"}
	o, inj, sink := newOrch(t, tonePCM(0.2, 600), record.Config{Mode: record.ModeAlways}, rec)

	if err := o.Toggle(); err != nil {
		t.Fatal(err)
	}
	if !o.Phase().Recording() {
		t.Fatal("first toggle did not start recording")
	}
	if err := o.Toggle(); err != nil {
		t.Fatal(err)
	}

	c := waitComplete(t, sink)
	if !c.hasText {
		t.Fatalf("completion = %+v", c)
	}
	if len(inj.Texts()) != 1 {
		t.Fatalf("injected = %v", inj.Texts())
	}
}

// Package orchestrator drives the capture-to-text pipeline: it owns the single
// active session, runs recognition on the finished buffer, and hands the text
// to the injector. Triggers (hotkey, IPC) call Start/Stop/Cancel; everything
// else follows from those three.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scribe/audio"
	"scribe/log"
	"scribe/record"
)

// ErrBusy rejects a start while a session is still in flight, including the
// recognition tail after capture has stopped.
var ErrBusy = errors.New("session already in progress")

// Recognizer is the orchestrator's view of a recognition backend.
// scribe/transcriber implementations satisfy it.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, pcm []byte) (text string, hasText bool, err error)
}

// Injector delivers recognized text into the focused application.
type Injector interface {
	Inject(text string) error
}

// EventSink observes session lifecycle transitions. Implementations must not
// block; SpeechStarted and SpeechEnded fire from the capture callback path.
type EventSink interface {
	RecordingStarted(sessionID string, at time.Time)
	RecordingStopped(sessionID string, at time.Time)
	RecordingCancelled(sessionID string, at time.Time)
	SpeechStarted(sessionID string, at time.Time)
	SpeechEnded(sessionID string, at time.Time)
	RecognitionComplete(sessionID, text string, hasText bool, at time.Time)
}

// NopSink discards all events. Embed it to implement a partial sink.
type NopSink struct{}

func (NopSink) RecordingStarted(string, time.Time)              {}
func (NopSink) RecordingStopped(string, time.Time)              {}
func (NopSink) RecordingCancelled(string, time.Time)            {}
func (NopSink) SpeechStarted(string, time.Time)                 {}
func (NopSink) SpeechEnded(string, time.Time)                   {}
func (NopSink) RecognitionComplete(string, string, bool, time.Time) {}

// Config holds the orchestrator's per-construction settings.
type Config struct {
	RecognitionTimeout time.Duration
	// KeepAudioDir, when set, receives a WAV dump of every completed
	// session's buffer before recognition.
	KeepAudioDir string
}

type Orchestrator struct {
	cfg        Config
	recorder   *record.Recorder
	recognizer Recognizer
	injector   Injector
	sink       EventSink
	now        func() time.Time

	mu              sync.Mutex
	active          *record.Session
	recognizing     bool
	cancelRecognize context.CancelFunc
	sessions        int
}

func New(cfg Config, rec *record.Recorder, recognizer Recognizer, injector Injector, sink EventSink) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{
		cfg:        cfg,
		recorder:   rec,
		recognizer: recognizer,
		injector:   injector,
		sink:       sink,
		now:        time.Now,
	}
}

// Start begins a new session. Exactly one session exists at a time: a start
// while recording, stopping, or recognizing returns ErrBusy and changes
// nothing.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return ErrBusy
	}
	sess := record.NewSession(o.now())
	o.active = sess
	o.sessions++
	o.mu.Unlock()

	// Drain stale recorder signals from a prior session that raced an
	// explicit stop.
	select {
	case <-o.recorder.AutoStop():
	default:
	}
	select {
	case <-o.recorder.Fault():
	default:
	}

	if err := o.recorder.Start(sess); err != nil {
		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()
		return err
	}

	o.sink.RecordingStarted(sess.ID, o.now())
	log.Info(fmt.Sprintf("recording started session=%s device=%s", sess.ID, o.recorder.DeviceName()))

	go o.watch(sess)
	return nil
}

// watch reacts to recorder-side session endings: confirmed silence and
// capture faults. It exits once the session leaves the recording phases.
func (o *Orchestrator) watch(sess *record.Session) {
	for {
		select {
		case <-o.recorder.AutoStop():
			o.Stop()
			return
		case <-o.recorder.Fault():
			log.Error("capture fault, cancelling session " + sess.ID)
			o.Cancel()
			return
		case <-time.After(50 * time.Millisecond):
			o.mu.Lock()
			current := o.active
			recognizing := o.recognizing
			o.mu.Unlock()
			if current != sess || recognizing {
				return
			}
		}
	}
}

// Stop ends the active session and synchronously runs recognition and
// injection on the captured buffer. A stop with nothing recording, or racing
// another stop, is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.active == nil || o.recognizing {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	sess := o.recorder.Stop()
	if sess == nil {
		return
	}
	o.sink.RecordingStopped(sess.ID, o.now())

	o.finish(sess)
}

// Cancel aborts the active session. While recording, capture is force-stopped
// and the buffer discarded; while recognizing, the in-flight recognition is
// abandoned and its eventual result dropped.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.recognizing {
		cancel := o.cancelRecognize
		o.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	o.mu.Unlock()

	sess := o.recorder.Cancel()
	if sess == nil {
		return
	}

	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()

	o.sink.RecordingCancelled(sess.ID, o.now())
	log.Info("recording cancelled session=" + sess.ID)
}

// Toggle flips between starting and stopping, for toggle-mode hotkeys. The
// second press of a toggle pair lands while recording and stops; a press
// during the recognition tail is rejected as busy.
func (o *Orchestrator) Toggle() error {
	if o.Phase().Recording() {
		o.Stop()
		return nil
	}
	return o.Start()
}

// Phase reports the observable session state: Idle when no session exists,
// Stopping through the recognition tail, otherwise the machine's phase.
func (o *Orchestrator) Phase() record.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return record.PhaseIdle
	}
	if o.recognizing {
		return record.PhaseStopping
	}
	return o.recorder.Phase()
}

// Sessions returns the number of sessions started since construction.
func (o *Orchestrator) Sessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions
}

// finish runs the post-capture tail: optional WAV dump, recognition with a
// deadline, injection, and the completion event. The session stays "active"
// (blocking new starts) until this returns.
func (o *Orchestrator) finish(sess *record.Session) {
	defer func() {
		o.mu.Lock()
		o.active = nil
		o.recognizing = false
		o.cancelRecognize = nil
		o.mu.Unlock()
	}()

	pcm := sess.Bytes()
	audioLen := sess.AudioDuration()

	if sess.Cancelled() || len(pcm) == 0 {
		log.Info("session " + sess.ID + " ended with no audio")
		o.sink.RecognitionComplete(sess.ID, "", false, o.now())
		return
	}

	o.keepAudio(sess.ID, pcm)

	o.mu.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RecognitionTimeout)
	o.recognizing = true
	o.cancelRecognize = cancel
	o.mu.Unlock()
	defer cancel()

	recognizeStart := o.now()
	text, hasText, err := o.recognizer.Recognize(ctx, pcm)
	recognizeMs := float64(o.now().Sub(recognizeStart).Milliseconds())

	if err != nil {
		log.Errorf("recognition failed session=%s: %v", sess.ID, err)
		o.sink.RecognitionComplete(sess.ID, "", false, o.now())
		return
	}

	log.Session(log.SessionMetrics{
		SessionID:    sess.ID,
		Provider:     o.recognizer.Name(),
		AudioLengthS: audioLen.Seconds(),
		CaptureMs:    float64(audioLen.Milliseconds()),
		RecognizeMs:  recognizeMs,
		NoSpeech:     !hasText,
	})

	if hasText {
		log.TranscriptionText(text)
		if err := o.injector.Inject(text); err != nil {
			log.Errorf("inject failed session=%s: %v", sess.ID, err)
		}
	}
	o.sink.RecognitionComplete(sess.ID, text, hasText, o.now())
}

// keepAudio dumps the session buffer as a WAV file when configured, for
// replay-driven debugging of recognition quality.
func (o *Orchestrator) keepAudio(sessionID string, pcm []byte) {
	if o.cfg.KeepAudioDir == "" {
		return
	}
	if err := os.MkdirAll(o.cfg.KeepAudioDir, 0755); err != nil {
		log.Warnf("keep-audio dir: %v", err)
		return
	}
	path := filepath.Join(o.cfg.KeepAudioDir, sessionID+".wav")
	if err := audio.WriteWAV(path, pcm); err != nil {
		log.Warnf("keep-audio write %s: %v", path, err)
	}
}

// Package record owns the recording lifecycle: the phase machine that decides
// when capture starts and stops, the speech hysteresis that keeps VAD chatter
// from flapping it, and the recorder that binds a machine to a capture device.
package record

import (
	"errors"
	"sync"
	"time"

	"scribe/vad"
)

// Phase is the recording state machine's current state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseSpeechConfirmed
	PhaseStopping
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseSpeechConfirmed:
		return "speech_confirmed"
	case PhaseStopping:
		return "stopping"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Recording reports whether frames are currently being accumulated.
func (p Phase) Recording() bool {
	return p == PhaseArmed || p == PhaseSpeechConfirmed
}

// Mode selects how VAD verdicts drive the machine.
type Mode int

const (
	// ModeAlways disables VAD: recording confirms immediately and stops only
	// on an explicit trigger.
	ModeAlways Mode = iota
	// ModeThreshold and ModeModel gate auto-stop behind the injected policy.
	// The machine treats them identically; the policy differs.
	ModeThreshold
	ModeModel
)

func (m Mode) String() string {
	switch m {
	case ModeAlways:
		return "always"
	case ModeThreshold:
		return "threshold"
	case ModeModel:
		return "model"
	default:
		return "unknown"
	}
}

// Events receives speech boundary transitions. Implementations must not
// block: these fire from the capture callback path.
type Events interface {
	SpeechStarted(sessionID string, at time.Time)
	SpeechEnded(sessionID string, at time.Time)
}

// Config is the machine's immutable per-construction snapshot.
type Config struct {
	Mode       Mode
	Policy     vad.Policy // nil in ModeAlways
	MinSpeech  time.Duration
	MinSilence time.Duration
}

var ErrNotIdle = errors.New("recording already in progress")

// hysteresis is reset at session start and whenever speech is
// confirmed-ended.
type hysteresis struct {
	speechCandidateSince time.Time
	lastSpeechObserved   time.Time
	confirmed            bool
}

// Machine consumes frames and VAD verdicts and owns phase transitions.
// Frame processing happens inside the capture callback, so all VAD state
// mutation is single-threaded per session; the lock only guards against
// concurrent trigger calls from the orchestrator.
type Machine struct {
	cfg    Config
	events Events

	mu    sync.Mutex
	phase Phase
	sess  *Session
	hyst  hysteresis
}

func NewMachine(cfg Config, events Events) *Machine {
	return &Machine{cfg: cfg, events: events, phase: PhaseIdle}
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Start transitions Idle into Recording. Any other phase is rejected with
// ErrNotIdle so a racing second trigger is a no-op. The VAD policy's
// streaming state is reset here, never reused across sessions.
func (m *Machine) Start(sess *Session, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return ErrNotIdle
	}

	m.sess = sess
	m.hyst = hysteresis{}
	if m.cfg.Policy != nil {
		m.cfg.Policy.Reset()
	}

	if m.cfg.Mode == ModeAlways {
		m.phase = PhaseSpeechConfirmed
		m.hyst.confirmed = true
		m.events.SpeechStarted(sess.ID, now)
	} else {
		m.phase = PhaseArmed
	}
	return nil
}

// Frame handles one captured frame. The frame is appended to the session
// buffer whenever the machine is recording, regardless of the VAD verdict:
// VAD decides when recording ends, not which bytes are kept. Returns true
// when confirmed silence should auto-stop the session.
func (m *Machine) Frame(data []byte, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.phase.Recording() {
		return false
	}

	m.sess.append(data)

	if m.cfg.Mode == ModeAlways {
		return false
	}

	verdict := m.cfg.Policy.Evaluate(data)

	if verdict.IsSpeech {
		if m.hyst.confirmed {
			m.hyst.lastSpeechObserved = now
			return false
		}
		if m.hyst.speechCandidateSince.IsZero() {
			m.hyst.speechCandidateSince = now
		}
		if now.Sub(m.hyst.speechCandidateSince) >= m.cfg.MinSpeech {
			m.hyst.confirmed = true
			m.hyst.lastSpeechObserved = now
			m.phase = PhaseSpeechConfirmed
			m.events.SpeechStarted(m.sess.ID, now)
		}
		return false
	}

	// Silence verdict.
	if !m.hyst.confirmed {
		m.hyst.speechCandidateSince = time.Time{}
		return false
	}
	if now.Sub(m.hyst.lastSpeechObserved) >= m.cfg.MinSilence {
		m.events.SpeechEnded(m.sess.ID, now)
		m.hyst = hysteresis{}
		m.phase = PhaseStopping
		return true
	}
	return false
}

// RequestStop forces Recording into Stopping (explicit trigger: hotkey
// release, second toggle press, IPC stop). Returns the session being stopped,
// or nil if nothing was recording.
func (m *Machine) RequestStop(now time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.phase.Recording() {
		return nil
	}
	if m.hyst.confirmed {
		m.events.SpeechEnded(m.sess.ID, now)
	}
	m.hyst = hysteresis{}
	m.phase = PhaseStopping
	return m.sess
}

// Finish completes Stopping and returns the accumulated session. Frames
// arriving after Finish are dropped (the phase is Idle).
func (m *Machine) Finish() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseStopping {
		return nil
	}
	sess := m.sess
	m.sess = nil
	m.phase = PhaseIdle
	return sess
}

// Cancel aborts from any non-Idle phase. The session is marked cancelled and
// its buffer is never handed to recognition. The machine sits in Cancelled
// until CompleteCancel confirms the capture device has been force-stopped.
func (m *Machine) Cancel() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseIdle {
		return nil
	}
	sess := m.sess
	if sess != nil {
		sess.cancelled = true
	}
	m.sess = nil
	m.hyst = hysteresis{}
	m.phase = PhaseCancelled
	return sess
}

// CompleteCancel returns the machine to Idle after the capture device has
// stopped delivering frames.
func (m *Machine) CompleteCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseCancelled {
		m.phase = PhaseIdle
	}
}

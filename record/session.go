package record

import (
	"time"

	"github.com/google/uuid"

	"scribe/audio"
)

// Session represents one capture-to-text cycle. At most one non-terminal
// session exists process-wide; the orchestrator enforces that by only
// starting the machine from Idle.
//
// The buffer is append-only and mutated solely under the machine's lock, in
// frame arrival order. Frames are copied on append so the driver-owned
// callback buffer is never aliased.
type Session struct {
	ID        string
	StartedAt time.Time

	buffer    []byte
	cancelled bool
}

func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
	}
}

func (s *Session) append(data []byte) {
	s.buffer = append(s.buffer, data...)
}

// Bytes returns the accumulated PCM. Only valid once the session reached a
// terminal state (the machine no longer appends).
func (s *Session) Bytes() []byte { return s.buffer }

// Cancelled reports whether the session was aborted; a cancelled session's
// buffer is discarded, never recognized.
func (s *Session) Cancelled() bool { return s.cancelled }

// AudioDuration derives the captured length from the buffer size and the
// fixed capture format.
func (s *Session) AudioDuration() time.Duration {
	ms := len(s.buffer) / audio.BytesPerMs
	return time.Duration(ms) * time.Millisecond
}

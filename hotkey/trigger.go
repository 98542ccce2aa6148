package hotkey

import "scribe/log"

// Session is the slice of the orchestrator the trigger drives.
type Session interface {
	Start() error
	Stop()
	Toggle() error
}

// TriggerMode selects how keydown/keyup pair into session boundaries.
type TriggerMode string

const (
	// ModeToggle: each press flips between start and stop; release is ignored.
	ModeToggle TriggerMode = "toggle"
	// ModePushToTalk: press starts, release stops.
	ModePushToTalk TriggerMode = "push_to_talk"
)

// Trigger translates hotkey events into session calls according to the
// configured mode. It runs until Close.
type Trigger struct {
	hk   Hotkey
	mode TriggerMode
	sess Session
	done chan struct{}
}

func NewTrigger(hk Hotkey, mode TriggerMode, sess Session) *Trigger {
	return &Trigger{hk: hk, mode: mode, sess: sess, done: make(chan struct{})}
}

// Run registers the hotkey and dispatches events until Close. Session calls
// are made inline, so a stop (which includes the recognition tail) holds off
// the next trigger; a press landing mid-tail is rejected by the session as
// busy, which is the intended double-trigger behavior.
func (t *Trigger) Run() error {
	if err := t.hk.Register(); err != nil {
		return err
	}
	defer t.hk.Unregister()

	for {
		select {
		case <-t.done:
			return nil
		case <-t.hk.Keydown():
			if t.mode == ModeToggle {
				if err := t.sess.Toggle(); err != nil {
					log.Warnf("toggle press rejected: %v", err)
				}
			} else {
				if err := t.sess.Start(); err != nil {
					log.Warnf("start press rejected: %v", err)
				}
			}
		case <-t.hk.Keyup():
			if t.mode == ModePushToTalk {
				t.sess.Stop()
			}
		}
	}
}

func (t *Trigger) Close() {
	close(t.done)
}

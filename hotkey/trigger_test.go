package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSession records trigger calls and simulates a busy rejection window.
type fakeSession struct {
	mu        sync.Mutex
	calls     []string
	recording bool
	startErr  error
}

func (s *fakeSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "start")
	if s.startErr != nil {
		return s.startErr
	}
	s.recording = true
	return nil
}

func (s *fakeSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "stop")
	s.recording = false
}

func (s *fakeSession) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		s.calls = append(s.calls, "stop")
		s.recording = false
	} else {
		s.calls = append(s.calls, "start")
		s.recording = true
	}
	return nil
}

func (s *fakeSession) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func waitCalls(t *testing.T, s *fakeSession, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := s.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, have %v", n, s.snapshot())
	return nil
}

func TestToggleModePairsPresses(t *testing.T) {
	fk := NewFake()
	sess := &fakeSession{}
	tr := NewTrigger(fk, ModeToggle, sess)
	go tr.Run()
	defer tr.Close()

	fk.SimKeydown()
	fk.SimKeyup() // releases are ignored in toggle mode
	fk.SimKeydown()
	fk.SimKeyup()

	got := waitCalls(t, sess, 2)
	if got[0] != "start" || got[1] != "stop" {
		t.Errorf("calls = %v, want [start stop]", got)
	}
}

func TestPushToTalkPairsPressAndRelease(t *testing.T) {
	fk := NewFake()
	sess := &fakeSession{}
	tr := NewTrigger(fk, ModePushToTalk, sess)
	go tr.Run()
	defer tr.Close()

	fk.SimKeydown()
	waitCalls(t, sess, 1)
	fk.SimKeyup()

	got := waitCalls(t, sess, 2)
	if got[0] != "start" || got[1] != "stop" {
		t.Errorf("calls = %v, want [start stop]", got)
	}

	// A second hold drives a second full cycle.
	fk.SimKeydown()
	waitCalls(t, sess, 3)
	fk.SimKeyup()
	got = waitCalls(t, sess, 4)
	if got[2] != "start" || got[3] != "stop" {
		t.Errorf("calls = %v, want second [start stop] pair", got)
	}
}

func TestRejectedStartKeepsDispatching(t *testing.T) {
	fk := NewFake()
	sess := &fakeSession{startErr: errors.New("capture device gone")}
	tr := NewTrigger(fk, ModePushToTalk, sess)
	go tr.Run()
	defer tr.Close()

	fk.SimKeydown()
	waitCalls(t, sess, 1)
	fk.SimKeyup()
	fk.SimKeydown()

	got := waitCalls(t, sess, 3)
	if got[0] != "start" || got[2] != "start" {
		t.Errorf("calls = %v, want start attempts on both presses", got)
	}
}

func TestCloseStopsDispatch(t *testing.T) {
	fk := NewFake()
	sess := &fakeSession{}
	tr := NewTrigger(fk, ModeToggle, sess)
	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()

	tr.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

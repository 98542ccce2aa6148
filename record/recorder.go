package record

import (
	"time"

	"scribe/audio"
	"scribe/log"
)

const (
	// stopGrace lets the last in-flight capture callback land after the
	// device is signaled to stop, before the buffer is read.
	stopGrace = 100 * time.Millisecond

	// flushTimeout bounds how long Stop waits for the driver to stop
	// delivering frames.
	flushTimeout = 2 * time.Second
)

// Recorder binds a Machine to a CaptureDevice. Frame processing (append +
// VAD + hysteresis) runs inside the capture callback; the recorder only
// manages device lifecycle around it.
type Recorder struct {
	machine *Machine
	capture audio.CaptureDevice
	now     func() time.Time

	autoStop chan struct{}
	fault    chan struct{}
}

func NewRecorder(machine *Machine, capture audio.CaptureDevice) *Recorder {
	return &Recorder{
		machine:  machine,
		capture:  capture,
		now:      time.Now,
		autoStop: make(chan struct{}, 1),
		fault:    make(chan struct{}, 1),
	}
}

// AutoStop signals once per session when confirmed silence ended the
// recording. The holder must respond by calling Stop.
func (r *Recorder) AutoStop() <-chan struct{} { return r.autoStop }

// Fault signals a capture-side panic. The holder must respond by calling
// Cancel; partial audio from a faulted session is discarded rather than
// risking a corrupt buffer.
func (r *Recorder) Fault() <-chan struct{} { return r.fault }

func (r *Recorder) Phase() Phase { return r.machine.Phase() }

func (r *Recorder) DeviceName() string { return r.capture.DeviceName() }

// SetClock overrides the recorder's time source. Used by tests and replay
// tooling that feed faster than real time.
func (r *Recorder) SetClock(now func() time.Time) { r.now = now }

// Start arms the machine and opens the capture stream. A non-Idle machine
// rejects the start (ErrNotIdle) before the device is touched, so a double
// trigger never re-acquires the device.
func (r *Recorder) Start(sess *Session) error {
	if err := r.machine.Start(sess, r.now()); err != nil {
		return err
	}

	r.capture.SetCallback(func(data []byte, frameCount uint32) {
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("capture fault: %v", p)
				select {
				case r.fault <- struct{}{}:
				default:
				}
			}
		}()
		if r.machine.Frame(data, r.now()) {
			select {
			case r.autoStop <- struct{}{}:
			default:
			}
		}
	})

	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		r.machine.Cancel()
		r.machine.CompleteCancel()
		return err
	}
	return nil
}

// Stop ends the session and returns it with the final accumulated buffer.
// Idempotent: a second Stop (or a Stop racing an auto-stop that already won)
// returns nil. Must not be called from the capture callback.
func (r *Recorder) Stop() *Session {
	sess := r.machine.RequestStop(r.now())
	if sess == nil && r.machine.Phase() != PhaseStopping {
		return nil
	}

	r.stopCapture()

	finished := r.machine.Finish()
	if finished != nil {
		sess = finished
	}
	return sess
}

// Cancel force-stops capture and discards the session.
func (r *Recorder) Cancel() *Session {
	sess := r.machine.Cancel()
	if sess == nil {
		return nil
	}
	r.stopCapture()
	r.machine.CompleteCancel()
	return sess
}

// stopCapture signals the device to stop, bounded by flushTimeout, then waits
// the grace period so the last in-flight callback lands before the caller
// reads the buffer.
func (r *Recorder) stopCapture() {
	done := make(chan struct{})
	go func() {
		r.capture.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(flushTimeout):
		log.Warn("capture stop timed out, proceeding with accumulated buffer")
	}

	time.Sleep(stopGrace)
	r.capture.ClearCallback()
}

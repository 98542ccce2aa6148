package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake is a scripted Transcriber for tests: returns a fixed text or error,
// optionally after a delay so cancellation paths can be exercised.
type Fake struct {
	Text  string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls [][]byte
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Recognize(ctx context.Context, pcm []byte) (string, bool, error) {
	f.mu.Lock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.calls = append(f.calls, buf)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", false, nil
		case <-time.After(f.Delay):
		}
	}
	if ctx.Err() != nil {
		return "", false, nil
	}
	if f.Err != nil {
		return "", false, f.Err
	}
	return f.Text, f.Text != "", nil
}

func (f *Fake) Close() error { return nil }

// Calls returns the PCM buffers Recognize received, in order.
func (f *Fake) Calls() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.calls))
	copy(out, f.calls)
	return out
}

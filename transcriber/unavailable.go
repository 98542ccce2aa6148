package transcriber

import (
	"context"
	"fmt"
)

// Unavailable is the degraded backend installed when the configured engine
// fails to load at startup. Recording still works; every recognition attempt
// reports the load failure until the model path is corrected and the process
// restarted.
type Unavailable struct {
	reason error
}

func NewUnavailable(reason error) *Unavailable {
	return &Unavailable{reason: reason}
}

func (u *Unavailable) Name() string { return "unavailable" }

func (u *Unavailable) Recognize(context.Context, []byte) (string, bool, error) {
	return "", false, fmt.Errorf("recognizer not initialized: %w", u.reason)
}

func (u *Unavailable) Close() error { return nil }

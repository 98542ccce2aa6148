// Package transcriber provides offline speech recognition backends. Both
// backends run fully local inference; no audio ever leaves the machine.
//
// Supported providers:
//   - vosk: streaming recognition via the Vosk CGO bindings
//   - whisper: batch recognition via the whisper.cpp CGO bindings
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scribe/config"
)

var (
	// ErrUnknownProvider is returned by New for a provider name outside the
	// supported set.
	ErrUnknownProvider = fmt.Errorf("unknown recognition provider")

	// ErrModelLoad wraps backend model-loading failures. Surfaced at startup,
	// never mid-session: recognizers load their model in the constructor.
	ErrModelLoad = fmt.Errorf("model load failed")

	// ErrRecognition wraps inference failures on a finished session.
	ErrRecognition = fmt.Errorf("recognition failed")
)

// Transcriber converts a finished utterance of 16 kHz mono 16-bit PCM into
// text. Recognize returns hasText=false (and no error) when the audio carried
// no recognizable speech or the context was cancelled mid-inference.
//
// Implementations are not safe for concurrent Recognize calls; the caller
// serializes sessions.
type Transcriber interface {
	Name() string
	Recognize(ctx context.Context, pcm []byte) (text string, hasText bool, err error)
	Close() error
}

// New constructs the configured provider, loading its model eagerly so a bad
// model path fails at startup rather than on the first utterance.
func New(cfg config.SpeechRecognition) (Transcriber, error) {
	switch cfg.Provider {
	case config.ProviderVosk:
		return NewVosk(cfg.ModelPath)
	case config.ProviderWhisper:
		return NewWhisper(cfg.ModelPath, cfg.Language)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrUnknownProvider, cfg.Provider, config.ProviderVosk, config.ProviderWhisper)
	}
}

// parseVoskText extracts the "text" field from a Vosk JSON result payload.
// A malformed payload falls back to the raw string so a recognizer quirk
// degrades to odd output instead of dropped output.
func parseVoskText(payload string) string {
	var res struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return strings.TrimSpace(payload)
	}
	return strings.TrimSpace(res.Text)
}

// joinUtterances concatenates per-utterance texts, skipping empties.
func joinUtterances(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

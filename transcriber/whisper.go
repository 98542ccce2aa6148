// The whisper.cpp static library (libwhisper.a) and headers must be available
// at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"scribe/log"
)

// Whisper runs batch recognition over the whisper.cpp CGO bindings: the whole
// utterance is decoded in one Process call once the session ends. The model
// loads once; each Recognize gets a fresh context (contexts are not reusable
// across inferences, the model is).
type Whisper struct {
	model    whisperlib.Model
	language string
}

func NewWhisper(modelPath, language string) (*Whisper, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper model %q: %v", ErrModelLoad, modelPath, err)
	}
	return &Whisper{model: model, language: language}, nil
}

func (w *Whisper) Name() string { return "whisper" }

// Recognize decodes the full buffer. whisper.cpp has no mid-inference
// cancellation hook, so a cancelled context abandons the session by discarding
// the result when it eventually lands; the inference goroutine is left to
// finish on its own.
func (w *Whisper) Recognize(ctx context.Context, pcm []byte) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, nil
	}

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		text, err := w.infer(pcm)
		ch <- outcome{text, err}
	}()

	select {
	case <-ctx.Done():
		log.Warnf("whisper: recognition abandoned: %v", ctx.Err())
		return "", false, nil
	case out := <-ch:
		if out.err != nil {
			return "", false, out.err
		}
		return out.text, out.text != "", nil
	}
}

func (w *Whisper) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("%w: whisper context: %v", ErrRecognition, err)
	}
	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil {
			log.Warnf("whisper: language %q rejected, using model default: %v", w.language, err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("%w: whisper process: %v", ErrRecognition, err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: whisper segment: %v", ErrRecognition, err)
		}
		parts = append(parts, strings.TrimSpace(segment.Text))
	}
	return joinUtterances(parts), nil
}

func (w *Whisper) Close() error {
	return w.model.Close()
}

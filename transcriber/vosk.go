package transcriber

import (
	"context"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"

	"scribe/audio"
	"scribe/log"
)

// voskChunkBytes is the feed granularity for streaming recognition: 4 KiB of
// PCM, 128 ms at the capture format. Small enough that cancellation between
// chunks stays responsive.
const voskChunkBytes = 4096

// Vosk runs streaming recognition over the Vosk CGO bindings. The model and
// recognizer are loaded once and reused across sessions.
type Vosk struct {
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

func NewVosk(modelPath string) (*Vosk, error) {
	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: vosk model %q: %v", ErrModelLoad, modelPath, err)
	}
	rec, err := vosk.NewRecognizer(model, float64(audio.SampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("%w: vosk recognizer: %v", ErrModelLoad, err)
	}
	return &Vosk{model: model, rec: rec}, nil
}

func (v *Vosk) Name() string { return "vosk" }

// Recognize streams the buffer through the recognizer in fixed chunks.
// AcceptWaveform returning non-zero marks a completed utterance whose text is
// collected immediately; FinalResult flushes whatever remains. Cancellation
// between chunks abandons the session without error.
func (v *Vosk) Recognize(ctx context.Context, pcm []byte) (string, bool, error) {
	v.rec.Reset()

	var parts []string
	for off := 0; off < len(pcm); off += voskChunkBytes {
		if ctx.Err() != nil {
			log.Warnf("vosk: recognition abandoned after %d/%d bytes: %v", off, len(pcm), ctx.Err())
			return "", false, nil
		}
		end := min(off+voskChunkBytes, len(pcm))
		if v.rec.AcceptWaveform(pcm[off:end]) != 0 {
			parts = append(parts, parseVoskText(v.rec.Result()))
		}
	}
	if ctx.Err() != nil {
		return "", false, nil
	}
	parts = append(parts, parseVoskText(v.rec.FinalResult()))

	text := joinUtterances(parts)
	return text, text != "", nil
}

func (v *Vosk) Close() error {
	v.rec.Free()
	v.model.Free()
	return nil
}

package vad

import (
	"encoding/binary"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"scribe/audio"
	"scribe/log"
)

const (
	// Silero consumes fixed 512-sample windows at 16 kHz; capture frames are
	// rebuffered to that granularity.
	sileroWindow = 512

	// Confidence is approximated from the number of speech segments observed
	// so far, capped at 1.0 once this many segments have been seen. This is a
	// coarse proxy, not a probability; only the trend is meaningful.
	confidenceSegmentCap = 4
)

// Model is the streaming neural VAD policy. The Silero detector loads
// asynchronously; until it is ready (or if it ever fails), Evaluate falls
// back to threshold behavior so the capture path never stalls or throws.
type Model struct {
	fallback *Threshold

	mu       sync.Mutex
	det      *speech.Detector
	ready    bool
	window   []float32
	inSpeech bool
	segments int
	startMs  int64
	endMs    int64

	fallbackLogged bool
}

// NewModel starts loading the Silero model from modelPath in the background.
// silenceThreshold doubles as the fallback RMS cutoff and the acceptance gate
// on the model's confidence proxy.
func NewModel(modelPath string, silenceThreshold float64) *Model {
	m := &Model{
		fallback: NewThreshold(silenceThreshold),
		window:   make([]float32, 0, sileroWindow*2),
	}
	go func() {
		det, err := speech.NewDetector(speech.DetectorConfig{
			ModelPath:  modelPath,
			SampleRate: audio.SampleRate,
			Threshold:  0.5,
		})
		if err != nil {
			log.Errorf("silero init failed, staying on threshold fallback: %v", err)
			return
		}
		m.mu.Lock()
		m.det = det
		m.ready = true
		m.mu.Unlock()
		log.Info("silero model loaded")
	}()
	return m
}

func (m *Model) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Model) Evaluate(frame []byte) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		if !m.fallbackLogged {
			log.Warn("silero model not ready, falling back to threshold VAD")
			m.fallbackLogged = true
		}
		return m.fallback.Evaluate(frame)
	}

	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(frame[i:]))
		m.window = append(m.window, float32(sample)/32768.0)
	}

	for len(m.window) >= sileroWindow {
		win := m.window[:sileroWindow]
		m.window = m.window[sileroWindow:]

		event, err := m.det.DetectStreamFrame(win)
		if err != nil {
			log.Warnf("silero frame failed, threshold fallback for this frame: %v", err)
			m.det.Reset()
			m.inSpeech = false
			return m.fallback.Evaluate(frame)
		}
		if event == nil {
			continue
		}
		if event.IsStart {
			m.inSpeech = true
			m.segments++
			m.startMs = samplesToMs(event.StartSample)
		}
		if event.IsEnd {
			m.inSpeech = false
			m.endMs = samplesToMs(event.EndSample)
		}
	}

	confidence := float64(m.segments) / confidenceSegmentCap
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Verdict{
		IsSpeech:       m.inSpeech && confidence >= m.fallback.silenceThreshold,
		Confidence:     confidence,
		SegmentStartMs: m.startMs,
		SegmentEndMs:   m.endMs,
	}
}

// Reset clears the streaming state between sessions. The loaded model itself
// is kept.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.det != nil {
		m.det.Reset()
	}
	m.window = m.window[:0]
	m.inSpeech = false
	m.segments = 0
	m.startMs = 0
	m.endMs = 0
}

// Close releases the detector. Not safe to call concurrently with Evaluate.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.det != nil {
		m.det.Destroy()
		m.det = nil
		m.ready = false
	}
}

func samplesToMs(samples int) int64 {
	return int64(samples) * 1000 / audio.SampleRate
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Hotkey trigger pairings.
const (
	HotkeyToggle     = "Toggle"
	HotkeyPushToTalk = "PushToTalk"
)

// Recognition providers.
const (
	ProviderVosk    = "vosk"
	ProviderWhisper = "whisper"
)

// VAD recording modes.
const (
	VadAlways    = "Always"
	VadThreshold = "Threshold"
	VadModel     = "Model"
)

// SpeechRecognition selects and configures the recognition backend.
type SpeechRecognition struct {
	Provider  string `json:"Provider"`
	ModelPath string `json:"ModelPath"`
	Language  string `json:"Language"`
}

// VoiceActivityDetection configures the recording gate.
type VoiceActivityDetection struct {
	Enabled           bool    `json:"Enabled"`
	Mode              string  `json:"Mode"`
	SilenceThreshold  float64 `json:"SilenceThreshold"`
	MinSpeechDuration int     `json:"MinSpeechDurationMs"`
	MinSilenceDur     int     `json:"MinSilenceDurationMs"`
	SileroModelPath   string  `json:"SileroModelPath"`
}

// Hotkey configures how the global hotkey drives start/stop.
type Hotkey struct {
	Mode string `json:"Mode"`
}

// Config holds configurable parameters. The core treats a loaded Config as an
// immutable snapshot; it is never reloaded mid-session.
type Config struct {
	SpeechRecognition      SpeechRecognition      `json:"SpeechRecognition"`
	VoiceActivityDetection VoiceActivityDetection `json:"VoiceActivityDetection"`
	Hotkey                 Hotkey                 `json:"Hotkey"`

	RecognitionTimeoutS int    `json:"RecognitionTimeoutS"`
	SocketPath          string `json:"SocketPath"`
	KeepAudioDir        string `json:"KeepAudioDir"`
	AutoPaste           bool   `json:"AutoPaste"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		SpeechRecognition: SpeechRecognition{
			Provider:  ProviderVosk,
			ModelPath: "",
			Language:  "en",
		},
		VoiceActivityDetection: VoiceActivityDetection{
			Enabled:           true,
			Mode:              VadThreshold,
			SilenceThreshold:  0.05,
			MinSpeechDuration: 500,
			MinSilenceDur:     1500,
			SileroModelPath:   "",
		},
		Hotkey: Hotkey{
			Mode: HotkeyToggle,
		},
		RecognitionTimeoutS: 60,
		SocketPath:          "",
		KeepAudioDir:        "",
		AutoPaste:           true,
	}
}

// Load loads config from JSON file if provided.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveDefault writes a default config JSON to the provided path.
func SaveDefault(path string) error {
	cfg := DefaultConfig()
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// VadMode resolves the effective recording mode: VAD disabled means Always.
func (c *Config) VadMode() string {
	if !c.VoiceActivityDetection.Enabled {
		return VadAlways
	}
	return c.VoiceActivityDetection.Mode
}

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	switch cfg.SpeechRecognition.Provider {
	case ProviderVosk, ProviderWhisper:
	default:
		return fmt.Errorf("invalid SpeechRecognition.Provider: %q (allowed: %s, %s)",
			cfg.SpeechRecognition.Provider, ProviderVosk, ProviderWhisper)
	}
	switch cfg.Hotkey.Mode {
	case HotkeyToggle, HotkeyPushToTalk:
	default:
		return fmt.Errorf("invalid Hotkey.Mode: %q (allowed: %s, %s)", cfg.Hotkey.Mode, HotkeyToggle, HotkeyPushToTalk)
	}
	switch cfg.VoiceActivityDetection.Mode {
	case VadAlways, VadThreshold, VadModel:
	default:
		return fmt.Errorf("invalid VoiceActivityDetection.Mode: %q (allowed: %s, %s, %s)",
			cfg.VoiceActivityDetection.Mode, VadAlways, VadThreshold, VadModel)
	}
	if t := cfg.VoiceActivityDetection.SilenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("invalid SilenceThreshold: %v (must be 0..1)", t)
	}
	if d := cfg.VoiceActivityDetection.MinSpeechDuration; d < 0 {
		return fmt.Errorf("invalid MinSpeechDurationMs: %d (must be >= 0)", d)
	}
	if d := cfg.VoiceActivityDetection.MinSilenceDur; d < 0 {
		return fmt.Errorf("invalid MinSilenceDurationMs: %d (must be >= 0)", d)
	}
	if cfg.VoiceActivityDetection.Mode == VadModel && cfg.VoiceActivityDetection.SileroModelPath == "" {
		return fmt.Errorf("VoiceActivityDetection.Mode is %s but SileroModelPath is empty", VadModel)
	}
	if cfg.RecognitionTimeoutS <= 0 {
		return fmt.Errorf("invalid RecognitionTimeoutS: %d (must be > 0)", cfg.RecognitionTimeoutS)
	}
	return nil
}

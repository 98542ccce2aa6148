// Package doctor runs interactive system diagnostics: hotkey delivery, mic
// capture level, recognition model files, and clipboard injection. Everything
// is checked offline; no recognition engine is loaded.
package doctor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"scribe/audio"
	"scribe/config"
	"scribe/hotkey"
	"scribe/inject"
	"scribe/vad"
)

// Run executes the checks in order and returns an exit code (0=all pass).
func Run(cfg *config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("scribe doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	if !checkModels(cfg) {
		allPass = false
	}
	if !checkHotkey() {
		allPass = false
	}
	if allPass && !checkMicLevel() {
		allPass = false
	}
	if allPass && !checkInjection() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkModels(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[1/4] Model files")

	ok := true
	modelPath := cfg.SpeechRecognition.ModelPath
	if modelPath == "" {
		fmt.Println("  FAIL: SpeechRecognition.ModelPath is empty")
		ok = false
	} else if _, err := os.Stat(modelPath); err != nil {
		fmt.Printf("  FAIL: %s model not found at %s\n", cfg.SpeechRecognition.Provider, modelPath)
		ok = false
	} else {
		fmt.Printf("  PASS: %s model present at %s\n", cfg.SpeechRecognition.Provider, modelPath)
	}

	if cfg.VadMode() == config.VadModel {
		sp := cfg.VoiceActivityDetection.SileroModelPath
		if _, err := os.Stat(sp); err != nil {
			fmt.Printf("  FAIL: silero model not found at %s\n", sp)
			ok = false
		} else {
			fmt.Printf("  PASS: silero model present at %s\n", sp)
		}
	}
	return ok
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[2/4] Hotkey detection")

	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else {
		fmt.Printf("  %s\n", msg)
	}

	fmt.Printf("Press %s...\n", hotkey.Chord)

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// The hotkey backend may leave the terminal in raw mode.
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicLevel() bool {
	fmt.Println()
	fmt.Println("[3/4] Microphone capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	device, err := audio.SelectDevice(ctx)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("Using device: %s\n", device.Name)

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	pcm, err := recordFor(ctx, device, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	level := vad.RMS(pcm)
	fmt.Printf("  Captured %.1f KB, RMS level %.4f\n", float64(len(pcm))/1024, level)
	if level < 0.001 {
		fmt.Println("  FAIL: capture level is flat (muted mic or wrong device?)")
		return false
	}
	fmt.Println("  PASS: microphone delivers signal")
	return true
}

func recordFor(ctx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]byte, error) {
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	var mu sync.Mutex
	var pcm []byte
	capture.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
	})

	if err := capture.Start(); err != nil {
		return nil, err
	}

	fmt.Print("  Recording")
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()
	time.Sleep(d)
	close(done)

	capture.Stop()
	capture.ClearCallback()
	fmt.Println(" done")

	mu.Lock()
	defer mu.Unlock()
	return pcm, nil
}

func checkInjection() bool {
	fmt.Println()
	fmt.Println("[4/4] Clipboard injection")

	fmt.Println("Focus on a text editor window...")
	for i := 5; i > 0; i-- {
		fmt.Printf("  %d...\n", i)
		time.Sleep(1 * time.Second)
	}

	inj := inject.NewClipboard(true)
	if err := inj.Inject("scribe-doctor-test"); err != nil {
		fmt.Printf("  FAIL: injection failed: %v\n", err)
		return false
	}

	resetTerminal()
	reader := bufio.NewReader(os.Stdin)
	fmt.Println()
	fmt.Print("Did the text \"scribe-doctor-test\" appear? [y/n]: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm != "y" && confirm != "yes" {
		fmt.Println("  FAIL: injection not confirmed")
		return false
	}
	fmt.Println("  PASS: injection verified by user")
	return true
}

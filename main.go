package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"scribe/audio"
	"scribe/config"
	"scribe/cue"
	"scribe/doctor"
	"scribe/hotkey"
	"scribe/inject"
	"scribe/ipc"
	"scribe/log"
	"scribe/login"
	"scribe/orchestrator"
	"scribe/record"
	"scribe/shutdown"
	"scribe/transcriber"
	"scribe/vad"
)

var version = "dev"

// eventLog is the process-wide EventSink: session transitions go to the
// diagnostics log and drive the audible cues. SpeechStarted/SpeechEnded fire
// from the capture callback, and log writes there are non-blocking enough for
// a 30ms frame budget; cue playback is fire-and-forget.
type eventLog struct{}

func (eventLog) RecordingStarted(id string, _ time.Time) {
	log.Info("recording_started session=" + id)
	cue.Start()
}

func (eventLog) RecordingStopped(id string, _ time.Time)   { log.Info("recording_stopped session=" + id) }
func (eventLog) RecordingCancelled(id string, _ time.Time) { log.Info("recording_cancelled session=" + id) }
func (eventLog) SpeechStarted(id string, _ time.Time)      { log.Info("speech_started session=" + id) }
func (eventLog) SpeechEnded(id string, _ time.Time)        { log.Info("speech_ended session=" + id) }

func (eventLog) RecognitionComplete(id, _ string, hasText bool, _ time.Time) {
	log.Info(fmt.Sprintf("recognition_complete session=%s has_text=%v", id, hasText))
	if hasText {
		cue.Done()
	} else {
		cue.Fail()
	}
}

// runCmd handles `scribe cmd <verb>`: talk to the running instance over its
// socket and print the resulting phase.
func runCmd(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: scribe cmd <start|stop|cancel|toggle|status> [-socket path]")
		return 2
	}
	verb := args[0]

	fs := flag.NewFlagSet("cmd", flag.ExitOnError)
	socketFlag := fs.String("socket", "", "socket path (default: per-user runtime dir)")
	fs.Parse(args[1:])

	path := *socketFlag
	if path == "" {
		path = ipc.DefaultSocketPath()
	}

	c, err := ipc.Connect(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (is scribe running?)\n", err)
		return 1
	}
	defer c.Close()

	resp, err := c.Send(ipc.Command{Cmd: verb})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "%s (phase: %s)\n", resp.Error, resp.Phase)
		return 1
	}
	fmt.Println(resp.Phase)
	return 0
}

func buildPolicy(cfg *config.Config) (record.Mode, vad.Policy) {
	v := cfg.VoiceActivityDetection
	switch cfg.VadMode() {
	case config.VadThreshold:
		return record.ModeThreshold, vad.NewThreshold(v.SilenceThreshold)
	case config.VadModel:
		return record.ModeModel, vad.NewModel(v.SileroModelPath, v.SilenceThreshold)
	default:
		return record.ModeAlways, nil
	}
}

func triggerMode(cfg *config.Config) hotkey.TriggerMode {
	if cfg.Hotkey.Mode == config.HotkeyPushToTalk {
		return hotkey.ModePushToTalk
	}
	return hotkey.ModeToggle
}

func run() int {
	if len(os.Args) > 1 && os.Args[1] == "cmd" {
		return runCmd(os.Args[2:])
	}

	configFlag := flag.String("config", "", "Path to config JSON (default: built-in defaults)")
	writeConfigFlag := flag.String("writeconfig", "", "Write default config JSON to path and exit")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	keepAudioFlag := flag.String("keepaudio", "", "Directory for per-session WAV dumps (overrides config)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	muteFlag := flag.Bool("mute", false, "Disable audible session cues")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	loginFlag := flag.String("login", "", "Manage start-at-login: on, off, or status")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("scribe %s\n", version)
		return 0
	}

	if *loginFlag != "" {
		switch *loginFlag {
		case "on":
			if err := login.Enable(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			fmt.Println("Start-at-login enabled.")
		case "off":
			if err := login.Disable(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			fmt.Println("Start-at-login disabled.")
		case "status":
			if login.Enabled() {
				fmt.Println("Start-at-login: enabled")
			} else {
				fmt.Println("Start-at-login: disabled")
			}
		default:
			fmt.Fprintf(os.Stderr, "Error: -login takes on, off, or status\n")
			return 2
		}
		return 0
	}

	if *writeConfigFlag != "" {
		if err := config.SaveDefault(*writeConfigFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Wrote default config to %s\n", *writeConfigFlag)
		return 0
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *keepAudioFlag != "" {
		cfg.KeepAudioDir = *keepAudioFlag
	}

	if *doctorFlag {
		return doctor.Run(&cfg)
	}

	// Cues open a playback device, so only past the non-resident flag paths.
	if *muteFlag {
		cue.Disable()
	} else {
		cue.Init()
	}

	// Recognition loads its model now so a bad path surfaces before the
	// hotkey is live. A load failure is not fatal: recording keeps working
	// and every stop reports the uninitialized recognizer until the model
	// path is corrected.
	trans, err := transcriber.New(cfg.SpeechRecognition)
	if err != nil {
		if errors.Is(err, transcriber.ErrUnknownProvider) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		log.Errorf("transcriber init: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v; continuing without recognition\n", err)
		trans = transcriber.NewUnavailable(err)
	}
	defer trans.Close()

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		return 1
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v, using default\n", err)
			selectedDevice = nil
		}
	}
	if selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name) {
		fmt.Fprintf(os.Stderr, "Warning: %s is a Bluetooth device; capture quality may suffer\n", selectedDevice.Name)
	}

	captureDevice, err := audioCtx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		return 1
	}
	defer captureDevice.Close()

	mode, policy := buildPolicy(&cfg)
	sink := eventLog{}
	machine := record.NewMachine(record.Config{
		Mode:       mode,
		Policy:     policy,
		MinSpeech:  time.Duration(cfg.VoiceActivityDetection.MinSpeechDuration) * time.Millisecond,
		MinSilence: time.Duration(cfg.VoiceActivityDetection.MinSilenceDur) * time.Millisecond,
	}, sink)
	recorder := record.NewRecorder(machine, captureDevice)

	orch := orchestrator.New(orchestrator.Config{
		RecognitionTimeout: time.Duration(cfg.RecognitionTimeoutS) * time.Second,
		KeepAudioDir:       cfg.KeepAudioDir,
	}, recorder, trans, inject.NewClipboard(cfg.AutoPaste), sink)

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = ipc.DefaultSocketPath()
	}
	server := ipc.NewServer(socketPath, orch)
	if err := server.Listen(); err != nil {
		log.Errorf("ipc listen: %v", err)
		fmt.Fprintf(os.Stderr, "Error: cannot bind %s: %v\n", socketPath, err)
		return 1
	}
	go server.Serve()

	trigger := hotkey.NewTrigger(hotkey.New(), triggerMode(&cfg), orch)
	triggerErr := make(chan error, 1)
	go func() { triggerErr <- trigger.Run() }()

	log.SessionStart(trans.Name(), cfg.VadMode(), cfg.Hotkey.Mode)
	fmt.Printf("scribe %s ready: %s, vad=%s, hotkey=%s (%s), socket=%s\n",
		version, trans.Name(), cfg.VadMode(), cfg.Hotkey.Mode, hotkey.Chord, socketPath)

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)

	select {
	case <-sigCh:
	case err := <-triggerErr:
		if err != nil {
			log.Errorf("hotkey: %v", err)
			fmt.Fprintf(os.Stderr, "Error: hotkey registration failed: %v\n", err)
			server.Close()
			return 1
		}
	}

	trigger.Close()
	server.Close()
	orch.Cancel()
	if p, ok := policy.(*vad.Model); ok {
		p.Close()
	}
	log.SessionEnd(orch.Sessions())
	return 0
}

func main() {
	os.Exit(run())
}

// Package hotkey provides the global trigger: a system-wide key combination
// (Ctrl+Shift+Space) surfaced as keydown/keyup channels, plus the Trigger
// that pairs those events into session start/stop calls. On Linux the events
// come from evdev directly so the trigger works on Wayland; elsewhere
// golang.design/x/hotkey handles registration.
package hotkey

// Chord is the global combination every platform driver binds. Changing it
// means changing both drivers; it is deliberately not a config knob.
const Chord = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

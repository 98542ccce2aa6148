// Package ipc exposes the running process over a Unix socket using NDJSON,
// one command and one response per line. A second invocation of the binary
// (`scribe cmd <verb>`) acts as the client, so shell scripts and window
// manager keybindings can drive sessions without the global hotkey.
package ipc

import (
	"os"
	"path/filepath"
	"runtime"
)

// Command verbs.
const (
	CmdStart  = "start"
	CmdStop   = "stop"
	CmdCancel = "cancel"
	CmdToggle = "toggle"
	CmdStatus = "status"
)

// Command is sent from a client, one JSON object per line.
type Command struct {
	Cmd string `json:"cmd"`
}

// Response answers exactly one Command.
type Response struct {
	OK    bool   `json:"ok"`
	Phase string `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`
}

// DefaultSocketPath returns the per-user socket location.
func DefaultSocketPath() string {
	if runtime.GOOS == "windows" {
		// Unix sockets work on modern Windows, but there is no conventional
		// runtime dir; keep it next to the user profile.
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "scribe.sock")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "scribe.sock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "scribe", "scribe.sock")
}

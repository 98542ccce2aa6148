//go:build !windows

// Package shutdown delivers termination signals portably; Windows has no
// SIGTERM.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

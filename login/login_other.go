//go:build !darwin && !linux

package login

import "errors"

var errUnsupported = errors.New("start-at-login is not supported on this platform")

func Enabled() bool { return false }

func Enable() error { return errUnsupported }

func Disable() error { return errUnsupported }

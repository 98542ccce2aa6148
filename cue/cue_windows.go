//go:build windows

package cue

// No playback backend wired on Windows; cues are silent.

func Init()  {}
func Start() {}
func Done()  {}
func Fail()  {}

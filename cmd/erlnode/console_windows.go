// +build windows

package main

import "golang.org/x/sys/windows"

// enableVirtualTerminal turns on ANSI escape processing for the
// console so fatih/color's escape codes render instead of printing as
// literal bytes, mirroring the teacher's kr_windows.go console setup.
func enableVirtualTerminal() {
	var mode uint32
	if err := windows.GetConsoleMode(windows.Stdout, &mode); err != nil {
		return
	}
	windows.SetConsoleMode(windows.Stdout, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
}

//go:build headless

// device_terminal_gui_headless.go - no-op GUI stub for headless builds
//
// Grounded on video_backend_headless.go: the same public surface as the
// ebiten-backed TerminalGUI, but NewTerminalGUI returns nil so Computer
// runs its headless loop and -gui is silently ignored rather than failing
// the build.

package main

type TerminalGUI struct {
	term *TerminalMMIO
	rows int
	cols int
}

func NewTerminalGUI(term *TerminalMMIO, rows, cols int) *TerminalGUI {
	return nil
}

func (g *TerminalGUI) Run(title string) error { return nil }

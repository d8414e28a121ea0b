//go:build !headless

// device_terminal_host.go - raw-mode stdin/stdout terminal host
//
// Grounded on terminal_host.go: puts the real host terminal into raw mode
// via golang.org/x/term so single keystrokes reach the emulator without
// waiting on a line, restoring cooked mode on Close.

package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// TerminalHost implements TerminalOutput against the real host terminal.
type TerminalHost struct {
	oldState *term.State
	input    chan byte
}

func NewTerminalHost() (*TerminalHost, error) {
	h := &TerminalHost{input: make(chan byte, 256)}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		old, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		h.oldState = old
	}
	go h.pump()
	return h, nil
}

func (h *TerminalHost) pump() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			b := buf[0]
			switch b {
			case '\r':
				b = '\n'
			case 0x7F:
				b = 0x08
			}
			h.input <- b
		}
		if err != nil {
			close(h.input)
			return
		}
	}
}

func (h *TerminalHost) Write(rows, cols int, buf []byte) {
	fmt.Print("\x1b[H\x1b[2J")
	for row := 0; row < rows; row++ {
		start := row * (cols + 1)
		end := start + cols
		if end > len(buf) {
			break
		}
		os.Stdout.Write(buf[start:end])
		fmt.Println()
	}
}

func (h *TerminalHost) ReadChar() (byte, bool) {
	select {
	case b, ok := <-h.input:
		return b, ok
	default:
		return 0, false
	}
}

// Inject feeds externally-sourced bytes (e.g. a clipboard paste) into the
// same queue keystrokes arrive on.
func (h *TerminalHost) Inject(data []byte) {
	for _, b := range data {
		h.input <- b
	}
}

func (h *TerminalHost) Close() {
	if h.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), h.oldState)
	}
}

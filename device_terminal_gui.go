//go:build !headless

// device_terminal_gui.go - optional ebiten window rendering the terminal
//
// Grounded on SPEC_FULL.md §4.12, video_terminal.go, and
// video_backend_ebiten.go: renders the terminal partition's rows×cols as
// glyphs with golang.org/x/image/font/basicfont, supports paste from the OS
// clipboard via golang.design/x/clipboard. Opt-in via -gui; default boot is
// headless.

package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphW = 7
	glyphH = 13
)

// TerminalGUI is an ebiten.Game that mirrors a TerminalMMIO's partition
// onto a window, one basicfont glyph per cell.
type TerminalGUI struct {
	term *TerminalMMIO
	rows int
	cols int

	clipboardReady bool
}

func NewTerminalGUI(term *TerminalMMIO, rows, cols int) *TerminalGUI {
	g := &TerminalGUI{term: term, rows: rows, cols: cols}
	if err := clipboard.Init(); err == nil {
		g.clipboardReady = true
	}
	return g
}

func (g *TerminalGUI) Update() error {
	if g.clipboardReady && inpututil.IsKeyJustPressed(ebiten.KeyV) &&
		(ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)) {
		g.term.host.Inject(clipboard.Read(clipboard.FmtText))
	}
	return nil
}

func (g *TerminalGUI) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	face := basicfont.Face7x13

	g.term.mu.Lock()
	buf, r := g.term.part.GetBytes(0, g.rows*g.cols+g.rows)
	g.term.mu.Unlock()
	if r.IsErr() {
		return
	}

	for row := 0; row < g.rows; row++ {
		start := row * (g.cols + 1)
		end := start + g.cols
		if end > len(buf) {
			break
		}
		drawRow(screen, face, buf[start:end], row)
	}
}

func drawRow(screen *ebiten.Image, face font.Face, glyphs []byte, row int) {
	dot := fixed.P(0, (row+1)*glyphH)
	d := font.Drawer{Dst: screen, Src: image.White, Face: face, Dot: dot}
	d.DrawString(string(glyphs))
}

func (g *TerminalGUI) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.cols * glyphW, g.rows * glyphH
}

// Run opens the ebiten window; blocks until the window is closed.
func (g *TerminalGUI) Run(title string) error {
	ebiten.SetWindowSize(g.cols*glyphW, g.rows*glyphH)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(g)
}

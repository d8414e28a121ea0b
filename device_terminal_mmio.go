// device_terminal_mmio.go - the terminal peripheral's pure state machine
//
// Grounded on spec.md §4.9/§6 and terminal_io.go's ring-buffer MMIO
// device: owns a ("perp", termID) partition sized rows*cols+rows
// bytes (one status byte per row, trailing the row's glyphs), and answers
// three interrupts: update-screen, read-one-char, read-n-chars.

package main

import "sync"

const (
	IntTermUpdateScreen = 0
	IntTermReadChar     = 1
	IntTermReadNChars   = 2
)

type TerminalMode int

const (
	TermModeTerm TerminalMode = iota
	TermModeProc
	TermModeKern
	termModeCount = 3
)

// TerminalMMIO is the device-side state spec.md §6 describes: rows×cols
// glyph buffer plus per-row status bytes, a mode, and the pid it is
// currently viewing (when in proc mode).
type TerminalMMIO struct {
	mu   sync.Mutex
	rows int
	cols int
	part *MemorySection

	mode       TerminalMode
	viewingPID uint32
	stealable  bool
	scrollback []byte

	host TerminalOutput
}

// TerminalOutput is the thin adapter a TerminalMMIO renders through —
// implemented by TerminalHost (raw stdin/stdout) and its headless sibling.
type TerminalOutput interface {
	Write(rows, cols int, buf []byte)
	ReadChar() (byte, bool)
	Inject(data []byte)
}

func NewTerminalMMIO(rows, cols int, host TerminalOutput) *TerminalMMIO {
	return &TerminalMMIO{
		rows: rows,
		cols: cols,
		part: NewMemorySection("perp-term", make([]byte, rows*cols+rows)),
		host: host,
	}
}

// ReadChar exposes the host's single-character read to collaborators that
// aren't a bound CPU thread — the shell's REPL and its "edit" builtin.
func (t *TerminalMMIO) ReadChar() (byte, bool) {
	if t.host == nil {
		return 0, false
	}
	return t.host.ReadChar()
}

func (t *TerminalMMIO) DefinedInterrupts() map[uint32]bool {
	return map[uint32]bool{IntTermUpdateScreen: true, IntTermReadChar: true, IntTermReadNChars: true}
}

func (t *TerminalMMIO) Partition() *MemorySection { return t.part }

func (t *TerminalMMIO) HandleInterrupt(kctx *KernelCtx, iid uint32, proc *Process, thread *Thread) Result {
	switch iid {
	case IntTermUpdateScreen:
		return t.updateScreen()
	case IntTermReadChar:
		return t.readChar(thread)
	case IntTermReadNChars:
		return t.readNChars(proc, thread)
	default:
		return Err(InvalidSyscall, "terminal device does not handle interrupt %d", iid)
	}
}

// updateScreen pushes the partition's glyph bytes to the host, line-folded
// to rows×cols, per spec.md §4.9.
func (t *TerminalMMIO) updateScreen() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf, r := t.part.GetBytes(0, t.rows*t.cols+t.rows)
	if r.IsErr() {
		return r
	}
	t.host.Write(t.rows, t.cols, buf)
	return Ok()
}

func (t *TerminalMMIO) readChar(thread *Thread) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.host.ReadChar()
	if !ok {
		return Err(InvalidSyscall, "no input available")
	}
	thread.SavedRegisters.SetLo(RAX, uint32(b))
	return Ok()
}

func (t *TerminalMMIO) readNChars(proc *Process, thread *Thread) Result {
	n := int(thread.SavedRegisters.Lo(RCX))
	buf := make([]byte, 0, n)
	t.mu.Lock()
	for i := 0; i < n; i++ {
		b, ok := t.host.ReadChar()
		if !ok {
			break
		}
		if b == '\b' && len(buf) > 0 {
			buf = buf[:len(buf)-1]
			continue
		}
		buf = append(buf, b)
	}
	t.mu.Unlock()
	mem := proc.view(thread)
	return mem.PushnStack(buf)
}

// WriteText renders freshly-written stdout bytes from pid into the glyph
// buffer and pushes them to the host immediately, when pid is the process
// currently being viewed — so a foregrounded process's output becomes
// visible without waiting on an explicit update-screen interrupt, per
// spec.md §4.7. A no-op when pid isn't the viewed process; its bytes still
// land in RemoveView's scrollback flush once it stops being viewed.
func (t *TerminalMMIO) WriteText(pid uint32, data []byte) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != TermModeProc || t.viewingPID != pid {
		return Ok()
	}
	return t.renderLocked(data)
}

// EchoText renders the shell's own typed/printed text while the terminal is
// in term mode (the shell's login echo, spec.md §6), sharing the same
// tail-of-scrollback rendering WriteText uses for proc-mode output.
func (t *TerminalMMIO) EchoText(data []byte) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != TermModeTerm {
		return Ok()
	}
	return t.renderLocked(data)
}

// renderLocked appends data to the scrollback tail, line-wraps the visible
// window into the glyph partition, and pushes it to the host. Caller holds
// t.mu.
func (t *TerminalMMIO) renderLocked(data []byte) Result {
	t.scrollback = append(t.scrollback, data...)
	tail := t.scrollback
	if max := t.rows * t.cols; len(tail) > max {
		tail = tail[len(tail)-max:]
	}

	buf := make([]byte, t.rows*t.cols+t.rows)
	for row := 0; row < t.rows; row++ {
		start := row * t.cols
		if start >= len(tail) {
			break
		}
		end := start + t.cols
		if end > len(tail) {
			end = len(tail)
		}
		copy(buf[row*(t.cols+1):], tail[start:end])
	}
	if r := t.part.SetBytes(0, buf); r.IsErr() {
		return r
	}
	t.host.Write(t.rows, t.cols, buf)
	return Ok()
}

// SetView switches the terminal into proc mode viewing pid, per spec.md
// §6's "SetView(pid) requires the shell to declare itself stealable".
func (t *TerminalMMIO) SetView(pid uint32) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stealable {
		return Err(UnstealableShell, "shell has not declared itself stealable")
	}
	t.mode = TermModeProc
	t.viewingPID = pid
	return Ok()
}

// RemoveView flushes stdout into persistent scrollback and returns the
// terminal to term mode.
func (t *TerminalMMIO) RemoveView(stdout []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollback = append(t.scrollback, stdout...)
	t.mode = TermModeTerm
	t.viewingPID = 0
}

// KernelMode switches the terminal into kern mode. SetView and RemoveView
// do not check for kern mode, so either one still moves the terminal out
// of it.
func (t *TerminalMMIO) KernelMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = TermModeKern
}

func (t *TerminalMMIO) SetStealable(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stealable = v
}

// computer.go - the façade wiring components A-K
//
// Grounded on spec.md §2's component L ("Computer façade: wires A-K
// together; owns startup/shutdown; delegates to scheduler") and the
// top-level Computer aggregate that main.go drives.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds everything main.go's flag set resolves, per SPEC_FULL.md
// §2's ambient configuration section.
type Config struct {
	Cores    int
	Quantum  int
	DiskPath string
	GUI      bool
	Debug    bool
}

// Computer wires the kernel context, scheduler, filesystem and terminal
// device together and owns the top-level run loop.
type Computer struct {
	cfg       Config
	kctx      *KernelCtx
	scheduler *Scheduler
	term      *TerminalMMIO
	host      *TerminalHost
	gui       *TerminalGUI
	shell     *Shell
	stop      chan struct{}
}

func NewComputer(cfg Config) (*Computer, error) {
	fs, r := OpenFileSystem(cfg.DiskPath)
	if r.IsErr() {
		return nil, fmt.Errorf("opening filesystem: %s", r.Error())
	}

	kctx := NewKernelCtx()
	kctx.FS = fs
	kctx.Debug = cfg.Debug

	host, err := NewTerminalHost()
	if err != nil {
		return nil, fmt.Errorf("opening terminal host: %w", err)
	}

	const rows, cols = 25, 80
	term := NewTerminalMMIO(rows, cols, host)
	kctx.RegisterDevice(term, term.Partition())
	kctx.Terminal = term

	sched := NewScheduler(kctx, cfg.Cores, cfg.Quantum)
	kctx.Scheduler = sched

	shellProc, r := kctx.SpawnProcess(nil, nil, Privileged)
	if r.IsErr() {
		return nil, fmt.Errorf("spawning shell process: %s", r.Error())
	}
	shell := NewShell(kctx, shellProc, term)
	shell.DeclareStealable()

	c := &Computer{cfg: cfg, kctx: kctx, scheduler: sched, term: term, host: host, shell: shell, stop: make(chan struct{})}
	if cfg.GUI {
		c.gui = NewTerminalGUI(term, rows, cols)
	}
	return c, nil
}

func (c *Computer) log(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[%s] "+format+"\n", append([]any{time.Now().Format("15:04:05")}, args...)...)
}

// Boot loads an initial binary (if any) and starts the scheduler loop.
func (c *Computer) Boot(initialImage []byte) error {
	c.log("booting: %d core(s), quantum=%d, disk=%s", c.cfg.Cores, c.cfg.Quantum, c.cfg.DiskPath)

	if initialImage != nil {
		proc, r := LoadBinary(c.kctx, initialImage, Privileged)
		if r.IsErr() {
			return fmt.Errorf("loading initial binary: %s", r.Error())
		}
		c.log("loaded initial process pid=%d", proc.PID)
	}

	go c.scheduler.Run(c.stop)
	go c.runShellLoop()

	if c.gui != nil {
		return c.gui.Run("emos")
	}
	c.runHeadlessLoop()
	return nil
}

// runHeadlessLoop periodically pushes the terminal's contents to stdout
// until a shutdown is requested or a kernel panic latches, mirroring what
// the GUI's render loop does via ebiten's own ticking.
func (c *Computer) runHeadlessLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.term.updateScreen()
			c.kctx.mu.RLock()
			shutdown := c.kctx.ShutdownRequested || c.kctx.Panicked
			c.kctx.mu.RUnlock()
			if shutdown {
				c.Shutdown()
				return
			}
		}
	}
}

// runShellLoop is the REPL: polls host keystrokes, echoes and line-buffers
// them, and feeds completed lines to the shell, per spec.md §6's "the
// terminal's term mode is a running shell session" and component L's
// charter to wire host input through to LoadBinary. A newline (\n or \r)
// ends a line; backspace (\b) trims the buffer.
func (c *Computer) runShellLoop() {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	var line []byte
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			b, ok := c.term.ReadChar()
			if !ok {
				continue
			}
			switch b {
			case '\n', '\r':
				c.term.EchoText([]byte{'\n'})
				c.runShellLine(string(line))
				line = line[:0]
			case '\b':
				if len(line) > 0 {
					line = line[:len(line)-1]
				}
			default:
				line = append(line, b)
				c.term.EchoText([]byte{b})
			}
		}
	}
}

// runShellLine parses and runs one shell command line, echoing its output
// (or error) back to the terminal.
func (c *Computer) runShellLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	pc, r := c.shell.Parse(line)
	if r.IsErr() {
		c.term.EchoText([]byte(r.Error() + "\n"))
		return
	}
	out, r := c.shell.Run(pc)
	if r.IsErr() {
		c.term.EchoText([]byte(r.Error() + "\n"))
		return
	}
	if out != "" {
		c.term.EchoText([]byte(out + "\n"))
	}
}

// Shutdown halts the scheduler and restores the host terminal.
func (c *Computer) Shutdown() {
	c.log("shutting down")
	close(c.stop)
	c.host.Close()
}

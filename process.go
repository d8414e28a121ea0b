// process.go - the Process type and its lifecycle
//
// Grounded on spec.md §3's Process record; the security_level/state machine
// mirrors cpu_ie32.go's small sum-type state fields (e.g. CPU running/halt
// flags) generalised to Running/Terminated.

package main

import "sync"

type SecurityLevel int

const (
	Privileged SecurityLevel = iota
	User
)

type ProcessState int

const (
	ProcessRunning ProcessState = iota
	ProcessTerminated
)

// Process is the (code, data, thread table, stdio, cwd, security level)
// record spec.md §3 describes. Code and Data are shared by every thread of
// the process — only each Thread's stack is private.
type Process struct {
	mu sync.Mutex

	PID           uint32
	Code          *MemorySection
	Data          *MemorySection
	DS            uint32 // end of code / start of data
	SS            uint32 // end of data / start of stack space
	MaxSize       uint32
	Threads       map[uint32]*Thread
	NextTID       uint32
	State         ProcessState
	SecurityLevel SecurityLevel
	CWD           string
	Stdout        []byte
	Stdin         []byte
	ExitCode      int
	ExitMsg       string
}

func NewProcess(pid uint32, code, data []byte, sec SecurityLevel) *Process {
	p := &Process{
		PID:           pid,
		Code:          NewMemorySection("code", code),
		Data:          NewMemorySection("data", data),
		MaxSize:       MaxProcessMemory,
		Threads:       make(map[uint32]*Thread),
		State:         ProcessRunning,
		SecurityLevel: sec,
		CWD:           "/",
	}
	p.DS = uint32(len(code))
	p.SS = p.DS + uint32(len(data))
	return p
}

// NewThread creates thread tid=0 (or the next free tid on fork) with an
// empty private stack and a freshly-initialized register file.
func (p *Process) NewThread() *Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	tid := p.NextTID
	p.NextTID++
	t := &Thread{
		TID:           tid,
		PrivateStack:  NewMemorySection("stack", nil),
		Running:       true,
		ImportedLibs:  make(map[uint32]DynamicLibrary),
	}
	regs := NewRegisterFile()
	regs.Init(0, p.DS, p.SS, p.SS)
	t.SavedRegisters = regs
	p.Threads[tid] = t
	return t
}

// view assembles the ephemeral per-quantum ProcessMemory a core operates
// against: the process's shared code/data plus this thread's private
// stack, per spec.md §3 ("process code+data + this thread's private
// stack. There is no shared stack.").
func (p *Process) view(t *Thread) *ProcessMemory {
	ss := p.SS
	return &ProcessMemory{
		Code:    p.Code,
		Data:    p.Data,
		Stack:   t.PrivateStack,
		CS:      0,
		DS:      p.DS,
		SS:      ss,
		ES:      ss + uint32(t.PrivateStack.Size()),
		MaxSize: p.MaxSize,
	}
}

// AllThreadsDone reports whether every thread of the process has stopped
// running, triggering process termination per spec.md §3's lifecycle.
func (p *Process) AllThreadsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allThreadsDoneLocked()
}

func (p *Process) allThreadsDoneLocked() bool {
	for _, t := range p.Threads {
		if t.Running {
			return false
		}
	}
	return true
}

func (p *Process) Terminate(code int, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = ProcessTerminated
	p.ExitCode = code
	p.ExitMsg = msg
}

// thread.go - the Thread type and the per-thread state lock
//
// spec.md §9's design note adopts a per-thread state lock in place of the
// source's busy-polling for register coherence: {Idle, BoundTo(core),
// Waiting} guarded by a mutex, acquired by the core at quantum start and
// set to Waiting by the scheduler before the syscall/interrupt/library
// helper starts; the helper releases it when done. This is the single
// most consequential design decision in the scheduling model.

package main

import "sync"

type ThreadState int

const (
	ThreadIdle ThreadState = iota
	ThreadBound
	ThreadWaiting
)

// Thread is a schedulable unit within a process: its own private stack and
// saved register file, with no shared stack across threads.
type Thread struct {
	stateMu sync.Mutex
	state   ThreadState
	boundCore int

	TID            uint32
	PrivateStack   *MemorySection
	SavedRegisters *RegisterFile
	Running        bool
	Waiting        bool
	ImportedLibs   map[uint32]DynamicLibrary
	ExitCode       int
	ExitMsg        string
	HasExited      bool
}

// Bind acquires the thread's state lock for a core about to run it. It
// fails (ok=false) if the thread is already bound to another core or is
// waiting on a kernel service — the scheduler must skip it for this tick.
func (t *Thread) Bind(core int) (ok bool) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.state != ThreadIdle {
		return false
	}
	t.state = ThreadBound
	t.boundCore = core
	return true
}

// Unbind releases the core's hold on the thread at quantum end.
func (t *Thread) Unbind() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.state = ThreadIdle
	t.boundCore = -1
}

// BeginWait is called by the scheduler as soon as SYS/INT/LIB suspends the
// thread, before it starts the syscall/interrupt/library helper; it
// supersedes the bound-by-core state so the core can be freed immediately
// while the helper holds exclusive access to the thread's saved registers.
func (t *Thread) BeginWait() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.state = ThreadWaiting
	t.Waiting = true
}

// EndWait clears the waiting state once the kernel service has written its
// result back into the thread's registers, making the thread eligible for
// scheduling again.
func (t *Thread) EndWait() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.state = ThreadIdle
	t.Waiting = false
}

func (t *Thread) IsSchedulable() bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.Running && t.state == ThreadIdle
}

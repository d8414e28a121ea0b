// scheduler.go - the cooperative round-robin kernel scheduler
//
// Grounded on spec.md §4.6's tick algorithm and SPEC_FULL.md §4.10: "spawn
// a worker task per core, join all core workers" is exactly
// golang.org/x/sync/errgroup's contract, so each tick's per-core fan-out
// uses errgroup.Group instead of a hand-rolled sync.WaitGroup, putting the
// previously-unused-but-declared dependency to real use.

package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runnable is one (pid,tid) pair eligible for this tick.
type runnable struct {
	proc   *Process
	thread *Thread
}

// Scheduler drives N cores across every process's threads, granting each a
// quantum of at most Quantum instructions per tick, per spec.md §4.6.
type Scheduler struct {
	Cores   int
	Quantum int
	kctx    *KernelCtx
}

func NewScheduler(kctx *KernelCtx, cores, quantum int) *Scheduler {
	if cores < 1 {
		cores = 1
	}
	if quantum < 1 {
		quantum = 64
	}
	return &Scheduler{Cores: cores, Quantum: quantum, kctx: kctx}
}

// Tick runs one scheduling round: partition schedulable threads across
// Cores workers round-robin, run each worker's assigned threads
// sequentially (reconciling each terminated thread's process as its
// quantum ends), then join.
func (s *Scheduler) Tick() error {
	var pending []runnable
	s.kctx.mu.RLock()
	for _, proc := range s.kctx.Processes {
		proc.mu.Lock()
		if proc.State != ProcessRunning {
			proc.mu.Unlock()
			continue
		}
		for _, t := range proc.Threads {
			if t.IsSchedulable() {
				pending = append(pending, runnable{proc: proc, thread: t})
			}
		}
		proc.mu.Unlock()
	}
	s.kctx.mu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	buckets := make([][]runnable, s.Cores)
	for i, r := range pending {
		core := i % s.Cores
		buckets[core] = append(buckets[core], r)
	}

	g, _ := errgroup.WithContext(context.Background())
	for core := range buckets {
		assigned := buckets[core]
		coreID := core
		g.Go(func() error {
			for _, r := range assigned {
				s.runOne(coreID, r.proc, r.thread)
			}
			return nil
		})
	}
	return g.Wait()
}

// runOne binds a thread to a core, runs its quantum, writes results back,
// and unbinds — or hands it to a kernel service if it suspended.
func (s *Scheduler) runOne(coreID int, proc *Process, thread *Thread) {
	if !thread.Bind(coreID) {
		return
	}

	ctx, outcome := executeNum(s.kctx, proc, thread, s.Quantum)

	switch outcome {
	case StepContinue:
		thread.Unbind()

	case StepTerminated:
		thread.ExitCode = ctx.exitCode
		thread.ExitMsg = ctx.exitMsg
		thread.Running = false
		thread.HasExited = true
		thread.Unbind()
		s.reconcileProcess(proc, thread)

	case StepSuspended:
		thread.Unbind()
		thread.BeginWait()
		go s.service(proc, thread, ctx)
	}
}

// service runs the kernel-side handling of a SYS/INT/LIB suspension on a
// helper goroutine, per spec.md §4.6's "syscall dispatcher runs on a
// helper task while the core is freed", then clears the waiting state.
func (s *Scheduler) service(proc *Process, thread *Thread, ctx *execContext) {
	defer thread.EndWait()

	switch ctx.suspendKind {
	case "sys":
		dispatchSyscall(s.kctx, proc, thread)
	case "int":
		devID := thread.SavedRegisters.Lo(RBX)
		r := routeInterrupt(s.kctx, devID, ctx.suspendA, proc, thread)
		if r.IsErr() {
			thread.SavedRegisters.SetLo(RAX, uint32(r.Code))
		}
	case "lib":
		r := dispatchLibraryCall(s.kctx, proc, thread, ctx.suspendA, ctx.suspendB)
		thread.SavedRegisters.SetLo(RAX, uint32(r.Code))
	}

	// A syscall can stop the thread without going through HLT (exit-thread,
	// self-targeted terminate-thread) — runOne only reconciles threads that
	// stop inside executeNum, so catch the rest here.
	if !thread.Running {
		thread.HasExited = true
		s.reconcileProcess(proc, thread)
	}
}

// reconcileProcess implements spec.md §3's process lifecycle rule: "any
// thread halts with non-zero OR all threads exit -> Terminated".
func (s *Scheduler) reconcileProcess(proc *Process, exited *Thread) {
	proc.mu.Lock()
	exitCode, exitMsg := proc.ExitCode, proc.ExitMsg
	if exited.ExitCode != 0 && exitCode == 0 {
		exitCode, exitMsg = exited.ExitCode, exited.ExitMsg
	}
	term := exitCode != 0 || proc.allThreadsDoneLocked()
	proc.mu.Unlock()
	if term {
		proc.Terminate(exitCode, exitMsg)
		s.kctx.RemoveProcess(proc.PID)
	}
}

// Run drives Tick in a loop until stop is closed, sleeping briefly between
// empty ticks so an idle computer does not spin a core.
func (s *Scheduler) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := s.Tick(); err != nil {
			return
		}
		if len(s.kctx.Processes) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// kernel_fork.go - fork/terminate syscall helpers
//
// Grounded on spec.md §4.7 (syscalls 5/6/9/10/11/12) and Open Question
// decision #3 (DESIGN.md): the source's fork path writes into a child's
// thread table under a typo'd field name, intent clearly "threads" — this
// implements the clearly-intended behavior rather than the typo.

package main

// forkProcess deep-copies the caller's process: code, data and the calling
// thread's stack are copied. Child gets RAX=0, parent
// gets the child pid in RBX.
func forkProcess(kctx *KernelCtx, proc *Process, thread *Thread) Result {
	proc.mu.Lock()
	dataCopy := append([]byte(nil), proc.Data.data...)
	codeCopy := append([]byte(nil), proc.Code.data...)
	sec := proc.SecurityLevel
	proc.mu.Unlock()

	child, r := kctx.SpawnProcess(codeCopy, dataCopy, sec)
	if r.IsErr() {
		return r
	}

	childThread := child.Threads[0]
	childThread.SavedRegisters = thread.SavedRegisters.Clone()
	childThread.SavedRegisters.SetLo(RAX, 0)
	childThread.PrivateStack = NewMemorySection("stack", append([]byte(nil), thread.PrivateStack.data...))

	thread.SavedRegisters.SetLo(RBX, child.PID)
	return Ok()
}

// forkThread creates a new thread (tid = next free) within the caller's
// process, sharing its code/data, with a fresh empty private stack. Child
// gets RAX=0, parent gets the child tid in RBX.
func forkThread(kctx *KernelCtx, proc *Process, thread *Thread) Result {
	child := proc.NewThread()
	child.SavedRegisters = thread.SavedRegisters.Clone()
	child.SavedRegisters.SetLo(RAX, 0)
	thread.SavedRegisters.SetLo(RBX, child.TID)
	return Ok()
}

func terminateProcess(kctx *KernelCtx, pid uint32, code int) Result {
	proc, r := kctx.Process(pid)
	if r.IsErr() {
		return r
	}
	proc.mu.Lock()
	for _, t := range proc.Threads {
		t.Running = false
	}
	proc.mu.Unlock()
	proc.Terminate(code, "")
	kctx.RemoveProcess(pid)
	return Ok()
}

func terminateThread(kctx *KernelCtx, pid, tid uint32, code int) Result {
	proc, r := kctx.Process(pid)
	if r.IsErr() {
		return r
	}
	proc.mu.Lock()
	t, ok := proc.Threads[tid]
	proc.mu.Unlock()
	if !ok {
		return Err(TIDNotFound, "no thread %d in process %d", tid, pid)
	}
	t.Running = false
	t.ExitCode = code
	return Ok()
}

// dispatchLibraryCall runs call cid on the library the caller previously
// imported with lid, per spec.md §4.8's LIB opcode contract.
func dispatchLibraryCall(kctx *KernelCtx, proc *Process, thread *Thread, lid, cid uint32) Result {
	lib, ok := thread.ImportedLibs[lid]
	if !ok {
		return Err(LibraryIDInvalid, "library %d not imported by this thread", lid)
	}
	if !lib.DefinedCalls()[cid] {
		return Err(LibraryCallInvalid, "library %d has no call %d", lid, cid)
	}
	return lib.Handle(kctx, cid, proc, thread)
}

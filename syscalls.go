// syscalls.go - the syscall dispatcher
//
// Grounded on spec.md §4.7's service table; dispatchSyscall is the
// scheduler's kernel-service helper invoked off the SYS suspension point
// (scheduler.go's service method), mirroring cpu_ie32.go's table-driven
// opcode dispatch but for syscall ids instead of opcodes.

package main

import "time"

const (
	SysExitThread     = 0
	SysWriteStdout    = 1
	SysReadStdin      = 2
	SysReadLine       = 3
	SysKernelPanic    = 4
	SysForkProcess    = 5
	SysForkThread     = 6
	SysGetPID         = 7
	SysGetTID         = 8
	SysTerminateProc  = 9
	SysDeleteProc     = 10
	SysTerminateThread = 11
	SysDeleteThread   = 12
	SysImportLibrary  = 13
	SysCallLibrary    = 14
	SysHeapAlloc      = 15
	SysHeapFree       = 16
	SysHeapSize       = 17
	SysAwaitProcess   = 19
	SysAwaitThread    = 20
	SysSleep          = 25
	SysCWDGet         = 26
	SysCWDSet         = 27
	SysFileRead       = 28
	SysFileWrite      = 29
	SysFileDelete     = 30
	SysFileRename     = 31
	SysDirCreate      = 32
	SysDirDelete      = 33
	SysDirList        = 34
	SysFileMove       = 35
	SysTime           = 37
	SysShutdown       = 38
	SysWriteCString   = 40
)

var privilegedSyscalls = map[uint32]bool{
	SysKernelPanic: true, SysTerminateProc: true, SysDeleteProc: true,
	SysTerminateThread: true, SysDeleteThread: true, SysImportLibrary: true,
	SysCallLibrary: true, SysShutdown: true,
	SysCWDSet: true, SysFileWrite: true, SysFileDelete: true, SysFileRename: true,
	SysDirCreate: true, SysDirDelete: true, SysFileMove: true,
}

// dispatchSyscall reads the syscall id from RAX, performs the service, and
// writes its result code back into RAX low 4 bytes, per spec.md §4.7's
// failure-mode contract.
func dispatchSyscall(kctx *KernelCtx, proc *Process, thread *Thread) {
	regs := thread.SavedRegisters
	id := regs.Lo(RAX)

	if privilegedSyscalls[id] && proc.SecurityLevel == User {
		regs.SetLo(RAX, uint32(SecurityViolation))
		return
	}

	r := runSyscall(kctx, proc, thread, id)
	regs.SetLo(RAX, uint32(r.Code))
}

func runSyscall(kctx *KernelCtx, proc *Process, thread *Thread, id uint32) Result {
	regs := thread.SavedRegisters
	mem := proc.view(thread)

	switch id {
	case SysExitThread:
		thread.Running = false
		thread.ExitCode = int(regs.Lo(RBX))
		return Ok()

	case SysWriteStdout:
		offset, length := regs.Lo(RBX), regs.Lo(RCX)
		data, r := mem.GetBytes(offset, int(length))
		if r.IsErr() {
			return r
		}
		proc.mu.Lock()
		proc.Stdout = append(proc.Stdout, data...)
		proc.mu.Unlock()
		if kctx.Terminal != nil {
			kctx.Terminal.WriteText(proc.PID, data)
		}
		return Ok()

	case SysReadStdin:
		n := int(regs.Lo(RBX))
		proc.mu.Lock()
		take := n
		if take > len(proc.Stdin) {
			take = len(proc.Stdin)
		}
		data := append([]byte(nil), proc.Stdin[:take]...)
		proc.Stdin = proc.Stdin[take:]
		proc.mu.Unlock()
		return mem.PushnStack(data)

	case SysReadLine:
		proc.mu.Lock()
		nl := -1
		for i, b := range proc.Stdin {
			if b == '\n' {
				nl = i
				break
			}
		}
		var line []byte
		if nl >= 0 {
			line = append([]byte(nil), proc.Stdin[:nl]...)
			proc.Stdin = proc.Stdin[nl+1:]
		} else {
			line = append([]byte(nil), proc.Stdin...)
			proc.Stdin = nil
		}
		proc.mu.Unlock()
		if r := mem.PushnStack(line); r.IsErr() {
			return r
		}
		regs.SetLo(RBX, uint32(len(line)))
		return Ok()

	case SysKernelPanic:
		return kernelPanic(kctx, int(regs.Lo(RBX)))

	case SysForkProcess:
		return forkProcess(kctx, proc, thread)

	case SysForkThread:
		return forkThread(kctx, proc, thread)

	case SysGetPID:
		regs.SetLo(RBX, proc.PID)
		return Ok()

	case SysGetTID:
		regs.SetLo(RBX, thread.TID)
		return Ok()

	case SysTerminateProc:
		return terminateProcess(kctx, regs.Lo(RBX), int(regs.Lo(RDI)))

	case SysDeleteProc:
		kctx.RemoveProcess(regs.Lo(RBX))
		return Ok()

	case SysTerminateThread:
		return terminateThread(kctx, regs.Lo(RBX), regs.Lo(RCX), int(regs.Lo(RDI)))

	case SysDeleteThread:
		target, r := kctx.Process(regs.Lo(RBX))
		if r.IsErr() {
			return r
		}
		target.mu.Lock()
		delete(target.Threads, regs.Lo(RCX))
		target.mu.Unlock()
		return Ok()

	case SysImportLibrary:
		lib, r := builtinLibrary(regs.Lo(RBX))
		if r.IsErr() {
			return r
		}
		thread.ImportedLibs[regs.Lo(RBX)] = lib
		return Ok()

	case SysCallLibrary:
		return dispatchLibraryCall(kctx, proc, thread, regs.Lo(RBX), regs.Lo(RCX))

	case SysHeapAlloc:
		hid, r := kctx.AllocHeap(regs.Lo(RBX))
		if r.IsErr() {
			return r
		}
		regs.SetLo(RBX, hid)
		return Ok()

	case SysHeapFree:
		return kctx.FreeHeap(regs.Lo(RBX))

	case SysHeapSize:
		part, r := kctx.Memory.Partition(HeapName(regs.Lo(RBX)))
		if r.IsErr() {
			return r
		}
		regs.SetLo(RBX, part.partitionLen())
		return Ok()

	case SysAwaitProcess:
		return awaitProcess(kctx, regs.Lo(RBX))

	case SysAwaitThread:
		return awaitThread(kctx, regs.Lo(RBX), regs.Lo(RCX))

	case SysSleep:
		time.Sleep(time.Duration(regs.Lo(RBX)) * time.Millisecond)
		return Ok()

	case SysCWDGet:
		proc.mu.Lock()
		cwd := proc.CWD
		proc.mu.Unlock()
		if r := mem.PushnStack([]byte(cwd)); r.IsErr() {
			return r
		}
		regs.SetLo(RBX, uint32(len(cwd)))
		return Ok()

	case SysCWDSet:
		path := readCString(mem, regs.Lo(RBX))
		proc.mu.Lock()
		proc.CWD = path
		proc.mu.Unlock()
		return Ok()

	case SysFileRead:
		path := readCString(mem, regs.Lo(RBX))
		data, r := kctx.FS.ReadFile(resolvePath(proc, path))
		if r.IsErr() {
			return r
		}
		if r := mem.PushnStack(data); r.IsErr() {
			return r
		}
		regs.SetLo(RCX, uint32(len(data)))
		return Ok()

	case SysFileWrite:
		path := readCString(mem, regs.Lo(RBX))
		data, r := mem.GetBytes(regs.Lo(RCX), int(regs.Lo(R9)))
		if r.IsErr() {
			return r
		}
		return kctx.FS.WriteFile(resolvePath(proc, path), data)

	case SysFileDelete:
		return kctx.FS.DeleteFile(resolvePath(proc, readCString(mem, regs.Lo(RBX))))

	case SysFileRename:
		return kctx.FS.RenameFile(resolvePath(proc, readCString(mem, regs.Lo(RBX))), readCString(mem, regs.Lo(RCX)))

	case SysDirCreate:
		return kctx.FS.CreateDir(resolvePath(proc, readCString(mem, regs.Lo(RBX))))

	case SysDirDelete:
		return kctx.FS.DeleteDir(resolvePath(proc, readCString(mem, regs.Lo(RBX))))

	case SysDirList:
		names, r := kctx.FS.ListDir(resolvePath(proc, readCString(mem, regs.Lo(RBX))))
		if r.IsErr() {
			return r
		}
		joined := []byte(joinNames(names))
		if r := mem.PushnStack(joined); r.IsErr() {
			return r
		}
		regs.SetLo(RCX, uint32(len(joined)))
		return Ok()

	case SysFileMove:
		return kctx.FS.MoveFile(resolvePath(proc, readCString(mem, regs.Lo(RBX))), resolvePath(proc, readCString(mem, regs.Lo(RCX))))

	case SysTime:
		return regs.Set(RBX, 0, 8, fromUint(uint64(kctx.now().Unix()), 8))

	case SysShutdown:
		kctx.ShutdownRequested = true
		return Ok()

	case SysWriteCString:
		s := readCString(mem, regs.Lo(RBX))
		proc.mu.Lock()
		proc.Stdout = append(proc.Stdout, []byte(s)...)
		proc.mu.Unlock()
		if kctx.Terminal != nil {
			kctx.Terminal.WriteText(proc.PID, []byte(s))
		}
		return Ok()

	default:
		return Err(InvalidSyscall, "no syscall with id %d", id)
	}
}

func readCString(mem *ProcessMemory, offset uint32) string {
	var out []byte
	for i := uint32(0); ; i++ {
		b, r := mem.GetByte(offset + i)
		if r.IsErr() || b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out)
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "\n"
		}
		out += n
	}
	return out
}

func resolvePath(proc *Process, path string) string {
	if len(path) > 0 && (path[0] == '/' || path[0] == '\\') {
		return path
	}
	proc.mu.Lock()
	cwd := proc.CWD
	proc.mu.Unlock()
	if cwd == "" || cwd == "/" {
		return "/" + path
	}
	return cwd + "/" + path
}

func kernelPanic(kctx *KernelCtx, code int) Result {
	kctx.mu.Lock()
	kctx.Panicked = true
	kctx.mu.Unlock()
	for _, p := range kctx.Processes {
		p.mu.Lock()
		for _, t := range p.Threads {
			t.Running = false
		}
		p.State = ProcessTerminated
		p.ExitCode = ExitKernelPanic
		p.mu.Unlock()
	}
	return Ok()
}

func awaitProcess(kctx *KernelCtx, pid uint32) Result {
	for {
		kctx.mu.RLock()
		_, running := kctx.Processes[pid]
		kctx.mu.RUnlock()
		if !running {
			return Ok()
		}
		time.Sleep(time.Millisecond)
	}
}

func awaitThread(kctx *KernelCtx, pid, tid uint32) Result {
	for {
		proc, r := kctx.Process(pid)
		if r.IsErr() {
			return Ok()
		}
		proc.mu.Lock()
		t, ok := proc.Threads[tid]
		running := ok && t.Running
		proc.mu.Unlock()
		if !running {
			return Ok()
		}
		time.Sleep(time.Millisecond)
	}
}

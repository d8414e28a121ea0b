package main

import "testing"

func TestDispatchSyscallPrivilegeCheck(t *testing.T) {
	proc := NewProcess(0, nil, nil, User)
	thread := proc.NewThread()
	kctx := NewKernelCtx()

	thread.SavedRegisters.SetLo(RAX, SysShutdown)
	dispatchSyscall(kctx, proc, thread)

	if got := thread.SavedRegisters.Lo(RAX); got != uint32(SecurityViolation) {
		t.Fatalf("RAX after privileged syscall from User process = %d, want %d", got, SecurityViolation)
	}
	if kctx.ShutdownRequested {
		t.Fatal("shutdown should not have been requested by an unprivileged process")
	}
}

func TestDispatchSyscallPrivilegedAllowedForKernel(t *testing.T) {
	proc := NewProcess(0, nil, nil, Privileged)
	thread := proc.NewThread()
	kctx := NewKernelCtx()

	thread.SavedRegisters.SetLo(RAX, SysShutdown)
	dispatchSyscall(kctx, proc, thread)

	if !kctx.ShutdownRequested {
		t.Fatal("privileged process should be able to request shutdown")
	}
	if got := thread.SavedRegisters.Lo(RAX); got != uint32(OK) {
		t.Fatalf("RAX = %d, want OK", got)
	}
}

func TestSyscallWriteStdout(t *testing.T) {
	proc := NewProcess(0, nil, []byte("hello"), Privileged)
	thread := proc.NewThread()
	kctx := NewKernelCtx()

	regs := thread.SavedRegisters
	regs.SetLo(RAX, SysWriteStdout)
	regs.SetLo(RBX, proc.DS) // offset of "hello" within the data section
	regs.SetLo(RCX, 5)
	dispatchSyscall(kctx, proc, thread)

	if string(proc.Stdout) != "hello" {
		t.Fatalf("Stdout = %q, want %q", proc.Stdout, "hello")
	}
}

func TestSyscallExitThreadSetsExitCode(t *testing.T) {
	proc := NewProcess(0, nil, nil, Privileged)
	thread := proc.NewThread()
	kctx := NewKernelCtx()

	regs := thread.SavedRegisters
	regs.SetLo(RAX, SysExitThread)
	regs.SetLo(RBX, 42)
	dispatchSyscall(kctx, proc, thread)

	if thread.Running {
		t.Fatal("thread should no longer be running after SysExitThread")
	}
	if thread.ExitCode != 42 {
		t.Fatalf("ExitCode = %d, want 42", thread.ExitCode)
	}
}

func TestSyscallGetPIDAndTID(t *testing.T) {
	proc := NewProcess(7, nil, nil, Privileged)
	thread := proc.NewThread()
	kctx := NewKernelCtx()

	thread.SavedRegisters.SetLo(RAX, SysGetPID)
	dispatchSyscall(kctx, proc, thread)
	if got := thread.SavedRegisters.Lo(RBX); got != 7 {
		t.Fatalf("GetPID RBX = %d, want 7", got)
	}

	thread.SavedRegisters.SetLo(RAX, SysGetTID)
	dispatchSyscall(kctx, proc, thread)
	if got := thread.SavedRegisters.Lo(RBX); got != thread.TID {
		t.Fatalf("GetTID RBX = %d, want %d", got, thread.TID)
	}
}

func TestSyscallUnknownIDReturnsInvalidSyscall(t *testing.T) {
	proc := NewProcess(0, nil, nil, Privileged)
	thread := proc.NewThread()
	kctx := NewKernelCtx()

	thread.SavedRegisters.SetLo(RAX, 255)
	dispatchSyscall(kctx, proc, thread)
	if got := thread.SavedRegisters.Lo(RAX); got != uint32(InvalidSyscall) {
		t.Fatalf("RAX = %d, want %d (InvalidSyscall)", got, InvalidSyscall)
	}
}

package main

import "testing"

func newTestContext() *execContext {
	global := NewMemory()
	proc := NewProcess(0, make([]byte, 16), make([]byte, 16), Privileged)
	thread := proc.NewThread()
	kctx := NewKernelCtx()
	kctx.Memory = global
	return &execContext{
		kctx:   kctx,
		global: global,
		proc:   proc,
		thread: thread,
		regs:   thread.SavedRegisters,
		mem:    proc.view(thread),
	}
}

func TestGetSetOperandReg(t *testing.T) {
	ctx := newTestContext()
	op := Operand{Kind: OpReg, RegIndex: RAX, Offset: 0, Length: 4}
	if r := setOperand(ctx, op, []byte{1, 2, 3, 4}); r.IsErr() {
		t.Fatalf("setOperand: %v", r)
	}
	got, r := getOperand(ctx, op)
	if r.IsErr() {
		t.Fatalf("getOperand: %v", r)
	}
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("getOperand = %v, want %v", got, want)
		}
	}
}

func TestSetOperandConstNotWritable(t *testing.T) {
	ctx := newTestContext()
	op := Operand{Kind: OpConst, Const: []byte{1, 2, 3, 4}, Length: 4}
	if r := setOperand(ctx, op, []byte{0, 0, 0, 0}); r.Code != SizeMismatch {
		t.Fatalf("write to CONST: got %v, want SizeMismatch", r)
	}
}

func TestSetOperandMemSizeMismatch(t *testing.T) {
	ctx := newTestContext()
	op := Operand{Kind: OpMem, Offset: 0, Length: 4}
	if r := setOperand(ctx, op, []byte{1, 2, 3}); r.Code != SizeMismatch {
		t.Fatalf("wrong-size write: got %v, want SizeMismatch", r)
	}
}

func TestOperandPmemUserWriteDenied(t *testing.T) {
	ctx := newTestContext()
	ctx.proc.SecurityLevel = User
	other := NewProcessMemory(make([]byte, 4), make([]byte, 4), nil)
	if r := ctx.global.AddPartition(ProcName(99), other); r.IsErr() {
		t.Fatalf("AddPartition: %v", r)
	}
	op := Operand{Kind: OpPmem, ID: 99, Offset: 4, Length: 1}
	if r := setOperand(ctx, op, []byte{1}); r.Code != SecurityViolation {
		t.Fatalf("User PMEM write: got %v, want SecurityViolation", r)
	}
}

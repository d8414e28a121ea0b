package main

import (
	"encoding/binary"
	"testing"
)

// --- tiny hand-assembler for the tagged operand wire format, mirroring
// operand.go's decodeOperand exactly enough to drive executeNum end to
// end without a real toolchain in front of it. ---

func asmConst(value uint32, length int) []byte {
	buf := make([]byte, length)
	v := value
	for i := 0; i < length && i < 4; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	out := []byte{tagConst}
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(length))
	out = append(out, lenBuf...)
	return append(out, buf...)
}

func asmReg(regIdx int, offset, length uint32) []byte {
	out := []byte{tagReg, byte(regIdx)}
	out = append(out, asmConst(offset, 4)...)
	return append(out, asmConst(length, 4)...)
}

func newTestProcess(code []byte) (*Process, *Thread) {
	proc := NewProcess(0, code, nil, Privileged)
	thread := proc.NewThread()
	return proc, thread
}

func TestExecuteArithmeticProgram(t *testing.T) {
	var code []byte
	code = append(code, OpMOV)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(2, 4)...)
	code = append(code, OpADD)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(3, 4)...)
	code = append(code, OpHLT)
	code = append(code, asmConst(0, 4)...)

	proc, thread := newTestProcess(code)
	kctx := NewKernelCtx()

	ctx, outcome := executeNum(kctx, proc, thread, -1)
	if outcome != StepTerminated {
		t.Fatalf("outcome = %v, want StepTerminated", outcome)
	}
	if ctx.exitCode != 0 {
		t.Fatalf("exitCode = %d, want 0 (exit msg %q)", ctx.exitCode, ctx.exitMsg)
	}
	if got := ctx.regs.Lo(RAX); got != 5 {
		t.Fatalf("RAX = %d, want 5", got)
	}
}

func TestExecuteConditionalJump(t *testing.T) {
	// MOV RAX,1; CMP RAX,1; JE skip; MOV RAX,99; skip: HLT RAX
	var code []byte
	code = append(code, OpMOV)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(1, 4)...)

	code = append(code, OpCMP)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(1, 4)...)

	code = append(code, OpJE)
	jeTargetPatch := len(code) + 3 // tagConst(1) + len(2) -> value bytes start here
	code = append(code, asmConst(0, 4)...) // placeholder target, patched below

	code = append(code, OpMOV)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(99, 4)...)

	skipTarget := len(code)
	code = append(code, OpHLT)
	code = append(code, asmReg(RAX, 0, 4)...)

	binary.LittleEndian.PutUint32(code[jeTargetPatch:jeTargetPatch+4], uint32(skipTarget))

	proc, thread := newTestProcess(code)
	kctx := NewKernelCtx()

	ctx, outcome := executeNum(kctx, proc, thread, -1)
	if outcome != StepTerminated {
		t.Fatalf("outcome = %v, want StepTerminated", outcome)
	}
	if got := ctx.regs.Lo(RAX); got != 1 {
		t.Fatalf("RAX = %d, want 1 (JE should have skipped the MOV RAX,99)", got)
	}
}

func TestExecuteCallRetRestoresFrame(t *testing.T) {
	// CALL sub; HLT RAX
	// sub: MOV RAX,7; RET
	var code []byte
	code = append(code, OpCALL)
	callTargetPatch := len(code) + 3
	code = append(code, asmConst(0, 4)...)

	code = append(code, OpHLT)
	code = append(code, asmReg(RAX, 0, 4)...)

	subTarget := len(code)
	code = append(code, OpMOV)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(7, 4)...)
	code = append(code, OpRET)

	binary.LittleEndian.PutUint32(code[callTargetPatch:callTargetPatch+4], uint32(subTarget))

	proc, thread := newTestProcess(code)
	kctx := NewKernelCtx()
	initialRBP := thread.SavedRegisters.Lo(RBP)
	initialRSP := thread.SavedRegisters.Lo(RSP)

	ctx, outcome := executeNum(kctx, proc, thread, -1)
	if outcome != StepTerminated {
		t.Fatalf("outcome = %v, want StepTerminated", outcome)
	}
	if got := ctx.regs.Lo(RAX); got != 7 {
		t.Fatalf("RAX = %d, want 7", got)
	}
	if got := ctx.regs.Lo(RBP); got != initialRBP {
		t.Fatalf("RBP = %d, want %d restored by RET", got, initialRBP)
	}
	if got := ctx.regs.Lo(RSP); got != initialRSP {
		t.Fatalf("RSP = %d, want %d restored by RET", got, initialRSP)
	}
}

func TestExecuteDivByZeroHalts(t *testing.T) {
	// DIV takes (dividend, divisor, qdest, rdest); dividing by a zero
	// CONST divisor should halt the thread with DivZero.
	var code []byte
	code = append(code, OpMOV)
	code = append(code, asmReg(RAX, 0, 4)...)
	code = append(code, asmConst(10, 4)...)
	code = append(code, OpDIV)
	code = append(code, asmReg(RAX, 0, 4)...) // dividend
	code = append(code, asmConst(0, 4)...)    // divisor
	code = append(code, asmReg(RDX, 0, 4)...) // quotient dest
	code = append(code, asmReg(RCX, 0, 4)...) // remainder dest

	proc, thread := newTestProcess(code)
	kctx := NewKernelCtx()

	ctx, outcome := executeNum(kctx, proc, thread, -1)
	if outcome != StepTerminated {
		t.Fatalf("outcome = %v, want StepTerminated", outcome)
	}
	if ctx.exitCode != int(DivZero) {
		t.Fatalf("exitCode = %d, want %d (DivZero)", ctx.exitCode, DivZero)
	}
}

func TestExecuteQuantumBudgetStopsAtBoundary(t *testing.T) {
	var code []byte
	code = append(code, OpNOP)
	code = append(code, OpNOP)
	code = append(code, OpHLT)
	code = append(code, asmConst(0, 4)...)

	proc, thread := newTestProcess(code)
	kctx := NewKernelCtx()

	_, outcome := executeNum(kctx, proc, thread, 1)
	if outcome != StepContinue {
		t.Fatalf("outcome after 1-op budget = %v, want StepContinue", outcome)
	}
	if got := thread.SavedRegisters.Hi(RIP); got != 1 {
		t.Fatalf("RIP after one NOP = %d, want 1", got)
	}
}

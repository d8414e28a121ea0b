// cpu_ops.go - opcode handler implementations
//
// Grounded on cpu_ie32.go's per-opcode execute methods (one function per
// opcode, reading operands then writing results back through the same
// get/set primitives); generalised here to operate over resolved Operand
// values via getOperand/setOperand (operand.go) instead of cpu_ie32's
// fixed register fields.

package main

import "encoding/binary"

func opLen(op Operand) int {
	switch op.Kind {
	case OpRlo, OpRhi:
		return 4
	default:
		return int(op.Length)
	}
}

func execMov(ctx *execContext, args []Operand) (StepOutcome, Result) {
	src, r := getOperand(ctx, args[1])
	if r.IsErr() {
		return StepTerminated, r
	}
	if r := setOperand(ctx, args[0], src); r.IsErr() {
		return StepTerminated, r
	}
	return StepContinue, Ok()
}

// binArith implements the ADD/SUB/MUL/MULS/AND/OR/XOR family: dest =
// dest op src, optionally updating flags per spec.md's normalized rule.
func binArith(flags bool, op func(a, b []byte) aluResult) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		dest, src := args[0], args[1]
		a, r := getOperand(ctx, dest)
		if r.IsErr() {
			return StepTerminated, r
		}
		b, r := getOperand(ctx, src)
		if r.IsErr() {
			return StepTerminated, r
		}
		if len(a) != len(b) {
			return StepTerminated, Err(SizeMismatch, "operand width mismatch in arithmetic op")
		}
		result := op(a, b)
		if r := setOperand(ctx, dest, result.bytes); r.IsErr() {
			return StepTerminated, r
		}
		if flags {
			setArithFlags(ctx.regs, result.bytes, result.carry, result.overflow)
		}
		return StepContinue, Ok()
	}
}

func unArith(flags bool, op func(a []byte) aluResult) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		dest, src := args[0], args[1]
		a, r := getOperand(ctx, src)
		if r.IsErr() {
			return StepTerminated, r
		}
		result := op(a)
		if r := setOperand(ctx, dest, result.bytes); r.IsErr() {
			return StepTerminated, r
		}
		if flags {
			setArithFlags(ctx.regs, result.bytes, result.carry, result.overflow)
		}
		return StepContinue, Ok()
	}
}

func shiftOp(flags bool, op func(a []byte, shift uint) aluResult) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		dest, src := args[0], args[1]
		a, r := getOperand(ctx, dest)
		if r.IsErr() {
			return StepTerminated, r
		}
		shiftBytes, r := getOperand(ctx, src)
		if r.IsErr() {
			return StepTerminated, r
		}
		shift := uint(toUint(shiftBytes))
		result := op(a, shift)
		if r := setOperand(ctx, dest, result.bytes); r.IsErr() {
			return StepTerminated, r
		}
		if flags {
			setArithFlags(ctx.regs, result.bytes, result.carry, result.overflow)
		}
		return StepContinue, Ok()
	}
}

// execDiv/execDivNF implement DIV/DIVS per spec.md's S4 4-operand form:
// (a, b, qdest, rdest). The *NF (no-flag) variant skips flag updates; both
// share this body parameterised by signedness.
func execDiv(signed bool) opcodeHandler   { return divImpl(signed, true) }
func execDivNF(signed bool) opcodeHandler { return divImpl(signed, false) }

func divImpl(signed, flags bool) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		a, r := getOperand(ctx, args[0])
		if r.IsErr() {
			return StepTerminated, r
		}
		b, r := getOperand(ctx, args[1])
		if r.IsErr() {
			return StepTerminated, r
		}
		var q, rem aluResult
		var rr Result
		if signed {
			q, rem, rr = aluDivSigned(a, b)
		} else {
			q, rem, rr = aluDiv(a, b)
		}
		if rr.IsErr() {
			return StepTerminated, rr
		}
		if r := setOperand(ctx, args[2], q.bytes); r.IsErr() {
			return StepTerminated, r
		}
		if r := setOperand(ctx, args[3], rem.bytes); r.IsErr() {
			return StepTerminated, r
		}
		if flags {
			setArithFlags(ctx.regs, q.bytes, false, false)
		}
		return StepContinue, Ok()
	}
}

func execPush(ctx *execContext, args []Operand) (StepOutcome, Result) {
	data, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	if len(data) < 4 {
		padded := make([]byte, 4)
		copy(padded, data)
		data = padded
	}
	if r := ctx.mem.PushStack(data[:4]); r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	return StepContinue, Ok()
}

func execPop(ctx *execContext, args []Operand) (StepOutcome, Result) {
	data, r := ctx.mem.PopStack()
	if r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	if r := setOperand(ctx, args[0], data); r.IsErr() {
		return StepTerminated, r
	}
	return StepContinue, Ok()
}

func execPushn(ctx *execContext, args []Operand) (StepOutcome, Result) {
	data, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	if r := ctx.mem.PushnStack(data); r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	return StepContinue, Ok()
}

func execPopn(ctx *execContext, args []Operand) (StepOutcome, Result) {
	countBytes, r := getOperand(ctx, args[1])
	if r.IsErr() {
		return StepTerminated, r
	}
	count := int(toUint(countBytes))
	data, r := ctx.mem.PopnStack(count)
	if r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	if r := setOperand(ctx, args[0], data); r.IsErr() {
		return StepTerminated, r
	}
	return StepContinue, Ok()
}

func execPopr(ctx *execContext, args []Operand) (StepOutcome, Result) {
	if _, r := ctx.mem.PopStack(); r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	return StepContinue, Ok()
}

func execPopnr(ctx *execContext, args []Operand) (StepOutcome, Result) {
	countBytes, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	count := int(toUint(countBytes))
	if _, r := ctx.mem.PopnStack(count); r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	return StepContinue, Ok()
}

func execJmp(ctx *execContext, args []Operand) (StepOutcome, Result) {
	addr, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RIP, uint32(toUint(addr)))
	return StepContinue, Ok()
}

// execCmp implements CMP/CMPS: clear LT/GT/EQ, then set exactly one,
// comparing unsigned or signed per spec.md §4.3.
func execCmp(signed bool) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		a, r := getOperand(ctx, args[0])
		if r.IsErr() {
			return StepTerminated, r
		}
		b, r := getOperand(ctx, args[1])
		if r.IsErr() {
			return StepTerminated, r
		}
		ctx.regs.ClearComparisonFlags()
		var lt, gt bool
		if signed {
			ai, bi := toInt(a), toInt(b)
			lt, gt = ai < bi, ai > bi
		} else {
			au, bu := toUint(a), toUint(b)
			lt, gt = au < bu, au > bu
		}
		switch {
		case lt:
			ctx.regs.SetFlag(FlagLT, true)
		case gt:
			ctx.regs.SetFlag(FlagGT, true)
		default:
			ctx.regs.SetFlag(FlagEQ, true)
		}
		return StepContinue, Ok()
	}
}

func condJump(bit int) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		addr, r := getOperand(ctx, args[0])
		if r.IsErr() {
			return StepTerminated, r
		}
		if ctx.regs.Flag(bit) {
			ctx.regs.SetHi(RIP, uint32(toUint(addr)))
		}
		return StepContinue, Ok()
	}
}

func condJumpOr(bitA, bitB int) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		addr, r := getOperand(ctx, args[0])
		if r.IsErr() {
			return StepTerminated, r
		}
		if ctx.regs.Flag(bitA) || ctx.regs.Flag(bitB) {
			ctx.regs.SetHi(RIP, uint32(toUint(addr)))
		}
		return StepContinue, Ok()
	}
}

func condJumpNot(bit int) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		addr, r := getOperand(ctx, args[0])
		if r.IsErr() {
			return StepTerminated, r
		}
		if !ctx.regs.Flag(bit) {
			ctx.regs.SetHi(RIP, uint32(toUint(addr)))
		}
		return StepContinue, Ok()
	}
}

// execCall implements the ABI spec.md §4.3 defines: push next RIP, push
// caller RBP, then RBP <- RES.
func execCall(ctx *execContext, args []Operand) (StepOutcome, Result) {
	addr, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	nextRIP := make([]byte, 4)
	binary.LittleEndian.PutUint32(nextRIP, ctx.regs.Hi(RIP))
	if r := ctx.mem.PushStack(nextRIP); r.IsErr() {
		return StepTerminated, r
	}
	rbp := make([]byte, 4)
	binary.LittleEndian.PutUint32(rbp, ctx.regs.Lo(RBP))
	if r := ctx.mem.PushStack(rbp); r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	ctx.regs.SetLo(RBP, ctx.mem.ES)
	ctx.regs.SetHi(RIP, uint32(toUint(addr)))
	return StepContinue, Ok()
}

// execRet implements RET: pop RBP, pop RIP (jumping).
func execRet(ctx *execContext, args []Operand) (StepOutcome, Result) {
	rbp, r := ctx.mem.PopStack()
	if r.IsErr() {
		return StepTerminated, r
	}
	ripBytes, r := ctx.mem.PopStack()
	if r.IsErr() {
		return StepTerminated, r
	}
	ctx.regs.SetHi(RES, ctx.mem.ES)
	ctx.regs.SetLo(RSP, ctx.mem.ES)
	ctx.regs.SetLo(RBP, binary.LittleEndian.Uint32(rbp))
	ctx.regs.SetHi(RIP, binary.LittleEndian.Uint32(ripBytes))
	return StepContinue, Ok()
}

func execNop(ctx *execContext, args []Operand) (StepOutcome, Result) {
	return StepContinue, Ok()
}

// execHlt halts the thread with the given exit code, per spec.md §4.5's
// "record exit code at MEM[RES-2..RES]".
func execHlt(ctx *execContext, args []Operand) (StepOutcome, Result) {
	codeBytes, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	code := int(toUint(codeBytes))
	ctx.exitCode = code
	writeExitCode(ctx, code)
	return StepTerminated, Ok()
}

// execInfl jumps back to RIP-1, an infinite-loop-of-one-instruction
// primitive used by busy-wait syscall helpers.
func execInfl(ctx *execContext, args []Operand) (StepOutcome, Result) {
	ctx.regs.SetHi(RIP, ctx.regs.Hi(RIP)-1)
	return StepContinue, Ok()
}

// execEir halts iff RAX's low 4 bytes are nonzero, with exit code taken
// from the low 2 bytes of RAX.
func execEir(ctx *execContext, args []Operand) (StepOutcome, Result) {
	rax := ctx.regs.Lo(RAX)
	if rax != 0 {
		ctx.exitCode = int(rax & 0xFFFF)
		writeExitCode(ctx, ctx.exitCode)
		return StepTerminated, Ok()
	}
	return StepContinue, Ok()
}

func condMove(bit int) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		if !ctx.regs.Flag(bit) {
			return StepContinue, Ok()
		}
		return execMov(ctx, args)
	}
}

func condMoveOr(bitA, bitB int) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		if !ctx.regs.Flag(bitA) && !ctx.regs.Flag(bitB) {
			return StepContinue, Ok()
		}
		return execMov(ctx, args)
	}
}

func condMoveNot(bit int) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		if ctx.regs.Flag(bit) {
			return StepContinue, Ok()
		}
		return execMov(ctx, args)
	}
}

// execArgn reads 4 bytes at RBP - (8 + 4*(n+1)) — argument n of the
// current call frame, indexing below RBP per the CALL ABI.
func execArgn(ctx *execContext, args []Operand) (StepOutcome, Result) {
	return frameRead(ctx, args, func(rbp, n uint32) (uint32, bool) {
		off := int64(rbp) - int64(8+4*(n+1))
		if off < int64(ctx.mem.SS) {
			return 0, false
		}
		return uint32(off), true
	})
}

// execVarn reads 4 bytes at RES - 4*(n+1) — local variable n below the
// current stack top.
func execVarn(ctx *execContext, args []Operand) (StepOutcome, Result) {
	return frameRead(ctx, args, func(_, n uint32) (uint32, bool) {
		off := int64(ctx.mem.ES) - int64(4*(n+1))
		if off < int64(ctx.mem.SS) {
			return 0, false
		}
		return uint32(off), true
	})
}

func frameRead(ctx *execContext, args []Operand, computeOffset func(rbp, n uint32) (uint32, bool)) (StepOutcome, Result) {
	nBytes, r := getOperand(ctx, args[1])
	if r.IsErr() {
		return StepTerminated, r
	}
	n := uint32(toUint(nBytes))
	offset, ok := computeOffset(ctx.regs.Lo(RBP), n)
	if !ok {
		return StepTerminated, Err(OutOfRange, "frame offset below stack segment")
	}
	data, r := ctx.mem.GetBytes(offset, 4)
	if r.IsErr() {
		return StepTerminated, r
	}
	if r := setOperand(ctx, args[0], data); r.IsErr() {
		return StepTerminated, r
	}
	return StepContinue, Ok()
}

// execOffsg reads n bytes at RES - offset.
func execOffsg(ctx *execContext, args []Operand) (StepOutcome, Result) {
	offsetBytes, r := getOperand(ctx, args[1])
	if r.IsErr() {
		return StepTerminated, r
	}
	nBytes, r := getOperand(ctx, args[2])
	if r.IsErr() {
		return StepTerminated, r
	}
	offset := uint32(toUint(offsetBytes))
	n := int(toUint(nBytes))
	base := int64(ctx.mem.ES) - int64(offset)
	if base < int64(ctx.mem.SS) {
		return StepTerminated, Err(OutOfRange, "OFFSG offset below stack segment")
	}
	data, r := ctx.mem.GetBytes(uint32(base), n)
	if r.IsErr() {
		return StepTerminated, r
	}
	if r := setOperand(ctx, args[0], data); r.IsErr() {
		return StepTerminated, r
	}
	return StepContinue, Ok()
}

// execSys/execInt/execLib raise the Interrupt exception the source
// describes as unwinding the core to the scheduler; here they simply
// report StepSuspended with enough information for the scheduler to
// dispatch to the syscall/interrupt/library-call service (syscalls.go,
// device.go, library.go).
func execSys(ctx *execContext, args []Operand) (StepOutcome, Result) {
	ctx.suspendKind = "sys"
	return StepSuspended, Ok()
}

func execInt(ctx *execContext, args []Operand) (StepOutcome, Result) {
	idBytes, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	ctx.suspendKind = "int"
	ctx.suspendA = uint32(toUint(idBytes))
	return StepSuspended, Ok()
}

func execLib(ctx *execContext, args []Operand) (StepOutcome, Result) {
	lidBytes, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	cidBytes, r := getOperand(ctx, args[1])
	if r.IsErr() {
		return StepTerminated, r
	}
	ctx.suspendKind = "lib"
	ctx.suspendA = uint32(toUint(lidBytes))
	ctx.suspendB = uint32(toUint(cidBytes))
	return StepSuspended, Ok()
}

func binFloat(op func(a, b []byte) []byte) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		dest, src := args[0], args[1]
		a, r := getOperand(ctx, dest)
		if r.IsErr() {
			return StepTerminated, r
		}
		b, r := getOperand(ctx, src)
		if r.IsErr() {
			return StepTerminated, r
		}
		if r := setOperand(ctx, dest, op(a, b)); r.IsErr() {
			return StepTerminated, r
		}
		return StepContinue, Ok()
	}
}

func execDivf(ctx *execContext, args []Operand) (StepOutcome, Result) {
	dest, src := args[0], args[1]
	a, r := getOperand(ctx, dest)
	if r.IsErr() {
		return StepTerminated, r
	}
	b, r := getOperand(ctx, src)
	if r.IsErr() {
		return StepTerminated, r
	}
	result, r := fpuDiv(a, b)
	if r.IsErr() {
		return StepTerminated, r
	}
	if r := setOperand(ctx, dest, result); r.IsErr() {
		return StepTerminated, r
	}
	return StepContinue, Ok()
}

func execCmpf(ctx *execContext, args []Operand) (StepOutcome, Result) {
	a, r := getOperand(ctx, args[0])
	if r.IsErr() {
		return StepTerminated, r
	}
	b, r := getOperand(ctx, args[1])
	if r.IsErr() {
		return StepTerminated, r
	}
	fpuCmp(ctx.regs, a, b)
	return StepContinue, Ok()
}

func convOp(op func(a []byte) []byte) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		dest, src := args[0], args[1]
		a, r := getOperand(ctx, src)
		if r.IsErr() {
			return StepTerminated, r
		}
		if r := setOperand(ctx, dest, op(a)); r.IsErr() {
			return StepTerminated, r
		}
		return StepContinue, Ok()
	}
}

func convOpLen(op func(a []byte, length int) []byte) opcodeHandler {
	return func(ctx *execContext, args []Operand) (StepOutcome, Result) {
		dest, src := args[0], args[1]
		a, r := getOperand(ctx, src)
		if r.IsErr() {
			return StepTerminated, r
		}
		if r := setOperand(ctx, dest, op(a, opLen(dest))); r.IsErr() {
			return StepTerminated, r
		}
		return StepContinue, Ok()
	}
}

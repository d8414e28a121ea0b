// cpu.go - instruction decoder and the bounded execution loop
//
// Grounded on cpu_ie32.go's Execute() main loop (fetch opcode, resolve
// operands, dispatch, advance RIP, handle interrupts) and its
// sync.RWMutex-guarded memory access; generalised from cpu_ie32's fixed
// register layout to spec.md §4.5's Operand-driven dispatch, and from its
// exception-based Interrupt/Exit control flow to the explicit StepOutcome
// enum spec.md §9 calls for in place of unwinding across quanta.

package main

import (
	"fmt"
	"os"
)

// StepOutcome is what executeNum reports back to the scheduler in place of
// the source's exception-based control flow (Exit/Interrupt).
type StepOutcome int

const (
	StepContinue   StepOutcome = iota // quantum budget exhausted, thread still runnable
	StepSuspended                     // SYS/INT/LIB raised; kernel service now owns the thread
	StepTerminated                    // HLT or natural fall-through; thread has an exit code
)

// execContext is the per-quantum borrow passed into every opcode handler
// and operand resolver, replacing the source's pervasive back-pointer
// chains (CPU -> Computer -> OS -> Memory -> Process) with one explicit
// context object, per spec.md §9's KernelCtx design note.
type execContext struct {
	kctx   *KernelCtx
	global *Memory
	proc   *Process
	thread *Thread
	regs   *RegisterFile
	mem    *ProcessMemory

	// Set when a SYS/INT/LIB opcode suspends the thread this quantum.
	suspendKind string // "sys", "int", "lib"
	suspendA    uint32
	suspendB    uint32

	// Set on termination (HLT, fall-through, or an unhandled error).
	exitCode int
	exitMsg  string
}

// fetchByte reads one byte from process memory at RIP and advances RIP,
// per spec.md §4.2 ("stream layout at RIP").
func (c *execContext) fetchByte() (byte, Result) {
	rip := c.regs.Hi(RIP)
	b, r := c.mem.GetByte(rip)
	if r.IsErr() {
		return 0, r
	}
	c.regs.SetHi(RIP, rip+1)
	return b, Ok()
}

// executeNum runs up to maxOps instructions for (pid,tid), per spec.md
// §4.5/§4.6: installs the thread's saved registers and an assembled
// process-memory view, steps the decode/dispatch loop, then hands back a
// StepOutcome so the scheduler (not this function) performs the
// kernel-side write-back and suspension handling.
func executeNum(kctx *KernelCtx, proc *Process, thread *Thread, maxOps int) (*execContext, StepOutcome) {
	ctx := &execContext{
		kctx:   kctx,
		global: kctx.Memory,
		proc:   proc,
		thread: thread,
		regs:   thread.SavedRegisters,
		mem:    proc.view(thread),
	}

	ds := ctx.regs.Hi(RDS)
	steps := 0
	for {
		if maxOps >= 0 && steps >= maxOps {
			return ctx, StepContinue
		}
		if !thread.Running {
			return ctx, StepTerminated
		}
		rip := ctx.regs.Hi(RIP)
		if rip >= ds {
			ctx.exitCode = ExitNormal
			writeExitCode(ctx, ExitNormal)
			return ctx, StepTerminated
		}

		opcodeByte, r := ctx.fetchByte()
		if r.IsErr() {
			return haltWithError(ctx, r)
		}
		if int(opcodeByte) >= NumOpcodes {
			return haltWithError(ctx, Err(InvalidOpcode, "opcode 0x%02x out of range", opcodeByte))
		}
		info := opcodeTable[opcodeByte]
		if info.handler == nil {
			return haltWithError(ctx, Err(InvalidOpcode, "opcode 0x%02x unregistered", opcodeByte))
		}

		// Operands are decoded directly out of the code section: RIP is
		// always an offset within [0,ds), and decodeOperand's recursive
		// sub-operand resolution addresses the same absolute offsets.
		codeBytes := ctx.mem.Code.data
		ripPos := ctx.regs.Hi(RIP)
		args := make([]Operand, info.nArgs)
		decodeFailed := false
		for i := 0; i < info.nArgs; i++ {
			op, rr := decodeOperand(ctx, codeBytes, &ripPos)
			if rr.IsErr() {
				haltWithError(ctx, rr)
				decodeFailed = true
				break
			}
			args[i] = op
		}
		if decodeFailed {
			return ctx, StepTerminated
		}
		ctx.regs.SetHi(RIP, ripPos)

		if kctx.Debug {
			traceStep(proc.PID, thread.TID, rip, info.name)
		}

		outcome, rr := info.handler(ctx, args)
		steps++
		if rr.IsErr() {
			return haltWithError(ctx, rr)
		}
		switch outcome {
		case StepSuspended:
			return ctx, StepSuspended
		case StepTerminated:
			return ctx, StepTerminated
		}
	}
}

// traceStep prints one single-step debug line, enabled by Config.Debug
// (-debug) and threaded through as KernelCtx.Debug, per SPEC_FULL.md §2's
// debug/single-step toggle.
func traceStep(pid, tid, rip uint32, mnemonic string) {
	fmt.Fprintf(os.Stderr, "[trace] pid=%d tid=%d rip=0x%08x %s\n", pid, tid, rip, mnemonic)
}

// haltWithError is the core's handleOutput sink (spec.md §7): on a nonzero
// result it writes the 2-byte error code to the last 2 bytes of the stack
// and reports the thread as terminated.
func haltWithError(ctx *execContext, r Result) (*execContext, StepOutcome) {
	ctx.exitCode = int(r.Code)
	ctx.exitMsg = r.Detail
	writeExitCode(ctx, int(r.Code))
	return ctx, StepTerminated
}

func writeExitCode(ctx *execContext, code int) {
	if ctx.mem.ES < 2 {
		return
	}
	b := []byte{byte(code), byte(code >> 8)}
	_ = ctx.mem.SetBytes(ctx.mem.ES-2, b)
}

// library.go - the dynamic library interface and its two built-ins
//
// Grounded on spec.md §4.8's small-interface design (§9): a library
// declares the call ids it answers and a handle method;
// IntStrLib/WriteLib are exactly the two built-ins spec.md names.

package main

import "strconv"

// DynamicLibrary is an in-kernel callable service with a numeric call id
// per function. All calls are privileged at the import step (§4.7, syscall
// 13/14); the library itself assumes the caller was already checked.
type DynamicLibrary interface {
	DefinedCalls() map[uint32]bool
	Handle(kctx *KernelCtx, callID uint32, proc *Process, thread *Thread) Result
}

const (
	LibIntStr = 0
	LibWrite  = 1
	LibScript = 2
)

func builtinLibrary(lid uint32) (DynamicLibrary, Result) {
	switch lid {
	case LibIntStr:
		return IntStrLib{}, Ok()
	case LibWrite:
		return WriteLib{}, Ok()
	case LibScript:
		return NewScriptLib(), Ok()
	default:
		return nil, Err(LibraryIDInvalid, "no built-in library with id %d", lid)
	}
}

// IntStrLib (calls 0..3): integer<->decimal-string conversion, both signed
// and unsigned, using the caller's stack as the output buffer with the
// result length returned in RBX.
type IntStrLib struct{}

const (
	callIntToStr  = 0
	callStrToInt  = 1
	callSIntToStr = 2
	callStrToSInt = 3
)

func (IntStrLib) DefinedCalls() map[uint32]bool {
	return map[uint32]bool{callIntToStr: true, callStrToInt: true, callSIntToStr: true, callStrToSInt: true}
}

func (IntStrLib) Handle(kctx *KernelCtx, callID uint32, proc *Process, thread *Thread) Result {
	regs := thread.SavedRegisters
	mem := proc.view(thread)
	switch callID {
	case callIntToStr, callSIntToStr:
		v := regs.Lo(RBX)
		var s string
		if callID == callSIntToStr {
			s = strconv.FormatInt(int64(int32(v)), 10)
		} else {
			s = strconv.FormatUint(uint64(v), 10)
		}
		if r := mem.PushnStack([]byte(s)); r.IsErr() {
			return r
		}
		regs.SetLo(RBX, uint32(len(s)))
		return Ok()
	case callStrToInt, callStrToSInt:
		lenBytes := regs.Lo(RCX)
		offset := regs.Lo(RBX)
		data, r := mem.GetBytes(offset, int(lenBytes))
		if r.IsErr() {
			return r
		}
		if callID == callStrToSInt {
			n, err := strconv.ParseInt(string(data), 10, 64)
			if err != nil {
				return Err(LibraryCallInvalid, "invalid signed integer string: %v", err)
			}
			regs.SetLo(RAX, uint32(int32(n)))
		} else {
			n, err := strconv.ParseUint(string(data), 10, 64)
			if err != nil {
				return Err(LibraryCallInvalid, "invalid unsigned integer string: %v", err)
			}
			regs.SetLo(RAX, uint32(n))
		}
		return Ok()
	default:
		return Err(LibraryCallInvalid, "IntStrLib has no call %d", callID)
	}
}

// WriteLib (call 0): a line-oriented editor that reads from stdin until
// Ctrl-G (0x07), then stores the result in a freshly-allocated heap
// partition, id returned in RBX.
type WriteLib struct{}

const callWriteEdit = 0

func (WriteLib) DefinedCalls() map[uint32]bool {
	return map[uint32]bool{callWriteEdit: true}
}

func (WriteLib) Handle(kctx *KernelCtx, callID uint32, proc *Process, thread *Thread) Result {
	if callID != callWriteEdit {
		return Err(LibraryCallInvalid, "WriteLib has no call %d", callID)
	}
	buf := make([]byte, 0, 64)
	for i := 0; i < len(proc.Stdin); i++ {
		b := proc.Stdin[i]
		if b == 0x07 {
			proc.Stdin = proc.Stdin[i+1:]
			break
		}
		buf = append(buf, b)
	}
	hid, r := kctx.AllocHeap(uint32(len(buf)))
	if r.IsErr() {
		return r
	}
	part, r := kctx.Memory.Partition(HeapName(hid))
	if r.IsErr() {
		return r
	}
	sec := part.(*MemorySection)
	if r := sec.SetBytes(0, buf); r.IsErr() {
		return r
	}
	thread.SavedRegisters.SetLo(RBX, hid)
	return Ok()
}

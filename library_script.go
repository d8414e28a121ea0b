// library_script.go - ScriptLib, a Lua-scripted dynamic library
//
// Grounded on SPEC_FULL.md §4.11: a third built-in library exercising the
// declared-but-previously-unused github.com/yuin/gopher-lua dependency,
// giving user programs a scripted extension point within §4.8's existing
// dynamic-library mechanism rather than a new opcode (Non-goal: no new
// opcodes).

package main

import (
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const (
	callScriptLoad = 0
	callScriptCall = 1
)

// ScriptLib holds the Lua source text of each thread that has called
// LoadScript; every Call runs that source in a fresh Lua state. Sources
// are keyed by tid since a library instance is private per thread
// import (§4.8: "imported_libs: [Library]" on Thread).
type ScriptLib struct {
	mu      sync.Mutex
	sources map[uint32]string
}

func NewScriptLib() *ScriptLib {
	return &ScriptLib{sources: make(map[uint32]string)}
}

func (s *ScriptLib) DefinedCalls() map[uint32]bool {
	return map[uint32]bool{callScriptLoad: true, callScriptCall: true}
}

func (s *ScriptLib) Handle(kctx *KernelCtx, callID uint32, proc *Process, thread *Thread) Result {
	regs := thread.SavedRegisters
	switch callID {
	case callScriptLoad:
		hid := regs.Lo(RBX)
		part, r := kctx.Memory.Partition(HeapName(hid))
		if r.IsErr() {
			return r
		}
		sec, ok := part.(*MemorySection)
		if !ok {
			return Err(PartitionMissing, "heap %d is not a memory section", hid)
		}
		src, r := sec.GetBytes(0, sec.Size())
		if r.IsErr() {
			return r
		}
		s.mu.Lock()
		s.sources[thread.TID] = string(src)
		s.mu.Unlock()
		return Ok()

	case callScriptCall:
		s.mu.Lock()
		src, ok := s.sources[thread.TID]
		s.mu.Unlock()
		if !ok {
			return Err(LibraryCallInvalid, "ScriptLib: no script loaded for this thread")
		}

		argOffset := regs.Lo(RCX)
		argLen := regs.Lo(R9)
		mem := proc.view(thread)
		argBytes, r := mem.GetBytes(argOffset, int(argLen))
		if r.IsErr() {
			return r
		}

		L := lua.NewState(lua.Options{SkipOpenLibs: true})
		defer L.Close()
		for _, lib := range []struct {
			name string
			fn   lua.LGFunction
		}{
			{lua.BaseLibName, lua.OpenBase},
			{lua.StringLibName, lua.OpenString},
			{lua.MathLibName, lua.OpenMath},
			{lua.TabLibName, lua.OpenTable},
		} {
			if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}); err != nil {
				return Err(LibraryCallInvalid, "ScriptLib: stdlib open failed: %v", err)
			}
		}
		L.SetGlobal("arg", lua.LString(string(argBytes)))

		if err := L.DoString(src); err != nil {
			return Err(LibraryCallInvalid, "ScriptLib: %v", err)
		}
		result := L.GetGlobal("result")
		resultStr := lua.LVAsString(result)

		if r := mem.PushnStack([]byte(resultStr)); r.IsErr() {
			return r
		}
		regs.SetLo(RBX, uint32(len(resultStr)))
		return Ok()

	default:
		return Err(LibraryCallInvalid, "ScriptLib has no call %d", callID)
	}
}

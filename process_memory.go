// process_memory.go - a single process's virtual memory image
//
// Grounded on original_source/emos/memory.py's ProcessMemory: three
// contiguous sections (code at [0,ds), data at [ds,ss), stack at [ss,es)),
// byte routing by offset range, and stack-segment growth that adjusts es.
// spec.md §3/§9 resolves the canonical growth direction (toward higher
// addresses) and maxsize (2^32-1) against the source's two disagreeing
// variants.

package main

const MaxProcessMemory = 0xFFFFFFFF // 2^32 - 1, the canonical emos/ constant

// ProcessMemory is the (code | data | stack) virtual address space of one
// process, addressed linearly from 0. cs is always 0; ds, ss, es are the
// running boundaries of data and stack.
type ProcessMemory struct {
	Code  *MemorySection
	Data  *MemorySection
	Stack *MemorySection

	CS, DS, SS, ES uint32
	MaxSize        uint32
}

func NewProcessMemory(code, data, stack []byte) *ProcessMemory {
	return newProcessMemoryWithMax(code, data, stack, MaxProcessMemory)
}

func newProcessMemoryWithMax(code, data, stack []byte, maxsize uint32) *ProcessMemory {
	pm := &ProcessMemory{
		Code:    NewMemorySection("code", code),
		Data:    NewMemorySection("data", data),
		Stack:   NewMemorySection("stack", stack),
		MaxSize: maxsize,
	}
	pm.CS = 0
	pm.DS = uint32(pm.Code.Size())
	pm.SS = pm.DS + uint32(pm.Data.Size())
	pm.ES = pm.SS + uint32(pm.Stack.Size())
	return pm
}

// GetByte routes a single byte read by offset range across the three
// sections.
func (pm *ProcessMemory) GetByte(offset uint32) (byte, Result) {
	switch {
	case offset < pm.DS:
		b, r := pm.Code.GetBytes(int(offset), 1)
		if r.IsErr() {
			return 0, r
		}
		return b[0], Ok()
	case offset < pm.SS:
		b, r := pm.Data.GetBytes(int(offset-pm.DS), 1)
		if r.IsErr() {
			return 0, r
		}
		return b[0], Ok()
	case offset < pm.ES:
		b, r := pm.Stack.GetBytes(int(offset-pm.SS), 1)
		if r.IsErr() {
			return 0, r
		}
		return b[0], Ok()
	default:
		return 0, Err(OutOfRange, "offset 0x%x not in process memory (es=0x%x)", offset, pm.ES)
	}
}

func (pm *ProcessMemory) GetBytes(offset uint32, numbytes int) ([]byte, Result) {
	out := make([]byte, numbytes)
	for i := 0; i < numbytes; i++ {
		b, r := pm.GetByte(offset + uint32(i))
		if r.IsErr() {
			return nil, r
		}
		out[i] = b
	}
	return out, Ok()
}

// SetByte routes a single byte write by offset range. Writes into [0,ds)
// always fail with WriteCode. Writes at or beyond es grow the stack
// section, padding any gap with zero bytes, per emos/memory.py set_byte.
func (pm *ProcessMemory) SetByte(offset uint32, b byte) Result {
	if offset >= pm.ES && offset >= pm.MaxSize {
		return Err(OutOfMemory, "offset 0x%x beyond max process size", offset)
	}
	switch {
	case offset < pm.DS:
		return Err(WriteCode, "cannot write to code section at 0x%x", offset)
	case offset < pm.SS:
		return pm.Data.SetBytes(int(offset-pm.DS), []byte{b})
	case offset < pm.ES:
		return pm.Stack.SetBytes(int(offset-pm.SS), []byte{b})
	default:
		pad := make([]byte, offset-pm.ES+1)
		pad[len(pad)-1] = b
		grow := pm.ES + uint32(len(pad))
		if err := pm.Stack.SetBytes(int(pm.ES-pm.SS), pad); err.IsErr() {
			return err
		}
		pm.ES = grow
		return Ok()
	}
}

func (pm *ProcessMemory) SetBytes(offset uint32, data []byte) Result {
	for i, b := range data {
		if r := pm.SetByte(offset+uint32(i), b); r.IsErr() {
			return r
		}
	}
	return Ok()
}

// PopStack pops 4 bytes from the top of the stack, shrinking es.
func (pm *ProcessMemory) PopStack() ([]byte, Result) {
	return pm.PopnStack(4)
}

func (pm *ProcessMemory) PopnStack(n int) ([]byte, Result) {
	data, r := pm.Stack.Popn(n)
	if r.IsErr() {
		return nil, r
	}
	pm.ES -= uint32(n)
	return data, Ok()
}

// PushStack pushes data onto the stack, growing es. Fails with
// StackCapacity if the new es would reach or exceed maxsize.
func (pm *ProcessMemory) PushStack(data []byte) Result {
	return pm.PushnStack(data)
}

func (pm *ProcessMemory) PushnStack(data []byte) Result {
	if uint64(pm.ES)+uint64(len(data)) >= uint64(pm.MaxSize) {
		return Err(StackCapacity, "stack push would exceed max process size")
	}
	if r := pm.Stack.Push(data); r.IsErr() {
		return r
	}
	pm.ES += uint32(len(data))
	return Ok()
}

// RemoveBytesStack discards numbytes bytes from the end of the stack
// without returning them (used when unwinding a frame).
func (pm *ProcessMemory) RemoveBytesStack(numbytes int) Result {
	if r := pm.Stack.RemoveBytes(numbytes); r.IsErr() {
		return r
	}
	pm.ES -= uint32(numbytes)
	return Ok()
}

func (pm *ProcessMemory) String() string {
	return "<ProcessMemory size 0x" + hex32(pm.ES) + ">"
}

func hex32(v uint32) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}

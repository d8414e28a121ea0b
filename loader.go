// loader.go - the process loader
//
// Grounded on spec.md §6's binary container format and §2's component K.

package main

import "encoding/binary"

// LoadBinary parses code_size:u32 LE || code[code_size] || data[...] into a
// ready-to-run process with an empty stack, per spec.md §6.
func LoadBinary(kctx *KernelCtx, image []byte, sec SecurityLevel) (*Process, Result) {
	if len(image) < 4 {
		return nil, Err(PathInvalid, "binary image too short for code-size header")
	}
	codeSize := binary.LittleEndian.Uint32(image[:4])
	if uint64(4+codeSize) > uint64(len(image)) {
		return nil, Err(PathInvalid, "binary image truncated: declares %d code bytes", codeSize)
	}
	code := image[4 : 4+codeSize]
	data := image[4+codeSize:]
	return kctx.SpawnProcess(code, data, sec)
}

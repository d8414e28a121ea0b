// fpu.go - IEEE-754 single-precision arithmetic over 4-byte operand buffers
//
// Grounded on cpu_ie32.go's float opcode handlers (same shape as the
// integer ALU helpers, but delegating to math.Float32bits/frombits for the
// bit-level conversions spec.md §4.3 names: ADDF/SUBF/MULF/DIVF/POWF/CMPF
// plus the integer<->float conversion family).

package main

import "math"

func toF32(b []byte) float32 {
	return math.Float32frombits(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func fromF32(f float32) []byte {
	v := math.Float32bits(f)
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func fpuAdd(a, b []byte) []byte  { return fromF32(toF32(a) + toF32(b)) }
func fpuSub(a, b []byte) []byte  { return fromF32(toF32(a) - toF32(b)) }
func fpuMul(a, b []byte) []byte  { return fromF32(toF32(a) * toF32(b)) }
func fpuDiv(a, b []byte) ([]byte, Result) {
	bv := toF32(b)
	if bv == 0 {
		return nil, Err(DivZero, "float division by zero")
	}
	return fromF32(toF32(a) / bv), Ok()
}
func fpuPow(a, b []byte) []byte {
	return fromF32(float32(math.Pow(float64(toF32(a)), float64(toF32(b)))))
}

// fpuCmp sets LT/GT/EQ the same way integer CMP does, comparing as floats.
func fpuCmp(rf *RegisterFile, a, b []byte) {
	rf.ClearComparisonFlags()
	af, bf := toF32(a), toF32(b)
	switch {
	case af < bf:
		rf.SetFlag(FlagLT, true)
	case af > bf:
		rf.SetFlag(FlagGT, true)
	default:
		rf.SetFlag(FlagEQ, true)
	}
}

// ITF / SITF: unsigned/signed integer -> float. FTI / FTSI: float -> integer
// (unsigned/signed), truncating toward zero.
func intToFloat(i []byte) []byte    { return fromF32(float32(toUint(i))) }
func sintToFloat(i []byte) []byte   { return fromF32(float32(toInt(i))) }
func floatToInt(f []byte, length int) []byte {
	return fromUint(uint64(toF32(f)), length)
}
func floatToSint(f []byte, length int) []byte {
	return fromUint(uint64(int64(toF32(f))), length)
}

package main

import "testing"

func TestAluAddOverflow(t *testing.T) {
	a := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	b := []byte{1, 0, 0, 0}
	res := aluAdd(a, b)
	if !res.carry {
		t.Fatal("expected carry on 32-bit overflow")
	}
	for _, v := range res.bytes {
		if v != 0 {
			t.Fatalf("result bytes = %v, want all zero", res.bytes)
		}
	}
}

func TestAluMulUnsignedOverflowSetsCarryNotOverflow(t *testing.T) {
	a := []byte{0, 0, 0, 0x80} // 0x80000000
	b := []byte{2, 0, 0, 0}
	res := aluMul(a, b)
	if !res.carry {
		t.Fatal("unsigned MUL truncation should set carry")
	}
	if res.overflow {
		t.Fatal("unsigned MUL is an integer op: overflow must stay false, only carry is set")
	}
}

func TestAluMulSignedOverflowSetsOverflowNotCarry(t *testing.T) {
	a := []byte{0, 0, 0, 0x40} // 0x40000000
	b := []byte{4, 0, 0, 0}
	res := aluMulSigned(a, b)
	if !res.overflow {
		t.Fatal("signed MULS truncation should set overflow")
	}
	if res.carry {
		t.Fatal("aluMulSigned never reports carry")
	}
}

func TestAluDivByZero(t *testing.T) {
	_, _, r := aluDiv([]byte{10, 0, 0, 0}, []byte{0, 0, 0, 0})
	if r.Code != DivZero {
		t.Fatalf("div by zero: got %v, want DivZero", r)
	}
}

func TestAluDivQuotientRemainder(t *testing.T) {
	q, rem, r := aluDiv([]byte{10, 0, 0, 0}, []byte{3, 0, 0, 0})
	if r.IsErr() {
		t.Fatalf("aluDiv: %v", r)
	}
	if toUint(q.bytes) != 3 || toUint(rem.bytes) != 1 {
		t.Fatalf("10/3 = q%d r%d, want q3 r1", toUint(q.bytes), toUint(rem.bytes))
	}
}

func TestSetArithFlagsZero(t *testing.T) {
	rf := NewRegisterFile()
	setArithFlags(rf, []byte{0, 0, 0, 0}, false, false)
	if !rf.Flag(FlagZF) {
		t.Fatal("ZF should be set for all-zero result")
	}
}

func TestFpuDivByZero(t *testing.T) {
	a := fromF32(1.0)
	b := fromF32(0.0)
	if _, r := fpuDiv(a, b); r.Code != DivZero {
		t.Fatalf("float div by zero: got %v, want DivZero", r)
	}
}

func TestIntFloatRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1000, -1000} {
		f := sintToFloat(fromUint(uint64(v), 4))
		back := floatToSint(f, 4)
		if toInt(back) != v {
			t.Fatalf("round trip %d -> float -> %d", v, toInt(back))
		}
	}
}

package logic

import "testing"

func TestAddFolds(t *testing.T) {
	y := Add(FromInt(3, 8), FromInt(5, 8), false, false, 8)
	if got := y.AsInt(); got != 8 {
		t.Errorf("3 + 5 = %d, want 8", got)
	}
	if y.Len() != 8 {
		t.Errorf("result width = %d, want 8", y.Len())
	}
}

func TestAddPropagatesX(t *testing.T) {
	a := FromInt(3, 4)
	a.Bits[1] = Sx
	y := Add(a, FromInt(1, 4), false, false, 4)
	for i, b := range y.Bits {
		if b != Sx {
			t.Errorf("bit %d = %v, want x", i, b)
		}
	}
}

func TestSubSigned(t *testing.T) {
	y := Sub(FromInt(2, 8), FromInt(5, 8), true, true, 8)
	if got := y.AsBigInt(true).Int64(); got != -3 {
		t.Errorf("2 - 5 = %d, want -3", got)
	}
}

func TestDivByZeroIsX(t *testing.T) {
	y := Div(FromInt(7, 8), FromInt(0, 8), false, false, 8)
	if y.IsFullyDef() {
		t.Errorf("7 / 0 = %s, want all-x", y.String())
	}
}

func TestShifts(t *testing.T) {
	if got := Shl(FromInt(1, 8), FromInt(3, 8), false, false, 8).AsInt(); got != 8 {
		t.Errorf("1 << 3 = %d, want 8", got)
	}
	if got := Shr(FromInt(0x80, 8), FromInt(7, 8), false, false, 8).AsInt(); got != 1 {
		t.Errorf("0x80 >> 7 = %d, want 1", got)
	}
	// arithmetic shift right keeps the sign bit
	y := Sshr(FromInt(-4, 8), FromInt(1, 8), true, false, 8)
	if got := y.AsBigInt(true).Int64(); got != -2 {
		t.Errorf("-4 >>> 1 = %d, want -2", got)
	}
}

func TestPow(t *testing.T) {
	if got := Pow(FromInt(2, 32), FromInt(10, 32), false, false, 32).AsInt(); got != 1024 {
		t.Errorf("2 ** 10 = %d, want 1024", got)
	}
	if got := Pow(FromInt(3, 32), FromInt(-1, 32), true, true, 32).AsInt(); got != 0 {
		t.Errorf("3 ** -1 = %d, want 0", got)
	}
}

func TestCompareSignedness(t *testing.T) {
	// 255 as unsigned 8-bit vs 1: unsigned comparison
	if !Gt(FromInt(255, 8), FromInt(1, 8), false, true, 1).AsBool() {
		t.Error("255 > 1 should hold unsigned")
	}
	// -1 as signed 8-bit vs 1: signed comparison
	if !Lt(FromInt(-1, 8), FromInt(1, 8), true, true, 1).AsBool() {
		t.Error("-1 < 1 should hold signed")
	}
}

func TestEqWithX(t *testing.T) {
	a := FromInt(2, 4)
	a.Bits[0] = Sx
	y := Eq(a, FromInt(2, 4), false, false, 1)
	if y.Bits[0] != Sx {
		t.Errorf("4'b001x == 2 = %v, want x", y.Bits[0])
	}
	// definite mismatch wins over x bits
	y = Eq(a, FromInt(8, 4), false, false, 1)
	if y.Bits[0] != S0 {
		t.Errorf("mismatch with x = %v, want 0", y.Bits[0])
	}
}

func TestEqxComparesExactly(t *testing.T) {
	a := FromBits([]State{Sx, S1})
	b := FromBits([]State{Sx, S1})
	if !Eqx(a, b, false, false, 1).AsBool() {
		t.Error("identical x patterns must be === equal")
	}
	c := FromBits([]State{Sz, S1})
	if Eqx(a, c, false, false, 1).AsBool() {
		t.Error("x and z must not be === equal")
	}
}

func TestReduceBool(t *testing.T) {
	if ReduceBool(FromInt(0, 4), Const{}, false, false, -1).Bits[0] != S0 {
		t.Error("|0 should be 0")
	}
	if ReduceBool(FromInt(4, 4), Const{}, false, false, -1).Bits[0] != S1 {
		t.Error("|4 should be 1")
	}
	a := FromInt(0, 4)
	a.Bits[2] = Sx
	if ReduceBool(a, Const{}, false, false, -1).Bits[0] != Sx {
		t.Error("|x without any set bit should be x")
	}
}

func TestExtendU0(t *testing.T) {
	y := FromInt(-2, 4).ExtendU0(8, true)
	if got := y.AsBigInt(true).Int64(); got != -2 {
		t.Errorf("sign extension of -2 = %d, want -2", got)
	}
	y = FromInt(0xf, 4).ExtendU0(8, false)
	if got := y.AsInt(); got != 0xf {
		t.Errorf("zero extension of 0xf = %d, want 0xf", got)
	}
	y = FromInt(0xff, 8).ExtendU0(4, false)
	if got := y.AsInt(); got != 0xf {
		t.Errorf("truncation of 0xff to 4 bits = %d, want 0xf", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	c := FromString("PASS")
	if c.Len() != 32 {
		t.Fatalf("width of \"PASS\" = %d, want 32", c.Len())
	}
	if got := c.AsString(); got != "PASS" {
		t.Errorf("round trip = %q, want PASS", got)
	}
}

func TestNegNatural(t *testing.T) {
	y := Neg(FromInt(1, 8), Const{}, false, false, 8)
	if got := y.AsInt(); got != 0xff {
		t.Errorf("-1 in 8 bits = %#x, want 0xff", got)
	}
}

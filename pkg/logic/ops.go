package logic

import "math/big"

// Fn is the signature shared by all constant operations. Unary operations
// ignore b. A resultLen of -1 means the natural result width.
type Fn func(a, b Const, signedA, signedB bool, resultLen int) Const

func bool2const(v bool) Const {
	if v {
		return FromInt(1, 1)
	}
	return FromInt(0, 1)
}

func extendArgs(a, b Const, signedA, signedB bool, resultLen int) (Const, Const, int) {
	width := len(a.Bits)
	if len(b.Bits) > width {
		width = len(b.Bits)
	}
	if resultLen > width {
		width = resultLen
	}
	return a.ExtendU0(width, signedA), b.ExtendU0(width, signedB), width
}

func bitAnd(x, y State) State {
	if x == S0 || y == S0 {
		return S0
	}
	if x == S1 && y == S1 {
		return S1
	}
	return Sx
}

func bitOr(x, y State) State {
	if x == S1 || y == S1 {
		return S1
	}
	if x == S0 && y == S0 {
		return S0
	}
	return Sx
}

func bitXor(x, y State) State {
	if (x == S0 || x == S1) && (y == S0 || y == S1) {
		if x != y {
			return S1
		}
		return S0
	}
	return Sx
}

func bitNot(x State) State {
	switch x {
	case S0:
		return S1
	case S1:
		return S0
	}
	return Sx
}

// Not computes the bitwise complement of a.
func Not(a, b Const, signedA, signedB bool, resultLen int) Const {
	a = a.ExtendU0(max(resultLen, len(a.Bits)), signedA)
	out := make([]State, len(a.Bits))
	for i, x := range a.Bits {
		out[i] = bitNot(x)
	}
	return Const{Bits: out}
}

func bitwise(a, b Const, signedA, signedB bool, resultLen int, op func(State, State) State) Const {
	a, b, width := extendArgs(a, b, signedA, signedB, resultLen)
	out := make([]State, width)
	for i := 0; i < width; i++ {
		out[i] = op(a.Bits[i], b.Bits[i])
	}
	return Const{Bits: out}
}

// And computes the bitwise AND of a and b.
func And(a, b Const, signedA, signedB bool, resultLen int) Const {
	return bitwise(a, b, signedA, signedB, resultLen, bitAnd)
}

// Or computes the bitwise OR of a and b.
func Or(a, b Const, signedA, signedB bool, resultLen int) Const {
	return bitwise(a, b, signedA, signedB, resultLen, bitOr)
}

// Xor computes the bitwise XOR of a and b.
func Xor(a, b Const, signedA, signedB bool, resultLen int) Const {
	return bitwise(a, b, signedA, signedB, resultLen, bitXor)
}

// Xnor computes the bitwise XNOR of a and b.
func Xnor(a, b Const, signedA, signedB bool, resultLen int) Const {
	return bitwise(a, b, signedA, signedB, resultLen, func(x, y State) State {
		return bitNot(bitXor(x, y))
	})
}

func reduce(a Const, init State, op func(State, State) State) State {
	acc := init
	for _, x := range a.Bits {
		acc = op(acc, x)
	}
	return acc
}

// ReduceAnd AND-reduces a to a single bit.
func ReduceAnd(a, b Const, signedA, signedB bool, resultLen int) Const {
	return Const{Bits: []State{reduce(a, S1, bitAnd)}}
}

// ReduceOr OR-reduces a to a single bit.
func ReduceOr(a, b Const, signedA, signedB bool, resultLen int) Const {
	return Const{Bits: []State{reduce(a, S0, bitOr)}}
}

// ReduceXor XOR-reduces a to a single bit.
func ReduceXor(a, b Const, signedA, signedB bool, resultLen int) Const {
	return Const{Bits: []State{reduce(a, S0, bitXor)}}
}

// ReduceXnor XNOR-reduces a to a single bit.
func ReduceXnor(a, b Const, signedA, signedB bool, resultLen int) Const {
	return Const{Bits: []State{bitNot(reduce(a, S0, bitXor))}}
}

// ReduceBool reduces a to its truth value: 1 if any bit is 1, 0 if all
// bits are 0, x otherwise.
func ReduceBool(a, b Const, signedA, signedB bool, resultLen int) Const {
	out := S0
	for _, x := range a.Bits {
		if x == S1 {
			return Const{Bits: []State{S1}}
		}
		if x != S0 {
			out = Sx
		}
	}
	return Const{Bits: []State{out}}
}

// LogicNot computes !a.
func LogicNot(a, b Const, signedA, signedB bool, resultLen int) Const {
	v := ReduceBool(a, b, signedA, signedB, -1)
	return Const{Bits: []State{bitNot(v.Bits[0])}}
}

// LogicAnd computes a && b.
func LogicAnd(a, b Const, signedA, signedB bool, resultLen int) Const {
	va := ReduceBool(a, Const{}, signedA, false, -1)
	vb := ReduceBool(b, Const{}, signedB, false, -1)
	return Const{Bits: []State{bitAnd(va.Bits[0], vb.Bits[0])}}
}

// LogicOr computes a || b.
func LogicOr(a, b Const, signedA, signedB bool, resultLen int) Const {
	va := ReduceBool(a, Const{}, signedA, false, -1)
	vb := ReduceBool(b, Const{}, signedB, false, -1)
	return Const{Bits: []State{bitOr(va.Bits[0], vb.Bits[0])}}
}

func shiftWidth(a Const, resultLen int) int {
	if resultLen >= 0 {
		return resultLen
	}
	return len(a.Bits)
}

// Shl computes a << b. The shift amount is always unsigned.
func Shl(a, b Const, signedA, signedB bool, resultLen int) Const {
	width := shiftWidth(a, resultLen)
	if !b.IsFullyDef() {
		return Repeated(Sx, width)
	}
	a = a.ExtendU0(width, signedA)
	n := b.AsInt()
	out := make([]State, width)
	for i := range out {
		if i-n >= 0 && i-n < len(a.Bits) {
			out[i] = a.Bits[i-n]
		}
	}
	return Const{Bits: out}
}

// Shr computes a >> b with zero fill.
func Shr(a, b Const, signedA, signedB bool, resultLen int) Const {
	width := shiftWidth(a, resultLen)
	if !b.IsFullyDef() {
		return Repeated(Sx, width)
	}
	a = a.ExtendU0(width, signedA)
	n := b.AsInt()
	out := make([]State, width)
	for i := range out {
		if i+n < len(a.Bits) {
			out[i] = a.Bits[i+n]
		}
	}
	return Const{Bits: out}
}

// Sshl computes a <<< b, which is identical to a << b.
func Sshl(a, b Const, signedA, signedB bool, resultLen int) Const {
	return Shl(a, b, signedA, signedB, resultLen)
}

// Sshr computes a >>> b, replicating the sign bit when a is signed.
func Sshr(a, b Const, signedA, signedB bool, resultLen int) Const {
	width := shiftWidth(a, resultLen)
	if !b.IsFullyDef() {
		return Repeated(Sx, width)
	}
	a = a.ExtendU0(width, signedA)
	pad := S0
	if signedA && len(a.Bits) > 0 {
		pad = a.Bits[len(a.Bits)-1]
	}
	n := b.AsInt()
	out := make([]State, width)
	for i := range out {
		if i+n < len(a.Bits) {
			out[i] = a.Bits[i+n]
		} else {
			out[i] = pad
		}
	}
	return Const{Bits: out}
}

func arith(a, b Const, signedA, signedB bool, resultLen int,
	op func(x, y *big.Int) *big.Int) Const {

	a, b, width := extendArgs(a, b, signedA, signedB, resultLen)
	if resultLen >= 0 {
		width = resultLen
	}
	if !a.IsFullyDef() || !b.IsFullyDef() {
		return Repeated(Sx, width)
	}
	signed := signedA && signedB
	y := op(a.AsBigInt(signed), b.AsBigInt(signed))
	if y == nil {
		return Repeated(Sx, width)
	}
	return fromBigInt(y, width)
}

// Add computes a + b.
func Add(a, b Const, signedA, signedB bool, resultLen int) Const {
	return arith(a, b, signedA, signedB, resultLen, func(x, y *big.Int) *big.Int {
		return new(big.Int).Add(x, y)
	})
}

// Sub computes a - b.
func Sub(a, b Const, signedA, signedB bool, resultLen int) Const {
	return arith(a, b, signedA, signedB, resultLen, func(x, y *big.Int) *big.Int {
		return new(big.Int).Sub(x, y)
	})
}

// Mul computes a * b.
func Mul(a, b Const, signedA, signedB bool, resultLen int) Const {
	return arith(a, b, signedA, signedB, resultLen, func(x, y *big.Int) *big.Int {
		return new(big.Int).Mul(x, y)
	})
}

// Div computes a / b, truncating toward zero. Division by zero yields all-x.
func Div(a, b Const, signedA, signedB bool, resultLen int) Const {
	return arith(a, b, signedA, signedB, resultLen, func(x, y *big.Int) *big.Int {
		if y.Sign() == 0 {
			return nil
		}
		return new(big.Int).Quo(x, y)
	})
}

// Mod computes a % b with the sign of a. Division by zero yields all-x.
func Mod(a, b Const, signedA, signedB bool, resultLen int) Const {
	return arith(a, b, signedA, signedB, resultLen, func(x, y *big.Int) *big.Int {
		if y.Sign() == 0 {
			return nil
		}
		return new(big.Int).Rem(x, y)
	})
}

// Pow computes a ** b. A negative base is only supported for exponents
// that are non-negative; a negative exponent yields 0 unless a is ±1.
func Pow(a, b Const, signedA, signedB bool, resultLen int) Const {
	width := len(a.Bits)
	if resultLen >= 0 {
		width = resultLen
	}
	if !a.IsFullyDef() || !b.IsFullyDef() {
		return Repeated(Sx, width)
	}
	base := a.AsBigInt(signedA)
	exp := b.AsBigInt(signedB)
	if exp.Sign() < 0 {
		switch {
		case base.CmpAbs(big.NewInt(1)) == 0 && base.Sign() > 0:
			return FromInt(1, width)
		case base.Cmp(big.NewInt(-1)) == 0:
			if exp.Bit(0) == 0 {
				return FromInt(1, width)
			}
			return fromBigInt(big.NewInt(-1), width)
		}
		return FromInt(0, width)
	}
	y := new(big.Int).Exp(base, exp, nil)
	return fromBigInt(y, width)
}

// Pos computes +a (resize only).
func Pos(a, b Const, signedA, signedB bool, resultLen int) Const {
	return a.ExtendU0(max(resultLen, len(a.Bits)), signedA)
}

// Neg computes -a.
func Neg(a, b Const, signedA, signedB bool, resultLen int) Const {
	width := max(resultLen, len(a.Bits))
	if !a.IsFullyDef() {
		return Repeated(Sx, width)
	}
	v := a.ExtendU0(width, signedA).AsBigInt(true)
	return fromBigInt(v.Neg(v), width)
}

func compare(a, b Const, signedA, signedB bool,
	op func(cmp int) bool) Const {

	a, b, _ = extendArgs(a, b, signedA, signedB, -1)
	if !a.IsFullyDef() || !b.IsFullyDef() {
		return Const{Bits: []State{Sx}}
	}
	signed := signedA && signedB
	return bool2const(op(a.AsBigInt(signed).Cmp(b.AsBigInt(signed))))
}

// Lt computes a < b.
func Lt(a, b Const, signedA, signedB bool, resultLen int) Const {
	return compare(a, b, signedA, signedB, func(c int) bool { return c < 0 })
}

// Le computes a <= b.
func Le(a, b Const, signedA, signedB bool, resultLen int) Const {
	return compare(a, b, signedA, signedB, func(c int) bool { return c <= 0 })
}

// Ge computes a >= b.
func Ge(a, b Const, signedA, signedB bool, resultLen int) Const {
	return compare(a, b, signedA, signedB, func(c int) bool { return c >= 0 })
}

// Gt computes a > b.
func Gt(a, b Const, signedA, signedB bool, resultLen int) Const {
	return compare(a, b, signedA, signedB, func(c int) bool { return c > 0 })
}

// Eq computes a == b. Any x or z bit makes the result x.
func Eq(a, b Const, signedA, signedB bool, resultLen int) Const {
	a, b, width := extendArgs(a, b, signedA, signedB, -1)
	result := S1
	for i := 0; i < width; i++ {
		x, y := a.Bits[i], b.Bits[i]
		if x > S1 || y > S1 {
			result = Sx
			continue
		}
		if x != y {
			return Const{Bits: []State{S0}}
		}
	}
	return Const{Bits: []State{result}}
}

// Ne computes a != b. Any x or z bit makes the result x.
func Ne(a, b Const, signedA, signedB bool, resultLen int) Const {
	v := Eq(a, b, signedA, signedB, resultLen)
	return Const{Bits: []State{bitNot(v.Bits[0])}}
}

// Eqx computes a === b, comparing x and z bits exactly.
func Eqx(a, b Const, signedA, signedB bool, resultLen int) Const {
	a, b, width := extendArgs(a, b, signedA, signedB, -1)
	for i := 0; i < width; i++ {
		if a.Bits[i] != b.Bits[i] {
			return Const{Bits: []State{S0}}
		}
	}
	return Const{Bits: []State{S1}}
}

// Nex computes a !== b.
func Nex(a, b Const, signedA, signedB bool, resultLen int) Const {
	v := Eqx(a, b, signedA, signedB, resultLen)
	return Const{Bits: []State{bitNot(v.Bits[0])}}
}

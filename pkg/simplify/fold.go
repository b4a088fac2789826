package simplify

import (
	"math"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/logic"
)

// binaryFoldOps maps context-width binary operators to their constant
// implementations.
var binaryFoldOps = map[ast.NodeType]logic.Fn{
	ast.BitAnd:  logic.And,
	ast.BitOr:   logic.Or,
	ast.BitXor:  logic.Xor,
	ast.BitXnor: logic.Xnor,
	ast.Add:     logic.Add,
	ast.Sub:     logic.Sub,
	ast.Mul:     logic.Mul,
	ast.Div:     logic.Div,
	ast.Mod:     logic.Mod,
}

var reduceFoldOps = map[ast.NodeType]logic.Fn{
	ast.ReduceAnd:  logic.ReduceAnd,
	ast.ReduceOr:   logic.ReduceOr,
	ast.ReduceXor:  logic.ReduceXor,
	ast.ReduceXnor: logic.ReduceXnor,
	ast.ReduceBool: logic.ReduceBool,
}

var shiftFoldOps = map[ast.NodeType]logic.Fn{
	ast.ShiftLeft:   logic.Shl,
	ast.ShiftRight:  logic.Shr,
	ast.ShiftSLeft:  logic.Sshl,
	ast.ShiftSRight: logic.Sshr,
	ast.Pow:         logic.Pow,
}

var compareFoldOps = map[ast.NodeType]logic.Fn{
	ast.Lt:  logic.Lt,
	ast.Le:  logic.Le,
	ast.Eq:  logic.Eq,
	ast.Ne:  logic.Ne,
	ast.Eqx: logic.Eqx,
	ast.Nex: logic.Nex,
	ast.Ge:  logic.Ge,
	ast.Gt:  logic.Gt,
}

// constFold evaluates a node whose operands have already folded to
// constants. It returns the replacement constant node, or nil if the node
// cannot be evaluated yet.
func (s *simplifier) constFold(n *ast.Node, atZero bool, widthHint int, signHint bool) *ast.Node {
	switch n.Type {
	case ast.Identifier:
		return s.foldIdentifier(n, atZero, widthHint, signHint)

	case ast.BitNot:
		if n.Children[0].Type == ast.Constant {
			y := logic.Not(n.Children[0].BitsAsConst(widthHint, signHint), logic.Const{}, signHint, false, widthHint)
			return ast.ConstBits(y.Bits, signHint)
		}

	case ast.ToSigned, ast.ToUnsigned:
		if n.Children[0].Type == ast.Constant {
			y := n.Children[0].BitsAsConst(widthHint, signHint)
			return ast.ConstBits(y.Bits, n.Type == ast.ToSigned)
		}

	case ast.BitAnd, ast.BitOr, ast.BitXor, ast.BitXnor:
		if n.Children[0].Type == ast.Constant && n.Children[1].Type == ast.Constant {
			y := binaryFoldOps[n.Type](n.Children[0].BitsAsConst(widthHint, signHint),
				n.Children[1].BitsAsConst(widthHint, signHint), signHint, signHint, widthHint)
			return ast.ConstBits(y.Bits, signHint)
		}

	case ast.ReduceAnd, ast.ReduceOr, ast.ReduceXor, ast.ReduceXnor, ast.ReduceBool:
		if n.Children[0].Type == ast.Constant {
			y := reduceFoldOps[n.Type](n.Children[0].BitsAsConst(-1, false), logic.Const{}, false, false, -1)
			return ast.ConstBits(y.Bits, false)
		}

	case ast.LogicNot:
		if n.Children[0].Type == ast.Constant {
			y := logic.LogicNot(n.Children[0].BitsAsConst(-1, false), logic.Const{}, n.Children[0].IsSigned, false, -1)
			return ast.ConstBits(y.Bits, false)
		} else if n.Children[0].IsConst() {
			return boolConst(n.Children[0].AsReal(signHint) == 0)
		}

	case ast.LogicAnd, ast.LogicOr:
		if n.Children[0].Type == ast.Constant && n.Children[1].Type == ast.Constant {
			fn := logic.LogicAnd
			if n.Type == ast.LogicOr {
				fn = logic.LogicOr
			}
			y := fn(n.Children[0].BitsAsConst(-1, false), n.Children[1].BitsAsConst(-1, false),
				n.Children[0].IsSigned, n.Children[1].IsSigned, -1)
			return ast.ConstBits(y.Bits, false)
		} else if n.Children[0].IsConst() && n.Children[1].IsConst() {
			if n.Type == ast.LogicAnd {
				return boolConst(n.Children[0].AsReal(signHint) != 0 && n.Children[1].AsReal(signHint) != 0)
			}
			return boolConst(n.Children[0].AsReal(signHint) != 0 || n.Children[1].AsReal(signHint) != 0)
		}

	case ast.ShiftLeft, ast.ShiftRight, ast.ShiftSLeft, ast.ShiftSRight, ast.Pow:
		if n.Children[0].Type == ast.Constant && n.Children[1].Type == ast.Constant {
			rhsSigned := false
			if n.Type == ast.Pow {
				rhsSigned = n.Children[1].IsSigned
			}
			y := shiftFoldOps[n.Type](n.Children[0].BitsAsConst(widthHint, signHint),
				n.Children[1].BitsAsConst(-1, false), signHint, rhsSigned, widthHint)
			return ast.ConstBits(y.Bits, signHint)
		} else if n.Type == ast.Pow && n.Children[0].IsConst() && n.Children[1].IsConst() {
			return ast.Real(math.Pow(n.Children[0].AsReal(signHint), n.Children[1].AsReal(signHint)))
		}

	case ast.Lt, ast.Le, ast.Eq, ast.Ne, ast.Eqx, ast.Nex, ast.Ge, ast.Gt:
		if n.Children[0].Type == ast.Constant && n.Children[1].Type == ast.Constant {
			cmpWidth := len(n.Children[0].Bits)
			if len(n.Children[1].Bits) > cmpWidth {
				cmpWidth = len(n.Children[1].Bits)
			}
			cmpSigned := n.Children[0].IsSigned && n.Children[1].IsSigned
			y := compareFoldOps[n.Type](n.Children[0].BitsAsConst(cmpWidth, cmpSigned),
				n.Children[1].BitsAsConst(cmpWidth, cmpSigned), cmpSigned, cmpSigned, 1)
			return ast.ConstBits(y.Bits, false)
		} else if n.Children[0].IsConst() && n.Children[1].IsConst() {
			return s.foldRealCompare(n, signHint)
		}

	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		if n.Children[0].Type == ast.Constant && n.Children[1].Type == ast.Constant {
			y := binaryFoldOps[n.Type](n.Children[0].BitsAsConst(widthHint, signHint),
				n.Children[1].BitsAsConst(widthHint, signHint), signHint, signHint, widthHint)
			return ast.ConstBits(y.Bits, signHint)
		} else if n.Children[0].IsConst() && n.Children[1].IsConst() {
			a, b := n.Children[0].AsReal(signHint), n.Children[1].AsReal(signHint)
			switch n.Type {
			case ast.Add:
				return ast.Real(a + b)
			case ast.Sub:
				return ast.Real(a - b)
			case ast.Mul:
				return ast.Real(a * b)
			case ast.Div:
				return ast.Real(a / b)
			case ast.Mod:
				return ast.Real(math.Mod(a, b))
			}
		}

	case ast.Pos, ast.Neg:
		if n.Children[0].Type == ast.Constant {
			fn := logic.Pos
			if n.Type == ast.Neg {
				fn = logic.Neg
			}
			y := fn(n.Children[0].BitsAsConst(widthHint, signHint), logic.Const{}, signHint, false, widthHint)
			return ast.ConstBits(y.Bits, signHint)
		} else if n.Children[0].IsConst() {
			if n.Type == ast.Pos {
				return ast.Real(+n.Children[0].AsReal(signHint))
			}
			return ast.Real(-n.Children[0].AsReal(signHint))
		}

	case ast.Ternary:
		return s.foldTernary(n, widthHint, signHint)

	case ast.Concat:
		stringOp := len(n.Children) != 0
		var bits []logic.State
		for _, child := range n.Children {
			if child.Type != ast.Constant {
				return nil
			}
			if !child.IsString {
				stringOp = false
			}
			bits = append(bits, child.Bits...)
		}
		if stringOp {
			return ast.ConstStr(bits)
		}
		return ast.ConstBits(bits, false)

	case ast.Replicate:
		if n.Children[0].Type != ast.Constant || n.Children[1].Type != ast.Constant {
			return nil
		}
		var bits []logic.State
		count := n.Children[0].BitsAsConst(-1, false).AsInt()
		for i := 0; i < count; i++ {
			bits = append(bits, n.Children[1].Bits...)
		}
		if n.Children[1].IsString {
			return ast.ConstStr(bits)
		}
		return ast.ConstBits(bits, false)
	}

	return nil
}

func boolConst(v bool) *ast.Node {
	if v {
		return ast.ConstInt(1, false, 1)
	}
	return ast.ConstInt(0, false, 1)
}

// foldIdentifier substitutes parameter references with their constant
// values. In atZero mode unresolved wires read as zero, which is used to
// compute the static width of dynamic range selects.
func (s *simplifier) foldIdentifier(n *ast.Node, atZero bool, widthHint int, signHint bool) *ast.Node {
	decl, ok := s.scope[n.Str]
	if ok && (decl.Type == ast.Parameter || decl.Type == ast.Localparam) {
		if decl.Children[0].Type == ast.Constant {
			if len(n.Children) != 0 && n.Children[0].Type == ast.Range && n.Children[0].RangeValid {
				var bits []logic.State
				for i := n.Children[0].RangeRight; i <= n.Children[0].RangeLeft; i++ {
					if i >= 0 && i < len(decl.Children[0].Bits) {
						bits = append(bits, decl.Children[0].Bits[i])
					} else {
						bits = append(bits, logic.Sx)
					}
				}
				return ast.ConstBits(bits, false)
			}
			if len(n.Children) == 0 {
				return decl.Children[0].Clone()
			}
		} else if decl.Children[0].IsConst() {
			return decl.Children[0].Clone()
		}
	} else if atZero && ok && (decl.Type == ast.Wire || decl.Type == ast.AutoWire) {
		return ast.ConstInt(0, signHint, widthHint)
	}
	return nil
}

func (s *simplifier) foldRealCompare(n *ast.Node, signHint bool) *ast.Node {
	cmpSigned := (n.Children[0].Type == ast.RealValue || n.Children[0].IsSigned) &&
		(n.Children[1].Type == ast.RealValue || n.Children[1].IsSigned)
	a := n.Children[0].AsReal(cmpSigned)
	b := n.Children[1].AsReal(cmpSigned)
	switch n.Type {
	case ast.Lt:
		return boolConst(a < b)
	case ast.Le:
		return boolConst(a <= b)
	case ast.Eq, ast.Eqx:
		return boolConst(a == b)
	case ast.Ne, ast.Nex:
		return boolConst(a != b)
	case ast.Ge:
		return boolConst(a >= b)
	case ast.Gt:
		return boolConst(a > b)
	}
	return nil
}

// foldTernary resolves a ternary with a constant condition. A condition
// containing only x/z bits merges both branches bitwise, x where they
// disagree.
func (s *simplifier) foldTernary(n *ast.Node, widthHint int, signHint bool) *ast.Node {
	if !n.Children[0].IsConst() {
		return nil
	}

	foundSureTrue := false
	foundMaybeTrue := false
	if n.Children[0].Type == ast.Constant {
		for _, bit := range n.Children[0].Bits {
			if bit == logic.S1 {
				foundSureTrue = true
			}
			if bit == logic.Sx || bit == logic.Sz {
				foundMaybeTrue = true
			}
		}
	} else {
		foundSureTrue = n.Children[0].AsReal(signHint) != 0
	}

	var choice, notChoice *ast.Node
	if foundSureTrue {
		choice, notChoice = n.Children[1], n.Children[2]
	} else if !foundMaybeTrue {
		choice, notChoice = n.Children[2], n.Children[1]
	}

	if choice != nil {
		if choice.Type == ast.Constant {
			_, _, otherReal := s.detectSignWidthReal(notChoice)
			if otherReal {
				_, choiceSign := s.detectSignWidth(choice)
				return ast.Real(choice.AsReal(choiceSign))
			}
			y := choice.BitsAsConst(widthHint, signHint)
			if choice.IsString && len(y.Bits)%8 == 0 && !signHint {
				return ast.ConstStr(y.Bits)
			}
			return ast.ConstBits(y.Bits, signHint)
		}
		if choice.IsConst() {
			return choice.Clone()
		}
		return nil
	}

	if n.Children[1].Type == ast.Constant && n.Children[2].Type == ast.Constant {
		mergeWidth := widthHint
		if mergeWidth < 0 {
			mergeWidth = max(len(n.Children[1].Bits), len(n.Children[2].Bits))
		}
		a := n.Children[1].BitsAsConst(mergeWidth, signHint)
		b := n.Children[2].BitsAsConst(mergeWidth, signHint)
		bits := make([]logic.State, len(a.Bits))
		for i := range a.Bits {
			if a.Bits[i] == b.Bits[i] {
				bits[i] = a.Bits[i]
			} else {
				bits[i] = logic.Sx
			}
		}
		return ast.ConstBits(bits, signHint)
	}
	if n.Children[1].IsConst() && n.Children[2].IsConst() {
		if n.Children[1].AsReal(signHint) == n.Children[2].AsReal(signHint) {
			return ast.Real(n.Children[1].AsReal(signHint))
		}
		// an ambiguous ?: of real type resolves to 0.0
		return ast.Real(0.0)
	}
	return nil
}

package simplify

import (
	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
)

// detectSignWidth computes the self-determined width and signedness of an
// expression. The width accumulates as a maximum over the leaves and the
// signedness as a conjunction: a single unsigned operand makes the whole
// expression unsigned.
func (s *simplifier) detectSignWidth(n *ast.Node) (int, bool) {
	width, sign := -1, true
	s.detectSignWidthWorker(n, &width, &sign, nil)
	return width, sign
}

// detectSignWidthReal is detectSignWidth plus a flag reporting whether a
// real-valued operand was found anywhere in the expression.
func (s *simplifier) detectSignWidthReal(n *ast.Node) (int, bool, bool) {
	width, sign, foundReal := -1, true, false
	s.detectSignWidthWorker(n, &width, &sign, &foundReal)
	return width, sign, foundReal
}

func maxWidth(width *int, w int) {
	if w > *width {
		*width = w
	}
}

func (s *simplifier) detectSignWidthWorker(n *ast.Node, width *int, sign *bool, foundReal *bool) {
	switch n.Type {
	case ast.Constant:
		maxWidth(width, len(n.Bits))
		if !n.IsSigned {
			*sign = false
		}

	case ast.RealValue:
		if foundReal != nil {
			*foundReal = true
		}
		maxWidth(width, 32)

	case ast.Identifier:
		s.detectSignWidthIdentifier(n, width, sign, foundReal)

	case ast.ToBits:
		if n.Children[0].Type == ast.Constant {
			maxWidth(width, n.Children[0].BitsAsConst(-1, false).AsInt())
		}
		if !n.Children[1].IsSigned {
			*sign = false
		}

	case ast.ToSigned:
		subWidth, subSign := -1, true
		s.detectSignWidthWorker(n.Children[0], &subWidth, &subSign, foundReal)
		maxWidth(width, subWidth)

	case ast.ToUnsigned:
		subWidth, subSign := -1, true
		s.detectSignWidthWorker(n.Children[0], &subWidth, &subSign, foundReal)
		maxWidth(width, subWidth)
		*sign = false

	case ast.Concat:
		total := 0
		for _, child := range n.Children {
			subWidth, subSign := -1, true
			s.detectSignWidthWorker(child, &subWidth, &subSign, foundReal)
			if subWidth < 0 {
				subWidth = 1
			}
			total += subWidth
		}
		maxWidth(width, total)
		*sign = false

	case ast.Replicate:
		if n.Children[0].Type != ast.Constant {
			diag.Errorf(n.Filename, n.Linenum, "left operand of replicate expression is not constant")
		}
		subWidth, subSign := -1, true
		s.detectSignWidthWorker(n.Children[1], &subWidth, &subSign, foundReal)
		if subWidth < 0 {
			subWidth = 1
		}
		maxWidth(width, n.Children[0].BitsAsConst(-1, false).AsInt()*subWidth)
		*sign = false

	case ast.Neg, ast.Pos, ast.BitNot:
		s.detectSignWidthWorker(n.Children[0], width, sign, foundReal)

	case ast.BitAnd, ast.BitOr, ast.BitXor, ast.BitXnor,
		ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		s.detectSignWidthWorker(n.Children[0], width, sign, foundReal)
		s.detectSignWidthWorker(n.Children[1], width, sign, foundReal)

	case ast.ShiftLeft, ast.ShiftRight, ast.ShiftSLeft, ast.ShiftSRight, ast.Pow:
		s.detectSignWidthWorker(n.Children[0], width, sign, foundReal)

	case ast.Lt, ast.Le, ast.Eq, ast.Ne, ast.Eqx, ast.Nex, ast.Ge, ast.Gt,
		ast.LogicAnd, ast.LogicOr, ast.LogicNot,
		ast.ReduceAnd, ast.ReduceOr, ast.ReduceXor, ast.ReduceXnor, ast.ReduceBool:
		maxWidth(width, 1)
		*sign = false

	case ast.Ternary:
		s.detectSignWidthWorker(n.Children[1], width, sign, foundReal)
		s.detectSignWidthWorker(n.Children[2], width, sign, foundReal)

	case ast.MemRd:
		if n.ID2Ast != nil && n.ID2Ast.Children[0].RangeValid {
			maxWidth(width, n.ID2Ast.Children[0].RangeLeft-n.ID2Ast.Children[0].RangeRight+1)
			if !n.ID2Ast.IsSigned {
				*sign = false
			}
		}

	case ast.FCall:
		s.detectSignWidthFCall(n, width, sign)

	default:
		diag.Errorf(n.Filename, n.Linenum, "don't know how to detect sign and width for %s node", n.Type)
	}
}

// detectSignWidthIdentifier computes the width of a referenced declaration,
// taking an optional bit or part select into account. A select always
// yields an unsigned value.
func (s *simplifier) detectSignWidthIdentifier(n *ast.Node, width *int, sign *bool, foundReal *bool) {
	decl := n.ID2Ast
	if decl == nil {
		if d, ok := s.scope[n.Str]; ok {
			decl = d
		}
	}
	if decl == nil {
		maxWidth(width, 1)
		*sign = false
		return
	}

	declWidth := 1
	declSign := decl.IsSigned

	switch decl.Type {
	case ast.Parameter, ast.Localparam:
		if len(decl.Children) > 0 {
			switch decl.Children[0].Type {
			case ast.Constant:
				declWidth = len(decl.Children[0].Bits)
				declSign = decl.Children[0].IsSigned
			case ast.RealValue:
				if foundReal != nil {
					*foundReal = true
				}
				declWidth = 32
			}
		}
	case ast.Wire, ast.AutoWire:
		if decl.RangeValid {
			declWidth = decl.RangeLeft - decl.RangeRight + 1
		}
	case ast.Memory:
		if decl.Children[0].RangeValid {
			declWidth = decl.Children[0].RangeLeft - decl.Children[0].RangeRight + 1
		}
	case ast.Genvar:
		declWidth = 32
		declSign = true
	}

	if decl.Type == ast.Memory {
		// the first select picks the word; only a second select narrows it
		if len(n.Children) > 1 && n.Children[1].Type == ast.Range {
			rng := n.Children[1]
			if rng.RangeValid {
				declWidth = rng.RangeLeft - rng.RangeRight + 1
			} else {
				declWidth = 1
			}
			declSign = false
		}
	} else if len(n.Children) > 0 && n.Children[0].Type == ast.Range {
		rng := n.Children[0]
		if rng.RangeValid {
			declWidth = rng.RangeLeft - rng.RangeRight + 1
		} else {
			declWidth = 1
		}
		declSign = false
	}

	maxWidth(width, declWidth)
	if !declSign {
		*sign = false
	}
}

// detectSignWidthFCall resolves a function call to the declared width of
// its result wire.
func (s *simplifier) detectSignWidthFCall(n *ast.Node, width *int, sign *bool) {
	decl, ok := s.scope[n.Str]
	if !ok || decl.Type != ast.Function {
		maxWidth(width, 1)
		*sign = false
		return
	}
	for _, child := range decl.Children {
		if child.Type == ast.Wire && child.Str == decl.Str {
			w := 1
			if child.RangeValid {
				w = child.RangeLeft - child.RangeRight + 1
			} else if len(child.Children) > 0 && child.Children[0].Type == ast.Range &&
				len(child.Children[0].Children) == 2 &&
				child.Children[0].Children[0].Type == ast.Constant &&
				child.Children[0].Children[1].Type == ast.Constant {
				w = child.Children[0].Children[0].AsInt(true) - child.Children[0].Children[1].AsInt(true) + 1
			}
			maxWidth(width, w)
			if !child.IsSigned {
				*sign = false
			}
			return
		}
	}
	maxWidth(width, 1)
	*sign = false
}

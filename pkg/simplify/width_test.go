package simplify

import (
	"testing"

	"github.com/verikit/verikit/pkg/ast"
)

func newTestSimplifier() *simplifier {
	return &simplifier{scope: make(map[string]*ast.Node)}
}

func TestDetectSignWidthConstant(t *testing.T) {
	s := newTestSimplifier()
	width, sign := s.detectSignWidth(ast.ConstInt(5, true, 8))
	if width != 8 || !sign {
		t.Errorf("got (%d, %v), want (8, true)", width, sign)
	}
	width, sign = s.detectSignWidth(ast.ConstInt(5, false, 8))
	if width != 8 || sign {
		t.Errorf("got (%d, %v), want (8, false)", width, sign)
	}
}

func TestDetectSignWidthBinary(t *testing.T) {
	s := newTestSimplifier()
	// width of an addition is the maximum of its operands
	n := ast.NewNode(ast.Add, ast.ConstInt(1, true, 8), ast.ConstInt(1, true, 16))
	width, sign := s.detectSignWidth(n)
	if width != 16 || !sign {
		t.Errorf("got (%d, %v), want (16, true)", width, sign)
	}
	// one unsigned operand makes the result unsigned
	n = ast.NewNode(ast.Add, ast.ConstInt(1, true, 8), ast.ConstInt(1, false, 16))
	if _, sign = s.detectSignWidth(n); sign {
		t.Error("mixed signedness must infer unsigned")
	}
}

func TestDetectSignWidthShift(t *testing.T) {
	s := newTestSimplifier()
	// the shift amount does not contribute to the width
	n := ast.NewNode(ast.ShiftLeft, ast.ConstInt(1, false, 8), ast.ConstInt(1, false, 32))
	width, _ := s.detectSignWidth(n)
	if width != 8 {
		t.Errorf("shift width = %d, want 8", width)
	}
}

func TestDetectSignWidthComparison(t *testing.T) {
	s := newTestSimplifier()
	n := ast.NewNode(ast.Lt, ast.ConstInt(1, true, 8), ast.ConstInt(1, true, 16))
	width, sign := s.detectSignWidth(n)
	if width != 1 || sign {
		t.Errorf("got (%d, %v), want (1, false)", width, sign)
	}
}

func TestDetectSignWidthConcatReplicate(t *testing.T) {
	s := newTestSimplifier()
	n := ast.NewNode(ast.Concat, ast.ConstInt(0, true, 8), ast.ConstInt(0, true, 4))
	width, sign := s.detectSignWidth(n)
	if width != 12 || sign {
		t.Errorf("concat = (%d, %v), want (12, false)", width, sign)
	}
	n = ast.NewNode(ast.Replicate, ast.ConstInt(3, false, 32), ast.ConstInt(0, false, 4))
	width, _ = s.detectSignWidth(n)
	if width != 12 {
		t.Errorf("replicate width = %d, want 12", width)
	}
}

func TestDetectSignWidthIdentifier(t *testing.T) {
	s := newTestSimplifier()
	wire := ast.NewNode(ast.Wire)
	wire.Str = "w"
	wire.RangeValid = true
	wire.RangeLeft, wire.RangeRight = 7, 0
	wire.IsSigned = true
	s.scope["w"] = wire

	id := ast.NewNode(ast.Identifier)
	id.Str = "w"
	width, sign := s.detectSignWidth(id)
	if width != 8 || !sign {
		t.Errorf("got (%d, %v), want (8, true)", width, sign)
	}

	// a bit select is one bit wide and unsigned
	sel := ast.NewNode(ast.Identifier, ast.NewNode(ast.Range, ast.ConstInt(2, false, 32)))
	sel.Str = "w"
	width, sign = s.detectSignWidth(sel)
	if width != 1 || sign {
		t.Errorf("bit select = (%d, %v), want (1, false)", width, sign)
	}
}

func TestDetectSignWidthTernary(t *testing.T) {
	s := newTestSimplifier()
	n := ast.NewNode(ast.Ternary, ast.ConstInt(1, false, 1),
		ast.ConstInt(0, true, 8), ast.ConstInt(0, true, 16))
	width, sign := s.detectSignWidth(n)
	if width != 16 || !sign {
		t.Errorf("got (%d, %v), want (16, true)", width, sign)
	}
}

func TestDetectSignWidthReal(t *testing.T) {
	s := newTestSimplifier()
	n := ast.NewNode(ast.Add, ast.Real(1.5), ast.ConstInt(1, true, 8))
	_, _, foundReal := s.detectSignWidthReal(n)
	if !foundReal {
		t.Error("real operand not detected")
	}
}

func TestWidthInferenceIsIdempotent(t *testing.T) {
	s := newTestSimplifier()
	n := ast.NewNode(ast.Add,
		ast.NewNode(ast.Concat, ast.ConstInt(0, true, 8), ast.ConstInt(0, true, 4)),
		ast.ConstInt(1, true, 16))
	w1, s1 := s.detectSignWidth(n)
	w2, s2 := s.detectSignWidth(n)
	if w1 != w2 || s1 != s2 {
		t.Errorf("inference not stable: (%d,%v) then (%d,%v)", w1, s1, w2, s2)
	}
}

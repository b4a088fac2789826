package simplify

import (
	"fmt"
	"math"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
	"github.com/verikit/verikit/pkg/logic"
)

var realFuncs1 = map[string]func(float64) float64{
	"$ln":    math.Log,
	"$log10": math.Log10,
	"$exp":   math.Exp,
	"$sqrt":  math.Sqrt,
	"$floor": math.Floor,
	"$ceil":  math.Ceil,
	"$sin":   math.Sin,
	"$cos":   math.Cos,
	"$tan":   math.Tan,
	"$asin":  math.Asin,
	"$acos":  math.Acos,
	"$atan":  math.Atan,
	"$sinh":  math.Sinh,
	"$cosh":  math.Cosh,
	"$tanh":  math.Tanh,
	"$asinh": math.Asinh,
	"$acosh": math.Acosh,
	"$atanh": math.Atanh,
}

var realFuncs2 = map[string]func(float64, float64) float64{
	"$pow":   math.Pow,
	"$atan2": math.Atan2,
	"$hypot": math.Hypot,
}

// inlineCall resolves a function or task call: system functions fold at
// the call site, constant-evaluable calls are interpreted, and everything
// else is inlined as fresh wires plus assignments. It returns the
// replacement node (nil if the call was rewritten in place) and whether
// anything changed.
func (s *simplifier) inlineCall(n *ast.Node, stage, widthHint int, signHint, inParam bool) (*ast.Node, bool) {
	if n.Type == ast.FCall {
		if n.Str == "$clog2" {
			return s.foldClog2(n, stage, widthHint, signHint), true
		}
		if fn1, ok := realFuncs1[n.Str]; ok {
			x := s.evalRealArgs(n, 1, stage, widthHint, signHint)
			return ast.Real(fn1(x[0])), true
		}
		if fn2, ok := realFuncs2[n.Str]; ok {
			x := s.evalRealArgs(n, 2, stage, widthHint, signHint)
			return ast.Real(fn2(x[0], x[1])), true
		}
		if decl, ok := s.scope[n.Str]; !ok || decl.Type != ast.Function {
			diag.Errorf(n.Filename, n.Linenum, "can't resolve function name `%s'", n.Str)
		}
	}
	if n.Type == ast.TCall {
		if decl, ok := s.scope[n.Str]; !ok || decl.Type != ast.Task {
			diag.Errorf(n.Filename, n.Linenum, "can't resolve task name `%s'", n.Str)
		}
	}

	recommendConstEval := false
	requireConstEval := false
	if !inParam {
		requireConstEval = s.hasConstOnlyConstructs(s.scope[n.Str], &recommendConstEval)
	}
	if inParam || recommendConstEval || requireConstEval {
		allArgsConst := true
		for _, child := range n.Children {
			for s.simplify(child, true, false, false, 1, -1, false, true) {
			}
			if child.Type != ast.Constant {
				allArgsConst = false
			}
		}
		if allArgsConst {
			funcWorkspace := s.scope[n.Str].Clone()
			return s.evalConstFunction(funcWorkspace, n), true
		}
		if inParam {
			diag.Errorf(n.Filename, n.Linenum, "non-constant function call in constant expression")
		}
		if requireConstEval {
			diag.Errorf(n.Filename, n.Linenum, "function %s can only be called with constant arguments", n.Str)
		}
	}

	decl := s.scope[n.Str]
	prefix := fmt.Sprintf("$func$%s$%s:%d$%d$", n.Str, n.Filename, n.Linenum, nextID())

	if s.block == nil {
		// a function called in a continuous assignment is rewritten into an
		// always block assigning the result to a fresh wire
		diag.Assertf(n.Type == ast.FCall, "task call outside of a block")

		var wire *ast.Node
		for _, child := range decl.Children {
			if child.Type == ast.Wire && child.Str == n.Str {
				wire = child.Clone()
			}
		}
		diag.Assertf(wire != nil, "function `%s' has no result wire", n.Str)

		wire.Str = prefix + n.Str
		wire.PortID = 0
		wire.IsInput = false
		wire.IsOutput = false
		s.mod.Children = append(s.mod.Children, wire)
		for s.simplify(wire, true, false, false, 1, -1, false, false) {
		}

		lvalue := ast.NewNode(ast.Identifier)
		lvalue.Str = wire.Str

		always := ast.NewNode(ast.Always, ast.NewNode(ast.Block,
			ast.NewNode(ast.AssignEq, lvalue, n.Clone())))
		s.mod.Children = append(s.mod.Children, always)

		n.DeleteChildren()
		n.Type = ast.Identifier
		n.Str = prefix + n.Str
		n.ID2Ast = nil
		n.BasicPrep = false
		return nil, true
	}

	argCount := 0
	replaceRules := make(map[string]string)

	for _, child := range decl.Children {
		if child.Type == ast.Wire {
			wire := child.Clone()
			wire.Str = prefix + wire.Str
			wire.PortID = 0
			wire.IsInput = false
			wire.IsOutput = false
			s.mod.Children = append(s.mod.Children, wire)
			for s.simplify(wire, true, false, false, 1, -1, false, false) {
			}

			replaceRules[child.Str] = wire.Str

			if child.IsInput && argCount < len(n.Children) {
				arg := n.Children[argCount].Clone()
				argCount++
				wireID := ast.NewNode(ast.Identifier)
				wireID.Str = wire.Str
				assign := ast.NewNode(ast.AssignEq, wireID, arg)
				assign.Filename = n.Filename
				assign.Linenum = n.Linenum
				s.insertBeforeCurrent(assign)
			}
		} else {
			stmt := child.Clone()
			replaceIDs(stmt, replaceRules)
			s.insertBeforeCurrent(stmt)
		}
	}

	if n.Type == ast.FCall {
		n.DeleteChildren()
		n.Type = ast.Identifier
		n.Str = prefix + n.Str
		n.ID2Ast = nil
		n.BasicPrep = false
	}
	if n.Type == ast.TCall {
		n.DeleteChildren()
		n.Str = ""
	}
	return nil, true
}

// insertBeforeCurrent inserts a statement into the enclosing block right
// before the statement currently being rewritten.
func (s *simplifier) insertBeforeCurrent(stmt *ast.Node) {
	for i, child := range s.block.Children {
		if child == s.blockChild {
			s.block.Children = append(s.block.Children[:i],
				append([]*ast.Node{stmt}, s.block.Children[i:]...)...)
			return
		}
	}
	diag.Assertf(false, "current statement not found in enclosing block")
}

// foldClog2 evaluates $clog2 as the index of the highest set bit.
func (s *simplifier) foldClog2(n *ast.Node, stage, widthHint int, signHint bool) *ast.Node {
	if len(n.Children) != 1 {
		diag.Errorf(n.Filename, n.Linenum, "system function %s got %d arguments, expected 1", n.Str, len(n.Children))
	}
	buf := n.Children[0].Clone()
	for s.simplify(buf, true, false, false, stage, widthHint, signHint, false) {
	}
	if buf.Type != ast.Constant {
		diag.Errorf(n.Filename, n.Linenum, "failed to evaluate system function `%s' with non-constant value", n.Str)
	}
	arg := buf.BitsAsConst(-1, false)
	result := 0
	for i, bit := range arg.Bits {
		if bit == logic.S1 {
			result = i
		}
	}
	return ast.ConstInt(result, false, 32)
}

// evalRealArgs folds the arguments of a real-valued system function.
func (s *simplifier) evalRealArgs(n *ast.Node, want, stage, widthHint int, signHint bool) []float64 {
	if len(n.Children) != want {
		diag.Errorf(n.Filename, n.Linenum, "system function %s got %d arguments, expected %d", n.Str, len(n.Children), want)
	}
	out := make([]float64, want)
	for i := 0; i < want; i++ {
		for s.simplify(n.Children[i], true, false, false, stage, widthHint, signHint, false) {
		}
		if !n.Children[i].IsConst() {
			diag.Errorf(n.Filename, n.Linenum, "failed to evaluate system function `%s' with non-constant argument", n.Str)
		}
		_, childSign := s.detectSignWidth(n.Children[i])
		out[i] = n.Children[i].AsReal(childSign)
	}
	return out
}

// hasConstOnlyConstructs reports whether the function body contains
// constructs that can only be evaluated at elaboration time. A for loop
// makes constant evaluation recommended but not required.
func (s *simplifier) hasConstOnlyConstructs(n *ast.Node, recommendConstEval *bool) bool {
	if n == nil {
		return false
	}
	if n.Type == ast.For {
		*recommendConstEval = true
	}
	if n.Type == ast.While || n.Type == ast.Repeat {
		return true
	}
	if n.Type == ast.FCall {
		if decl, ok := s.scope[n.Str]; ok {
			if s.hasConstOnlyConstructs(decl, recommendConstEval) {
				return true
			}
		}
	}
	for _, child := range n.Children {
		if s.hasConstOnlyConstructs(child, recommendConstEval) {
			return true
		}
	}
	return false
}

package simplify

import (
	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
	"github.com/verikit/verikit/pkg/logic"
)

// varInfo is the value slot of one local variable during constant function
// evaluation.
type varInfo struct {
	val      logic.Const
	offset   int
	isSigned bool
}

// replaceVariables substitutes references to local variables of a constant
// function by their current values, honoring bit and part selects.
func (s *simplifier) replaceVariables(n *ast.Node, variables map[string]*varInfo, fcall *ast.Node) {
	if v, ok := variables[n.Str]; ok && n.Type == ast.Identifier {
		offset := v.offset
		width := len(v.val.Bits)
		if len(n.Children) != 0 {
			if len(n.Children) != 1 || n.Children[0].Type != ast.Range {
				diag.Errorf(n.Filename, n.Linenum, "memory access in constant function is not supported (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			s.replaceVariables(n.Children[0], variables, fcall)
			for s.simplify(n, true, false, false, 1, -1, false, true) {
			}
			if !n.Children[0].RangeValid {
				diag.Errorf(n.Filename, n.Linenum, "non-constant range (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			offset = min(n.Children[0].RangeLeft, n.Children[0].RangeRight)
			width = min(abs(n.Children[0].RangeLeft-n.Children[0].RangeRight)+1, width)
		}
		offset -= v.offset
		bits := make([]logic.State, width)
		for i := 0; i < width; i++ {
			if offset+i >= 0 && offset+i < len(v.val.Bits) {
				bits[i] = v.val.Bits[offset+i]
			} else {
				bits[i] = logic.Sx
			}
		}
		ast.ConstBits(bits, v.isSigned).CloneInto(n)
		return
	}

	for _, child := range n.Children {
		s.replaceVariables(child, variables, fcall)
	}
}

// evalConstFunction interprets a function declaration with all-constant
// arguments and returns the resulting constant. The workspace is a clone
// of the declaration; the statement list is consumed like a work queue so
// the shared function body is never mutated.
func (s *simplifier) evalConstFunction(fn *ast.Node, fcall *ast.Node) *ast.Node {
	backupScope := make(map[string]*ast.Node)
	variables := make(map[string]*varInfo)
	var block *ast.Node

	argidx := 0
	for _, child := range fn.Children {
		if child.Type == ast.Block {
			diag.Assertf(block == nil, "multiple blocks in constant function")
			block = child
			continue
		}

		if child.Type == ast.Wire {
			for s.simplify(child, true, false, false, 1, -1, false, true) {
			}
			if !child.RangeValid {
				diag.Errorf(child.Filename, child.Linenum, "can't determine size of variable %s (called from %s:%d)",
					child.Str, fcall.Filename, fcall.Linenum)
			}
			v := &varInfo{
				val:      logic.Repeated(logic.Sx, abs(child.RangeLeft-child.RangeRight)+1),
				offset:   min(child.RangeLeft, child.RangeRight),
				isSigned: child.IsSigned,
			}
			if child.IsInput && argidx < len(fcall.Children) {
				v.val = fcall.Children[argidx].BitsAsConst(len(v.val.Bits), fcall.Children[argidx].IsSigned)
				argidx++
			}
			variables[child.Str] = v
			if _, saved := backupScope[child.Str]; !saved {
				backupScope[child.Str] = s.scope[child.Str]
			}
			s.scope[child.Str] = child
			continue
		}

		diag.Assertf(block == nil, "statement after block in constant function")
		block = ast.NewNode(ast.Block, child.Clone())
	}

	diag.Assertf(block != nil, "constant function without body")
	diag.Assertf(variables[fn.Str] != nil, "constant function without result variable")

	for len(block.Children) > 0 {
		stmt := block.Children[0]

		switch stmt.Type {
		case ast.AssignEq:
			s.replaceVariables(stmt.Children[1], variables, fcall)
			for s.simplify(stmt, true, false, false, 1, -1, false, true) {
			}
			if stmt.Type != ast.AssignEq {
				continue
			}
			if stmt.Children[1].Type != ast.Constant {
				diag.Errorf(stmt.Filename, stmt.Linenum, "non-constant expression in constant function (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			if stmt.Children[0].Type != ast.Identifier {
				diag.Errorf(stmt.Filename, stmt.Linenum, "unsupported composite left hand side in constant function (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			v, ok := variables[stmt.Children[0].Str]
			if !ok {
				diag.Errorf(stmt.Filename, stmt.Linenum, "assignment to non-local variable in constant function (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			if len(stmt.Children[0].Children) == 0 {
				v.val = stmt.Children[1].BitsAsConst(len(v.val.Bits), stmt.Children[1].IsSigned)
			} else {
				rng := stmt.Children[0].Children[0]
				if !rng.RangeValid {
					diag.Errorf(rng.Filename, rng.Linenum, "non-constant range (called from %s:%d)",
						fcall.Filename, fcall.Linenum)
				}
				offset := min(rng.RangeLeft, rng.RangeRight)
				width := min(abs(rng.RangeLeft-rng.RangeRight)+1, len(v.val.Bits))
				r := stmt.Children[1].BitsAsConst(len(v.val.Bits), stmt.Children[1].IsSigned)
				for i := 0; i < width; i++ {
					if pos := i + offset - v.offset; pos >= 0 && pos < len(v.val.Bits) {
						v.val.Bits[pos] = r.Bits[i]
					}
				}
			}
			block.Children = block.Children[1:]

		case ast.For:
			// rewrite "for (init; cond; step) body" into
			// "init; while (cond) { body; step }" and re-enter
			init := stmt.Children[0]
			stmt.Children[3].Children = append(stmt.Children[3].Children, stmt.Children[2])
			stmt.Children = []*ast.Node{stmt.Children[1], stmt.Children[3]}
			stmt.Type = ast.While
			block.Children = append([]*ast.Node{init}, block.Children...)

		case ast.While:
			cond := stmt.Children[0].Clone()
			s.replaceVariables(cond, variables, fcall)
			for s.simplify(cond, true, false, false, 1, -1, false, true) {
			}
			if cond.Type != ast.Constant {
				diag.Errorf(stmt.Filename, stmt.Linenum, "non-constant expression in constant function (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			if cond.AsBool() {
				block.Children = append([]*ast.Node{stmt.Children[1].Clone()}, block.Children...)
			} else {
				block.Children = block.Children[1:]
			}

		case ast.Repeat:
			num := stmt.Children[0].Clone()
			s.replaceVariables(num, variables, fcall)
			for s.simplify(num, true, false, false, 1, -1, false, true) {
			}
			if num.Type != ast.Constant {
				diag.Errorf(stmt.Filename, stmt.Linenum, "non-constant expression in constant function (called from %s:%d)",
					fcall.Filename, fcall.Linenum)
			}
			block.Children = block.Children[1:]
			for i := 0; i < num.BitsAsConst(-1, false).AsInt(); i++ {
				block.Children = append([]*ast.Node{stmt.Children[1].Clone()}, block.Children...)
			}

		case ast.Case:
			expr := stmt.Children[0].Clone()
			s.replaceVariables(expr, variables, fcall)
			for s.simplify(expr, true, false, false, 1, -1, false, true) {
			}

			var selCase *ast.Node
		arms:
			for i := 1; i < len(stmt.Children); i++ {
				arm := stmt.Children[i]
				diag.Assertf(arm.Type == ast.Cond, "case arm is not a cond node")

				if arm.Children[0].Type == ast.Default {
					selCase = arm.Children[len(arm.Children)-1]
					continue
				}

				for j := 0; j+1 < len(arm.Children); j++ {
					cond := arm.Children[j].Clone()
					s.replaceVariables(cond, variables, fcall)
					eq := ast.NewNode(ast.Eq, expr.Clone(), cond)
					for s.simplify(eq, true, false, false, 1, -1, false, true) {
					}
					if eq.Type != ast.Constant {
						diag.Errorf(stmt.Filename, stmt.Linenum, "non-constant expression in constant function (called from %s:%d)",
							fcall.Filename, fcall.Linenum)
					}
					if eq.AsBool() {
						selCase = arm.Children[len(arm.Children)-1]
						break arms
					}
				}
			}

			block.Children = block.Children[1:]
			if selCase != nil {
				block.Children = append([]*ast.Node{selCase.Clone()}, block.Children...)
			}

		case ast.Block:
			rest := block.Children[1:]
			block.Children = append(append([]*ast.Node{}, stmt.Children...), rest...)
			stmt.Children = nil

		default:
			diag.Errorf(stmt.Filename, stmt.Linenum, "unsupported language construct in constant function (called from %s:%d)",
				fcall.Filename, fcall.Linenum)
		}
	}

	for name, node := range backupScope {
		if node == nil {
			delete(s.scope, name)
		} else {
			s.scope[name] = node
		}
	}

	result := variables[fn.Str]
	return ast.ConstBits(result.val.Bits, result.isSigned)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

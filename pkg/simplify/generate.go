package simplify

import (
	"fmt"

	"github.com/nikandfor/tlog"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
	"github.com/verikit/verikit/pkg/logic"
)

// unrollFor expands a generate-for or a behavioral for loop. The init and
// step expressions must be blocking assignments to the loop variable (a
// genvar for generate-for, a register otherwise); the condition and step
// are re-evaluated per iteration with the loop variable bound in scope.
func (s *simplifier) unrollFor(n *ast.Node, stage, widthHint int, signHint bool) {
	initAst := n.Children[0]
	whileAst := n.Children[1]
	nextAst := n.Children[2]
	bodyAst := n.Children[3]

	for bodyAst.Type == ast.GenBlock && bodyAst.Str == "" &&
		len(bodyAst.Children) == 1 && bodyAst.Children[0].Type == ast.GenBlock {
		bodyAst = bodyAst.Children[0]
	}

	if initAst.Type != ast.AssignEq {
		diag.Errorf(n.Filename, n.Linenum, "unsupported 1st expression of generate for-loop")
	}
	if nextAst.Type != ast.AssignEq {
		diag.Errorf(n.Filename, n.Linenum, "unsupported 3rd expression of generate for-loop")
	}

	if n.Type == ast.GenFor {
		if initAst.Children[0].ID2Ast == nil || initAst.Children[0].ID2Ast.Type != ast.Genvar {
			diag.Errorf(n.Filename, n.Linenum, "left hand side of 1st expression of generate for-loop is not a gen var")
		}
		if nextAst.Children[0].ID2Ast == nil || nextAst.Children[0].ID2Ast.Type != ast.Genvar {
			diag.Errorf(n.Filename, n.Linenum, "left hand side of 3rd expression of generate for-loop is not a gen var")
		}
	} else {
		if initAst.Children[0].ID2Ast == nil || initAst.Children[0].ID2Ast.Type != ast.Wire {
			diag.Errorf(n.Filename, n.Linenum, "left hand side of 1st expression of for-loop is not a register")
		}
		if nextAst.Children[0].ID2Ast == nil || nextAst.Children[0].ID2Ast.Type != ast.Wire {
			diag.Errorf(n.Filename, n.Linenum, "left hand side of 3rd expression of for-loop is not a register")
		}
	}
	if initAst.Children[0].ID2Ast != nextAst.Children[0].ID2Ast {
		diag.Errorf(n.Filename, n.Linenum, "incompatible left-hand sides in 1st and 3rd expression of for-loop")
	}

	// evaluate the 1st expression
	varbuf := initAst.Children[1].Clone()
	for s.simplify(varbuf, true, false, false, stage, widthHint, signHint, false) {
	}
	if varbuf.Type != ast.Constant {
		diag.Errorf(n.Filename, n.Linenum, "right hand side of 1st expression of for-loop is not constant")
	}

	loopVar := ast.NewNode(ast.Localparam, varbuf)
	loopVar.Str = initAst.Children[0].Str

	backupVar, hadBackup := s.scope[loopVar.Str]
	s.scope[loopVar.Str] = loopVar

	currentBlockIdx := 0
	if n.Type == ast.For {
		for currentBlockIdx < len(s.block.Children) &&
			s.block.Children[currentBlockIdx] != s.blockChild {
			currentBlockIdx++
		}
	}

	for {
		// evaluate the 2nd expression
		buf := whileAst.Clone()
		for s.simplify(buf, true, false, false, stage, widthHint, signHint, false) {
		}
		if buf.Type != ast.Constant {
			diag.Errorf(n.Filename, n.Linenum, "2nd expression of for-loop is not constant")
		}
		if !buf.AsBool() {
			break
		}

		// expand the body
		index := loopVar.Children[0].Integer
		if bodyAst.Type == ast.GenBlock {
			buf = bodyAst.Clone()
		} else {
			buf = ast.NewNode(ast.GenBlock, bodyAst.Clone())
		}
		if buf.Str == "" {
			buf.Str = fmt.Sprintf("$genblock$%s:%d$%d", n.Filename, n.Linenum, nextID())
		}
		nameMap := make(map[string]string)
		s.expandGenblock(buf, loopVar.Str, fmt.Sprintf("%s[%d].", buf.Str, index), nameMap)

		if n.Type == ast.GenFor {
			for _, child := range buf.Children {
				s.simplify(child, false, false, false, stage, -1, false, false)
				s.mod.Children = append(s.mod.Children, child)
			}
		} else {
			for _, child := range buf.Children {
				s.block.Children = append(s.block.Children[:currentBlockIdx],
					append([]*ast.Node{child}, s.block.Children[currentBlockIdx:]...)...)
				currentBlockIdx++
			}
		}
		buf.Children = nil

		// evaluate the 3rd expression
		buf = nextAst.Children[1].Clone()
		for s.simplify(buf, true, false, false, stage, widthHint, signHint, false) {
		}
		if buf.Type != ast.Constant {
			diag.Errorf(n.Filename, n.Linenum, "right hand side of 3rd expression of for-loop is not constant")
		}
		loopVar.Children[0] = buf
	}

	if hadBackup {
		s.scope[loopVar.Str] = backupVar
	} else {
		delete(s.scope, loopVar.Str)
	}
	n.DeleteChildren()
}

// liftNamedBlock prefixes the declarations of a named block, moves its
// wires up to the module, and drops the block name.
func (s *simplifier) liftNamedBlock(n *ast.Node, stage int) {
	nameMap := make(map[string]string)
	s.expandGenblock(n, "", n.Str+".", nameMap)

	var newChildren []*ast.Node
	for _, child := range n.Children {
		if child.Type == ast.Wire {
			s.simplify(child, false, false, false, stage, -1, false, false)
			s.mod.Children = append(s.mod.Children, child)
		} else {
			newChildren = append(newChildren, child)
		}
	}
	n.Children = newChildren
	n.Str = ""
}

// expandPlainGenBlock splices an unconditional generate block into the
// module, prefixing names if the block is named.
func (s *simplifier) expandPlainGenBlock(n *ast.Node, stage int) {
	if n.Str != "" {
		nameMap := make(map[string]string)
		s.expandGenblock(n, "", n.Str+".", nameMap)
	}
	for _, child := range n.Children {
		s.simplify(child, false, false, false, stage, -1, false, false)
		s.mod.Children = append(s.mod.Children, child)
	}
	n.Children = nil
}

// expandGenIf selects the branch of a generate-if whose condition must
// fold to a constant, expands it, and discards the other branch.
func (s *simplifier) expandGenIf(n *ast.Node, stage, widthHint int, signHint bool) {
	buf := n.Children[0].Clone()
	for s.simplify(buf, true, false, false, stage, widthHint, signHint, false) {
	}
	if buf.Type != ast.Constant {
		diag.Errorf(n.Filename, n.Linenum, "condition for generate if is not constant")
	}
	if buf.AsBool() {
		buf = n.Children[1].Clone()
	} else if len(n.Children) > 2 {
		buf = n.Children[2].Clone()
	} else {
		buf = nil
	}

	if buf != nil {
		if buf.Type != ast.GenBlock {
			buf = ast.NewNode(ast.GenBlock, buf)
		}
		if buf.Str != "" {
			nameMap := make(map[string]string)
			s.expandGenblock(buf, "", buf.Str+".", nameMap)
		}
		for _, child := range buf.Children {
			s.simplify(child, false, false, false, stage, -1, false, false)
			s.mod.Children = append(s.mod.Children, child)
		}
	}
	n.DeleteChildren()
}

// expandGenCase selects the arm of a generate-case by constant comparison
// of the discriminant, first match wins, default only when nothing else
// matched.
func (s *simplifier) expandGenCase(n *ast.Node, stage, widthHint int, signHint bool) {
	buf := n.Children[0].Clone()
	for s.simplify(buf, true, false, false, stage, widthHint, signHint, false) {
	}
	if buf.Type != ast.Constant {
		diag.Errorf(n.Filename, n.Linenum, "condition for generate case is not constant")
	}
	refSigned := buf.IsSigned
	refValue := buf.BitsAsConst(-1, false)

	var selectedCase *ast.Node
scan:
	for i := 1; i < len(n.Children); i++ {
		cond := n.Children[i]
		diag.Assertf(cond.Type == ast.Cond, "generate case arm is not a cond node")

		var thisGenblock *ast.Node
		for _, child := range cond.Children {
			if child.Type == ast.GenBlock {
				diag.Assertf(thisGenblock == nil, "multiple genblocks in generate case arm")
				thisGenblock = child
			}
		}

		for _, child := range cond.Children {
			if child.Type == ast.Default {
				if selectedCase == nil {
					selectedCase = thisGenblock
				}
				continue
			}
			if child.Type == ast.GenBlock {
				continue
			}
			buf = child.Clone()
			for s.simplify(buf, true, false, false, stage, widthHint, signHint, false) {
			}
			if buf.Type != ast.Constant {
				diag.Errorf(n.Filename, n.Linenum, "expression in generate case is not constant")
			}
			signed := refSigned && buf.IsSigned
			eq := logic.Eq(refValue, buf.BitsAsConst(-1, false), signed, signed, 1)
			if eq.AsBool() {
				selectedCase = thisGenblock
				break scan
			}
		}
	}

	if selectedCase != nil {
		diag.Assertf(selectedCase.Type == ast.GenBlock, "selected generate case arm is not a genblock")
		buf = selectedCase.Clone()
		if buf.Str != "" {
			nameMap := make(map[string]string)
			s.expandGenblock(buf, "", buf.Str+".", nameMap)
		}
		for _, child := range buf.Children {
			s.simplify(child, false, false, false, stage, -1, false, false)
			s.mod.Children = append(s.mod.Children, child)
		}
	}
	n.DeleteChildren()
}

// unrollCellArray clones the cell template for every index of the array
// range and tags the cell type with the array coordinates.
func (s *simplifier) unrollCellArray(n *ast.Node) *ast.Node {
	if !n.Children[0].RangeValid {
		diag.Errorf(n.Filename, n.Linenum, "non-constant array range on cell array")
	}
	newNode := ast.NewNode(ast.GenBlock)
	left, right := n.Children[0].RangeLeft, n.Children[0].RangeRight
	num := max(left, right) - min(left, right) + 1

	for i := 0; i < num; i++ {
		idx := right + i
		if left <= right {
			idx = right - i
		}
		newCell := n.Children[1].Clone()
		newNode.Children = append(newNode.Children, newCell)
		newCell.Str += fmt.Sprintf("[%d]", idx)
		if newCell.Type == ast.Primitive {
			diag.Errorf(n.Filename, n.Linenum, "cell arrays of primitives are currently not supported")
		}
		diag.Assertf(newCell.Children[0].Type == ast.CellType, "cell array template without cell type")
		newCell.Children[0].Str = fmt.Sprintf("$array:%d:%d:%s", i, num, newCell.Children[0].Str)
	}
	return newNode
}

// expandPrimitive rewrites a gate primitive into an assignment of the
// equivalent operator tree.
func (s *simplifier) expandPrimitive(n *ast.Node) {
	if len(n.Children) < 2 {
		diag.Errorf(n.Filename, n.Linenum, "insufficient number of arguments for primitive `%s'", n.Str)
	}

	var args []*ast.Node
	for _, child := range n.Children {
		diag.Assertf(child.Type == ast.Argument, "primitive child is not an argument")
		diag.Assertf(len(child.Children) == 1, "primitive argument has %d children", len(child.Children))
		args = append(args, child.Children[0])
		child.Children = nil
	}
	n.Children = nil

	if n.Str == "bufif0" || n.Str == "bufif1" || n.Str == "notif0" || n.Str == "notif1" {
		if len(args) != 3 {
			diag.Errorf(n.Filename, n.Linenum, "invalid number of arguments for primitive `%s'", n.Str)
		}
		muxInput := args[1]
		if n.Str == "notif0" || n.Str == "notif1" {
			muxInput = ast.NewNode(ast.BitNot, muxInput)
		}
		zConst := ast.ConstBits([]logic.State{logic.Sz}, false)
		node := ast.NewNode(ast.Ternary, args[2])
		if n.Str == "bufif0" {
			node.Children = append(node.Children, zConst, muxInput)
		} else {
			node.Children = append(node.Children, muxInput, zConst)
		}
		n.Str = ""
		n.Type = ast.Assign
		n.Children = append(n.Children, args[0], node)
		return
	}

	opType := ast.None
	invertResults := false
	switch n.Str {
	case "and":
		opType = ast.BitAnd
	case "nand":
		opType, invertResults = ast.BitAnd, true
	case "or":
		opType = ast.BitOr
	case "nor":
		opType, invertResults = ast.BitOr, true
	case "xor":
		opType = ast.BitXor
	case "xnor":
		opType, invertResults = ast.BitXor, true
	case "buf":
		opType = ast.Pos
	case "not":
		opType, invertResults = ast.Pos, true
	}
	diag.Assertf(opType != ast.None, "unknown primitive `%s'", n.Str)

	node := args[1]
	if opType != ast.Pos {
		for i := 2; i < len(args); i++ {
			node = ast.NewNode(opType, node, args[i])
		}
	}
	if invertResults {
		node = ast.NewNode(ast.BitNot, node)
	}

	n.Str = ""
	n.Type = ast.Assign
	n.Children = append(n.Children, args[0], node)
}

// expandGenblock renames every named declaration inside a generate block
// by the given prefix and rewrites all references to the renamed objects.
// References to the loop index variable are substituted by its current
// constant value.
func (s *simplifier) expandGenblock(n *ast.Node, indexVar, prefix string, nameMap map[string]string) {
	if indexVar != "" && n.Type == ast.Identifier && n.Str == indexVar {
		if decl, ok := s.scope[indexVar]; ok {
			decl.Children[0].CloneInto(n)
		}
		return
	}

	if (n.Type == ast.Identifier || n.Type == ast.FCall || n.Type == ast.TCall) && nameMap[n.Str] != "" {
		n.Str = nameMap[n.Str]
	}

	var backupNameMap map[string]string

	for _, child := range n.Children {
		switch child.Type {
		case ast.Wire, ast.Memory, ast.Parameter, ast.Localparam,
			ast.Function, ast.Task, ast.Cell:
			if backupNameMap == nil {
				backupNameMap = make(map[string]string, len(nameMap))
				for k, v := range nameMap {
					backupNameMap[k] = v
				}
			}
			newName := prefixedName(prefix, child.Str)
			nameMap[child.Str] = newName
			if child.Type == ast.Function {
				replaceResultWireName(child, child.Str, newName)
			} else {
				child.Str = newName
			}
			s.scope[newName] = child
			tlog.V("generate").Printw("renamed declaration", "new", newName)
		}
	}

	for _, child := range n.Children {
		if child.Type != ast.Function && child.Type != ast.Task && child.Type != ast.Prefix {
			s.expandGenblock(child, indexVar, prefix, nameMap)
		}
	}

	if backupNameMap != nil {
		for k := range nameMap {
			delete(nameMap, k)
		}
		for k, v := range backupNameMap {
			nameMap[k] = v
		}
	}
}

// prefixedName splices the block prefix into a declaration name, after any
// existing hierarchical prefix.
func prefixedName(prefix, name string) string {
	pos := 0
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			pos = i + 1
			break
		}
	}
	return name[:pos] + prefix + name[pos:]
}

// replaceResultWireName renames the function itself and its result wire,
// which share the function's name.
func replaceResultWireName(n *ast.Node, from, to string) {
	for _, child := range n.Children {
		replaceResultWireName(child, from, to)
	}
	if n.Str == from {
		n.Str = to
	}
}

// replaceIDs renames identifiers according to the rules map. It is used
// when function and task bodies are instantiated.
func replaceIDs(n *ast.Node, rules map[string]string) {
	if n.Type == ast.Identifier && rules[n.Str] != "" {
		n.Str = rules[n.Str]
	}
	for _, child := range n.Children {
		replaceIDs(child, rules)
	}
}

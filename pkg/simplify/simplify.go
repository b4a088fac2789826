// Package simplify rewrites a parsed module AST into its fully elaborated
// form: parameters substituted, generate constructs expanded, functions and
// tasks inlined, memories lowered, names resolved. When it is done the tree
// is ready for netlist construction.
package simplify

import (
	"fmt"

	"github.com/nikandfor/tlog"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
	"github.com/verikit/verikit/pkg/logic"
)

// Options configure one elaboration run.
type Options struct {
	// NoMem2Reg disables the memory-to-register rewrite entirely.
	NoMem2Reg bool
	// Mem2RegAll forces every memory to be replaced by registers.
	Mem2RegAll bool
}

// autoidx feeds the unique names synthesized during rewriting. It increases
// monotonically across all modules of a run.
var autoidx = 0

func nextID() int {
	autoidx++
	return autoidx
}

type simplifier struct {
	opts Options

	mod        *ast.Node            // module being elaborated
	scope      map[string]*ast.Node // ambient name resolution scope
	block      *ast.Node            // innermost block being rewritten
	blockChild *ast.Node            // statement of block currently visited
	topBlock   *ast.Node            // top block of the enclosing process
}

// Module elaborates a module in place. It drives the rewrite to a fixed
// point at each of the three stages and returns the first fatal diagnostic
// as an error.
func Module(mod *ast.Node, opts Options) (err error) {
	defer diag.Recover(&err)
	diag.Assertf(mod.Type == ast.Module, "simplify entry point expects a module, got %s", mod.Type)
	s := &simplifier{opts: opts, scope: make(map[string]*ast.Node)}
	s.simplify(mod, false, false, false, 0, -1, false, false)
	return nil
}

// simplify performs one rewrite step on n and reports whether anything
// changed. Callers loop until it returns false. The context is described in
// the package documentation: constFold activates constant folding, atZero
// substitutes unresolved wires with zero, inLvalue marks assignment
// targets, widthHint/signHint carry the contextual width and signedness
// (width -1 means self-determined), and inParam marks constant-expression
// context.
func (s *simplifier) simplify(n *ast.Node, constFold, atZero, inLvalue bool, stage, widthHint int, signHint, inParam bool) bool {
	var newNode *ast.Node
	didSomething := false

	if stage == 0 {
		diag.Assertf(n.Type == ast.Module, "stage 0 is only valid on modules")
		s.mod = n

		for s.simplify(n, constFold, atZero, inLvalue, 1, widthHint, signHint, inParam) {
		}
		s.mem2regAsNeeded(n)
		for s.simplify(n, constFold, atZero, inLvalue, 2, widthHint, signHint, inParam) {
		}
		return false
	}

	// we do not look inside a task or function
	// (as soon as a task or function is instantiated we process the generated AST as usual)
	if n.Type == ast.Function || n.Type == ast.Task {
		return false
	}

	// deactivate all calls to non-synthesis system tasks
	if (n.Type == ast.FCall || n.Type == ast.TCall) &&
		(n.Str == "$display" || n.Str == "$stop" || n.Str == "$finish") {
		n.DeleteChildren()
		n.Str = ""
	}

	// activate const folding if this is anything that must be evaluated
	// statically (ranges, parameters, attributes, etc.)
	switch n.Type {
	case ast.Wire, ast.Parameter, ast.Localparam, ast.Defparam, ast.Paraset, ast.Range, ast.Prefix:
		constFold = true
	}
	if n.Type == ast.Identifier {
		if decl, ok := s.scope[n.Str]; ok && (decl.Type == ast.Parameter || decl.Type == ast.Localparam) {
			constFold = true
		}
	}

	// in certain cases a function must be evaluated constant. this is what inParam controls.
	switch n.Type {
	case ast.Parameter, ast.Localparam, ast.Defparam, ast.Paraset, ast.Prefix:
		inParam = true
	}

	backupScope := make(map[string]*ast.Node)

	if n.Type == ast.Module {
		s.mod = n
		didSomething = s.enterModule(n, backupScope, stage) || didSomething
	}

	backupBlock := s.block
	backupBlockChild := s.blockChild
	backupTopBlock := s.topBlock

	backupWidthHint := widthHint
	backupSignHint := signHint

	detectWidthSimple := false
	child0SelfDetermined := false
	child1SelfDetermined := false
	child2SelfDetermined := false
	childrenSelfDetermined := false
	resetWidthAfterChildren := false

	switch n.Type {
	case ast.AssignEq, ast.AssignLe, ast.Assign:
		for !n.Children[0].BasicPrep && s.simplify(n.Children[0], false, false, true, stage, -1, false, inParam) {
			didSomething = true
		}
		for !n.Children[1].BasicPrep && s.simplify(n.Children[1], false, false, false, stage, -1, false, inParam) {
			didSomething = true
		}
		backupWidthHint, backupSignHint = s.detectSignWidth(n.Children[0])
		widthHint, signHint = s.detectSignWidth(n.Children[1])
		if backupWidthHint > widthHint {
			widthHint = backupWidthHint
		}
		child0SelfDetermined = true

	case ast.Parameter, ast.Localparam:
		for !n.Children[0].BasicPrep && s.simplify(n.Children[0], false, false, false, stage, -1, false, true) {
			didSomething = true
		}
		widthHint, signHint = s.detectSignWidth(n.Children[0])
		if len(n.Children) > 1 && n.Children[1].Type == ast.Range {
			for !n.Children[1].BasicPrep && s.simplify(n.Children[1], false, false, false, stage, -1, false, true) {
				didSomething = true
			}
			if !n.Children[1].RangeValid {
				diag.Errorf(n.Filename, n.Linenum, "non-constant width range on parameter decl")
			}
			if w := n.Children[1].RangeLeft - n.Children[1].RangeRight + 1; w > widthHint {
				widthHint = w
			}
		}

	case ast.ToBits, ast.ToSigned, ast.ToUnsigned, ast.Concat, ast.Replicate,
		ast.ReduceAnd, ast.ReduceOr, ast.ReduceXor, ast.ReduceXnor, ast.ReduceBool:
		detectWidthSimple = true
		childrenSelfDetermined = true

	case ast.Neg, ast.BitNot, ast.Pos, ast.BitAnd, ast.BitOr, ast.BitXor, ast.BitXnor,
		ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		detectWidthSimple = true

	case ast.ShiftLeft, ast.ShiftRight, ast.ShiftSLeft, ast.ShiftSRight, ast.Pow:
		detectWidthSimple = true
		child1SelfDetermined = true

	case ast.Lt, ast.Le, ast.Eq, ast.Ne, ast.Eqx, ast.Nex, ast.Ge, ast.Gt:
		widthHint = -1
		signHint = true
		for _, child := range n.Children {
			for !child.BasicPrep && s.simplify(child, false, false, inLvalue, stage, -1, false, inParam) {
				didSomething = true
			}
			s.detectSignWidthWorker(child, &widthHint, &signHint, nil)
		}
		resetWidthAfterChildren = true

	case ast.LogicAnd, ast.LogicOr, ast.LogicNot:
		detectWidthSimple = true
		childrenSelfDetermined = true

	case ast.Ternary:
		detectWidthSimple = true
		child0SelfDetermined = true

	case ast.MemRd:
		detectWidthSimple = true
		childrenSelfDetermined = true

	default:
		widthHint = -1
		signHint = false
	}

	if detectWidthSimple && widthHint < 0 {
		if n.Type == ast.Replicate {
			for s.simplify(n.Children[0], true, false, inLvalue, stage, -1, false, true) {
				didSomething = true
			}
		}
		for _, child := range n.Children {
			for !child.BasicPrep && s.simplify(child, false, false, inLvalue, stage, -1, false, inParam) {
				didSomething = true
			}
		}
		widthHint, signHint = s.detectSignWidth(n)
	}

	if n.Type == ast.Ternary {
		_, _, foundRealLeft := s.detectSignWidthReal(n.Children[1])
		_, _, foundRealRight := s.detectSignWidthReal(n.Children[2])
		if foundRealLeft || foundRealRight {
			child1SelfDetermined = true
			child2SelfDetermined = true
		}
	}

	// simplify all children first
	// (iterate by index as e.g. auto wires can add new children in the process)
	for i := 0; i < len(n.Children); i++ {
		if (n.Type == ast.GenFor || n.Type == ast.For) && i >= 3 {
			break
		}
		if (n.Type == ast.GenIf || n.Type == ast.GenCase) && i >= 1 {
			break
		}
		if n.Type == ast.GenBlock {
			break
		}
		if n.Type == ast.Block && n.Str != "" {
			break
		}
		if n.Type == ast.Prefix && i >= 1 {
			break
		}
		didSomethingHere := true
		for didSomethingHere && i < len(n.Children) {
			constFoldHere, inLvalueHere := constFold, inLvalue
			widthHintHere, signHintHere := widthHint, signHint
			inParamHere := inParam
			if i == 0 && (n.Type == ast.Replicate || n.Type == ast.Wire) {
				constFoldHere, inParamHere = true, true
			}
			if n.Type == ast.Parameter || n.Type == ast.Localparam {
				constFoldHere = true
			}
			if i == 0 && (n.Type == ast.Assign || n.Type == ast.AssignEq || n.Type == ast.AssignLe) {
				inLvalueHere = true
			}
			if n.Type == ast.Block {
				s.block = n
				s.blockChild = n.Children[i]
			}
			if (n.Type == ast.Always || n.Type == ast.Initial) && n.Children[i].Type == ast.Block {
				s.topBlock = n.Children[i]
			}
			if i == 0 && child0SelfDetermined {
				widthHintHere, signHintHere = -1, false
			}
			if i == 1 && child1SelfDetermined {
				widthHintHere, signHintHere = -1, false
			}
			if i == 2 && child2SelfDetermined {
				widthHintHere, signHintHere = -1, false
			}
			if childrenSelfDetermined {
				widthHintHere, signHintHere = -1, false
			}
			didSomethingHere = s.simplify(n.Children[i], constFoldHere, atZero, inLvalueHere, stage, widthHintHere, signHintHere, inParamHere)
			if didSomethingHere {
				didSomething = true
			}
		}
		if i >= 0 && i < len(n.Children) && spentNode(n.Children[i]) {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			i--
			didSomething = true
			continue
		}
		if stage == 2 && i < len(n.Children) && n.Children[i].Type == ast.Initial && s.mod != n {
			s.mod.Children = append(s.mod.Children, n.Children[i])
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			i--
			didSomething = true
		}
	}
	for _, attr := range n.Attributes {
		for s.simplify(attr, true, false, false, stage, -1, false, true) {
			didSomething = true
		}
	}

	if resetWidthAfterChildren {
		widthHint = backupWidthHint
		signHint = backupSignHint
		if widthHint < 0 {
			widthHint, signHint = s.detectSignWidth(n)
		}
	}

	s.block = backupBlock
	s.blockChild = backupBlockChild
	s.topBlock = backupTopBlock

	for name, node := range backupScope {
		if node == nil {
			delete(s.scope, name)
		} else {
			s.scope[name] = node
		}
	}

	if n.Type == ast.Module {
		s.scope = make(map[string]*ast.Node)
	}

	// convert defparam nodes to cell parameters
	if n.Type == ast.Defparam && n.Str != "" {
		s.rewriteDefparam(n)
	}

	// resolve constant prefixes
	if n.Type == ast.Prefix {
		newNode = s.resolvePrefix(n)
	}

	// evaluate to_bits nodes
	if newNode == nil && n.Type == ast.ToBits {
		if n.Children[0].Type != ast.Constant {
			diag.Errorf(n.Filename, n.Linenum, "left operand of to_bits expression is not constant")
		}
		if n.Children[1].Type != ast.Constant {
			diag.Errorf(n.Filename, n.Linenum, "right operand of to_bits expression is not constant")
		}
		width := n.Children[0].BitsAsConst(-1, false).AsInt()
		value := n.Children[1].BitsAsConst(width, n.Children[1].IsSigned)
		newNode = ast.ConstBits(value.Bits, n.Children[1].IsSigned)
	}

	// annotate constant ranges
	if n.Type == ast.Range {
		didSomething = s.annotateRange(n) || didSomething
	}

	// annotate wires with their ranges
	if n.Type == ast.Wire {
		if len(n.Children) > 0 {
			if n.Children[0].RangeValid {
				if !n.RangeValid {
					didSomething = true
				}
				n.RangeValid = true
				n.RangeLeft = n.Children[0].RangeLeft
				n.RangeRight = n.Children[0].RangeRight
			}
		} else {
			if !n.RangeValid {
				didSomething = true
			}
			n.RangeValid = true
			n.RangeLeft = 0
			n.RangeRight = 0
		}
	}

	// trim/extend parameters
	if n.Type == ast.Parameter || n.Type == ast.Localparam {
		didSomething = s.trimParameter(n, signHint) || didSomething
	}

	// annotate identifiers using scope resolution and create auto-wires as needed
	if n.Type == ast.Identifier {
		didSomething = s.resolveIdentifier(n) || didSomething
	}

	// split memory access with bit select into individual statements
	if newNode == nil && n.Type == ast.Identifier && len(n.Children) == 2 &&
		n.Children[0].Type == ast.Range && n.Children[1].Type == ast.Range {
		newNode = s.splitMemBitSelect(n, inLvalue)
	}

	if n.Type == ast.While {
		diag.Errorf(n.Filename, n.Linenum, "while loops are only allowed in constant functions")
	}
	if n.Type == ast.Repeat {
		diag.Errorf(n.Filename, n.Linenum, "repeat loops are only allowed in constant functions")
	}

	// unroll for loops and generate-for blocks
	if (n.Type == ast.GenFor || n.Type == ast.For) && len(n.Children) != 0 {
		s.unrollFor(n, stage, widthHint, signHint)
		didSomething = true
	}

	// transform block with name
	if n.Type == ast.Block && n.Str != "" {
		s.liftNamedBlock(n, stage)
		didSomething = true
	}

	// simplify unconditional generate block
	if n.Type == ast.GenBlock && len(n.Children) != 0 {
		s.expandPlainGenBlock(n, stage)
		didSomething = true
	}

	// simplify generate-if blocks
	if n.Type == ast.GenIf && len(n.Children) != 0 {
		s.expandGenIf(n, stage, widthHint, signHint)
		didSomething = true
	}

	// simplify generate-case blocks
	if n.Type == ast.GenCase && len(n.Children) != 0 {
		s.expandGenCase(n, stage, widthHint, signHint)
		didSomething = true
	}

	// unroll cell arrays
	if newNode == nil && n.Type == ast.CellArray {
		newNode = s.unrollCellArray(n)
	}

	// replace primitives with assignments
	if n.Type == ast.Primitive {
		s.expandPrimitive(n)
		didSomething = true
	}

	// replace dynamic ranges in left-hand side expressions with a case block
	// that selects the correct fixed-width assignment
	if newNode == nil && !didSomething && (n.Type == ast.AssignEq || n.Type == ast.AssignLe) {
		newNode = s.expandDynamicRangeLvalue(n, stage)
		if newNode != nil {
			didSomething = true
		}
	}

	// lower assertions inside processes to check/enable signals
	if newNode == nil && stage > 1 && n.Type == ast.Assert && s.block != nil {
		newNode = s.lowerAssert(n)
	}

	if stage > 1 && n.Type == ast.Assert && len(n.Children) == 1 {
		n.Children[0] = ast.NewNode(ast.ReduceBool, n.Children[0].Clone())
		n.Children = append(n.Children, ast.ConstInt(1, false, 1))
		didSomething = true
	}

	// found right-hand side identifier for memory -> replace with memory read port
	if newNode == nil && stage > 1 && n.Type == ast.Identifier && n.ID2Ast != nil &&
		n.ID2Ast.Type == ast.Memory && !inLvalue &&
		len(n.Children) > 0 && n.Children[0].Type == ast.Range && len(n.Children[0].Children) == 1 {
		newNode = ast.NewNode(ast.MemRd, n.Children[0].Children[0].Clone())
		newNode.Str = n.Str
		newNode.ID2Ast = n.ID2Ast
	}

	// assignment with memory in left-hand side expression -> replace with memory write port
	if newNode == nil && stage > 1 && (n.Type == ast.AssignEq || n.Type == ast.AssignLe) &&
		n.Children[0].Type == ast.Identifier && len(n.Children[0].Children) == 1 &&
		n.Children[0].ID2Ast != nil && n.Children[0].ID2Ast.Type == ast.Memory &&
		len(n.Children[0].ID2Ast.Children) >= 2 &&
		n.Children[0].ID2Ast.Children[0].RangeValid && n.Children[0].ID2Ast.Children[1].RangeValid {
		newNode = s.lowerMemWrite(n)
	}

	// replace function and task calls with the code from the function or task
	if newNode == nil && (n.Type == ast.FCall || n.Type == ast.TCall) && n.Str != "" {
		var did bool
		newNode, did = s.inlineCall(n, stage, widthHint, signHint, inParam)
		if did {
			didSomething = true
		}
	}

	// perform const folding when activated
	if constFold && newNode == nil {
		newNode = s.constFold(n, atZero, widthHint, signHint)
	}

	// if any of the above produced a replacement, the current node is
	// replaced in place and the pass reports progress
	if newNode != nil {
		newNode.Filename = n.Filename
		newNode.Linenum = n.Linenum
		newNode.CloneInto(n)
		didSomething = true
	}

	if !didSomething {
		n.BasicPrep = true
	}

	if didSomething && tlog.If("simplify") {
		tlog.Printw("simplify step", "type", n.Type.String(), "str", n.Str, "stage", stage)
	}

	return didSomething
}

// annotateRange folds a range's bounds into RangeLeft/RangeRight and
// normalizes swapped non-negative bounds.
func (s *simplifier) annotateRange(n *ast.Node) bool {
	oldRangeValid := n.RangeValid
	n.RangeValid = false
	n.RangeLeft = -1
	n.RangeRight = 0
	diag.Assertf(len(n.Children) >= 1, "range node without children")
	if n.Children[0].Type == ast.Constant {
		n.RangeValid = true
		n.RangeLeft = n.Children[0].AsInt(true)
		if len(n.Children) == 1 {
			n.RangeRight = n.RangeLeft
		}
	}
	if len(n.Children) >= 2 {
		if n.Children[1].Type == ast.Constant {
			n.RangeRight = n.Children[1].AsInt(true)
		} else {
			n.RangeValid = false
		}
	}
	didSomething := oldRangeValid != n.RangeValid
	if n.RangeValid && n.RangeLeft >= 0 && n.RangeRight > n.RangeLeft {
		n.RangeLeft, n.RangeRight = n.RangeRight, n.RangeLeft
	}
	return didSomething
}

// trimParameter clamps a parameter initializer to its declared width and
// converts between real and bit representations as needed.
func (s *simplifier) trimParameter(n *ast.Node, signHint bool) bool {
	didSomething := false
	if len(n.Children) > 1 && n.Children[1].Type == ast.Range {
		if !n.Children[1].RangeValid {
			diag.Errorf(n.Filename, n.Linenum, "non-constant width range on parameter decl")
		}
		width := n.Children[1].RangeLeft - n.Children[1].RangeRight + 1
		if n.Children[0].Type == ast.RealValue {
			value := n.Children[0].RealAsConst(width)
			diag.Warningf(n.Filename, n.Linenum, "converting real value %e to binary %s",
				n.Children[0].RealValue, value.String())
			n.Children[0] = ast.ConstBits(value.Bits, signHint)
			didSomething = true
		}
		if n.Children[0].Type == ast.Constant {
			if width != len(n.Children[0].Bits) {
				value := n.Children[0].BitsAsConst(-1, n.Children[0].IsSigned).
					ExtendU0(width, n.Children[0].IsSigned)
				n.Children[0] = ast.ConstBits(value.Bits, n.Children[0].IsSigned)
			}
			n.Children[0].IsSigned = n.IsSigned
		}
	} else if len(n.Children) > 1 && n.Children[1].Type == ast.RealValue && n.Children[0].Type == ast.Constant {
		n.Children[0] = ast.Real(n.Children[0].AsReal(signHint))
		didSomething = true
	}
	return didSomething
}

// rewriteDefparam converts a defparam into a paraset child of the target cell.
func (s *simplifier) rewriteDefparam(n *ast.Node) {
	pos := -1
	for i := len(n.Str) - 1; i >= 0; i-- {
		if n.Str[i] == '.' {
			pos = i
			break
		}
	}
	if pos < 0 {
		diag.Errorf(n.Filename, n.Linenum, "defparam `%s' does not contain a dot (module/parameter separator)", n.Str)
	}
	modname, paraname := n.Str[:pos], n.Str[pos+1:]
	cell, ok := s.scope[modname]
	if !ok || cell.Type != ast.Cell {
		diag.Errorf(n.Filename, n.Linenum, "can't find cell for defparam `%s.%s'", modname, paraname)
	}
	paraset := n.Clone()
	paraset.Type = ast.Paraset
	paraset.Str = paraname
	rest := append([]*ast.Node{}, cell.Children[1:]...)
	cell.Children = append(cell.Children[:1:1], paraset)
	cell.Children = append(cell.Children, rest...)
	n.Str = ""
}

// resolvePrefix rewrites generate block prefix syntax (name[idx].rest) into
// the flattened identifier created by generate expansion.
func (s *simplifier) resolvePrefix(n *ast.Node) *ast.Node {
	if n.Children[0].Type != ast.Constant {
		diag.Errorf(n.Filename, n.Linenum, "index in generate block prefix syntax is not constant")
	}
	diag.Assertf(n.Children[1].Type == ast.Identifier, "prefix node without identifier")
	newNode := n.Children[1].Clone()
	newNode.Str = fmt.Sprintf("%s[%d].%s", n.Str, n.Children[0].Integer, n.Children[1].Str)
	return newNode
}

// spentNode reports whether a child is the empty husk left behind by an
// in-place expansion (an unrolled loop, a selected generate branch, a
// converted defparam, a deleted system task) and can be dropped from its
// parent.
func spentNode(n *ast.Node) bool {
	switch n.Type {
	case ast.GenFor, ast.For, ast.GenIf, ast.GenCase, ast.GenBlock:
		return len(n.Children) == 0
	case ast.Defparam:
		return n.Str == ""
	case ast.TCall:
		return n.Str == "" && len(n.Children) == 0
	}
	return false
}

// addWire registers a synthesized wire with the module and prepares it.
func (s *simplifier) addWire(wire *ast.Node) {
	s.mod.Children = append(s.mod.Children, wire)
	s.scope[wire.Str] = wire
	for s.simplify(wire, true, false, false, 1, -1, false, false) {
	}
}

func xBits(width int) []logic.State {
	return logic.Repeated(logic.Sx, width).Bits
}

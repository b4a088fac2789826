package simplify

import (
	"fmt"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
	"github.com/verikit/verikit/pkg/logic"
)

// splitMemBitSelect rewrites a bit select on a memory word read into a read
// of a synthesized scratch wire followed by the bit select on that wire.
func (s *simplifier) splitMemBitSelect(n *ast.Node, inLvalue bool) *ast.Node {
	if n.ID2Ast == nil || n.ID2Ast.Type != ast.Memory || len(n.Children[0].Children) != 1 || inLvalue {
		diag.Errorf(n.Filename, n.Linenum, "invalid bit-select on memory access")
	}

	memWidth, _, _ := n.ID2Ast.MemInfo()

	wireID := fmt.Sprintf("$mem2bits$%s$%s:%d$%d", n.Str, n.Filename, n.Linenum, nextID())

	wire := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(memWidth-1, true, 32), ast.ConstInt(0, true, 32)))
	wire.Str = wireID
	if s.block != nil {
		wire.SetAttribute("nosync", ast.ConstInt(1, false, 32))
	}
	s.mod.Children = append(s.mod.Children, wire)
	for s.simplify(wire, true, false, false, 1, -1, false, false) {
	}

	data := n.Clone()
	data.Children = data.Children[:1]

	assign := ast.NewNode(ast.AssignEq, ast.NewNode(ast.Identifier), data)
	assign.Children[0].Str = wireID

	if s.block != nil {
		s.insertBeforeCurrent(assign)
		wire.IsReg = true
	} else {
		proc := ast.NewNode(ast.Always, ast.NewNode(ast.Block))
		proc.Children[0].Children = append(proc.Children[0].Children, assign)
		s.mod.Children = append(s.mod.Children, proc)
	}

	newNode := ast.NewNode(ast.Identifier, n.Children[1].Clone())
	newNode.Str = wireID
	newNode.ID2Ast = wire
	return newNode
}

// expandDynamicRangeLvalue replaces an assignment through a non-constant
// range select with a case over all legal bit positions, each arm assigning
// a fixed-width slice. Returns nil when the assignment needs no expansion.
func (s *simplifier) expandDynamicRangeLvalue(n *ast.Node, stage int) *ast.Node {
	lhs := n.Children[0]
	if lhs.Type != ast.Identifier || len(lhs.Children) == 0 {
		return nil
	}
	if lhs.Children[0].RangeValid {
		return nil
	}
	if lhs.ID2Ast == nil || lhs.ID2Ast.Type != ast.Wire {
		return nil
	}
	if !lhs.ID2Ast.RangeValid {
		return nil
	}

	sourceWidth := lhs.ID2Ast.RangeLeft - lhs.ID2Ast.RangeRight + 1
	resultWidth := 1
	rng := lhs.Children[0]
	var shiftExpr *ast.Node
	if len(rng.Children) == 1 {
		shiftExpr = rng.Children[0].Clone()
	} else {
		shiftExpr = rng.Children[1].Clone()
		leftAtZero := rng.Children[0].Clone()
		rightAtZero := rng.Children[1].Clone()
		for s.simplify(leftAtZero, true, true, false, stage, -1, false, false) {
		}
		for s.simplify(rightAtZero, true, true, false, stage, -1, false, false) {
		}
		if leftAtZero.Type != ast.Constant || rightAtZero.Type != ast.Constant {
			diag.Errorf(n.Filename, n.Linenum, "unsupported expression on dynamic range select on signal `%s'", lhs.Str)
		}
		resultWidth = leftAtZero.AsInt(true) - rightAtZero.AsInt(true) + 1
	}

	newNode := ast.NewNode(ast.Case, shiftExpr)
	for i := 0; i <= sourceWidth-resultWidth; i++ {
		startBit := lhs.ID2Ast.RangeRight + i
		cond := ast.NewNode(ast.Cond, ast.ConstInt(startBit, true, 32))
		lvalue := lhs.Clone()
		lvalue.DeleteChildren()
		lvalue.Children = append(lvalue.Children, ast.NewNode(ast.Range,
			ast.ConstInt(startBit+resultWidth-1, true, 32), ast.ConstInt(startBit, true, 32)))
		cond.Children = append(cond.Children, ast.NewNode(ast.Block,
			ast.NewNode(n.Type, lvalue, n.Children[1].Clone())))
		newNode.Children = append(newNode.Children, cond)
	}
	return newNode
}

// lowerAssert rewrites an assertion inside a process into check/enable
// signals with default assignments at the top of the process and a
// module-level assertion cell.
func (s *simplifier) lowerAssert(n *ast.Node) *ast.Node {
	id := fmt.Sprintf("$assert$%s:%d$%d", n.Filename, n.Linenum, nextID())
	idCheck, idEn := id+"_CHECK", id+"_EN"

	wireCheck := ast.NewNode(ast.Wire)
	wireCheck.Str = idCheck
	s.mod.Children = append(s.mod.Children, wireCheck)
	s.scope[wireCheck.Str] = wireCheck
	for s.simplify(wireCheck, true, false, false, 1, -1, false, false) {
	}

	wireEn := ast.NewNode(ast.Wire)
	wireEn.Str = idEn
	s.mod.Children = append(s.mod.Children, wireEn)
	initAssign := ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier), ast.ConstInt(0, false, 1))
	initAssign.Children[0].Str = idEn
	s.mod.Children = append(s.mod.Children,
		ast.NewNode(ast.Initial, ast.NewNode(ast.Block, initAssign)))
	s.scope[wireEn.Str] = wireEn
	for s.simplify(wireEn, true, false, false, 1, -1, false, false) {
	}

	assignCheck := ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		ast.ConstBits([]logic.State{logic.Sx}, false))
	assignCheck.Children[0].Str = idCheck

	assignEn := ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier), ast.ConstInt(0, false, 1))
	assignEn.Children[0].Str = idEn

	defaultSignals := ast.NewNode(ast.Block, assignCheck, assignEn)
	s.topBlock.Children = insertAt(s.topBlock.Children, 0, defaultSignals)

	assignCheck = ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		ast.NewNode(ast.ReduceBool, n.Children[0].Clone()))
	assignCheck.Children[0].Str = idCheck

	assignEn = ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier), ast.ConstInt(1, false, 1))
	assignEn.Children[0].Str = idEn

	newNode := ast.NewNode(ast.Block, assignCheck, assignEn)

	assertNode := ast.NewNode(ast.Assert, ast.NewNode(ast.Identifier), ast.NewNode(ast.Identifier))
	assertNode.Children[0].Str = idCheck
	assertNode.Children[1].Str = idEn
	assertNode.Attributes = n.Attributes
	n.Attributes = nil
	s.mod.Children = append(s.mod.Children, assertNode)

	return newNode
}

// lowerMemWrite rewrites an assignment to a memory into a memwr cell with
// address/data/enable scratch wires and default-x assignments at the top
// of the enclosing process.
func (s *simplifier) lowerMemWrite(n *ast.Node) *ast.Node {
	id := fmt.Sprintf("$memwr$%s$%s:%d$%d", n.Children[0].Str, n.Filename, n.Linenum, nextID())
	idAddr, idData, idEn := id+"_ADDR", id+"_DATA", id+"_EN"

	if n.Type == ast.AssignEq {
		diag.Warningf(n.Filename, n.Linenum, "blocking assignment to memory is handled like a non-blocking assignment")
	}

	memWidth, _, addrBits := n.Children[0].ID2Ast.MemInfo()

	wireAddr := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(addrBits-1, true, 32), ast.ConstInt(0, true, 32)))
	wireAddr.Str = idAddr
	s.addWire(wireAddr)

	wireData := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(memWidth-1, true, 32), ast.ConstInt(0, true, 32)))
	wireData.Str = idData
	s.addWire(wireData)

	wireEn := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(memWidth-1, true, 32), ast.ConstInt(0, true, 32)))
	wireEn.Str = idEn
	s.addWire(wireEn)

	assignAddr := ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		ast.ConstBits(xBits(addrBits), false))
	assignAddr.Children[0].Str = idAddr

	assignData := ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		ast.ConstBits(xBits(memWidth), false))
	assignData.Children[0].Str = idData

	assignEn := ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		ast.ConstInt(0, false, memWidth))
	assignEn.Children[0].Str = idEn

	defaultSignals := ast.NewNode(ast.Block, assignAddr, assignData, assignEn)
	s.topBlock.Children = insertAt(s.topBlock.Children, 0, defaultSignals)

	assignAddr = ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		n.Children[0].Children[0].Children[0].Clone())
	assignAddr.Children[0].Str = idAddr

	assignData = ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier), n.Children[1].Clone())
	assignData.Children[0].Str = idData

	assignEn = ast.NewNode(ast.AssignLe, ast.NewNode(ast.Identifier),
		ast.ConstBits(logic.Repeated(logic.S1, memWidth).Bits, false))
	assignEn.Children[0].Str = idEn

	newNode := ast.NewNode(ast.Block, assignAddr, assignData, assignEn)

	wrNode := ast.NewNode(ast.MemWr,
		ast.NewNode(ast.Identifier), ast.NewNode(ast.Identifier), ast.NewNode(ast.Identifier))
	wrNode.Str = n.Children[0].Str
	wrNode.Children[0].Str = idAddr
	wrNode.Children[1].Str = idData
	wrNode.Children[2].Str = idEn
	s.mod.Children = append(s.mod.Children, wrNode)

	return newNode
}

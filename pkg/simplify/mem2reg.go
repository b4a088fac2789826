package simplify

import (
	"fmt"

	"github.com/nikandfor/tlog"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
)

// mem2reg trigger flags. The module-global flags live in the candidates
// map, the per-process flags in a map local to each always/initial body.
const (
	mem2regFlAll      = 0x00000001
	mem2regFlAsync    = 0x00000002
	mem2regFlInit     = 0x00000004
	mem2regFlForced   = 0x00000100
	mem2regFlSetInit  = 0x00000200
	mem2regFlSetElse  = 0x00000400
	mem2regFlSetAsync = 0x00000800
	mem2regFlEq2      = 0x00001000
	mem2regFlCmplxLhs = 0x00002000
	mem2regFlEq1      = 0x01000000
)

// mem2regAsNeeded is the stage-0 step between the two rewrite fixed
// points: decide which memories must become register arrays and rewrite
// all accesses to them.
func (s *simplifier) mem2regAsNeeded(mod *ast.Node) {
	if s.opts.NoMem2Reg || mod.GetBoolAttribute("nomem2reg") {
		return
	}

	places := make(map[*ast.Node][]string)
	candidates := make(map[*ast.Node]uint32)
	dummyProcFlags := make(map[*ast.Node]uint32)
	flags := uint32(0)
	if s.opts.Mem2RegAll {
		flags = mem2regFlAll
	}
	s.mem2regPass1(mod, places, candidates, dummyProcFlags, flags)

	mem2regSet := make(map[*ast.Node]bool)
	for mem, memflags := range candidates {
		diag.Assertf(memflags&^uint32(0x00ffff00) == 0, "invalid mem2reg candidate flags")

		if mem.GetBoolAttribute("nomem2reg") {
			continue
		}

		if memflags&mem2regFlForced != 0 {
			mem2regSet[mem] = true
			continue
		}

		activate := memflags&mem2regFlEq2 != 0 ||
			memflags&mem2regFlSetAsync != 0 ||
			(memflags&mem2regFlSetInit != 0 && memflags&mem2regFlSetElse != 0) ||
			memflags&mem2regFlCmplxLhs != 0
		if !activate {
			continue
		}

		if !mem2regSet[mem] {
			msg := fmt.Sprintf("replacing memory %s with list of registers", mem.Str)
			for i, place := range places[mem] {
				if i == 0 {
					msg += ". See " + place
				} else {
					msg += ", " + place
				}
			}
			diag.Warningf(mem.Filename, mem.Linenum, "%s", msg)
		}
		mem2regSet[mem] = true
	}

	for _, node := range mod.Children {
		if !mem2regSet[node] {
			continue
		}
		memWidth, memSize, _ := node.MemInfo()
		tlog.V("mem2reg").Printw("demoting memory", "name", node.Str, "size", memSize, "width", memWidth)
		for i := 0; i < memSize; i++ {
			reg := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
				ast.ConstInt(memWidth-1, true, 32), ast.ConstInt(0, true, 32)))
			reg.Str = fmt.Sprintf("%s[%d]", node.Str, i)
			reg.IsReg = true
			reg.IsSigned = node.IsSigned
			reg.Filename = node.Filename
			reg.Linenum = node.Linenum
			mod.Children = append(mod.Children, reg)
			for s.simplify(reg, true, false, false, 1, -1, false, false) {
			}
		}
	}

	s.mem2regPass2(mod, mem2regSet, mod, nil)

	for i := 0; i < len(mod.Children); i++ {
		if mem2regSet[mod.Children[i]] {
			mod.Children = append(mod.Children[:i], mod.Children[i+1:]...)
			i--
		}
	}
}

// markMemoriesLhsComplex flags every memory referenced inside a composite
// left-hand side expression.
func markMemoriesLhsComplex(places map[*ast.Node][]string,
	candidates map[*ast.Node]uint32, that *ast.Node) {

	for _, child := range that.Children {
		markMemoriesLhsComplex(places, candidates, child)
	}

	if that.Type == ast.Identifier && that.ID2Ast != nil && that.ID2Ast.Type == ast.Memory {
		mem := that.ID2Ast
		if candidates[mem]&mem2regFlCmplxLhs == 0 {
			places[mem] = append(places[mem], fmt.Sprintf("%s:%d", that.Filename, that.Linenum))
		}
		candidates[mem] |= mem2regFlCmplxLhs
	}
}

// mem2regPass1 walks the module and collects the trigger flags for every
// memory.
func (s *simplifier) mem2regPass1(n *ast.Node, places map[*ast.Node][]string,
	candidates map[*ast.Node]uint32, procFlags map[*ast.Node]uint32, flags uint32) {

	var childrenFlags uint32
	ignoreChildrenCounter := 0

	if n.Type == ast.Assign || n.Type == ast.AssignLe || n.Type == ast.AssignEq {
		// mark all memories that are used in a complex expression on the
		// left side of an assignment
		for _, lhsChild := range n.Children[0].Children {
			markMemoriesLhsComplex(places, candidates, lhsChild)
		}

		if n.Children[0].Type == ast.Identifier && n.Children[0].ID2Ast != nil &&
			n.Children[0].ID2Ast.Type == ast.Memory {
			mem := n.Children[0].ID2Ast

			// activate mem2reg if this is assigned in an async proc
			if flags&mem2regFlAsync != 0 {
				if candidates[mem]&mem2regFlSetAsync == 0 {
					places[mem] = append(places[mem], fmt.Sprintf("%s:%d", n.Filename, n.Linenum))
				}
				candidates[mem] |= mem2regFlSetAsync
			}

			// remember if this is assigned blocking (=)
			if n.Type == ast.AssignEq {
				if procFlags[mem]&mem2regFlEq1 == 0 {
					places[mem] = append(places[mem], fmt.Sprintf("%s:%d", n.Filename, n.Linenum))
				}
				procFlags[mem] |= mem2regFlEq1
			}

			// remember where this is written
			if flags&mem2regFlInit != 0 {
				if candidates[mem]&mem2regFlSetInit == 0 {
					places[mem] = append(places[mem], fmt.Sprintf("%s:%d", n.Filename, n.Linenum))
				}
				candidates[mem] |= mem2regFlSetInit
			} else {
				if candidates[mem]&mem2regFlSetElse == 0 {
					places[mem] = append(places[mem], fmt.Sprintf("%s:%d", n.Filename, n.Linenum))
				}
				candidates[mem] |= mem2regFlSetElse
			}
		}

		ignoreChildrenCounter = 1
	}

	if n.Type == ast.Identifier && n.ID2Ast != nil && n.ID2Ast.Type == ast.Memory {
		mem := n.ID2Ast

		// flag if read after blocking assignment (in the same proc)
		if procFlags[mem]&mem2regFlEq1 != 0 && candidates[mem]&mem2regFlEq2 == 0 {
			places[mem] = append(places[mem], fmt.Sprintf("%s:%d", n.Filename, n.Linenum))
			candidates[mem] |= mem2regFlEq2
		}
	}

	// also activate if requested, either by using the mem2reg attribute or
	// by declaring the array as 'wire' instead of 'reg'
	if n.Type == ast.Memory && (n.GetBoolAttribute("mem2reg") || flags&mem2regFlAll != 0 || !n.IsReg) {
		candidates[n] |= mem2regFlForced
	}

	if n.Type == ast.Module && n.GetBoolAttribute("mem2reg") {
		childrenFlags |= mem2regFlAll
	}

	var newProcFlags map[*ast.Node]uint32

	if n.Type == ast.Always {
		countEdgeEvents := 0
		for _, child := range n.Children {
			if child.Type == ast.Posedge || child.Type == ast.Negedge {
				countEdgeEvents++
			}
		}
		if countEdgeEvents != 1 {
			childrenFlags |= mem2regFlAsync
		}
		newProcFlags = make(map[*ast.Node]uint32)
	}

	if n.Type == ast.Initial {
		childrenFlags |= mem2regFlInit
		newProcFlags = make(map[*ast.Node]uint32)
	}

	flags |= childrenFlags
	diag.Assertf(flags&^uint32(0x000000ff) == 0, "invalid mem2reg pass flags")

	for _, child := range n.Children {
		switch {
		case ignoreChildrenCounter > 0:
			ignoreChildrenCounter--
		case newProcFlags != nil:
			s.mem2regPass1(child, places, candidates, newProcFlags, flags)
		default:
			s.mem2regPass1(child, places, candidates, procFlags, flags)
		}
	}

	if newProcFlags != nil {
		for _, procFlag := range newProcFlags {
			diag.Assertf(procFlag&^uint32(0xff000000) == 0, "invalid mem2reg proc flags")
		}
	}
}

// mem2regPass2 rewrites every access to a demoted memory. Constant-index
// accesses become direct register references; variable-index accesses go
// through synthesized address/data scratch wires and a case dispatch.
func (s *simplifier) mem2regPass2(n *ast.Node, mem2regSet map[*ast.Node]bool, mod, block *ast.Node) {
	if n.Type == ast.Block {
		block = n
	}

	if (n.Type == ast.AssignLe || n.Type == ast.AssignEq) && block != nil &&
		n.Children[0].ID2Ast != nil && mem2regSet[n.Children[0].ID2Ast] &&
		len(n.Children[0].Children) > 0 && len(n.Children[0].Children[0].Children) > 0 &&
		n.Children[0].Children[0].Children[0].Type != ast.Constant {
		s.mem2regRewriteWrite(n, mod, block)
	}

	if n.Type == ast.Identifier && n.ID2Ast != nil && mem2regSet[n.ID2Ast] {
		s.mem2regRewriteRead(n, mod, block)
	}

	diag.Assertf(n.ID2Ast == nil || !mem2regSet[n.ID2Ast], "unresolved access to demoted memory")

	children := append([]*ast.Node{}, n.Children...)
	for _, child := range children {
		s.mem2regPass2(child, mem2regSet, mod, block)
	}
}

// mem2regRewriteWrite lowers a variable-index write to a demoted memory
// into address/data scratch assignments plus a case over the registers.
func (s *simplifier) mem2regRewriteWrite(n *ast.Node, mod, block *ast.Node) {
	id := fmt.Sprintf("$mem2reg_wr$%s$%s:%d$%d", n.Children[0].Str, n.Filename, n.Linenum, nextID())
	idAddr, idData := id+"_ADDR", id+"_DATA"

	memWidth, memSize, addrBits := n.Children[0].ID2Ast.MemInfo()

	wireAddr := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(addrBits-1, true, 32), ast.ConstInt(0, true, 32)))
	wireAddr.Str = idAddr
	wireAddr.IsReg = true
	wireAddr.SetAttribute("nosync", ast.ConstInt(1, false, 32))
	mod.Children = append(mod.Children, wireAddr)
	for s.simplify(wireAddr, true, false, false, 1, -1, false, false) {
	}

	wireData := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(memWidth-1, true, 32), ast.ConstInt(0, true, 32)))
	wireData.Str = idData
	wireData.IsReg = true
	wireData.SetAttribute("nosync", ast.ConstInt(1, false, 32))
	mod.Children = append(mod.Children, wireData)
	for s.simplify(wireData, true, false, false, 1, -1, false, false) {
	}

	assignIdx := -1
	for i, child := range block.Children {
		if child == n {
			assignIdx = i
			break
		}
	}
	diag.Assertf(assignIdx >= 0, "memory write not found in enclosing block")

	assignAddr := ast.NewNode(ast.AssignEq, ast.NewNode(ast.Identifier),
		n.Children[0].Children[0].Children[0].Clone())
	assignAddr.Children[0].Str = idAddr
	block.Children = insertAt(block.Children, assignIdx+1, assignAddr)

	caseNode := ast.NewNode(ast.Case, ast.NewNode(ast.Identifier))
	caseNode.Children[0].Str = idAddr
	for i := 0; i < memSize; i++ {
		condNode := ast.NewNode(ast.Cond, ast.ConstInt(i, false, addrBits), ast.NewNode(ast.Block))
		assignReg := ast.NewNode(n.Type, ast.NewNode(ast.Identifier), ast.NewNode(ast.Identifier))
		assignReg.Children[0].Str = fmt.Sprintf("%s[%d]", n.Children[0].Str, i)
		assignReg.Children[1].Str = idData
		condNode.Children[1].Children = append(condNode.Children[1].Children, assignReg)
		caseNode.Children = append(caseNode.Children, condNode)
	}
	block.Children = insertAt(block.Children, assignIdx+2, caseNode)

	n.Children[0].DeleteChildren()
	n.Children[0].RangeValid = false
	n.Children[0].ID2Ast = nil
	n.Children[0].Str = idData
	n.Type = ast.AssignEq
}

// mem2regRewriteRead lowers a read of a demoted memory. Constant indices
// turn into a direct register reference; variable indices dispatch through
// a case that defaults to x.
func (s *simplifier) mem2regRewriteRead(n *ast.Node, mod, block *ast.Node) {
	if n.Children[0].Children[0].Type == ast.Constant {
		idx := n.Children[0].Children[0].Integer
		n.Str = fmt.Sprintf("%s[%d]", n.Str, idx)
		n.DeleteChildren()
		n.RangeValid = false
		n.ID2Ast = nil
		return
	}

	id := fmt.Sprintf("$mem2reg_rd$%s$%s:%d$%d", n.Children[0].Str, n.Filename, n.Linenum, nextID())
	idAddr, idData := id+"_ADDR", id+"_DATA"

	memWidth, memSize, addrBits := n.ID2Ast.MemInfo()

	wireAddr := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(addrBits-1, true, 32), ast.ConstInt(0, true, 32)))
	wireAddr.Str = idAddr
	wireAddr.IsReg = true
	if block != nil {
		wireAddr.SetAttribute("nosync", ast.ConstInt(1, false, 32))
	}
	mod.Children = append(mod.Children, wireAddr)
	for s.simplify(wireAddr, true, false, false, 1, -1, false, false) {
	}

	wireData := ast.NewNode(ast.Wire, ast.NewNode(ast.Range,
		ast.ConstInt(memWidth-1, true, 32), ast.ConstInt(0, true, 32)))
	wireData.Str = idData
	wireData.IsReg = true
	if block != nil {
		wireData.SetAttribute("nosync", ast.ConstInt(1, false, 32))
	}
	mod.Children = append(mod.Children, wireData)
	for s.simplify(wireData, true, false, false, 1, -1, false, false) {
	}

	assignType := ast.Assign
	if block != nil {
		assignType = ast.AssignEq
	}
	assignAddr := ast.NewNode(assignType, ast.NewNode(ast.Identifier), n.Children[0].Children[0].Clone())
	assignAddr.Children[0].Str = idAddr

	caseNode := ast.NewNode(ast.Case, ast.NewNode(ast.Identifier))
	caseNode.Children[0].Str = idAddr

	for i := 0; i < memSize; i++ {
		condNode := ast.NewNode(ast.Cond, ast.ConstInt(i, false, addrBits), ast.NewNode(ast.Block))
		assignReg := ast.NewNode(ast.AssignEq, ast.NewNode(ast.Identifier), ast.NewNode(ast.Identifier))
		assignReg.Children[0].Str = idData
		assignReg.Children[1].Str = fmt.Sprintf("%s[%d]", n.Str, i)
		condNode.Children[1].Children = append(condNode.Children[1].Children, assignReg)
		caseNode.Children = append(caseNode.Children, condNode)
	}

	condNode := ast.NewNode(ast.Cond, ast.NewNode(ast.Default), ast.NewNode(ast.Block))
	assignReg := ast.NewNode(ast.AssignEq, ast.NewNode(ast.Identifier), ast.ConstBits(xBits(memWidth), false))
	assignReg.Children[0].Str = idData
	condNode.Children[1].Children = append(condNode.Children[1].Children, assignReg)
	caseNode.Children = append(caseNode.Children, condNode)

	if block != nil {
		assignIdx := -1
		for i, child := range block.Children {
			if child.Contains(n) {
				assignIdx = i
				break
			}
		}
		diag.Assertf(assignIdx >= 0, "memory read not found in enclosing block")
		block.Children = insertAt(block.Children, assignIdx, caseNode)
		block.Children = insertAt(block.Children, assignIdx, assignAddr)
	} else {
		proc := ast.NewNode(ast.Always, ast.NewNode(ast.Block))
		proc.Children[0].Children = append(proc.Children[0].Children, caseNode)
		mod.Children = append(mod.Children, proc)
		mod.Children = append(mod.Children, assignAddr)
	}

	n.DeleteChildren()
	n.RangeValid = false
	n.ID2Ast = nil
	n.Str = idData
}

func insertAt(list []*ast.Node, idx int, node *ast.Node) []*ast.Node {
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = node
	return list
}

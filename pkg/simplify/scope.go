package simplify

import (
	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/diag"
)

// enterModule clears the ambient scope and enters every named top-level
// declaration. Multiple wire declarations for the same name are merged when
// compatible; the merge takes the disjunction of the direction, reg and
// sign flags and the later declaration's attributes.
func (s *simplifier) enterModule(n *ast.Node, backupScope map[string]*ast.Node, stage int) bool {
	didSomething := false
	s.scope = make(map[string]*ast.Node)
	thisWireScope := make(map[string]*ast.Node)

	for i := 0; i < len(n.Children); i++ {
		node := n.Children[i]
		if node.Type == ast.Wire {
			if first, ok := thisWireScope[node.Str]; ok {
				if wiresCompatible(first, node) {
					if node.IsInput {
						first.IsInput = true
					}
					if node.IsOutput {
						first.IsOutput = true
					}
					if node.IsReg {
						first.IsReg = true
					}
					if node.IsSigned {
						first.IsSigned = true
					}
					for name, attr := range node.Attributes {
						first.SetAttribute(name, attr.Clone())
					}
					n.Children = append(n.Children[:i], n.Children[i+1:]...)
					i--
					didSomething = true
				} else if stage > 1 {
					diag.Errorf(n.Filename, n.Linenum, "incompatible re-declaration of wire %s", node.Str)
				}
				continue
			}
			thisWireScope[node.Str] = node
		}
		switch node.Type {
		case ast.Parameter, ast.Localparam, ast.Wire, ast.AutoWire, ast.Genvar,
			ast.Memory, ast.Function, ast.Task, ast.Cell:
			if _, saved := backupScope[node.Str]; !saved {
				backupScope[node.Str] = s.scope[node.Str]
			}
			s.scope[node.Str] = node
		}
	}

	for _, node := range n.Children {
		switch node.Type {
		case ast.Parameter, ast.Localparam, ast.Wire, ast.AutoWire:
			inParam := node.Type == ast.Parameter || node.Type == ast.Localparam
			for s.simplify(node, true, false, false, 1, -1, false, inParam) {
				didSomething = true
			}
		}
	}
	return didSomething
}

// wiresCompatible implements the wire merge rule: a plain "reg foo;"
// re-declaration is always compatible; otherwise the ranges must be equal
// and a port direction may only be added to a wire that is already a port.
func wiresCompatible(first, node *ast.Node) bool {
	if !node.IsInput && !node.IsOutput && node.IsReg && len(node.Children) == 0 {
		return true
	}
	if len(first.Children) != len(node.Children) {
		return false
	}
	for i := range node.Children {
		n1, n2 := first.Children[i], node.Children[i]
		if n1.Type == ast.Range && n2.Type == ast.Range && n1.RangeValid && n2.RangeValid {
			if n1.RangeLeft != n2.RangeLeft || n1.RangeRight != n2.RangeRight {
				return false
			}
		} else if !n1.Equal(n2) {
			return false
		}
	}
	if first.RangeLeft != node.RangeLeft || first.RangeRight != node.RangeRight {
		return false
	}
	if first.PortID == 0 && (node.IsInput || node.IsOutput) {
		return false
	}
	return true
}

// resolveIdentifier binds an identifier to its declaration, searching the
// ambient scope first and the module's declarations second. Unresolved
// names are materialized as auto-wires.
func (s *simplifier) resolveIdentifier(n *ast.Node) bool {
	didSomething := false
	if _, ok := s.scope[n.Str]; !ok {
		for _, node := range s.mod.Children {
			switch node.Type {
			case ast.Parameter, ast.Localparam, ast.Wire, ast.AutoWire, ast.Genvar,
				ast.Memory, ast.Function, ast.Task:
				if n.Str == node.Str {
					s.scope[node.Str] = node
				}
			}
			if _, ok := s.scope[n.Str]; ok {
				break
			}
		}
	}
	if _, ok := s.scope[n.Str]; !ok {
		autoWire := ast.NewNode(ast.AutoWire)
		autoWire.Str = n.Str
		autoWire.Filename = n.Filename
		autoWire.Linenum = n.Linenum
		s.mod.Children = append(s.mod.Children, autoWire)
		s.scope[n.Str] = autoWire
		didSomething = true
	}
	if n.ID2Ast != s.scope[n.Str] {
		n.ID2Ast = s.scope[n.Str]
		didSomething = true
	}
	return didSomething
}

package aiger

import (
	"strings"
	"testing"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/simplify"
)

// a 2-input AND with named ports:
//
//	o = a & b
const andAag = `aag 3 2 0 1 1
2
4
6
6 2 4
i0 a
i1 b
o0 o
`

func TestParseAsciiAnd(t *testing.T) {
	mod, err := Parse(strings.NewReader(andAag), "clk")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if mod.Str != "aig" {
		t.Errorf("module name = %q, want aig", mod.Str)
	}

	var inputs, outputs, assigns int
	for _, child := range mod.Children {
		switch {
		case child.Type == ast.Wire && child.IsInput:
			inputs++
		case child.Type == ast.Wire && child.IsOutput:
			outputs++
		case child.Type == ast.Assign:
			assigns++
		}
	}
	if inputs != 2 || outputs != 1 {
		t.Errorf("got %d inputs, %d outputs, want 2 and 1", inputs, outputs)
	}
	// one AND gate plus two symbol aliases and one output alias
	if assigns < 2 {
		t.Errorf("got %d assigns, want the AND gate and the symbol aliases", assigns)
	}

	foundAnd := false
	for _, child := range mod.Children {
		if child.Type == ast.Assign && child.Children[1].Type == ast.BitAnd {
			foundAnd = true
		}
	}
	if !foundAnd {
		t.Error("AND gate assignment not found")
	}
}

func TestParseLatch(t *testing.T) {
	src := `aag 1 0 1 1 0
2 2
2
`
	mod, err := Parse(strings.NewReader(src), "clock")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var clk *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Wire && child.Str == "clock" {
			clk = child
		}
	}
	if clk == nil || !clk.IsInput {
		t.Fatal("clock input wire not created")
	}

	always := findType(mod, ast.Always)
	if always == nil {
		t.Fatal("latch process not created")
	}
	if always.Children[0].Type != ast.Posedge {
		t.Errorf("latch process sensitivity = %v, want posedge", always.Children[0].Type)
	}
	assign := always.Children[1].Children[0]
	if assign.Type != ast.AssignLe {
		t.Errorf("latch assignment = %v, want assign_le", assign.Type)
	}

	q := findWire(mod, "n1")
	if q == nil || !q.IsReg {
		t.Fatal("latch output wire n1 missing or not a reg")
	}
	if !q.GetBoolAttribute("init") && q.Attributes["init"] == nil {
		t.Error("latch has no init attribute (AIGER latches default to zero)")
	}
}

func TestInvertedLiteral(t *testing.T) {
	// output is the inverted input
	src := `aag 1 1 0 1 0
2
3
`
	mod, err := Parse(strings.NewReader(src), "clk")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	inv := findWire(mod, "n1_inv")
	if inv == nil || !inv.IsOutput {
		t.Fatal("inverted output wire n1_inv missing")
	}
	foundNot := false
	for _, child := range mod.Children {
		if child.Type == ast.Assign && child.Children[1].Type == ast.BitNot {
			foundNot = true
		}
	}
	if !foundNot {
		t.Error("no inverter assignment for the odd literal")
	}
}

func TestParseBinary(t *testing.T) {
	// binary counterpart of the ASCII AND "6 2 4": delta codes for "6 4 2"
	src := "aig 3 2 0 1 1\n6\n" + string([]byte{2, 2})
	mod, err := Parse(strings.NewReader(src), "clk")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	foundAnd := false
	for _, child := range mod.Children {
		if child.Type == ast.Assign && child.Children[1].Type == ast.BitAnd {
			foundAnd = true
		}
	}
	if !foundAnd {
		t.Error("AND gate not decoded from binary section")
	}
}

func TestBadHeader(t *testing.T) {
	if _, err := Parse(strings.NewReader("wrong 1 2 3\n"), "clk"); err == nil {
		t.Fatal("unsupported header must fail")
	}
}

func TestAigerModuleElaborates(t *testing.T) {
	mod, err := Parse(strings.NewReader(andAag), "clk")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := simplify.Module(mod, simplify.Options{}); err != nil {
		t.Fatalf("elaboration of AIGER module failed: %v", err)
	}
}

func findType(mod *ast.Node, typ ast.NodeType) *ast.Node {
	for _, child := range mod.Children {
		if child.Type == typ {
			return child
		}
	}
	return nil
}

func findWire(mod *ast.Node, name string) *ast.Node {
	for _, child := range mod.Children {
		if child.Type == ast.Wire && child.Str == name {
			return child
		}
	}
	return nil
}

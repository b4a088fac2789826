package parser

import (
	"testing"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/logic"
)

func parseOne(t *testing.T, src string) *ast.Node {
	t.Helper()
	modules, err := Parse(src, "test.v")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("got %d modules, want 1", len(modules))
	}
	return modules[0]
}

func findChild(mod *ast.Node, typ ast.NodeType, name string) *ast.Node {
	for _, child := range mod.Children {
		if child.Type == typ && child.Str == name {
			return child
		}
	}
	return nil
}

func TestParseModulePorts(t *testing.T) {
	mod := parseOne(t, `module top(a, b);
  input [3:0] a;
  output reg b;
endmodule`)

	if mod.Str != "top" {
		t.Fatalf("module name = %q, want top", mod.Str)
	}
	a := findChild(mod, ast.Wire, "a")
	if a == nil || a.PortID != 1 || !a.IsInput {
		t.Fatalf("wire a not declared as input port 1: %+v", a)
	}
	if len(a.Children) != 1 || a.Children[0].Type != ast.Range {
		t.Fatalf("wire a has no range child")
	}
	b := findChild(mod, ast.Wire, "b")
	if b == nil || b.PortID != 2 || !b.IsOutput || !b.IsReg {
		t.Fatalf("wire b not declared as output reg port 2: %+v", b)
	}
}

func TestParseAnsiPorts(t *testing.T) {
	mod := parseOne(t, `module top(input wire [7:0] a, output reg b);
endmodule`)
	a := findChild(mod, ast.Wire, "a")
	if a == nil || !a.IsInput || len(a.Children) != 1 {
		t.Fatalf("ANSI input a broken: %+v", a)
	}
	b := findChild(mod, ast.Wire, "b")
	if b == nil || !b.IsOutput || !b.IsReg {
		t.Fatalf("ANSI output b broken: %+v", b)
	}
}

func TestParseMemory(t *testing.T) {
	mod := parseOne(t, `module m;
  reg [7:0] mem [0:15];
endmodule`)
	mem := findChild(mod, ast.Memory, "mem")
	if mem == nil {
		t.Fatal("memory decl not found")
	}
	if !mem.IsReg {
		t.Error("memory must carry the reg flag")
	}
	if len(mem.Children) != 2 {
		t.Fatalf("memory has %d children, want 2 (word range, addr range)", len(mem.Children))
	}
}

func TestParseParameter(t *testing.T) {
	mod := parseOne(t, `module m;
  parameter [7:0] P = 3 + 5;
  localparam Q = 2;
endmodule`)
	p := findChild(mod, ast.Parameter, "P")
	if p == nil {
		t.Fatal("parameter P not found")
	}
	if p.Children[0].Type != ast.Add {
		t.Errorf("P initializer type = %v, want add", p.Children[0].Type)
	}
	if len(p.Children) != 2 || p.Children[1].Type != ast.Range {
		t.Error("P has no range child")
	}
	if findChild(mod, ast.Localparam, "Q") == nil {
		t.Error("localparam Q not found")
	}
}

func TestParseNumberLiterals(t *testing.T) {
	mod := parseOne(t, `module m;
  localparam A = 8'hff;
  localparam B = 4'b10xz;
  localparam C = 42;
  localparam D = 8'sd5;
endmodule`)

	a := findChild(mod, ast.Localparam, "A").Children[0]
	if len(a.Bits) != 8 || a.Integer != 255 {
		t.Errorf("8'hff = %d bits value %d, want 8 bits 255", len(a.Bits), a.Integer)
	}
	b := findChild(mod, ast.Localparam, "B").Children[0]
	if len(b.Bits) != 4 {
		t.Fatalf("4'b10xz = %d bits, want 4", len(b.Bits))
	}
	if b.Bits[0] != logic.Sz || b.Bits[1] != logic.Sx || b.Bits[2] != logic.S0 || b.Bits[3] != logic.S1 {
		t.Errorf("4'b10xz bits = %v", b.Bits)
	}
	c := findChild(mod, ast.Localparam, "C").Children[0]
	if len(c.Bits) != 32 || !c.IsSigned || c.Integer != 42 {
		t.Errorf("unsized decimal = %d bits signed=%v value %d", len(c.Bits), c.IsSigned, c.Integer)
	}
	d := findChild(mod, ast.Localparam, "D").Children[0]
	if !d.IsSigned {
		t.Error("8'sd5 must be signed")
	}
}

func TestParsePrecedence(t *testing.T) {
	mod := parseOne(t, `module m;
  wire x;
  assign x = 1 + 2 * 3;
endmodule`)
	var assign *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Assign {
			assign = child
		}
	}
	if assign == nil {
		t.Fatal("assign not found")
	}
	rhs := assign.Children[1]
	if rhs.Type != ast.Add {
		t.Fatalf("rhs type = %v, want add", rhs.Type)
	}
	if rhs.Children[1].Type != ast.Mul {
		t.Errorf("mul must bind tighter than add, got %v", rhs.Children[1].Type)
	}
}

func TestParseAlwaysSensitivity(t *testing.T) {
	mod := parseOne(t, `module m;
  reg q;
  always @(posedge clk or negedge rst) q <= 1'b1;
  always @* q = 1'b0;
endmodule`)

	var alwaysNodes []*ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Always {
			alwaysNodes = append(alwaysNodes, child)
		}
	}
	if len(alwaysNodes) != 2 {
		t.Fatalf("got %d always blocks, want 2", len(alwaysNodes))
	}
	first := alwaysNodes[0]
	if first.Children[0].Type != ast.Posedge || first.Children[1].Type != ast.Negedge {
		t.Errorf("sensitivity list = %v, %v", first.Children[0].Type, first.Children[1].Type)
	}
	if first.Children[2].Type != ast.Block ||
		first.Children[2].Children[0].Type != ast.AssignLe {
		t.Error("always body must be a block with a non-blocking assignment")
	}
	star := alwaysNodes[1]
	if len(star.Children) != 1 || star.Children[0].Type != ast.Block {
		t.Errorf("always @* must have only a block child, got %d children", len(star.Children))
	}
}

func TestParseIfBecomesCase(t *testing.T) {
	mod := parseOne(t, `module m;
  reg q;
  always @* begin
    if (q) q = 0; else q = 1;
  end
endmodule`)
	var always *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Always {
			always = child
		}
	}
	stmt := always.Children[0].Children[0]
	if stmt.Type != ast.Case {
		t.Fatalf("if statement parsed as %v, want case", stmt.Type)
	}
	if stmt.Children[0].Type != ast.ReduceBool {
		t.Errorf("case discriminant = %v, want reduce_bool", stmt.Children[0].Type)
	}
	if len(stmt.Children) != 3 {
		t.Fatalf("case has %d children, want discriminant + 2 arms", len(stmt.Children))
	}
	if stmt.Children[2].Children[0].Type != ast.Default {
		t.Error("else arm must carry a default marker")
	}
}

func TestParseGenerateFor(t *testing.T) {
	mod := parseOne(t, `module m;
  genvar i;
  generate for (i = 0; i < 3; i = i + 1) begin : blk
    wire w;
  end endgenerate
endmodule`)

	if findChild(mod, ast.Genvar, "i") == nil {
		t.Fatal("genvar i not found")
	}
	var genfor *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.GenFor {
			genfor = child
		}
	}
	if genfor == nil {
		t.Fatal("genfor not found")
	}
	if len(genfor.Children) != 4 {
		t.Fatalf("genfor has %d children, want 4", len(genfor.Children))
	}
	body := genfor.Children[3]
	if body.Type != ast.GenBlock || body.Str != "blk" {
		t.Errorf("genfor body = %v %q, want named genblock", body.Type, body.Str)
	}
}

func TestParseFunction(t *testing.T) {
	mod := parseOne(t, `module m;
  function integer f;
    input integer x;
    begin
      f = x * x;
    end
  endfunction
  localparam Q = f(5);
endmodule`)

	fn := findChild(mod, ast.Function, "f")
	if fn == nil {
		t.Fatal("function f not found")
	}
	result := fn.Children[0]
	if result.Type != ast.Wire || result.Str != "f" || !result.IsSigned {
		t.Errorf("result wire broken: %v %q signed=%v", result.Type, result.Str, result.IsSigned)
	}
	var input *ast.Node
	for _, child := range fn.Children[1:] {
		if child.Type == ast.Wire && child.Str == "x" {
			input = child
		}
	}
	if input == nil || !input.IsInput {
		t.Fatal("input x not declared on function")
	}
	q := findChild(mod, ast.Localparam, "Q")
	if q.Children[0].Type != ast.FCall || q.Children[0].Str != "f" {
		t.Errorf("Q initializer = %v %q, want fcall f", q.Children[0].Type, q.Children[0].Str)
	}
}

func TestParseCellWithParams(t *testing.T) {
	mod := parseOne(t, `module m;
  sub #(.W(8)) u0 (.a(x), .b(y));
  defparam u0.D = 4;
endmodule`)

	cell := findChild(mod, ast.Cell, "u0")
	if cell == nil {
		t.Fatal("cell u0 not found")
	}
	if cell.Children[0].Type != ast.CellType || cell.Children[0].Str != "sub" {
		t.Errorf("celltype = %v %q", cell.Children[0].Type, cell.Children[0].Str)
	}
	if cell.Children[1].Type != ast.Paraset || cell.Children[1].Str != "W" {
		t.Errorf("paraset = %v %q", cell.Children[1].Type, cell.Children[1].Str)
	}
	var dp *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Defparam {
			dp = child
		}
	}
	if dp == nil || dp.Str != "u0.D" {
		t.Fatalf("defparam = %+v, want u0.D", dp)
	}
}

func TestParsePrimitive(t *testing.T) {
	mod := parseOne(t, `module m;
  and g1 (o, a, b);
endmodule`)
	var prim *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Primitive {
			prim = child
		}
	}
	if prim == nil || prim.Str != "and" {
		t.Fatal("primitive not found")
	}
	if len(prim.Children) != 3 {
		t.Fatalf("primitive has %d arguments, want 3", len(prim.Children))
	}
	for _, arg := range prim.Children {
		if arg.Type != ast.Argument || len(arg.Children) != 1 {
			t.Errorf("bad argument node: %v with %d children", arg.Type, len(arg.Children))
		}
	}
}

func TestParseConcatReplicate(t *testing.T) {
	mod := parseOne(t, `module m;
  wire [7:0] x;
  assign x = {2{a, b}};
  assign y = {a, b, c};
endmodule`)
	var assigns []*ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Assign {
			assigns = append(assigns, child)
		}
	}
	if assigns[0].Children[1].Type != ast.Replicate {
		t.Errorf("first rhs = %v, want replicate", assigns[0].Children[1].Type)
	}
	if assigns[1].Children[1].Type != ast.Concat || len(assigns[1].Children[1].Children) != 3 {
		t.Errorf("second rhs = %v, want 3-element concat", assigns[1].Children[1].Type)
	}
}

func TestParseAttributes(t *testing.T) {
	mod := parseOne(t, `module m;
  (* nomem2reg *) reg [7:0] mem [0:3];
endmodule`)
	mem := findChild(mod, ast.Memory, "mem")
	if mem == nil {
		t.Fatal("memory not found")
	}
	if !mem.GetBoolAttribute("nomem2reg") {
		t.Error("nomem2reg attribute not attached")
	}
}

func TestParsePrefixSyntax(t *testing.T) {
	mod := parseOne(t, `module m;
  assign x = blk[2].w;
endmodule`)
	var assign *ast.Node
	for _, child := range mod.Children {
		if child.Type == ast.Assign {
			assign = child
		}
	}
	rhs := assign.Children[1]
	if rhs.Type != ast.Prefix || rhs.Str != "blk" {
		t.Fatalf("rhs = %v %q, want prefix blk", rhs.Type, rhs.Str)
	}
	if rhs.Children[1].Type != ast.Identifier || rhs.Children[1].Str != "w" {
		t.Errorf("prefix target = %v %q", rhs.Children[1].Type, rhs.Children[1].Str)
	}
}

func TestParseErrorReported(t *testing.T) {
	if _, err := Parse("module m; wire; endmodule garbage", "bad.v"); err == nil {
		t.Fatal("malformed input must be rejected with an error")
	}
}

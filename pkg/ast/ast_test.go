package ast

import (
	"strings"
	"testing"

	"github.com/verikit/verikit/pkg/logic"
)

func TestCloneIsDeep(t *testing.T) {
	n := NewNode(Add, ConstInt(1, false, 8), ConstInt(2, false, 8))
	n.SetAttribute("keep", ConstInt(1, false, 32))
	c := n.Clone()

	c.Children[0].Integer = 42
	c.Children[0].Bits[0] = logic.S0
	if n.Children[0].Integer != 1 {
		t.Error("clone shares child nodes with the original")
	}
	c.Attributes["keep"].Integer = 0
	if n.Attributes["keep"].Integer != 1 {
		t.Error("clone shares attribute nodes with the original")
	}
}

func TestCloneIntoPreservesIdentity(t *testing.T) {
	dst := NewNode(Identifier)
	dst.Str = "foo"
	ref := dst

	ConstInt(7, false, 8).CloneInto(dst)
	if ref.Type != Constant || ref.Integer != 7 {
		t.Errorf("CloneInto did not replace contents in place: %v %d", ref.Type, ref.Integer)
	}
}

func TestMemInfo(t *testing.T) {
	mem := NewNode(Memory,
		NewNode(Range, ConstInt(7, true, 32), ConstInt(0, true, 32)),
		NewNode(Range, ConstInt(0, true, 32), ConstInt(15, true, 32)))
	mem.Children[0].RangeValid = true
	mem.Children[0].RangeLeft, mem.Children[0].RangeRight = 7, 0
	mem.Children[1].RangeValid = true
	mem.Children[1].RangeLeft, mem.Children[1].RangeRight = 0, 15

	width, size, addrBits := mem.MemInfo()
	if width != 8 || size != 16 || addrBits != 4 {
		t.Errorf("MemInfo = (%d, %d, %d), want (8, 16, 4)", width, size, addrBits)
	}
}

func TestMemInfoNonPowerOfTwo(t *testing.T) {
	mem := NewNode(Memory,
		NewNode(Range, ConstInt(3, true, 32), ConstInt(0, true, 32)),
		NewNode(Range, ConstInt(0, true, 32), ConstInt(9, true, 32)))
	mem.Children[0].RangeValid = true
	mem.Children[0].RangeLeft = 3
	mem.Children[1].RangeValid = true
	mem.Children[1].RangeRight = 9

	_, size, addrBits := mem.MemInfo()
	if size != 10 || addrBits != 4 {
		t.Errorf("MemInfo = size %d addr %d, want size 10 addr 4", size, addrBits)
	}
}

func TestGetBoolAttribute(t *testing.T) {
	n := NewNode(Memory)
	if n.GetBoolAttribute("mem2reg") {
		t.Error("missing attribute must read false")
	}
	n.SetAttribute("mem2reg", ConstInt(1, false, 32))
	if !n.GetBoolAttribute("mem2reg") {
		t.Error("set attribute must read true")
	}
	n.SetAttribute("mem2reg", ConstInt(0, false, 32))
	if n.GetBoolAttribute("mem2reg") {
		t.Error("zero-valued attribute must read false")
	}
}

func TestContains(t *testing.T) {
	inner := ConstInt(1, false, 1)
	outer := NewNode(Block, NewNode(AssignEq, NewNode(Identifier), inner))
	if !outer.Contains(inner) {
		t.Error("Contains must find a nested descendant")
	}
	if outer.Contains(ConstInt(1, false, 1)) {
		t.Error("Contains must compare node identity, not value")
	}
}

func TestDump(t *testing.T) {
	mod := NewNode(Module)
	mod.Str = "top"
	wire := NewNode(Wire)
	wire.Str = "w"
	wire.RangeValid = true
	wire.RangeLeft = 7
	wire.IsSigned = true
	mod.Children = append(mod.Children, wire)

	out := mod.DumpString()
	if !strings.Contains(out, "module 'top'") {
		t.Errorf("dump missing module line:\n%s", out)
	}
	if !strings.Contains(out, "  wire 'w' signed [7:0]") {
		t.Errorf("dump missing wire line:\n%s", out)
	}
}

func TestConstBitsSetsInteger(t *testing.T) {
	n := ConstBits(logic.FromInt(25, 32).Bits, true)
	if n.Integer != 25 {
		t.Errorf("Integer = %d, want 25", n.Integer)
	}
}

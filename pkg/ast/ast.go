// Package ast defines the abstract syntax tree shared by the HDL frontends
// and the elaborator. There is a single node type with a kind discriminator;
// child positions are semantically meaningful and documented on the
// constructors in the parser.
package ast

import (
	"math"
	"math/big"

	"github.com/verikit/verikit/pkg/logic"
)

// NodeType classifies an AST node.
type NodeType int

const (
	None NodeType = iota

	Module
	Wire
	AutoWire
	Memory
	Parameter
	Localparam
	Defparam
	Paraset
	Genvar
	Range
	Prefix
	Identifier
	Constant
	RealValue

	Always
	Initial
	Block
	GenBlock
	GenIf
	GenCase
	GenFor
	For
	While
	Repeat
	Case
	Cond
	Default
	Assign
	AssignEq
	AssignLe

	FCall
	TCall
	Function
	Task
	Argument
	Cell
	CellType
	CellArray
	Primitive
	MemRd
	MemWr
	Assert

	Posedge
	Negedge
	Edge

	ToBits
	ToSigned
	ToUnsigned
	Concat
	Replicate
	Ternary

	Neg
	Pos
	BitNot
	BitAnd
	BitOr
	BitXor
	BitXnor
	ReduceAnd
	ReduceOr
	ReduceXor
	ReduceXnor
	ReduceBool
	LogicAnd
	LogicOr
	LogicNot
	Add
	Sub
	Mul
	Div
	Mod
	ShiftLeft
	ShiftRight
	ShiftSLeft
	ShiftSRight
	Pow
	Lt
	Le
	Eq
	Ne
	Eqx
	Nex
	Ge
	Gt
)

var typeNames = map[NodeType]string{
	None:        "none",
	Module:      "module",
	Wire:        "wire",
	AutoWire:    "autowire",
	Memory:      "memory",
	Parameter:   "parameter",
	Localparam:  "localparam",
	Defparam:    "defparam",
	Paraset:     "paraset",
	Genvar:      "genvar",
	Range:       "range",
	Prefix:      "prefix",
	Identifier:  "identifier",
	Constant:    "constant",
	RealValue:   "realvalue",
	Always:      "always",
	Initial:     "initial",
	Block:       "block",
	GenBlock:    "genblock",
	GenIf:       "genif",
	GenCase:     "gencase",
	GenFor:      "genfor",
	For:         "for",
	While:       "while",
	Repeat:      "repeat",
	Case:        "case",
	Cond:        "cond",
	Default:     "default",
	Assign:      "assign",
	AssignEq:    "assign_eq",
	AssignLe:    "assign_le",
	FCall:       "fcall",
	TCall:       "tcall",
	Function:    "function",
	Task:        "task",
	Argument:    "argument",
	Cell:        "cell",
	CellType:    "celltype",
	CellArray:   "cellarray",
	Primitive:   "primitive",
	MemRd:       "memrd",
	MemWr:       "memwr",
	Assert:      "assert",
	Posedge:     "posedge",
	Negedge:     "negedge",
	Edge:        "edge",
	ToBits:      "to_bits",
	ToSigned:    "to_signed",
	ToUnsigned:  "to_unsigned",
	Concat:      "concat",
	Replicate:   "replicate",
	Ternary:     "ternary",
	Neg:         "neg",
	Pos:         "pos",
	BitNot:      "bit_not",
	BitAnd:      "bit_and",
	BitOr:       "bit_or",
	BitXor:      "bit_xor",
	BitXnor:     "bit_xnor",
	ReduceAnd:   "reduce_and",
	ReduceOr:    "reduce_or",
	ReduceXor:   "reduce_xor",
	ReduceXnor:  "reduce_xnor",
	ReduceBool:  "reduce_bool",
	LogicAnd:    "logic_and",
	LogicOr:     "logic_or",
	LogicNot:    "logic_not",
	Add:         "add",
	Sub:         "sub",
	Mul:         "mul",
	Div:         "div",
	Mod:         "mod",
	ShiftLeft:   "shift_left",
	ShiftRight:  "shift_right",
	ShiftSLeft:  "shift_sleft",
	ShiftSRight: "shift_sright",
	Pow:         "pow",
	Lt:          "lt",
	Le:          "le",
	Eq:          "eq",
	Ne:          "ne",
	Eqx:         "eqx",
	Nex:         "nex",
	Ge:          "ge",
	Gt:          "gt",
}

func (t NodeType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "invalid"
}

// Node is an AST node. Children form a tree; ID2Ast is a non-owning
// reference to the declaration a name resolved to and is only valid while
// that declaration is part of the same module.
type Node struct {
	Type       NodeType
	Children   []*Node
	Attributes map[string]*Node

	Str       string
	Integer   int
	Bits      []logic.State
	RealValue float64

	IsInput  bool
	IsOutput bool
	IsReg    bool
	IsSigned bool
	IsString bool
	PortID   int

	RangeValid bool
	RangeLeft  int
	RangeRight int

	BasicPrep bool
	ID2Ast    *Node

	Filename string
	Linenum  int
}

// NewNode creates a node of the given type with the given children.
func NewNode(t NodeType, children ...*Node) *Node {
	return &Node{Type: t, Children: children}
}

// ConstInt creates a constant node from an integer. A width below zero
// yields the default 32 bits.
func ConstInt(value int, signed bool, width int) *Node {
	c := logic.FromInt(value, width)
	return &Node{
		Type:     Constant,
		Integer:  value,
		Bits:     c.Bits,
		IsSigned: signed,
	}
}

// ConstBits creates a constant node from a bit vector.
func ConstBits(bits []logic.State, signed bool) *Node {
	n := &Node{Type: Constant, Bits: bits, IsSigned: signed}
	n.Integer = logic.FromBits(bits).AsInt()
	return n
}

// ConstStr creates a string constant node from a bit vector.
func ConstStr(bits []logic.State) *Node {
	n := ConstBits(bits, false)
	n.IsString = true
	return n
}

// Real creates a real-valued constant node.
func Real(v float64) *Node {
	return &Node{Type: RealValue, RealValue: v}
}

// Clone deep-copies the node. The ID2Ast back-reference is copied as-is;
// it still points into the original tree.
func (n *Node) Clone() *Node {
	c := &Node{}
	*c = *n
	c.Children = make([]*Node, len(n.Children))
	for i, child := range n.Children {
		c.Children[i] = child.Clone()
	}
	if n.Attributes != nil {
		c.Attributes = make(map[string]*Node, len(n.Attributes))
		for name, attr := range n.Attributes {
			c.Attributes[name] = attr.Clone()
		}
	}
	if n.Bits != nil {
		c.Bits = append([]logic.State(nil), n.Bits...)
	}
	return c
}

// CloneInto replaces dst's contents with a deep copy of n. The dst pointer
// identity is preserved so references into the tree stay valid.
func (n *Node) CloneInto(dst *Node) {
	*dst = *n.Clone()
}

// DeleteChildren removes all children.
func (n *Node) DeleteChildren() {
	n.Children = nil
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	if n == other {
		return true
	}
	for _, child := range n.Children {
		if child.Contains(other) {
			return true
		}
	}
	return false
}

// Equal reports structural equality of two subtrees. Back-references and
// source positions are not compared.
func (n *Node) Equal(other *Node) bool {
	if n.Type != other.Type || n.Str != other.Str || n.Integer != other.Integer ||
		n.RealValue != other.RealValue ||
		n.IsSigned != other.IsSigned || n.IsReg != other.IsReg ||
		n.IsInput != other.IsInput || n.IsOutput != other.IsOutput ||
		len(n.Bits) != len(other.Bits) || len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Bits {
		if n.Bits[i] != other.Bits[i] {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// GetBoolAttribute reports whether the named attribute is present and true.
func (n *Node) GetBoolAttribute(name string) bool {
	attr, ok := n.Attributes[name]
	if !ok {
		return false
	}
	return attr.Type == Constant && attr.Integer != 0
}

// SetAttribute attaches an attribute, replacing any previous value.
func (n *Node) SetAttribute(name string, value *Node) {
	if n.Attributes == nil {
		n.Attributes = make(map[string]*Node)
	}
	n.Attributes[name] = value
}

// IsConst reports whether the node is a bit or real constant.
func (n *Node) IsConst() bool {
	return n.Type == Constant || n.Type == RealValue
}

// BitsAsConst returns the node's bits resized to the given width, sign
// extending when the node is signed. A width below zero keeps the natural
// width.
func (n *Node) BitsAsConst(width int, signed bool) logic.Const {
	c := logic.FromBits(n.Bits)
	if width < 0 {
		width = len(n.Bits)
	}
	return c.ExtendU0(width, signed)
}

// AsBool reports whether any bit of the constant is 1.
func (n *Node) AsBool() bool {
	return logic.FromBits(n.Bits).AsBool()
}

// AsInt returns the constant interpreted as an integer.
func (n *Node) AsInt(signed bool) int {
	v := logic.FromBits(n.Bits).AsBigInt(signed && n.IsSigned)
	return int(v.Int64())
}

// AsReal converts the constant to a floating-point value.
func (n *Node) AsReal(signed bool) float64 {
	if n.Type == RealValue {
		return n.RealValue
	}
	v := logic.FromBits(n.Bits).AsBigInt(signed && n.IsSigned)
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// RealAsConst rounds the node's real value to the nearest integer and
// returns it as a bitvector of the given width.
func (n *Node) RealAsConst(width int) logic.Const {
	v := math.Round(n.RealValue)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return logic.Repeated(logic.Sx, width)
	}
	return logic.FromInt(int(v), width)
}

// MemInfo computes the word width, number of words, and address width of a
// memory declaration. Children[0] is the word range, children[1] the
// address range; both must have folded to constants.
func (n *Node) MemInfo() (memWidth, memSize, addrBits int) {
	memWidth = n.Children[0].RangeLeft - n.Children[0].RangeRight + 1
	memSize = n.Children[1].RangeLeft - n.Children[1].RangeRight
	if memSize < 0 {
		memSize = -memSize
	}
	lo := n.Children[1].RangeLeft
	if n.Children[1].RangeRight < lo {
		lo = n.Children[1].RangeRight
	}
	memSize += lo + 1
	addrBits = 1
	for (1 << uint(addrBits)) < memSize {
		addrBits++
	}
	return memWidth, memSize, addrBits
}

// Package aiger reads AIGER and-inverter graph files (The AIGER Format
// Version 20071012, both the "aag" ASCII and "aig" binary variants,
// including the optional AIGER 1.9 header counts) and builds a module AST
// that elaborates through the same frontend core as parsed Verilog.
package aiger

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/verikit/verikit/pkg/ast"
)

type reader struct {
	br  *bufio.Reader
	mod *ast.Node

	wires map[uint]*ast.Node // literal -> wire (even literals and inverted variants)
	clk   string
}

// Parse reads an AIGER file and returns the equivalent module AST. Latches
// become non-blocking assignments under posedge of the named clock; AND
// gates and inverters become continuous assignments.
func Parse(r io.Reader, clkName string) (*ast.Node, error) {
	rd := &reader{
		br:    bufio.NewReader(r),
		wires: make(map[uint]*ast.Node),
		clk:   clkName,
	}
	rd.mod = ast.NewNode(ast.Module)
	rd.mod.Str = "aig"

	header, err := rd.word()
	if err != nil {
		return nil, errors.Wrap(err, "reading AIGER header")
	}
	switch header {
	case "aag":
		err = rd.parse(false)
	case "aig":
		err = rd.parse(true)
	default:
		return nil, errors.Errorf("unsupported AIGER file (header %q)", header)
	}
	if err != nil {
		return nil, err
	}
	rd.fixupPorts()
	return rd.mod, nil
}

// word reads the next whitespace-separated token.
func (rd *reader) word() (string, error) {
	var sb strings.Builder
	for {
		ch, err := rd.br.ReadByte()
		if err != nil {
			if sb.Len() > 0 && err == io.EOF {
				return sb.String(), nil
			}
			return "", err
		}
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			if sb.Len() > 0 {
				if ch == '\n' {
					_ = rd.br.UnreadByte()
				}
				return sb.String(), nil
			}
			continue
		}
		sb.WriteByte(ch)
	}
}

func (rd *reader) uint(what string, line uint) (uint, error) {
	w, err := rd.word()
	if err != nil {
		return 0, errors.Wrapf(err, "line %d cannot be interpreted as %s", line, what)
	}
	var v uint
	if _, err := fmt.Sscanf(w, "%d", &v); err != nil {
		return 0, errors.Wrapf(err, "line %d cannot be interpreted as %s", line, what)
	}
	return v, nil
}

// restOfLine consumes up to and including the next newline.
func (rd *reader) restOfLine() string {
	line, _ := rd.br.ReadString('\n')
	return strings.TrimRight(line, "\n")
}

// peekByte returns the next byte without consuming it.
func (rd *reader) peekByte() (byte, error) {
	b, err := rd.br.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// wire returns the wire for a literal, creating it (and for inverted
// literals the inverter assignment) on first use.
func (rd *reader) wire(literal uint) *ast.Node {
	if w, ok := rd.wires[literal]; ok {
		return w
	}
	variable := literal >> 1
	invert := literal&1 != 0

	name := fmt.Sprintf("n%d", variable)
	if invert {
		name += "_inv"
	}
	w := ast.NewNode(ast.Wire)
	w.Str = name
	rd.mod.Children = append(rd.mod.Children, w)
	rd.wires[literal] = w

	switch {
	case literal == 0 || literal == 1:
		// the variable 0 literals are the constants false and true
		lhs := ast.NewNode(ast.Identifier)
		lhs.Str = w.Str
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Assign, lhs, ast.ConstInt(int(literal), false, 1)))
	case invert:
		src := rd.wire(literal &^ 1)
		lhs := ast.NewNode(ast.Identifier)
		lhs.Str = w.Str
		rhs := ast.NewNode(ast.Identifier)
		rhs.Str = src.Str
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Assign, lhs, ast.NewNode(ast.BitNot, rhs)))
	}
	return w
}

type header struct {
	m, i, l, o, a uint
	b, c, j, f    uint // optional in AIGER 1.9
}

func (rd *reader) header() (h header, err error) {
	required := []*uint{&h.m, &h.i, &h.l, &h.o, &h.a}
	for _, field := range required {
		if *field, err = rd.uint("a header field", 0); err != nil {
			return h, errors.Wrap(err, "invalid AIGER header")
		}
	}
	optional := []*uint{&h.b, &h.c, &h.j, &h.f}
	for _, field := range optional {
		ch, err := rd.peekByte()
		if err != nil || ch == '\n' {
			break
		}
		if *field, err = rd.uint("a header field", 0); err != nil {
			return h, errors.Wrap(err, "invalid AIGER header")
		}
	}
	rd.restOfLine()
	return h, nil
}

func (rd *reader) parse(binary bool) error {
	h, err := rd.header()
	if err != nil {
		return err
	}

	lineCount := uint(1)

	// inputs
	var inputs []*ast.Node
	for i := uint(0); i < h.i; i++ {
		lit := (i + 1) << 1
		if !binary {
			if lit, err = rd.uint("an input", lineCount); err != nil {
				return err
			}
			if lit&1 != 0 {
				return errors.Errorf("line %d has an inverted input literal", lineCount)
			}
			lineCount++
		}
		w := rd.wire(lit)
		w.IsInput = true
		inputs = append(inputs, w)
	}

	// latches
	var latches []*ast.Node
	var clkWire *ast.Node
	if h.l > 0 {
		clkWire = ast.NewNode(ast.Wire)
		clkWire.Str = rd.clk
		clkWire.IsInput = true
		rd.mod.Children = append(rd.mod.Children, clkWire)
	}
	nextLit := (h.i + 1) * 2
	for i := uint(0); i < h.l; i++ {
		qLit := nextLit
		if !binary {
			if qLit, err = rd.uint("a latch", lineCount); err != nil {
				return err
			}
			if qLit&1 != 0 {
				return errors.Errorf("line %d has an inverted latch output", lineCount)
			}
		}
		dLit, err := rd.uint("a latch", lineCount)
		if err != nil {
			return err
		}
		qWire := rd.wire(qLit)
		dWire := rd.wire(dLit)

		clkID := ast.NewNode(ast.Identifier)
		clkID.Str = clkWire.Str
		qID := ast.NewNode(ast.Identifier)
		qID.Str = qWire.Str
		qID.Filename = "aiger"
		qID.Linenum = int(lineCount)
		dID := ast.NewNode(ast.Identifier)
		dID.Str = dWire.Str
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Always, ast.NewNode(ast.Posedge, clkID),
				ast.NewNode(ast.Block, ast.NewNode(ast.AssignLe, qID, dID))))
		qWire.IsReg = true

		// reset value is optional in AIGER 1.9; latches default to zero
		if ch, err := rd.peekByte(); err == nil && ch >= '0' && ch <= '9' {
			reset, err := rd.uint("a latch", lineCount)
			if err != nil {
				return err
			}
			switch {
			case reset == 0 || reset == 1:
				qWire.SetAttribute("init", ast.ConstInt(int(reset), false, 1))
			case reset == qLit:
				// uninitialized latch
			default:
				return errors.Errorf("line %d has invalid reset literal for latch", lineCount)
			}
		} else {
			qWire.SetAttribute("init", ast.ConstInt(0, false, 1))
		}
		latches = append(latches, qWire)
		lineCount++
		nextLit += 2
	}

	// outputs
	var outputs []*ast.Node
	for i := uint(0); i < h.o; i++ {
		lit, err := rd.uint("an output", lineCount)
		if err != nil {
			return err
		}
		w := rd.wire(lit)
		w.IsOutput = true
		outputs = append(outputs, w)
		lineCount++
	}
	rd.restOfLine()

	// bad state, invariant, justice and fairness sections are skipped
	for i := uint(0); i < h.b+h.c+h.j+h.f; i++ {
		rd.restOfLine()
		lineCount++
	}

	// AND gates
	andLit := (h.i + h.l + 1) << 1
	for i := uint(0); i < h.a; i++ {
		var l1, l2, l3 uint
		if binary {
			l1 = andLit
			if l2, err = rd.deltaLiteral(l1); err != nil {
				return errors.Wrapf(err, "line %d cannot be interpreted as an AND", lineCount)
			}
			if l3, err = rd.deltaLiteral(l2); err != nil {
				return errors.Wrapf(err, "line %d cannot be interpreted as an AND", lineCount)
			}
			andLit += 2
		} else {
			if l1, err = rd.uint("an AND", lineCount); err != nil {
				return err
			}
			if l1&1 != 0 {
				return errors.Errorf("line %d has an inverted AND output", lineCount)
			}
			if l2, err = rd.uint("an AND", lineCount); err != nil {
				return err
			}
			if l3, err = rd.uint("an AND", lineCount); err != nil {
				return err
			}
		}

		oWire := rd.wire(l1)
		i1 := rd.wire(l2)
		i2 := rd.wire(l3)

		lhs := ast.NewNode(ast.Identifier)
		lhs.Str = oWire.Str
		a := ast.NewNode(ast.Identifier)
		a.Str = i1.Str
		b := ast.NewNode(ast.Identifier)
		b.Str = i2.Str
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Assign, lhs, ast.NewNode(ast.BitAnd, a, b)))
		lineCount++
	}
	if !binary {
		rd.restOfLine()
	}

	return rd.symbols(inputs, latches, outputs)
}

// deltaLiteral decodes one variable-length delta code of the binary format.
func (rd *reader) deltaLiteral(ref uint) (uint, error) {
	var x uint
	var i uint
	for {
		ch, err := rd.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if ch&0x80 == 0 {
			x |= uint(ch) << (7 * i)
			return ref - x, nil
		}
		x |= uint(ch&0x7f) << (7 * i)
		i++
	}
}

// symbols applies the trailing symbol table, renaming ports.
func (rd *reader) symbols(inputs, latches, outputs []*ast.Node) error {
	lineCount := uint(1)
	for {
		ch, err := rd.peekByte()
		if err != nil {
			return nil // EOF
		}
		switch ch {
		case 'i', 'l', 'o':
			_, _ = rd.br.ReadByte()
			pos, err := rd.uint("a symbol entry", lineCount)
			if err != nil {
				return err
			}
			name, err := rd.word()
			if err != nil {
				return errors.Wrapf(err, "line %d cannot be interpreted as a symbol entry", lineCount)
			}
			var list []*ast.Node
			switch ch {
			case 'i':
				list = inputs
			case 'l':
				list = latches
			case 'o':
				list = outputs
			}
			if pos >= uint(len(list)) {
				return errors.Errorf("line %d has invalid symbol position", lineCount)
			}
			rd.applySymbol(ch, list[pos], name)
			rd.restOfLine()
		case 'b', 'j', 'f':
			rd.restOfLine()
		case 'c':
			// comment section, ignore the rest of the file
			return nil
		case '\n':
			_, _ = rd.br.ReadByte()
		default:
			return errors.Errorf("line %d: cannot interpret first character %q", lineCount, ch)
		}
		lineCount++
	}
}

// applySymbol gives a port or latch its symbolic name. The internal
// literal wire keeps its name so existing references stay valid; the
// symbol becomes an alias wire connected by a continuous assignment.
func (rd *reader) applySymbol(kind byte, w *ast.Node, name string) {
	alias := ast.NewNode(ast.Wire)
	alias.Str = name
	aliasID := ast.NewNode(ast.Identifier)
	aliasID.Str = name
	wireID := ast.NewNode(ast.Identifier)
	wireID.Str = w.Str

	switch kind {
	case 'i':
		alias.IsInput = true
		w.IsInput = false
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Assign, wireID, aliasID))
	case 'o':
		alias.IsOutput = true
		w.IsOutput = false
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Assign, aliasID, wireID))
	default: // latch state name
		rd.mod.Children = append(rd.mod.Children,
			ast.NewNode(ast.Assign, aliasID, wireID))
	}
	rd.mod.Children = append(rd.mod.Children, alias)
}

// fixupPorts assigns port ids: inputs first, then outputs.
func (rd *reader) fixupPorts() {
	portID := 0
	for _, child := range rd.mod.Children {
		if child.Type == ast.Wire && child.IsInput {
			portID++
			child.PortID = portID
		}
	}
	for _, child := range rd.mod.Children {
		if child.Type == ast.Wire && child.IsOutput {
			portID++
			child.PortID = portID
		}
	}
}

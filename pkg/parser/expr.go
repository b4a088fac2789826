package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/lexer"
	"github.com/verikit/verikit/pkg/logic"
)

// binary operator precedence levels, low to high; each level lists the
// tokens at that level and the node type they produce
var binaryLevels = []map[lexer.TokenType]ast.NodeType{
	{lexer.TokenLogicOr: ast.LogicOr},
	{lexer.TokenLogicAnd: ast.LogicAnd},
	{lexer.TokenPipe: ast.BitOr},
	{lexer.TokenCaret: ast.BitXor, lexer.TokenXnorOp: ast.BitXnor},
	{lexer.TokenAmp: ast.BitAnd},
	{lexer.TokenEq: ast.Eq, lexer.TokenNe: ast.Ne, lexer.TokenEqx: ast.Eqx, lexer.TokenNex: ast.Nex},
	{lexer.TokenLt: ast.Lt, lexer.TokenLe: ast.Le, lexer.TokenGt: ast.Gt, lexer.TokenGe: ast.Ge},
	{lexer.TokenShl: ast.ShiftLeft, lexer.TokenShr: ast.ShiftRight,
		lexer.TokenSshl: ast.ShiftSLeft, lexer.TokenSshr: ast.ShiftSRight},
	{lexer.TokenPlus: ast.Add, lexer.TokenMinus: ast.Sub},
	{lexer.TokenStar: ast.Mul, lexer.TokenSlash: ast.Div, lexer.TokenPercent: ast.Mod},
	{lexer.TokenPower: ast.Pow},
}

// parseExpr parses a full expression including the ternary operator.
func (p *Parser) parseExpr() *ast.Node {
	cond := p.parseBinary(0)
	if !p.curTokenIs(lexer.TokenQuestion) {
		return cond
	}
	ternary := p.node(ast.Ternary, cond)
	p.nextToken()
	ternary.Children = append(ternary.Children, p.parseExpr())
	p.expect(lexer.TokenColon)
	ternary.Children = append(ternary.Children, p.parseExpr())
	return ternary
}

func (p *Parser) parseBinary(level int) *ast.Node {
	if level >= len(binaryLevels) {
		return p.parseUnary()
	}
	left := p.parseBinary(level + 1)
	for {
		typ, ok := binaryLevels[level][p.curToken.Type]
		if !ok {
			return left
		}
		op := p.node(typ, left)
		p.nextToken()
		op.Children = append(op.Children, p.parseBinary(level+1))
		left = op
	}
}

func (p *Parser) parseUnary() *ast.Node {
	var typ ast.NodeType
	switch p.curToken.Type {
	case lexer.TokenPlus:
		typ = ast.Pos
	case lexer.TokenMinus:
		typ = ast.Neg
	case lexer.TokenBang:
		typ = ast.LogicNot
	case lexer.TokenTilde:
		typ = ast.BitNot
	case lexer.TokenAmp:
		typ = ast.ReduceAnd
	case lexer.TokenPipe:
		typ = ast.ReduceOr
	case lexer.TokenCaret:
		typ = ast.ReduceXor
	case lexer.TokenTildeAmp:
		typ = ast.BitNot // ~& is reduce-and then invert
	case lexer.TokenTildePipe:
		typ = ast.BitNot
	case lexer.TokenXnorOp:
		typ = ast.ReduceXnor
	default:
		return p.parsePrimary()
	}

	switch p.curToken.Type {
	case lexer.TokenTildeAmp:
		op := p.node(ast.BitNot)
		p.nextToken()
		op.Children = append(op.Children, ast.NewNode(ast.ReduceAnd, p.parseUnary()))
		return op
	case lexer.TokenTildePipe:
		op := p.node(ast.BitNot)
		p.nextToken()
		op.Children = append(op.Children, ast.NewNode(ast.ReduceOr, p.parseUnary()))
		return op
	}

	op := p.node(typ)
	p.nextToken()
	op.Children = append(op.Children, p.parseUnary())
	return op
}

func (p *Parser) parsePrimary() *ast.Node {
	switch p.curToken.Type {
	case lexer.TokenNumber:
		n := p.parseNumber(p.curToken.Literal)
		p.nextToken()
		return n
	case lexer.TokenRealNum:
		v, err := strconv.ParseFloat(strings.ReplaceAll(p.curToken.Literal, "_", ""), 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid real literal %q", p.curToken.Literal))
		}
		n := p.node(ast.RealValue)
		n.RealValue = v
		p.nextToken()
		return n
	case lexer.TokenString:
		n := ast.ConstStr(logic.FromString(p.curToken.Literal).Bits)
		n.Filename = p.filename
		n.Linenum = p.curToken.Line
		p.nextToken()
		return n
	case lexer.TokenLBrace:
		return p.parseConcat()
	case lexer.TokenLParen:
		p.nextToken()
		e := p.parseExpr()
		p.expect(lexer.TokenRParen)
		return e
	case lexer.TokenSysIdent:
		return p.parseSysCall()
	case lexer.TokenIdent:
		return p.parseIdentExpr()
	default:
		p.addError(fmt.Sprintf("unexpected %s in expression", p.curToken.Type))
		p.nextToken()
		return ast.ConstInt(0, false, 32)
	}
}

// parseSysCall parses $name(args). $signed and $unsigned become conversion
// nodes; everything else stays a function call for the elaborator.
func (p *Parser) parseSysCall() *ast.Node {
	name := p.curToken.Literal
	p.nextToken()
	var args []*ast.Node
	if p.curTokenIs(lexer.TokenLParen) {
		p.nextToken()
		for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
			args = append(args, p.parseExpr())
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenRParen)
	}

	switch name {
	case "$signed":
		if len(args) == 1 {
			return ast.NewNode(ast.ToSigned, args[0])
		}
	case "$unsigned":
		if len(args) == 1 {
			return ast.NewNode(ast.ToUnsigned, args[0])
		}
	}
	call := p.node(ast.FCall, args...)
	call.Str = name
	return call
}

// parseConcat parses {a, b, c} and the replication form {n{a, b}}.
func (p *Parser) parseConcat() *ast.Node {
	concat := p.node(ast.Concat)
	p.nextToken() // {
	first := p.parseExpr()
	if p.curTokenIs(lexer.TokenLBrace) {
		inner := p.parseConcat()
		rep := p.node(ast.Replicate, first, inner)
		p.expect(lexer.TokenRBrace)
		return rep
	}
	concat.Children = append(concat.Children, first)
	for p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		concat.Children = append(concat.Children, p.parseExpr())
	}
	p.expect(lexer.TokenRBrace)
	reverseNodes(concat.Children)
	return concat
}

// concat children are stored least significant operand first, so the bits
// of child 0 are the low bits of the concatenation
func reverseNodes(nodes []*ast.Node) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

// parseIdentExpr parses an identifier with optional selects, a function
// call, or generate block prefix syntax (name[idx].rest).
func (p *Parser) parseIdentExpr() *ast.Node {
	name := p.curToken.Literal
	line := p.curToken.Line
	p.nextToken()

	if p.curTokenIs(lexer.TokenLParen) {
		call := ast.NewNode(ast.FCall)
		call.Str = name
		call.Filename = p.filename
		call.Linenum = line
		p.nextToken()
		for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
			call.Children = append(call.Children, p.parseExpr())
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenRParen)
		return call
	}

	id := ast.NewNode(ast.Identifier)
	id.Str = name
	id.Filename = p.filename
	id.Linenum = line

	if p.curTokenIs(lexer.TokenLBracket) {
		first := p.parseRange()
		if p.curTokenIs(lexer.TokenDot) && len(first.Children) == 1 {
			// generate block prefix: name[idx].rest
			p.nextToken()
			prefix := ast.NewNode(ast.Prefix, first.Children[0], p.parseIdentExpr())
			prefix.Str = name
			prefix.Filename = p.filename
			prefix.Linenum = line
			return prefix
		}
		id.Children = append(id.Children, first)
		if p.curTokenIs(lexer.TokenLBracket) {
			// memory word plus bit select
			id.Children = append(id.Children, p.parseRange())
		}
	} else if p.curTokenIs(lexer.TokenDot) {
		p.addError("hierarchical identifiers are not supported")
	}
	return id
}

// parseNumber converts a Verilog integer literal into a constant node.
func (p *Parser) parseNumber(lit string) *ast.Node {
	lit = strings.ReplaceAll(lit, "_", "")
	tick := strings.IndexByte(lit, '\'')
	if tick < 0 {
		// unsized decimal constants are 32 bit signed
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid number literal %q", lit))
		}
		n := ast.ConstInt(int(v), true, 32)
		n.Filename = p.filename
		n.Linenum = p.curToken.Line
		return n
	}

	width := 32
	if tick > 0 {
		w, err := strconv.Atoi(lit[:tick])
		if err != nil || w <= 0 {
			p.addError(fmt.Sprintf("invalid width in number literal %q", lit))
			w = 32
		}
		width = w
	}
	rest := lit[tick+1:]
	signed := false
	if len(rest) > 0 && (rest[0] == 's' || rest[0] == 'S') {
		signed = true
		rest = rest[1:]
	}
	if len(rest) == 0 {
		p.addError(fmt.Sprintf("invalid number literal %q", lit))
		return ast.ConstInt(0, false, width)
	}
	base := rest[0]
	digits := rest[1:]

	var bitsPerDigit int
	switch base {
	case 'b', 'B':
		bitsPerDigit = 1
	case 'o', 'O':
		bitsPerDigit = 3
	case 'h', 'H':
		bitsPerDigit = 4
	case 'd', 'D':
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid number literal %q", lit))
		}
		n := ast.ConstBits(logic.FromInt(int(v), width).Bits, signed)
		n.Filename = p.filename
		n.Linenum = p.curToken.Line
		return n
	default:
		p.addError(fmt.Sprintf("invalid base in number literal %q", lit))
		return ast.ConstInt(0, false, width)
	}

	var bits []logic.State
	for i := len(digits) - 1; i >= 0; i-- {
		ch := digits[i]
		switch {
		case ch == 'x' || ch == 'X':
			for j := 0; j < bitsPerDigit; j++ {
				bits = append(bits, logic.Sx)
			}
		case ch == 'z' || ch == 'Z' || ch == '?':
			for j := 0; j < bitsPerDigit; j++ {
				bits = append(bits, logic.Sz)
			}
		default:
			v, err := strconv.ParseUint(string(ch), 16, 8)
			if err != nil || v >= 1<<uint(bitsPerDigit) {
				p.addError(fmt.Sprintf("invalid digit %q in number literal %q", ch, lit))
				v = 0
			}
			for j := 0; j < bitsPerDigit; j++ {
				if (v>>uint(j))&1 != 0 {
					bits = append(bits, logic.S1)
				} else {
					bits = append(bits, logic.S0)
				}
			}
		}
	}
	// resize to the declared width, padding with 0 or the x/z top bit
	for len(bits) < width {
		pad := logic.S0
		if len(bits) > 0 && (bits[len(bits)-1] == logic.Sx || bits[len(bits)-1] == logic.Sz) {
			pad = bits[len(bits)-1]
		}
		bits = append(bits, pad)
	}
	bits = bits[:width]
	n := ast.ConstBits(bits, signed)
	n.Filename = p.filename
	n.Linenum = p.curToken.Line
	return n
}

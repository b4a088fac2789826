// Package parser implements a recursive descent parser for the Verilog
// subset consumed by the elaborator. It produces the shared AST of pkg/ast;
// all semantic work (constant folding, width inference, generate expansion)
// is left to the simplifier.
package parser

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/lexer"
)

// Parser parses Verilog source code into an AST
type Parser struct {
	l         *lexer.Lexer
	filename  string
	curToken  lexer.Token
	peekToken lexer.Token
	errs      []string
}

// New creates a new Parser for the given lexer. The filename is recorded
// on every node for diagnostics.
func New(l *lexer.Lexer, filename string) *Parser {
	p := &Parser{l: l, filename: filename}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a source file: a sequence of module declarations.
func Parse(src, filename string) ([]*ast.Node, error) {
	p := New(lexer.New(src), filename)
	var modules []*ast.Node
	for !p.curTokenIs(lexer.TokenEOF) {
		attrs := p.parseAttributes()
		if !p.curTokenIs(lexer.TokenModule) {
			p.addError(fmt.Sprintf("expected module, got %s", p.curToken.Type))
			break
		}
		mod := p.parseModule()
		if mod == nil {
			break
		}
		applyAttributes(mod, attrs)
		modules = append(modules, mod)
	}
	if len(p.errs) > 0 {
		return nil, errors.Errorf("%s: %s", filename, p.errs[0])
	}
	return modules, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errs
}

func (p *Parser) addError(msg string) {
	p.errs = append(p.errs, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

// node creates an AST node stamped with the current source position.
func (p *Parser) node(t ast.NodeType, children ...*ast.Node) *ast.Node {
	n := ast.NewNode(t, children...)
	n.Filename = p.filename
	n.Linenum = p.curToken.Line
	return n
}

func applyAttributes(n *ast.Node, attrs map[string]*ast.Node) {
	for name, value := range attrs {
		n.SetAttribute(name, value)
	}
}

// parseAttributes parses zero or more (* name = value, name *) lists.
func (p *Parser) parseAttributes() map[string]*ast.Node {
	var attrs map[string]*ast.Node
	for p.curTokenIs(lexer.TokenAttrStart) {
		p.nextToken()
		for !p.curTokenIs(lexer.TokenAttrEnd) && !p.curTokenIs(lexer.TokenEOF) {
			name := p.curToken.Literal
			p.nextToken()
			value := ast.ConstInt(1, false, 32)
			if p.curTokenIs(lexer.TokenAssignOp) {
				p.nextToken()
				value = p.parseExpr()
			}
			if attrs == nil {
				attrs = make(map[string]*ast.Node)
			}
			attrs[name] = value
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenAttrEnd)
	}
	return attrs
}

// parseModule parses "module name (ports); items endmodule".
func (p *Parser) parseModule() *ast.Node {
	mod := p.node(ast.Module)
	p.nextToken() // module
	mod.Str = p.curToken.Literal
	p.nextToken()

	portID := 0
	if p.curTokenIs(lexer.TokenLParen) {
		p.nextToken()
		for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
			portID++
			p.parseModulePort(mod, portID)
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenRParen)
	}
	p.expect(lexer.TokenSemicolon)

	for !p.curTokenIs(lexer.TokenEndmodule) && !p.curTokenIs(lexer.TokenEOF) {
		p.parseModuleItem(mod)
	}
	p.expect(lexer.TokenEndmodule)
	return mod
}

// parseModulePort parses one entry of the module header port list: either a
// bare name (non-ANSI style, filled in by later declarations) or a full
// ANSI declaration.
func (p *Parser) parseModulePort(mod *ast.Node, portID int) {
	isInput, isOutput, isReg, isSigned := false, false, false, false
	ansi := false
	for {
		switch p.curToken.Type {
		case lexer.TokenInput:
			isInput, ansi = true, true
		case lexer.TokenInout:
			isInput, isOutput, ansi = true, true, true
		case lexer.TokenOutput:
			isOutput, ansi = true, true
		case lexer.TokenWire:
			ansi = true
		case lexer.TokenReg:
			isReg, ansi = true, true
		case lexer.TokenSigned:
			isSigned, ansi = true, true
		default:
			goto done
		}
		p.nextToken()
	}
done:
	var rng *ast.Node
	if p.curTokenIs(lexer.TokenLBracket) {
		rng = p.parseRange()
	}
	wire := p.node(ast.Wire)
	wire.Str = p.curToken.Literal
	wire.PortID = portID
	p.nextToken()
	if ansi {
		wire.IsInput = isInput
		wire.IsOutput = isOutput
		wire.IsReg = isReg
		wire.IsSigned = isSigned
		if rng != nil {
			wire.Children = append(wire.Children, rng)
		}
	}
	mod.Children = append(mod.Children, wire)
}

// parseRange parses "[expr]" or "[expr:expr]".
func (p *Parser) parseRange() *ast.Node {
	rng := p.node(ast.Range)
	p.expect(lexer.TokenLBracket)
	rng.Children = append(rng.Children, p.parseExpr())
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		rng.Children = append(rng.Children, p.parseExpr())
	}
	p.expect(lexer.TokenRBracket)
	return rng
}

// findWire returns the wire child of mod with the given name, or nil.
func findWire(mod *ast.Node, name string) *ast.Node {
	for _, child := range mod.Children {
		if child.Type == ast.Wire && child.Str == name {
			return child
		}
	}
	return nil
}

// parseModuleItem parses one item of the module body and appends the
// resulting nodes to mod.
func (p *Parser) parseModuleItem(mod *ast.Node) {
	attrs := p.parseAttributes()

	switch p.curToken.Type {
	case lexer.TokenInput, lexer.TokenOutput, lexer.TokenInout,
		lexer.TokenWire, lexer.TokenReg, lexer.TokenInteger, lexer.TokenGenvar:
		for _, n := range p.parseDeclaration(mod) {
			applyAttributes(n, attrs)
		}
	case lexer.TokenParameter, lexer.TokenLocalparam:
		for _, n := range p.parseParameterDecl(mod) {
			applyAttributes(n, attrs)
		}
	case lexer.TokenDefparam:
		p.parseDefparam(mod)
	case lexer.TokenAssign:
		p.nextToken()
		for {
			assign := p.node(ast.Assign)
			lhs := p.parseLvalue()
			p.expect(lexer.TokenAssignOp)
			rhs := p.parseExpr()
			assign.Children = []*ast.Node{lhs, rhs}
			applyAttributes(assign, attrs)
			mod.Children = append(mod.Children, assign)
			if !p.curTokenIs(lexer.TokenComma) {
				break
			}
			p.nextToken()
		}
		p.expect(lexer.TokenSemicolon)
	case lexer.TokenAlways:
		n := p.parseAlways()
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenAssert:
		n := p.node(ast.Assert)
		p.nextToken()
		p.expect(lexer.TokenLParen)
		n.Children = append(n.Children, p.parseExpr())
		p.expect(lexer.TokenRParen)
		p.expect(lexer.TokenSemicolon)
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenInitial:
		n := p.node(ast.Initial)
		p.nextToken()
		n.Children = append(n.Children, p.blockOf(p.parseStatement()))
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenFunction:
		n := p.parseFunction()
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenTask:
		n := p.parseTask()
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenGenerate:
		p.nextToken()
		for !p.curTokenIs(lexer.TokenEndgenerate) && !p.curTokenIs(lexer.TokenEOF) {
			n := p.parseGenerateItem()
			if n == nil {
				return
			}
			applyAttributes(n, attrs)
			mod.Children = append(mod.Children, n)
		}
		p.expect(lexer.TokenEndgenerate)
	case lexer.TokenFor:
		// generate-for without the generate region keyword
		n := p.parseGenFor()
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenIf:
		n := p.parseGenIf()
		applyAttributes(n, attrs)
		mod.Children = append(mod.Children, n)
	case lexer.TokenAnd, lexer.TokenNand, lexer.TokenOr, lexer.TokenNor,
		lexer.TokenXor, lexer.TokenXnor, lexer.TokenBuf, lexer.TokenNot,
		lexer.TokenBufif0, lexer.TokenBufif1, lexer.TokenNotif0, lexer.TokenNotif1:
		for _, n := range p.parsePrimitive() {
			applyAttributes(n, attrs)
			mod.Children = append(mod.Children, n)
		}
	case lexer.TokenIdent:
		n := p.parseCell()
		if n != nil {
			applyAttributes(n, attrs)
			mod.Children = append(mod.Children, n)
		}
	default:
		p.addError(fmt.Sprintf("unexpected %s in module body", p.curToken.Type))
		p.nextToken()
	}
}

// parseDeclaration parses wire/reg/integer/genvar/input/output declaration
// lists and returns the declared nodes. Port-list stubs are updated in
// place rather than re-declared.
func (p *Parser) parseDeclaration(mod *ast.Node) []*ast.Node {
	isInput, isOutput, isReg, isSigned, isGenvar, isInteger := false, false, false, false, false, false
	for {
		switch p.curToken.Type {
		case lexer.TokenInput:
			isInput = true
		case lexer.TokenOutput:
			isOutput = true
		case lexer.TokenInout:
			isInput, isOutput = true, true
		case lexer.TokenWire:
		case lexer.TokenReg:
			isReg = true
		case lexer.TokenInteger:
			isInteger = true
		case lexer.TokenGenvar:
			isGenvar = true
		case lexer.TokenSigned:
			isSigned = true
		default:
			goto done
		}
		p.nextToken()
	}
done:
	var rng *ast.Node
	if p.curTokenIs(lexer.TokenLBracket) {
		rng = p.parseRange()
	}
	if isInteger {
		isReg, isSigned = true, true
	}

	var decls []*ast.Node
	for {
		name := p.curToken.Literal
		p.nextToken()

		if isGenvar {
			gv := p.node(ast.Genvar)
			gv.Str = name
			mod.Children = append(mod.Children, gv)
			decls = append(decls, gv)
		} else if p.curTokenIs(lexer.TokenLBracket) {
			// memory: reg [7:0] mem [0:15];
			addrRange := p.parseRange()
			memRange := rng
			if memRange == nil {
				memRange = ast.NewNode(ast.Range,
					ast.ConstInt(0, true, 32), ast.ConstInt(0, true, 32))
			}
			memory := p.node(ast.Memory, memRange.Clone(), addrRange)
			memory.Str = name
			memory.IsReg = isReg
			memory.IsSigned = isSigned
			mod.Children = append(mod.Children, memory)
			decls = append(decls, memory)
		} else {
			wire := findWire(mod, name)
			if wire != nil && rng != nil && len(wire.Children) > 0 {
				// a ranged re-declaration gets its own node; the elaborator
				// merges compatible declarations and rejects the rest
				wire = nil
			}
			if wire == nil {
				wire = p.node(ast.Wire)
				wire.Str = name
				mod.Children = append(mod.Children, wire)
			}
			if rng != nil && len(wire.Children) == 0 {
				wire.Children = append(wire.Children, rng.Clone())
			}
			if isInteger && len(wire.Children) == 0 {
				wire.Children = append(wire.Children, ast.NewNode(ast.Range,
					ast.ConstInt(31, true, 32), ast.ConstInt(0, true, 32)))
			}
			wire.IsInput = wire.IsInput || isInput
			wire.IsOutput = wire.IsOutput || isOutput
			wire.IsReg = wire.IsReg || isReg
			wire.IsSigned = wire.IsSigned || isSigned
			decls = append(decls, wire)

			// optional initializer on reg declarations becomes an initial block
			if p.curTokenIs(lexer.TokenAssignOp) {
				p.nextToken()
				lhs := ast.NewNode(ast.Identifier)
				lhs.Str = name
				assign := p.node(ast.AssignLe, lhs, p.parseExpr())
				mod.Children = append(mod.Children,
					p.node(ast.Initial, p.node(ast.Block, assign)))
			}
		}

		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return decls
}

// parseParameterDecl parses "parameter [range] name = expr, name = expr;".
func (p *Parser) parseParameterDecl(mod *ast.Node) []*ast.Node {
	typ := ast.Parameter
	if p.curTokenIs(lexer.TokenLocalparam) {
		typ = ast.Localparam
	}
	p.nextToken()
	isSigned := false
	if p.curTokenIs(lexer.TokenSigned) {
		isSigned = true
		p.nextToken()
	}
	var rng *ast.Node
	if p.curTokenIs(lexer.TokenLBracket) {
		rng = p.parseRange()
	}
	var decls []*ast.Node
	for {
		param := p.node(typ)
		param.Str = p.curToken.Literal
		param.IsSigned = isSigned
		p.nextToken()
		p.expect(lexer.TokenAssignOp)
		param.Children = append(param.Children, p.parseExpr())
		if rng != nil {
			param.Children = append(param.Children, rng.Clone())
		}
		mod.Children = append(mod.Children, param)
		decls = append(decls, param)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return decls
}

// parseDefparam parses "defparam inst.name = expr;".
func (p *Parser) parseDefparam(mod *ast.Node) {
	p.nextToken() // defparam
	for {
		dp := p.node(ast.Defparam)
		name := p.curToken.Literal
		p.nextToken()
		for p.curTokenIs(lexer.TokenDot) {
			p.nextToken()
			name += "." + p.curToken.Literal
			p.nextToken()
		}
		dp.Str = name
		p.expect(lexer.TokenAssignOp)
		dp.Children = append(dp.Children, p.parseExpr())
		mod.Children = append(mod.Children, dp)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
}

// parseAlways parses "always [@(events)] statement".
func (p *Parser) parseAlways() *ast.Node {
	always := p.node(ast.Always)
	p.nextToken() // always
	if p.curTokenIs(lexer.TokenAt) {
		p.nextToken()
		switch {
		case p.curTokenIs(lexer.TokenStar):
			p.nextToken()
		case p.curTokenIs(lexer.TokenAttrStart) && p.peekTokenIs(lexer.TokenRParen):
			// "@(*)" lexes as "(*" ")"
			p.nextToken()
			p.nextToken()
		case p.curTokenIs(lexer.TokenLParen):
			p.nextToken()
			if p.curTokenIs(lexer.TokenStar) {
				p.nextToken()
			} else {
				for {
					always.Children = append(always.Children, p.parseEventExpr())
					if p.curTokenIs(lexer.TokenOr) || p.curTokenIs(lexer.TokenComma) {
						p.nextToken()
						continue
					}
					break
				}
			}
			p.expect(lexer.TokenRParen)
		}
	}
	always.Children = append(always.Children, p.blockOf(p.parseStatement()))
	return always
}

func (p *Parser) parseEventExpr() *ast.Node {
	switch p.curToken.Type {
	case lexer.TokenPosedge:
		n := p.node(ast.Posedge)
		p.nextToken()
		n.Children = append(n.Children, p.parseExpr())
		return n
	case lexer.TokenNegedge:
		n := p.node(ast.Negedge)
		p.nextToken()
		n.Children = append(n.Children, p.parseExpr())
		return n
	default:
		n := p.node(ast.Edge)
		n.Children = append(n.Children, p.parseExpr())
		return n
	}
}

// blockOf wraps a statement in a block unless it already is one.
func (p *Parser) blockOf(stmt *ast.Node) *ast.Node {
	if stmt == nil {
		return p.node(ast.Block)
	}
	if stmt.Type == ast.Block && stmt.Str == "" {
		return stmt
	}
	blk := ast.NewNode(ast.Block, stmt)
	blk.Filename = stmt.Filename
	blk.Linenum = stmt.Linenum
	return blk
}

// parseFunction parses a function declaration. The first wire child is the
// result wire, named like the function itself.
func (p *Parser) parseFunction() *ast.Node {
	fn := p.node(ast.Function)
	p.nextToken() // function
	isSigned := false
	if p.curTokenIs(lexer.TokenSigned) {
		isSigned = true
		p.nextToken()
	}
	var rng *ast.Node
	if p.curTokenIs(lexer.TokenInteger) {
		rng = ast.NewNode(ast.Range, ast.ConstInt(31, true, 32), ast.ConstInt(0, true, 32))
		isSigned = true
		p.nextToken()
	} else if p.curTokenIs(lexer.TokenLBracket) {
		rng = p.parseRange()
	}
	fn.Str = p.curToken.Literal
	p.nextToken()
	p.expect(lexer.TokenSemicolon)

	result := p.node(ast.Wire)
	result.Str = fn.Str
	result.IsReg = true
	result.IsSigned = isSigned
	if rng != nil {
		result.Children = append(result.Children, rng)
	}
	fn.Children = append(fn.Children, result)

	p.parseTaskFuncBody(fn, lexer.TokenEndfunction)
	return fn
}

// parseTask parses a task declaration.
func (p *Parser) parseTask() *ast.Node {
	task := p.node(ast.Task)
	p.nextToken() // task
	task.Str = p.curToken.Literal
	p.nextToken()
	p.expect(lexer.TokenSemicolon)
	p.parseTaskFuncBody(task, lexer.TokenEndtask)
	return task
}

// parseTaskFuncBody parses declarations and statements up to the end token.
func (p *Parser) parseTaskFuncBody(owner *ast.Node, end lexer.TokenType) {
	for !p.curTokenIs(end) && !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case lexer.TokenInput, lexer.TokenOutput, lexer.TokenInout,
			lexer.TokenReg, lexer.TokenInteger:
			sub := ast.NewNode(ast.Module) // scratch container for the decls
			for _, decl := range p.parseDeclaration(sub) {
				owner.Children = append(owner.Children, decl)
			}
		default:
			owner.Children = append(owner.Children, p.parseStatement())
		}
	}
	p.expect(end)
}

// parsePrimitive parses gate primitive instantiations like
// "and g1 (o, a, b), g2 (p, c, d);".
func (p *Parser) parsePrimitive() []*ast.Node {
	gate := p.curToken.Literal
	p.nextToken()
	var prims []*ast.Node
	for {
		prim := p.node(ast.Primitive)
		prim.Str = gate
		if p.curTokenIs(lexer.TokenIdent) {
			p.nextToken() // optional instance name, not preserved
		}
		p.expect(lexer.TokenLParen)
		for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
			arg := p.node(ast.Argument)
			arg.Children = append(arg.Children, p.parseExpr())
			prim.Children = append(prim.Children, arg)
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenRParen)
		prims = append(prims, prim)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return prims
}

// parseCell parses a module instantiation, optionally with a parameter
// list and an instance array range.
func (p *Parser) parseCell() *ast.Node {
	celltype := p.node(ast.CellType)
	celltype.Str = p.curToken.Literal
	p.nextToken()

	var parasets []*ast.Node
	if p.curTokenIs(lexer.TokenHash) {
		p.nextToken()
		p.expect(lexer.TokenLParen)
		for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
			ps := p.node(ast.Paraset)
			if p.curTokenIs(lexer.TokenDot) {
				p.nextToken()
				ps.Str = p.curToken.Literal
				p.nextToken()
				p.expect(lexer.TokenLParen)
				ps.Children = append(ps.Children, p.parseExpr())
				p.expect(lexer.TokenRParen)
			} else {
				ps.Children = append(ps.Children, p.parseExpr())
			}
			parasets = append(parasets, ps)
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenRParen)
	}

	cell := p.node(ast.Cell, celltype)
	cell.Str = p.curToken.Literal
	p.nextToken()
	cell.Children = append(cell.Children, parasets...)

	var arrayRange *ast.Node
	if p.curTokenIs(lexer.TokenLBracket) {
		arrayRange = p.parseRange()
	}

	p.expect(lexer.TokenLParen)
	for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
		arg := p.node(ast.Argument)
		if p.curTokenIs(lexer.TokenDot) {
			p.nextToken()
			arg.Str = p.curToken.Literal
			p.nextToken()
			p.expect(lexer.TokenLParen)
			if !p.curTokenIs(lexer.TokenRParen) {
				arg.Children = append(arg.Children, p.parseExpr())
			}
			p.expect(lexer.TokenRParen)
		} else {
			arg.Children = append(arg.Children, p.parseExpr())
		}
		cell.Children = append(cell.Children, arg)
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRParen)
	p.expect(lexer.TokenSemicolon)

	if arrayRange != nil {
		return p.node(ast.CellArray, arrayRange, cell)
	}
	return cell
}

package parser

import (
	"fmt"

	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/lexer"
)

// parseStatement parses one behavioral statement.
func (p *Parser) parseStatement() *ast.Node {
	attrs := p.parseAttributes()
	var stmt *ast.Node

	switch p.curToken.Type {
	case lexer.TokenBegin:
		stmt = p.parseBlock()
	case lexer.TokenIf:
		stmt = p.parseIf()
	case lexer.TokenCase:
		stmt = p.parseCase()
	case lexer.TokenFor:
		stmt = p.parseFor(ast.For)
	case lexer.TokenWhile:
		stmt = p.node(ast.While)
		p.nextToken()
		p.expect(lexer.TokenLParen)
		stmt.Children = append(stmt.Children, p.parseExpr())
		p.expect(lexer.TokenRParen)
		stmt.Children = append(stmt.Children, p.blockOf(p.parseStatement()))
	case lexer.TokenRepeat:
		stmt = p.node(ast.Repeat)
		p.nextToken()
		p.expect(lexer.TokenLParen)
		stmt.Children = append(stmt.Children, p.parseExpr())
		p.expect(lexer.TokenRParen)
		stmt.Children = append(stmt.Children, p.blockOf(p.parseStatement()))
	case lexer.TokenAssert:
		stmt = p.node(ast.Assert)
		p.nextToken()
		p.expect(lexer.TokenLParen)
		stmt.Children = append(stmt.Children, p.parseExpr())
		p.expect(lexer.TokenRParen)
		p.expect(lexer.TokenSemicolon)
	case lexer.TokenSysIdent:
		stmt = p.node(ast.TCall)
		stmt.Str = p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(lexer.TokenLParen) {
			p.nextToken()
			for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
				stmt.Children = append(stmt.Children, p.parseExpr())
				if p.curTokenIs(lexer.TokenComma) {
					p.nextToken()
				}
			}
			p.expect(lexer.TokenRParen)
		}
		p.expect(lexer.TokenSemicolon)
	case lexer.TokenIdent, lexer.TokenLBrace:
		// task call or assignment
		if p.curTokenIs(lexer.TokenIdent) &&
			(p.peekTokenIs(lexer.TokenSemicolon) || p.peekTokenIs(lexer.TokenLParen)) &&
			!p.peekTokenIs(lexer.TokenLBracket) {
			stmt = p.node(ast.TCall)
			stmt.Str = p.curToken.Literal
			p.nextToken()
			if p.curTokenIs(lexer.TokenLParen) {
				p.nextToken()
				for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
					stmt.Children = append(stmt.Children, p.parseExpr())
					if p.curTokenIs(lexer.TokenComma) {
						p.nextToken()
					}
				}
				p.expect(lexer.TokenRParen)
			}
			p.expect(lexer.TokenSemicolon)
			break
		}
		stmt = p.parseAssignment()
	default:
		p.addError(fmt.Sprintf("unexpected %s in statement", p.curToken.Type))
		p.nextToken()
		return nil
	}

	applyAttributes(stmt, attrs)
	return stmt
}

// parseAssignment parses "lvalue = expr;" or "lvalue <= expr;".
func (p *Parser) parseAssignment() *ast.Node {
	lhs := p.parseLvalue()
	typ := ast.AssignEq
	if p.curTokenIs(lexer.TokenLe) {
		typ = ast.AssignLe
		p.nextToken()
	} else {
		p.expect(lexer.TokenAssignOp)
	}
	assign := p.node(typ, lhs, p.parseExpr())
	assign.Filename = lhs.Filename
	assign.Linenum = lhs.Linenum
	p.expect(lexer.TokenSemicolon)
	return assign
}

// parseLvalue parses an assignment target: identifier with optional
// selects, or a concatenation of lvalues.
func (p *Parser) parseLvalue() *ast.Node {
	if p.curTokenIs(lexer.TokenLBrace) {
		concat := p.node(ast.Concat)
		p.nextToken()
		for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
			concat.Children = append(concat.Children, p.parseLvalue())
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
			}
		}
		p.expect(lexer.TokenRBrace)
		reverseNodes(concat.Children)
		return concat
	}
	return p.parseIdentExpr()
}

// parseBlock parses "begin [: name] statements end".
func (p *Parser) parseBlock() *ast.Node {
	blk := p.node(ast.Block)
	p.nextToken() // begin
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		blk.Str = p.curToken.Literal
		p.nextToken()
	}
	for !p.curTokenIs(lexer.TokenEnd) && !p.curTokenIs(lexer.TokenEOF) {
		switch p.curToken.Type {
		case lexer.TokenReg, lexer.TokenInteger, lexer.TokenWire:
			sub := ast.NewNode(ast.Module) // scratch container
			for _, decl := range p.parseDeclaration(sub) {
				blk.Children = append(blk.Children, decl)
			}
		default:
			if stmt := p.parseStatement(); stmt != nil {
				blk.Children = append(blk.Children, stmt)
			}
		}
	}
	p.expect(lexer.TokenEnd)
	return blk
}

// parseIf lowers "if (c) a else b" into a case statement on the reduced
// condition, the same shape the elaborator expects from case.
func (p *Parser) parseIf() *ast.Node {
	caseNode := p.node(ast.Case)
	p.nextToken() // if
	p.expect(lexer.TokenLParen)
	cond := p.parseExpr()
	p.expect(lexer.TokenRParen)
	caseNode.Children = append(caseNode.Children, ast.NewNode(ast.ReduceBool, cond))

	thenCond := ast.NewNode(ast.Cond, ast.ConstInt(1, false, 1),
		p.blockOf(p.parseStatement()))
	caseNode.Children = append(caseNode.Children, thenCond)

	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		elseCond := ast.NewNode(ast.Cond, ast.NewNode(ast.Default),
			p.blockOf(p.parseStatement()))
		caseNode.Children = append(caseNode.Children, elseCond)
	}
	return caseNode
}

// parseCase parses "case (expr) items endcase".
func (p *Parser) parseCase() *ast.Node {
	caseNode := p.node(ast.Case)
	p.nextToken() // case
	p.expect(lexer.TokenLParen)
	caseNode.Children = append(caseNode.Children, p.parseExpr())
	p.expect(lexer.TokenRParen)

	for !p.curTokenIs(lexer.TokenEndcase) && !p.curTokenIs(lexer.TokenEOF) {
		cond := p.node(ast.Cond)
		if p.curTokenIs(lexer.TokenDefault) {
			cond.Children = append(cond.Children, ast.NewNode(ast.Default))
			p.nextToken()
		} else {
			for {
				cond.Children = append(cond.Children, p.parseExpr())
				if p.curTokenIs(lexer.TokenComma) {
					p.nextToken()
					continue
				}
				break
			}
		}
		p.expect(lexer.TokenColon)
		cond.Children = append(cond.Children, p.blockOf(p.parseStatement()))
		caseNode.Children = append(caseNode.Children, cond)
	}
	p.expect(lexer.TokenEndcase)
	return caseNode
}

// parseFor parses "for (init; cond; step) body" with the given node type
// (For in behavioral code, GenFor in generate regions).
func (p *Parser) parseFor(typ ast.NodeType) *ast.Node {
	forNode := p.node(typ)
	p.nextToken() // for
	p.expect(lexer.TokenLParen)

	init := p.node(ast.AssignEq, p.parseIdentExpr())
	p.expect(lexer.TokenAssignOp)
	init.Children = append(init.Children, p.parseExpr())
	p.expect(lexer.TokenSemicolon)

	cond := p.parseExpr()
	p.expect(lexer.TokenSemicolon)

	step := p.node(ast.AssignEq, p.parseIdentExpr())
	p.expect(lexer.TokenAssignOp)
	step.Children = append(step.Children, p.parseExpr())
	p.expect(lexer.TokenRParen)

	var body *ast.Node
	if typ == ast.GenFor {
		body = p.genBlockOf(p.parseGenerateItem())
	} else {
		body = p.blockOf(p.parseStatement())
	}
	forNode.Children = []*ast.Node{init, cond, step, body}
	return forNode
}

// genBlockOf wraps a generate item in a genblock unless it already is one.
func (p *Parser) genBlockOf(item *ast.Node) *ast.Node {
	if item == nil {
		return p.node(ast.GenBlock)
	}
	if item.Type == ast.GenBlock {
		return item
	}
	blk := ast.NewNode(ast.GenBlock, item)
	blk.Filename = item.Filename
	blk.Linenum = item.Linenum
	return blk
}

// parseGenerateItem parses one item inside a generate region.
func (p *Parser) parseGenerateItem() *ast.Node {
	switch p.curToken.Type {
	case lexer.TokenFor:
		return p.parseGenFor()
	case lexer.TokenIf:
		return p.parseGenIf()
	case lexer.TokenCase:
		return p.parseGenCase()
	case lexer.TokenBegin:
		return p.parseGenBlock()
	default:
		// any plain module item
		sub := ast.NewNode(ast.Module) // scratch container
		p.parseModuleItem(sub)
		if len(sub.Children) == 1 {
			return sub.Children[0]
		}
		blk := p.node(ast.GenBlock)
		blk.Children = sub.Children
		return blk
	}
}

func (p *Parser) parseGenFor() *ast.Node {
	return p.parseFor(ast.GenFor)
}

func (p *Parser) parseGenIf() *ast.Node {
	genif := p.node(ast.GenIf)
	p.nextToken() // if
	p.expect(lexer.TokenLParen)
	genif.Children = append(genif.Children, p.parseExpr())
	p.expect(lexer.TokenRParen)
	genif.Children = append(genif.Children, p.genBlockOf(p.parseGenerateItem()))
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		genif.Children = append(genif.Children, p.genBlockOf(p.parseGenerateItem()))
	}
	return genif
}

func (p *Parser) parseGenCase() *ast.Node {
	gencase := p.node(ast.GenCase)
	p.nextToken() // case
	p.expect(lexer.TokenLParen)
	gencase.Children = append(gencase.Children, p.parseExpr())
	p.expect(lexer.TokenRParen)

	for !p.curTokenIs(lexer.TokenEndcase) && !p.curTokenIs(lexer.TokenEOF) {
		cond := p.node(ast.Cond)
		if p.curTokenIs(lexer.TokenDefault) {
			cond.Children = append(cond.Children, ast.NewNode(ast.Default))
			p.nextToken()
		} else {
			for {
				cond.Children = append(cond.Children, p.parseExpr())
				if p.curTokenIs(lexer.TokenComma) {
					p.nextToken()
					continue
				}
				break
			}
		}
		p.expect(lexer.TokenColon)
		cond.Children = append(cond.Children, p.genBlockOf(p.parseGenerateItem()))
		gencase.Children = append(gencase.Children, cond)
	}
	p.expect(lexer.TokenEndcase)
	return gencase
}

// parseGenBlock parses "begin [: name] generate-items end".
func (p *Parser) parseGenBlock() *ast.Node {
	blk := p.node(ast.GenBlock)
	p.nextToken() // begin
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		blk.Str = p.curToken.Literal
		p.nextToken()
	}
	for !p.curTokenIs(lexer.TokenEnd) && !p.curTokenIs(lexer.TokenEOF) {
		if item := p.parseGenerateItem(); item != nil {
			blk.Children = append(blk.Children, item)
		}
	}
	p.expect(lexer.TokenEnd)
	return blk
}

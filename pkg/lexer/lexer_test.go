package lexer

import "testing"

func TestNextTokenBasic(t *testing.T) {
	input := `module top(a, b);
  wire [7:0] x;
  assign x = a + b;
endmodule`

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{TokenModule, "module"},
		{TokenIdent, "top"},
		{TokenLParen, "("},
		{TokenIdent, "a"},
		{TokenComma, ","},
		{TokenIdent, "b"},
		{TokenRParen, ")"},
		{TokenSemicolon, ";"},
		{TokenWire, "wire"},
		{TokenLBracket, "["},
		{TokenNumber, "7"},
		{TokenColon, ":"},
		{TokenNumber, "0"},
		{TokenRBracket, "]"},
		{TokenIdent, "x"},
		{TokenSemicolon, ";"},
		{TokenAssign, "assign"},
		{TokenIdent, "x"},
		{TokenAssignOp, "="},
		{TokenIdent, "a"},
		{TokenPlus, "+"},
		{TokenIdent, "b"},
		{TokenSemicolon, ";"},
		{TokenEndmodule, "endmodule"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Fatalf("token %d: type = %v, want %v (literal %q)", i, tok.Type, exp.typ, tok.Literal)
		}
		if tok.Literal != exp.literal {
			t.Fatalf("token %d: literal = %q, want %q", i, tok.Literal, exp.literal)
		}
	}
}

func TestNumbers(t *testing.T) {
	l := New(`8'hff 4'b10xz 'd42 12 3.25 1e3 16'shab`)
	want := []struct {
		typ     TokenType
		literal string
	}{
		{TokenNumber, "8'hff"},
		{TokenNumber, "4'b10xz"},
		{TokenNumber, "'d42"},
		{TokenNumber, "12"},
		{TokenRealNum, "3.25"},
		{TokenRealNum, "1e3"},
		{TokenNumber, "16'shab"},
	}
	for i, exp := range want {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Literal != exp.literal {
			t.Errorf("token %d: got (%v, %q), want (%v, %q)", i, tok.Type, tok.Literal, exp.typ, exp.literal)
		}
	}
}

func TestOperators(t *testing.T) {
	l := New(`<= < << <<< === !== ** ~^ ~& (* *) && ||`)
	want := []TokenType{
		TokenLe, TokenLt, TokenShl, TokenSshl, TokenEqx, TokenNex,
		TokenPower, TokenXnorOp, TokenTildeAmp, TokenAttrStart, TokenAttrEnd,
		TokenLogicAnd, TokenLogicOr,
	}
	for i, exp := range want {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Errorf("token %d: got %v (%q), want %v", i, tok.Type, tok.Literal, exp)
		}
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	l := New("a // line comment\n /* block\ncomment */ b")
	if tok := l.NextToken(); tok.Literal != "a" {
		t.Fatalf("first token = %q, want a", tok.Literal)
	}
	if tok := l.NextToken(); tok.Literal != "b" {
		t.Fatalf("second token = %q, want b", tok.Literal)
	}
}

func TestSysAndEscapedIdents(t *testing.T) {
	l := New(`$clog2 \foo+bar baz`)
	tok := l.NextToken()
	if tok.Type != TokenSysIdent || tok.Literal != "$clog2" {
		t.Errorf("got (%v, %q), want system identifier $clog2", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdent || tok.Literal != `\foo+bar` {
		t.Errorf("got (%v, %q), want escaped identifier", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdent || tok.Literal != "baz" {
		t.Errorf("got (%v, %q), want baz", tok.Type, tok.Literal)
	}
}

func TestStringLiteral(t *testing.T) {
	l := New(`"hello world"`)
	tok := l.NextToken()
	if tok.Type != TokenString || tok.Literal != "hello world" {
		t.Errorf("got (%v, %q), want string literal", tok.Type, tok.Literal)
	}
}

func TestLineTracking(t *testing.T) {
	l := New("a\nb\nc")
	if tok := l.NextToken(); tok.Line != 1 {
		t.Errorf("a on line %d, want 1", tok.Line)
	}
	if tok := l.NextToken(); tok.Line != 2 {
		t.Errorf("b on line %d, want 2", tok.Line)
	}
	if tok := l.NextToken(); tok.Line != 3 {
		t.Errorf("c on line %d, want 3", tok.Line)
	}
}

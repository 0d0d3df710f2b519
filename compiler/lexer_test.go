package compiler

import (
	"testing"
)

func TestLexerDelimitersAndOperators(t *testing.T) {
	input := `( ) { } , ; : . = += -= *= /= %= + - * / % ++ -- ! && || == != < <= > >=`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenComma, ","},
		{TokenSemicolon, ";"},
		{TokenColon, ":"},
		{TokenDot, "."},
		{TokenAssign, "="},
		{TokenAddAssign, "+="},
		{TokenSubAssign, "-="},
		{TokenMulAssign, "*="},
		{TokenDivAssign, "/="},
		{TokenModAssign, "%="},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenPercent, "%"},
		{TokenInc, "++"},
		{TokenDec, "--"},
		{TokenNot, "!"},
		{TokenAnd, "&&"},
		{TokenOr, "||"},
		{TokenEq, "=="},
		{TokenNe, "!="},
		{TokenLt, "<"},
		{TokenLe, "<="},
		{TokenGt, ">"},
		{TokenGe, ">="},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"42", TokenInteger, "42"},
		{"0", TokenInteger, "0"},
		{"0x1F", TokenInteger, "0x1F"},
		{"0XFFFFFFFF", TokenInteger, "0XFFFFFFFF"},
		{"3.14", TokenFloat, "3.14"},
		{".5", TokenFloat, ".5"},
		{"1.", TokenFloat, "1."},
		{"2e10", TokenFloat, "2e10"},
		{"1.5e-3", TokenFloat, "1.5e-3"},
		{"1e+10", TokenFloat, "1e+10"},
		{"1.5f", TokenFloat, "1.5"},
		{"2f", TokenFloat, "2"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ || tok.Literal != tc.lit {
			t.Errorf("lex %q = %v %q, want %v %q", tc.input, tok.Type, tok.Literal, tc.typ, tc.lit)
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"import", TokenImport},
		{"function", TokenFunction},
		{"static", TokenStatic},
		{"global", TokenGlobal},
		{"enum", TokenEnum},
		{"if", TokenIf},
		{"else", TokenElse},
		{"while", TokenWhile},
		{"for", TokenFor},
		{"switch", TokenSwitch},
		{"case", TokenCase},
		{"default", TokenDefault},
		{"break", TokenBreak},
		{"continue", TokenContinue},
		{"return", TokenReturn},
		{"goto", TokenGoto},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"void", TokenVoid},
		{"int", TokenInt},
		{"float", TokenFloatType},
		{"bool", TokenBool},
		{"string", TokenStringType},
		{"PUT_MSG", TokenIdentifier},
		{"_tmp1", TokenIdentifier},
		{"iffy", TokenIdentifier},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("lex %q type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.input {
			t.Errorf("lex %q literal = %q", tc.input, tok.Literal)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		lit   string
	}{
		{`"hello"`, `"hello"`},
		{`""`, `""`},
		{`"say \"hi\""`, `"say \"hi\""`},
		{`"tab\tnewline\n"`, `"tab\tnewline\n"`},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString || tok.Literal != tc.lit {
			t.Errorf("lex %s = %v %q, want string %q", tc.input, tok.Type, tok.Literal, tc.lit)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := "a // line comment\n/* block\ncomment */ b /**/ c"
	toks := Tokenize(input)
	var names []string
	for _, tok := range toks {
		if tok.Type == TokenIdentifier {
			names = append(names, tok.Literal)
		}
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("identifiers = %v, want [a b c]", names)
	}
	if last := toks[len(toks)-1]; last.Type != TokenEOF {
		t.Errorf("last token = %v, want EOF", last)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []string{
		`"unterminated`,
		"\"broken\nstring\"",
		"/* never closed",
		"@",
		"a & b",
		"a | b",
	}
	for _, input := range tests {
		found := false
		for _, tok := range Tokenize(input) {
			if tok.Type == TokenError {
				found = true
			}
		}
		if !found {
			t.Errorf("lex %q: expected an error token", input)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	input := "int x;\n  x = 1;"
	toks := Tokenize(input)
	want := []struct {
		lit       string
		line, col int
	}{
		{"int", 1, 1},
		{"x", 1, 5},
		{";", 1, 6},
		{"x", 2, 3},
		{"=", 2, 5},
		{"1", 2, 7},
		{";", 2, 8},
	}
	for i, w := range want {
		tok := toks[i]
		if tok.Literal != w.lit || tok.Pos.Line != w.line || tok.Pos.Column != w.col {
			t.Errorf("token[%d] = %q at %d:%d, want %q at %d:%d",
				i, tok.Literal, tok.Pos.Line, tok.Pos.Column, w.lit, w.line, w.col)
		}
	}
}

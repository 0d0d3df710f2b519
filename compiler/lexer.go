package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for FlowScript source
// ---------------------------------------------------------------------------

// Lexer tokenizes FlowScript source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// Tokenize returns every token of input up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if msg := l.skipWhitespaceAndComments(); msg != "" {
		return Token{Type: TokenError, Literal: msg, Pos: l.position()}
	}

	pos := l.position()
	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	// pair returns two if the next character is next, otherwise one.
	pair := func(next rune, two, one TokenType) Token {
		first := l.ch
		l.readChar()
		if l.ch == next {
			l.readChar()
			return Token{Type: two, Literal: string(first) + string(next), Pos: pos}
		}
		return Token{Type: one, Literal: string(first), Pos: pos}
	}

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Literal: "", Pos: pos}
	case l.ch == '(':
		return single(TokenLParen)
	case l.ch == ')':
		return single(TokenRParen)
	case l.ch == '{':
		return single(TokenLBrace)
	case l.ch == '}':
		return single(TokenRBrace)
	case l.ch == ',':
		return single(TokenComma)
	case l.ch == ';':
		return single(TokenSemicolon)
	case l.ch == ':':
		return single(TokenColon)
	case l.ch == '.' && !isDigit(l.peekChar()):
		return single(TokenDot)
	case l.ch == '=':
		return pair('=', TokenEq, TokenAssign)
	case l.ch == '!':
		return pair('=', TokenNe, TokenNot)
	case l.ch == '<':
		return pair('=', TokenLe, TokenLt)
	case l.ch == '>':
		return pair('=', TokenGe, TokenGt)
	case l.ch == '*':
		return pair('=', TokenMulAssign, TokenStar)
	case l.ch == '/':
		return pair('=', TokenDivAssign, TokenSlash)
	case l.ch == '%':
		return pair('=', TokenModAssign, TokenPercent)
	case l.ch == '+':
		if l.peekChar() == '+' {
			return pair('+', TokenInc, TokenPlus)
		}
		return pair('=', TokenAddAssign, TokenPlus)
	case l.ch == '-':
		if l.peekChar() == '-' {
			return pair('-', TokenDec, TokenMinus)
		}
		return pair('=', TokenSubAssign, TokenMinus)
	case l.ch == '&':
		if l.peekChar() == '&' {
			return pair('&', TokenAnd, TokenAnd)
		}
	case l.ch == '|':
		if l.peekChar() == '|' {
			return pair('|', TokenOr, TokenOr)
		}
	case l.ch == '"':
		return l.readString(pos)
	case isDigit(l.ch) || l.ch == '.':
		return l.readNumber(pos)
	case isLetter(l.ch):
		return l.readIdentifier(pos)
	}

	ch := l.ch
	l.readChar()
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments. It returns a message if a block comment is unterminated.
func (l *Lexer) skipWhitespaceAndComments() string {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.pos < len(l.input) {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.pos >= len(l.input) {
					return "unterminated block comment"
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}
		return ""
	}
}

// readString reads a double-quoted string literal. The literal keeps its
// quotes and escapes; the parser unquotes it.
func (l *Lexer) readString(pos Position) Token {
	start := l.pos
	l.readChar() // skip opening quote
	for l.ch != '"' {
		if l.pos >= len(l.input) || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '\\' {
			l.readChar()
		}
		l.readChar()
	}
	l.readChar() // skip closing quote
	return Token{Type: TokenString, Literal: l.input[start:l.pos], Pos: pos}
}

// readNumber reads an integer or float literal: 42, 0x2A, 1.5, .5, 2e10, 1.5f.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
	}

	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) || l.ch == '.' && start == l.pos {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == '.' && !isLetter(l.peekChar()) {
		// 1. is a float
		isFloat = true
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	lit := l.input[start:l.pos]
	if l.ch == 'f' || l.ch == 'F' {
		isFloat = true
		l.readChar()
	}
	if isFloat {
		return Token{Type: TokenFloat, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: lit, Pos: pos}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

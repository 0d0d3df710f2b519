package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the FlowScript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42, 0x1F
	TokenFloat      // 3.14, 1.5f, 2e3
	TokenString     // "hello"
	TokenIdentifier // foo, PUT_MSG

	// Keywords
	TokenImport
	TokenFunction
	TokenStatic
	TokenGlobal
	TokenEnum
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenSwitch
	TokenCase
	TokenDefault
	TokenBreak
	TokenContinue
	TokenReturn
	TokenGoto
	TokenTrue
	TokenFalse
	TokenVoid
	TokenInt
	TokenFloatType
	TokenBool
	TokenStringType

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenDot       // .

	// Operators
	TokenAssign    // =
	TokenAddAssign // +=
	TokenSubAssign // -=
	TokenMulAssign // *=
	TokenDivAssign // /=
	TokenModAssign // %=
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenInc       // ++
	TokenDec       // --
	TokenNot       // !
	TokenAnd       // &&
	TokenOr        // ||
	TokenEq        // ==
	TokenNe        // !=
	TokenLt        // <
	TokenLe        // <=
	TokenGt        // >
	TokenGe        // >=
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",

	TokenImport:     "import",
	TokenFunction:   "function",
	TokenStatic:     "static",
	TokenGlobal:     "global",
	TokenEnum:       "enum",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFor:        "for",
	TokenSwitch:     "switch",
	TokenCase:       "case",
	TokenDefault:    "default",
	TokenBreak:      "break",
	TokenContinue:   "continue",
	TokenReturn:     "return",
	TokenGoto:       "goto",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenVoid:       "void",
	TokenInt:        "int",
	TokenFloatType:  "float",
	TokenBool:       "bool",
	TokenStringType: "string",

	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenColon:     ":",
	TokenDot:       ".",

	TokenAssign:    "=",
	TokenAddAssign: "+=",
	TokenSubAssign: "-=",
	TokenMulAssign: "*=",
	TokenDivAssign: "/=",
	TokenModAssign: "%=",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenInc:       "++",
	TokenDec:       "--",
	TokenNot:       "!",
	TokenAnd:       "&&",
	TokenOr:        "||",
	TokenEq:        "==",
	TokenNe:        "!=",
	TokenLt:        "<",
	TokenLe:        "<=",
	TokenGt:        ">",
	TokenGe:        ">=",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// keywords maps reserved words to their token types.
var keywords = map[string]TokenType{
	"import":   TokenImport,
	"function": TokenFunction,
	"static":   TokenStatic,
	"global":   TokenGlobal,
	"enum":     TokenEnum,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"switch":   TokenSwitch,
	"case":     TokenCase,
	"default":  TokenDefault,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"return":   TokenReturn,
	"goto":     TokenGoto,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"void":     TokenVoid,
	"int":      TokenInt,
	"float":    TokenFloatType,
	"bool":     TokenBool,
	"string":   TokenStringType,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}

// IsTypeKeyword reports whether t names a value type.
func (t TokenType) IsTypeKeyword() bool {
	switch t {
	case TokenVoid, TokenInt, TokenFloatType, TokenBool, TokenStringType:
		return true
	}
	return false
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}

package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for FlowScript
// ---------------------------------------------------------------------------

// Parser parses FlowScript source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	errors    ErrorList
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole source file.
func Parse(input string) (*CompilationUnit, error) {
	p := NewParser(input)
	unit := p.ParseUnit()
	if err := p.errors.Err(); err != nil {
		return nil, err
	}
	return unit, nil
}

// ParseExpr parses a single expression.
func ParseExpr(input string) (Expr, error) {
	p := NewParser(input)
	e := p.parseExpr()
	if !p.curTokenIs(TokenEOF) {
		p.errorf("unexpected %s after expression", p.curToken.Type)
	}
	if err := p.errors.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.curToken.Type != TokenEOF || p.curToken.Literal != "" {
		p.prevEnd = Position{
			Offset: p.curToken.Pos.Offset + len(p.curToken.Literal),
			Line:   p.curToken.Pos.Line,
			Column: p.curToken.Pos.Column + len(p.curToken.Literal),
		}
	}
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenError {
		p.errors.add(ErrSyntax, p.peekToken.Pos, "%s", p.peekToken.Literal)
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.describe(p.curToken))
	return false
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of file"
	case TokenIdentifier, TokenInteger, TokenFloat, TokenString:
		return fmt.Sprintf("%s %s", tok.Type, tok.Literal)
	}
	return fmt.Sprintf("%q", tok.Type.String())
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors.add(ErrSyntax, p.curToken.Pos, format, args...)
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() ErrorList {
	return p.errors
}

// span builds a span from start to the end of the last consumed token.
func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// synchronize skips to the end of the current statement after an error.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenSemicolon:
			p.nextToken()
			return
		case TokenRBrace:
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseUnit parses imports and declarations until end of input.
func (p *Parser) ParseUnit() *CompilationUnit {
	start := p.curToken.Pos
	unit := &CompilationUnit{}

	for !p.curTokenIs(TokenEOF) {
		startTok := p.curToken
		failed := false

		switch p.curToken.Type {
		case TokenImport:
			if imp := p.parseImport(); imp != nil {
				unit.Imports = append(unit.Imports, imp)
			} else {
				failed = true
			}
		case TokenFunction:
			if d := p.parseFunctionDecl(); d != nil {
				unit.Decls = append(unit.Decls, d)
			} else {
				failed = true
			}
		case TokenEnum:
			if d := p.parseEnumDecl(); d != nil {
				unit.Decls = append(unit.Decls, d)
			} else {
				failed = true
			}
		case TokenStatic, TokenGlobal, TokenVoid, TokenInt, TokenFloatType, TokenBool, TokenStringType:
			if d := p.parseTypedDecl(); d != nil {
				unit.Decls = append(unit.Decls, d)
			} else {
				failed = true
			}
		case TokenSemicolon:
			p.nextToken()
		default:
			p.errorf("expected declaration, got %s", p.describe(p.curToken))
			failed = true
		}

		if failed {
			p.synchronize()
			if p.curTokenIs(TokenRBrace) {
				p.nextToken()
			}
		}
		if p.curToken == startTok && !p.curTokenIs(TokenEOF) {
			p.nextToken() // guarantee progress
		}
	}

	unit.SpanVal = p.span(start)
	return unit
}

// parseImport parses import("path");
func (p *Parser) parseImport() *Import {
	start := p.curToken.Pos
	p.nextToken()
	if !p.expect(TokenLParen) {
		return nil
	}
	if !p.curTokenIs(TokenString) {
		p.errorf("expected import path string, got %s", p.describe(p.curToken))
		return nil
	}
	path, ok := p.parseStringValue()
	if !ok || !p.expect(TokenRParen) || !p.expect(TokenSemicolon) {
		return nil
	}
	return &Import{SpanVal: p.span(start), Path: path}
}

// parseFunctionDecl parses function(index) type NAME(params); or
// function(table, index) type NAME(params);
func (p *Parser) parseFunctionDecl() *FunctionDecl {
	start := p.curToken.Pos
	p.nextToken()
	if !p.expect(TokenLParen) {
		return nil
	}
	first, ok := p.parseIndex()
	if !ok {
		return nil
	}
	d := &FunctionDecl{Index: first}
	if p.curTokenIs(TokenComma) {
		p.nextToken()
		second, ok := p.parseIndex()
		if !ok {
			return nil
		}
		d.Table, d.Index = first, second
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	t, ok := p.parseType()
	if !ok {
		return nil
	}
	d.ReturnType = t
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", p.describe(p.curToken))
		return nil
	}
	d.Name = p.curToken.Literal
	p.nextToken()
	if d.Params, ok = p.parseParams(); !ok {
		return nil
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	d.SpanVal = p.span(start)
	return d
}

// parseIndex parses a 16-bit table or function index.
func (p *Parser) parseIndex() (uint16, bool) {
	if !p.curTokenIs(TokenInteger) {
		p.errorf("expected index, got %s", p.describe(p.curToken))
		return 0, false
	}
	v, err := parseIntLiteral(p.curToken.Literal)
	if err != nil || v < 0 || v > math.MaxUint16 {
		p.errorf("index %s out of range", p.curToken.Literal)
		return 0, false
	}
	p.nextToken()
	return uint16(v), true
}

// parseEnumDecl parses enum NAME { A, B = 2, C }
func (p *Parser) parseEnumDecl() *EnumDecl {
	start := p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected enum name, got %s", p.describe(p.curToken))
		return nil
	}
	d := &EnumDecl{Name: p.curToken.Literal}
	p.nextToken()
	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) {
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected enum member, got %s", p.describe(p.curToken))
			return nil
		}
		mStart := p.curToken.Pos
		m := &EnumMember{Name: p.curToken.Literal}
		p.nextToken()
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			m.Value = p.parseExpr()
			if m.Value == nil {
				return nil
			}
		}
		m.SpanVal = p.span(mStart)
		d.Members = append(d.Members, m)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	d.SpanVal = p.span(start)
	return d
}

// parseTypedDecl parses a top-level procedure or variable declaration.
func (p *Parser) parseTypedDecl() Stmt {
	start := p.curToken.Pos
	storage, hasStorage := p.parseStorage()
	t, ok := p.parseType()
	if !ok {
		return nil
	}
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected name, got %s", p.describe(p.curToken))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if p.curTokenIs(TokenLParen) {
		if hasStorage {
			p.errorf("storage class on procedure %s", name)
			return nil
		}
		if d := p.parseProcedureRest(start, t, name); d != nil {
			return d
		}
		return nil
	}
	if d := p.parseVarDeclRest(start, storage, t, name); d != nil {
		return d
	}
	return nil
}

func (p *Parser) parseStorage() (Storage, bool) {
	switch p.curToken.Type {
	case TokenStatic:
		p.nextToken()
		return StorageStatic, true
	case TokenGlobal:
		p.nextToken()
		return StorageGlobal, true
	}
	return StorageAuto, false
}

// parseType parses a type keyword.
func (p *Parser) parseType() (bytecode.Type, bool) {
	var t bytecode.Type
	switch p.curToken.Type {
	case TokenVoid:
		t = bytecode.TypeVoid
	case TokenInt:
		t = bytecode.TypeInt
	case TokenFloatType:
		t = bytecode.TypeFloat
	case TokenBool:
		t = bytecode.TypeBool
	case TokenStringType:
		t = bytecode.TypeString
	default:
		p.errorf("expected type, got %s", p.describe(p.curToken))
		return 0, false
	}
	p.nextToken()
	return t, true
}

// parseParams parses a parenthesised parameter list.
func (p *Parser) parseParams() ([]*Param, bool) {
	if !p.expect(TokenLParen) {
		return nil, false
	}
	var params []*Param
	if p.curTokenIs(TokenVoid) && p.peekTokenIs(TokenRParen) {
		p.nextToken()
	}
	for !p.curTokenIs(TokenRParen) {
		start := p.curToken.Pos
		t, ok := p.parseType()
		if !ok {
			return nil, false
		}
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.describe(p.curToken))
			return nil, false
		}
		params = append(params, &Param{Type: t, Name: p.curToken.Literal})
		p.nextToken()
		params[len(params)-1].SpanVal = p.span(start)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(TokenRParen) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseProcedureRest(start Position, ret bytecode.Type, name string) *ProcedureDecl {
	params, ok := p.parseParams()
	if !ok {
		return nil
	}
	if !p.curTokenIs(TokenLBrace) {
		p.errorf("expected procedure body, got %s", p.describe(p.curToken))
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ProcedureDecl{SpanVal: p.span(start), ReturnType: ret, Name: name, Params: params, Body: body}
}

func (p *Parser) parseVarDeclRest(start Position, storage Storage, t bytecode.Type, name string) *VarDecl {
	if t == bytecode.TypeVoid {
		p.errorf("variable %s declared void", name)
		return nil
	}
	d := &VarDecl{Storage: storage, Type: t, Name: name}
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		if d.Init = p.parseExpr(); d.Init == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	d.SpanVal = p.span(start)
	return d
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseBlock parses { statements }.
func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}
	stmts := p.parseStatementsUntil(TokenRBrace)
	if !p.expect(TokenRBrace) {
		return nil
	}
	return &Block{SpanVal: p.span(start), Stmts: stmts}
}

// parseStatementsUntil parses statements until one of the stop tokens.
func (p *Parser) parseStatementsUntil(stop ...TokenType) []Stmt {
	var stmts []Stmt
	for !p.curTokenIs(TokenEOF) {
		for _, t := range stop {
			if p.curTokenIs(t) {
				return stmts
			}
		}
		startTok := p.curToken
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		} else {
			p.synchronize()
		}
		if p.curToken == startTok && !p.curTokenIs(TokenRBrace) {
			p.nextToken()
		}
	}
	return stmts
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	return p.parseStatement()
}

func (p *Parser) parseStatement() Stmt {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	case TokenSemicolon:
		p.nextToken()
		return &NullStmt{SpanVal: p.span(start)}
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenSwitch:
		return p.parseSwitch()
	case TokenBreak:
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &Break{SpanVal: p.span(start)}
	case TokenContinue:
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		return &Continue{SpanVal: p.span(start)}
	case TokenReturn:
		p.nextToken()
		r := &Return{}
		if !p.curTokenIs(TokenSemicolon) {
			if r.Value = p.parseExpr(); r.Value == nil {
				return nil
			}
		}
		if !p.expect(TokenSemicolon) {
			return nil
		}
		r.SpanVal = p.span(start)
		return r
	case TokenGoto:
		p.nextToken()
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected label name, got %s", p.describe(p.curToken))
			return nil
		}
		g := &Goto{Label: p.curToken.Literal}
		p.nextToken()
		if !p.expect(TokenSemicolon) {
			return nil
		}
		g.SpanVal = p.span(start)
		return g
	case TokenStatic, TokenGlobal, TokenInt, TokenFloatType, TokenBool, TokenStringType, TokenVoid:
		if d := p.parseLocalVarDecl(); d != nil {
			return d
		}
		return nil
	case TokenFunction, TokenEnum, TokenImport:
		p.errorf("%s declaration not allowed inside a procedure", p.curToken.Type)
		return nil
	case TokenIdentifier:
		if p.peekTokenIs(TokenColon) {
			l := &LabelStmt{Name: p.curToken.Literal}
			p.nextToken()
			p.nextToken()
			l.SpanVal = p.span(start)
			return l
		}
	}

	x := p.parseExpr()
	if x == nil {
		return nil
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	return &ExprStmt{SpanVal: p.span(start), X: x}
}

func (p *Parser) parseLocalVarDecl() *VarDecl {
	start := p.curToken.Pos
	storage, _ := p.parseStorage()
	t, ok := p.parseType()
	if !ok {
		return nil
	}
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name, got %s", p.describe(p.curToken))
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	return p.parseVarDeclRest(start, storage, t, name)
}

// parseCondition parses ( expr ).
func (p *Parser) parseCondition() Expr {
	if !p.expect(TokenLParen) {
		return nil
	}
	cond := p.parseExpr()
	if cond == nil || !p.expect(TokenRParen) {
		return nil
	}
	return cond
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	cond := p.parseCondition()
	if cond == nil {
		return nil
	}
	then := p.parseStatement()
	if then == nil {
		return nil
	}
	s := &If{Cond: cond, Then: then}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if s.Else = p.parseStatement(); s.Else == nil {
			return nil
		}
	}
	s.SpanVal = p.span(start)
	return s
}

func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	cond := p.parseCondition()
	if cond == nil {
		return nil
	}
	body := p.parseStatement()
	if body == nil {
		return nil
	}
	return &While{SpanVal: p.span(start), Cond: cond, Body: body}
}

func (p *Parser) parseFor() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if !p.expect(TokenLParen) {
		return nil
	}
	s := &For{}

	switch {
	case p.curTokenIs(TokenSemicolon):
		p.nextToken()
	case p.curTokenIs(TokenStatic) || p.curTokenIs(TokenGlobal) || p.curToken.Type.IsTypeKeyword():
		d := p.parseLocalVarDecl() // consumes the semicolon
		if d == nil {
			return nil
		}
		s.Init = d
	default:
		iStart := p.curToken.Pos
		x := p.parseExpr()
		if x == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		s.Init = &ExprStmt{SpanVal: p.span(iStart), X: x}
	}

	if !p.curTokenIs(TokenSemicolon) {
		if s.Cond = p.parseExpr(); s.Cond == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	if !p.curTokenIs(TokenRParen) {
		if s.Step = p.parseExpr(); s.Step == nil {
			return nil
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	if s.Body = p.parseStatement(); s.Body == nil {
		return nil
	}
	s.SpanVal = p.span(start)
	return s
}

func (p *Parser) parseSwitch() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	tag := p.parseCondition()
	if tag == nil || !p.expect(TokenLBrace) {
		return nil
	}
	s := &Switch{Tag: tag}
	for p.curTokenIs(TokenCase) || p.curTokenIs(TokenDefault) {
		secStart := p.curToken.Pos
		sec := &SwitchSection{}
		for p.curTokenIs(TokenCase) || p.curTokenIs(TokenDefault) {
			lStart := p.curToken.Pos
			label := &CaseLabel{}
			if p.curTokenIs(TokenCase) {
				p.nextToken()
				if label.Value = p.parseExpr(); label.Value == nil {
					return nil
				}
			} else {
				p.nextToken()
			}
			if !p.expect(TokenColon) {
				return nil
			}
			label.SpanVal = p.span(lStart)
			sec.Labels = append(sec.Labels, label)
		}
		sec.Body = p.parseStatementsUntil(TokenCase, TokenDefault, TokenRBrace)
		sec.SpanVal = p.span(secStart)
		s.Sections = append(s.Sections, sec)
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	s.SpanVal = p.span(start)
	return s
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var assignOps = map[TokenType]AssignOp{
	TokenAssign:    AssignSet,
	TokenAddAssign: AssignAdd,
	TokenSubAssign: AssignSub,
	TokenMulAssign: AssignMul,
	TokenDivAssign: AssignDiv,
	TokenModAssign: AssignMod,
}

// binaryLevels lists infix operators from lowest to highest precedence.
var binaryLevels = []map[TokenType]BinaryOp{
	{TokenOr: BinaryOr},
	{TokenAnd: BinaryAnd},
	{TokenEq: BinaryEq, TokenNe: BinaryNe},
	{TokenLt: BinaryLt, TokenLe: BinaryLe, TokenGt: BinaryGt, TokenGe: BinaryGe},
	{TokenPlus: BinaryAdd, TokenMinus: BinarySub},
	{TokenStar: BinaryMul, TokenSlash: BinaryDiv, TokenPercent: BinaryMod},
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpr()
}

func (p *Parser) parseExpr() Expr {
	start := p.curToken.Pos
	left := p.parseBinary(0)
	if left == nil {
		return nil
	}
	op, ok := assignOps[p.curToken.Type]
	if !ok {
		return left
	}
	target, isIdent := left.(*Identifier)
	if !isIdent {
		p.errorf("cannot assign to this expression")
		return nil
	}
	p.nextToken()
	value := p.parseExpr() // right associative
	if value == nil {
		return nil
	}
	return &Assign{SpanVal: p.span(start), Op: op, Target: target, Value: value}
}

func (p *Parser) parseBinary(level int) Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	start := p.curToken.Pos
	left := p.parseBinary(level + 1)
	if left == nil {
		return nil
	}
	for {
		op, ok := binaryLevels[level][p.curToken.Type]
		if !ok {
			return left
		}
		p.nextToken()
		right := p.parseBinary(level + 1)
		if right == nil {
			return nil
		}
		left = &Binary{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos

	var op UnaryOp
	switch p.curToken.Type {
	case TokenMinus:
		p.nextToken()
		// Negative literals are folded so they print and round-trip as one token.
		if p.curTokenIs(TokenInteger) {
			return p.parseInteger(start, true)
		}
		if p.curTokenIs(TokenFloat) {
			return p.parseFloat(start, true)
		}
		op = UnaryNeg
	case TokenNot:
		p.nextToken()
		op = UnaryNot
	case TokenInc:
		p.nextToken()
		op = UnaryPreInc
	case TokenDec:
		p.nextToken()
		op = UnaryPreDec
	case TokenLParen:
		if p.peekToken.Type.IsTypeKeyword() {
			p.nextToken()
			t, _ := p.parseType()
			if !p.expect(TokenRParen) {
				return nil
			}
			operand := p.parseUnary()
			if operand == nil {
				return nil
			}
			return &Cast{SpanVal: p.span(start), Type: t, Operand: operand}
		}
		return p.parsePostfix()
	default:
		return p.parsePostfix()
	}

	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &Unary{SpanVal: p.span(start), Op: op, Operand: operand}
}

func (p *Parser) parsePostfix() Expr {
	start := p.curToken.Pos
	e := p.parsePrimary()
	for e != nil {
		switch p.curToken.Type {
		case TokenInc:
			p.nextToken()
			e = &Unary{SpanVal: p.span(start), Op: UnaryPostInc, Operand: e}
		case TokenDec:
			p.nextToken()
			e = &Unary{SpanVal: p.span(start), Op: UnaryPostDec, Operand: e}
		default:
			return e
		}
	}
	return nil
}

func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenInteger:
		return p.parseInteger(start, false)
	case TokenFloat:
		return p.parseFloat(start, false)
	case TokenString:
		s, ok := p.parseStringValue()
		if !ok {
			return nil
		}
		return &StringLiteral{SpanVal: p.span(start), Value: s}
	case TokenTrue, TokenFalse:
		v := p.curTokenIs(TokenTrue)
		p.nextToken()
		return &BoolLiteral{SpanVal: p.span(start), Value: v}
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		switch p.curToken.Type {
		case TokenLParen:
			args, ok := p.parseArgs()
			if !ok {
				return nil
			}
			return &Call{SpanVal: p.span(start), Name: name, Args: args}
		case TokenDot:
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("expected member name after %s., got %s", name, p.describe(p.curToken))
				return nil
			}
			member := p.curToken.Literal
			p.nextToken()
			return &MemberAccess{SpanVal: p.span(start), Enum: name, Member: member}
		}
		return &Identifier{SpanVal: p.span(start), Name: name}
	case TokenLParen:
		p.nextToken()
		e := p.parseExpr()
		if e == nil || !p.expect(TokenRParen) {
			return nil
		}
		return e
	}

	p.errorf("expected expression, got %s", p.describe(p.curToken))
	return nil
}

func (p *Parser) parseArgs() ([]Expr, bool) {
	p.nextToken() // (
	var args []Expr
	for !p.curTokenIs(TokenRParen) {
		a := p.parseExpr()
		if a == nil {
			return nil, false
		}
		args = append(args, a)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(TokenRParen) {
		return nil, false
	}
	return args, true
}

func (p *Parser) parseInteger(start Position, negate bool) Expr {
	lit := p.curToken.Literal
	v, err := parseIntLiteral(lit)
	if err != nil {
		p.errorf("invalid integer %s", lit)
		return nil
	}
	if negate {
		v = -v
	}
	// Hex literals may spell the full unsigned 32-bit range.
	isHex := strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X")
	switch {
	case v >= math.MinInt32 && v <= math.MaxInt32:
	case isHex && !negate && v <= math.MaxUint32:
		v = int64(int32(uint32(v)))
	default:
		p.errorf("integer %s out of range", lit)
		return nil
	}
	p.nextToken()
	return &IntLiteral{SpanVal: p.span(start), Value: int32(v)}
}

func (p *Parser) parseFloat(start Position, negate bool) Expr {
	lit := p.curToken.Literal
	v, err := strconv.ParseFloat(lit, 32)
	if err != nil {
		p.errorf("invalid float %s", lit)
		return nil
	}
	if negate {
		v = -v
	}
	p.nextToken()
	return &FloatLiteral{SpanVal: p.span(start), Value: float32(v)}
}

func (p *Parser) parseStringValue() (string, bool) {
	s, err := strconv.Unquote(p.curToken.Literal)
	if err != nil {
		p.errorf("invalid string literal %s", p.curToken.Literal)
		return "", false
	}
	if strings.IndexByte(s, 0) >= 0 {
		// The string pool is NUL-terminated.
		p.errorf("string literal %s contains a NUL character", p.curToken.Literal)
		return "", false
	}
	p.nextToken()
	return s, true
}

// parseIntLiteral parses decimal and 0x-prefixed hex integers.
func parseIntLiteral(lit string) (int64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		u, err := strconv.ParseUint(lit[2:], 16, 32)
		return int64(u), err
	}
	return strconv.ParseInt(lit, 10, 64)
}

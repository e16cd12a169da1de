package btrc

import "fmt"

// ParseError aborts the parse; the parser makes no recovery attempt
// because declaration/statement disambiguation depends on precise
// token positions and a resync would produce misleading cascades.
type ParseError struct {
	Msg  string
	Line int
	Col  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %d:%d", e.Msg, e.Line, e.Col)
}

// Parser is a recursive-descent parser over the token stream with a
// Pratt-style precedence ladder for expressions. The only mutation it
// performs on the stream is splitting '>>' / '>>=' when a generic
// argument list closes.
type Parser struct {
	tokens []Token
	pos    int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the whole stream and returns the program, or the
// first ParseError.
func (p *Parser) Parse() (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*ParseError); ok {
				prog, err = nil, pe
				return
			}
			panic(r)
		}
	}()
	prog = &Program{}
	for !p.atEnd() {
		prog.Declarations = append(prog.Declarations, p.parseTopLevelItem())
	}
	return prog, nil
}

// ParseSource lexes and parses source in one step.
func ParseSource(source string) (*Program, error) {
	tokens, err := Lex(source)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// ---- Token helpers ----

func (p *Parser) peek() Token { return p.peekAt(0) }

func (p *Parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool { return p.peek().Kind == TokenEOF }

func (p *Parser) check(kinds ...TokenKind) bool {
	k := p.peek().Kind
	for _, kind := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (p *Parser) match(kinds ...TokenKind) (Token, bool) {
	if p.check(kinds...) {
		return p.advance(), true
	}
	return Token{}, false
}

func (p *Parser) expect(kind TokenKind, what string) Token {
	tok := p.peek()
	if tok.Kind == kind {
		return p.advance()
	}
	if what == "" {
		what = kind.String()
	}
	panic(&ParseError{
		Msg:  fmt.Sprintf("Expected %s, got %s '%s'", what, tok.Kind, tok.Value),
		Line: tok.Line, Col: tok.Col,
	})
}

func (p *Parser) fail(msg string) {
	tok := p.peek()
	panic(&ParseError{Msg: msg, Line: tok.Line, Col: tok.Col})
}

func (p *Parser) posOf(tok Token) position {
	return position{Line: tok.Line, Col: tok.Col}
}

// expectGt expects a '>' closing a generic argument list. When the
// stream holds '>>' or '>>=' instead, the token is split and the
// remainder is synthesized back into the stream.
func (p *Parser) expectGt() Token {
	tok := p.peek()
	switch tok.Kind {
	case TokenGt:
		return p.advance()
	case TokenGtGt:
		p.advance()
		p.insertToken(Token{Kind: TokenGt, Value: ">", Line: tok.Line, Col: tok.Col + 1})
		return Token{Kind: TokenGt, Value: ">", Line: tok.Line, Col: tok.Col}
	case TokenGtGtEq:
		p.advance()
		p.insertToken(Token{Kind: TokenGtEq, Value: ">=", Line: tok.Line, Col: tok.Col + 1})
		return Token{Kind: TokenGt, Value: ">", Line: tok.Line, Col: tok.Col}
	}
	panic(&ParseError{
		Msg:  fmt.Sprintf("Expected '>', got %s '%s'", tok.Kind, tok.Value),
		Line: tok.Line, Col: tok.Col,
	})
}

func (p *Parser) insertToken(tok Token) {
	p.tokens = append(p.tokens, Token{})
	copy(p.tokens[p.pos+1:], p.tokens[p.pos:])
	p.tokens[p.pos] = tok
}

// ---- Top level ----

func (p *Parser) parseTopLevelItem() Decl {
	tok := p.peek()

	if tok.Kind == TokenPreprocessor {
		p.advance()
		return &PreprocessorDirective{position: p.posOf(tok), Text: tok.Value}
	}

	isGpu := false
	if tok.Kind == TokenAtGpu {
		isGpu = true
		p.advance()
		tok = p.peek()
	}

	// 'class Name {' / 'class Name<' / 'class Name extends' opens a
	// class declaration; other uses of the keyword are the static
	// access specifier, which never appears at top level.
	if tok.Kind == TokenClass && !isGpu {
		if p.peekAt(1).Kind == TokenIdent {
			switch p.peekAt(2).Kind {
			case TokenLBrace, TokenLt, TokenExtends:
				return p.parseClassDecl()
			}
		}
	}

	// 'struct Name {' or 'struct Name ;' — not 'struct Name* fn()'.
	if tok.Kind == TokenStruct && !isGpu {
		if p.peekAt(1).Kind == TokenIdent {
			switch p.peekAt(2).Kind {
			case TokenLBrace, TokenSemicolon:
				return p.parseStructDecl()
			}
		} else if p.peekAt(1).Kind == TokenLBrace {
			return p.parseStructDecl()
		}
	}

	// 'enum Name {' or 'enum {' opens an enum declaration; 'enum Name'
	// followed by anything else is a type usage.
	if tok.Kind == TokenEnum && !isGpu {
		if p.peekAt(1).Kind == TokenLBrace {
			return p.parseEnumDecl()
		}
		if p.peekAt(1).Kind == TokenIdent && p.peekAt(2).Kind == TokenLBrace {
			return p.parseEnumDecl()
		}
	}

	if tok.Kind == TokenTypedef && !isGpu {
		return p.parseTypedefDecl()
	}

	if p.isTypeStart(tok) {
		return p.parseFunctionOrVarDecl(isGpu)
	}

	p.fail(fmt.Sprintf("Unexpected token '%s' at top level", tok.Value))
	return nil
}

// ---- Class declaration ----

func (p *Parser) parseClassDecl() *ClassDecl {
	tok := p.expect(TokenClass, "")
	name := p.expect(TokenIdent, "class name").Value

	var genericParams []string
	if _, ok := p.match(TokenLt); ok {
		genericParams = append(genericParams, p.expect(TokenIdent, "generic param").Value)
		for {
			if _, ok := p.match(TokenComma); !ok {
				break
			}
			genericParams = append(genericParams, p.expect(TokenIdent, "generic param").Value)
		}
		p.expectGt()
	}

	parent := ""
	if _, ok := p.match(TokenExtends); ok {
		parent = p.expect(TokenIdent, "parent class name").Value
	}

	p.expect(TokenLBrace, "'{'")
	var members []ClassMember
	for !p.check(TokenRBrace) && !p.atEnd() {
		members = append(members, p.parseClassMember())
	}
	p.expect(TokenRBrace, "'}'")

	return &ClassDecl{
		position: p.posOf(tok), Name: name, GenericParams: genericParams,
		Parent: parent, Members: members,
	}
}

func (p *Parser) parseClassMember() ClassMember {
	tok := p.peek()

	var access string
	switch tok.Kind {
	case TokenPublic:
		access = "public"
		p.advance()
	case TokenPrivate:
		access = "private"
		p.advance()
	case TokenClass:
		access = "class"
		p.advance()
	default:
		p.fail(fmt.Sprintf("Expected access specifier (public/private/class), got '%s'", tok.Value))
	}

	isGpu := false
	if p.check(TokenAtGpu) {
		isGpu = true
		p.advance()
	}

	typeExpr := p.parseTypeExpr()

	// Constructor: the "type" we just parsed is actually the method
	// name when '(' follows immediately.
	if p.check(TokenLParen) {
		return p.parseMethodRest(access, typeExpr, typeExpr.Base, isGpu, tok)
	}

	name := p.expect(TokenIdent, "member name").Value

	if p.check(TokenLParen) {
		return p.parseMethodRest(access, typeExpr, name, isGpu, tok)
	}

	// Property: access type name { get; set; }
	if p.check(TokenLBrace) {
		return p.parsePropertyRest(access, typeExpr, name, tok)
	}

	var init Expr
	if _, ok := p.match(TokenEq); ok {
		init = p.parseExpr()
	}
	p.expect(TokenSemicolon, "';'")
	return &FieldDecl{
		position: p.posOf(tok), Access: access, Type: typeExpr,
		Name: name, Initializer: init,
	}
}

func (p *Parser) parseMethodRest(access string, returnType *TypeExpr, name string, isGpu bool, tok Token) *MethodDecl {
	p.expect(TokenLParen, "'('")
	params := p.parseParamList()
	p.expect(TokenRParen, "')'")
	body := p.parseBlock()
	return &MethodDecl{
		position: p.posOf(tok), Access: access, ReturnType: returnType,
		Name: name, Params: params, Body: body, IsGpu: isGpu,
	}
}

// parsePropertyRest handles `access type name { get; set; }` where
// either accessor may carry a block body and omitting an accessor
// removes it.
func (p *Parser) parsePropertyRest(access string, typeExpr *TypeExpr, name string, tok Token) *PropertyDecl {
	prop := &PropertyDecl{
		position: p.posOf(tok), Access: access, Type: typeExpr, Name: name,
	}
	p.expect(TokenLBrace, "'{'")
	for !p.check(TokenRBrace) && !p.atEnd() {
		accessor := p.expect(TokenIdent, "'get' or 'set'")
		switch accessor.Value {
		case "get":
			prop.HasGetter = true
			if p.check(TokenLBrace) {
				prop.GetterBody = p.parseBlock()
			} else {
				p.expect(TokenSemicolon, "';'")
			}
		case "set":
			prop.HasSetter = true
			if p.check(TokenLBrace) {
				prop.SetterBody = p.parseBlock()
			} else {
				p.expect(TokenSemicolon, "';'")
			}
		default:
			p.fail(fmt.Sprintf("Expected 'get' or 'set' in property, got '%s'", accessor.Value))
		}
	}
	p.expect(TokenRBrace, "'}'")
	return prop
}

// ---- Struct / enum / typedef ----

func (p *Parser) parseStructDecl() *StructDecl {
	tok := p.expect(TokenStruct, "")
	name := ""
	if p.check(TokenIdent) {
		name = p.advance().Value
	}

	if _, ok := p.match(TokenLBrace); ok {
		var fields []*StructField
		for !p.check(TokenRBrace) && !p.atEnd() {
			ftok := p.peek()
			ftype := p.parseTypeExpr()
			fname := p.expect(TokenIdent, "field name").Value
			p.parseArraySuffix(ftype)
			fields = append(fields, &StructField{position: p.posOf(ftok), Type: ftype, Name: fname})
			p.expect(TokenSemicolon, "';'")
		}
		p.expect(TokenRBrace, "'}'")
		p.expect(TokenSemicolon, "';'")
		return &StructDecl{position: p.posOf(tok), Name: name, Fields: fields}
	}

	p.expect(TokenSemicolon, "';'")
	return &StructDecl{position: p.posOf(tok), Name: name}
}

func (p *Parser) parseEnumDecl() *EnumDecl {
	tok := p.expect(TokenEnum, "")
	name := ""
	if p.check(TokenIdent) {
		name = p.advance().Value
	}

	p.expect(TokenLBrace, "'{'")
	var values []EnumValue
	for !p.check(TokenRBrace) && !p.atEnd() {
		vname := p.expect(TokenIdent, "enum value").Value
		var vval Expr
		if _, ok := p.match(TokenEq); ok {
			vval = p.parseExpr()
		}
		values = append(values, EnumValue{Name: vname, Value: vval})
		if _, ok := p.match(TokenComma); !ok {
			break
		}
	}
	p.expect(TokenRBrace, "'}'")
	p.expect(TokenSemicolon, "';'")
	return &EnumDecl{position: p.posOf(tok), Name: name, Values: values}
}

func (p *Parser) parseTypedefDecl() *TypedefDecl {
	tok := p.expect(TokenTypedef, "")
	original := p.parseTypeExpr()
	alias := p.expect(TokenIdent, "typedef alias").Value
	p.expect(TokenSemicolon, "';'")
	return &TypedefDecl{position: p.posOf(tok), Original: original, Alias: alias}
}

// ---- Function or variable declaration ----

func (p *Parser) parseFunctionOrVarDecl(isGpu bool) Decl {
	start := p.peek()

	// 'var' at top level is always a variable.
	if p.check(TokenVar) {
		if isGpu {
			p.fail("@gpu cannot be applied to variables")
		}
		return p.parseVarKeywordDecl()
	}

	typeExpr := p.parseTypeExpr()
	name := p.expect(TokenIdent, "name").Value

	if p.check(TokenLParen) {
		p.advance()
		params := p.parseParamList()
		p.expect(TokenRParen, "')'")
		var body *Block
		if _, ok := p.match(TokenSemicolon); !ok {
			body = p.parseBlock()
		}
		return &FunctionDecl{
			position: p.posOf(start), ReturnType: typeExpr, Name: name,
			Params: params, Body: body, IsGpu: isGpu,
		}
	}

	if isGpu {
		p.fail("@gpu cannot be applied to variables")
	}
	p.parseArraySuffix(typeExpr)
	var init Expr
	if _, ok := p.match(TokenEq); ok {
		init = p.parseExpr()
	}
	p.expect(TokenSemicolon, "';'")
	return &VarDeclStmt{position: p.posOf(start), Type: typeExpr, Name: name, Initializer: init}
}

func (p *Parser) parseVarKeywordDecl() *VarDeclStmt {
	start := p.expect(TokenVar, "")
	name := p.expect(TokenIdent, "variable name").Value
	p.expect(TokenEq, "'=' (var requires an initializer)")
	init := p.parseExpr()
	p.expect(TokenSemicolon, "';'")
	return &VarDeclStmt{position: p.posOf(start), Name: name, Initializer: init}
}

// ---- Type expressions ----

func (p *Parser) isTypeStart(tok Token) bool {
	if tok.Kind == TokenVar || tok.Kind == TokenIdent {
		return true
	}
	if isTypeKeyword(tok.Kind) {
		return true
	}
	if tok.Kind == TokenLParen && p.isTupleTypeStart() {
		return true
	}
	return false
}

func (p *Parser) parseTypeExpr() *TypeExpr {
	tok := p.peek()
	line, col := tok.Line, tok.Col

	// Qualifiers are skipped; they pass through untyped.
	for p.check(TokenConst, TokenStatic, TokenExtern, TokenVolatile) {
		p.advance()
	}

	var base string
	switch {
	case p.check(TokenUnsigned, TokenSigned):
		base = p.advance().Value
		if p.check(TokenInt, TokenShort, TokenLong, TokenChar) {
			base += " " + p.advance().Value
			if p.check(TokenLong) && len(base) >= 4 && base[len(base)-4:] == "long" {
				base += " " + p.advance().Value
			}
		}
	case p.check(TokenLong):
		base = p.advance().Value
		if p.check(TokenLong) {
			base += " " + p.advance().Value
		}
		if p.check(TokenInt, TokenDouble) {
			base += " " + p.advance().Value
		}
	case p.check(TokenShort):
		base = p.advance().Value
		if p.check(TokenInt) {
			base += " " + p.advance().Value
		}
	case p.check(TokenStruct):
		p.advance()
		base = "struct " + p.expect(TokenIdent, "struct name").Value
	case p.check(TokenEnum):
		p.advance()
		base = "enum " + p.expect(TokenIdent, "enum name").Value
	case p.check(TokenUnion):
		p.advance()
		base = "union " + p.expect(TokenIdent, "union name").Value
	case p.check(TokenLParen):
		return p.parseTupleType(line, col)
	default:
		base = p.advance().Value
	}

	var genericArgs []*TypeExpr
	if p.check(TokenLt) && p.isGenericStart() {
		p.advance()
		genericArgs = append(genericArgs, p.parseTypeExpr())
		for {
			if _, ok := p.match(TokenComma); !ok {
				break
			}
			genericArgs = append(genericArgs, p.parseTypeExpr())
		}
		p.expectGt()
	}

	isArray := false
	if p.check(TokenLBracket) && p.peekAt(1).Kind == TokenRBracket {
		p.advance()
		p.advance()
		isArray = true
	}

	pointerDepth := 0
	for {
		if _, ok := p.match(TokenStar); !ok {
			break
		}
		pointerDepth++
	}

	// Nullable sugar: T? adds one pointer level.
	if p.check(TokenQuestion) && p.peekAt(1).Kind == TokenIdent {
		p.advance()
		pointerDepth++
	}

	return &TypeExpr{
		Base: base, GenericArgs: genericArgs, PointerDepth: pointerDepth,
		IsArray: isArray, Line: line, Col: col,
	}
}

// parseArraySuffix consumes `[N]` or `[]` after a declarator name,
// recording it on the type.
func (p *Parser) parseArraySuffix(t *TypeExpr) {
	if !p.check(TokenLBracket) {
		return
	}
	p.advance()
	if p.check(TokenRBracket) {
		p.advance()
		t.IsArray = true
		return
	}
	t.ArraySize = p.parseExpr()
	t.IsArray = true
	p.expect(TokenRBracket, "']'")
}

// isTupleTypeStart decides whether '(' opens a tuple type like
// (int, int). The first inner token must be a type keyword and a comma
// must appear at paren depth 1 — that separates tuple types from casts
// and parenthesized expressions. The lookahead restores the cursor.
func (p *Parser) isTupleTypeStart() bool {
	save := p.pos
	defer func() { p.pos = save }()

	p.pos++ // skip (
	if !isTypeKeyword(p.peekAt(0).Kind) {
		return false
	}
	depth := 1
	p.pos++
	for p.pos < len(p.tokens) && depth > 0 {
		switch p.tokens[p.pos].Kind {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
		case TokenComma:
			if depth == 1 {
				return true
			}
		case TokenEOF:
			return false
		}
		p.pos++
	}
	return false
}

func (p *Parser) parseTupleType(line, col int) *TypeExpr {
	p.expect(TokenLParen, "'('")
	types := []*TypeExpr{p.parseTypeExpr()}
	for {
		if _, ok := p.match(TokenComma); !ok {
			break
		}
		types = append(types, p.parseTypeExpr())
	}
	p.expect(TokenRParen, "')'")
	t := &TypeExpr{Base: "Tuple", GenericArgs: types, Line: line, Col: col}
	for {
		if _, ok := p.match(TokenStar); !ok {
			break
		}
		t.PointerDepth++
	}
	return t
}

// isGenericStart looks ahead from a '<' to decide generic-arguments vs
// comparison: scanning forward must find a matching '>' (or '>>',
// which covers two levels) before ';', '{', '}' or EOF, and the token
// past the closer must be in the permitted follower set. The cursor is
// restored either way.
func (p *Parser) isGenericStart() bool {
	save := p.pos
	defer func() { p.pos = save }()

	depth := 1
	p.pos++ // skip <
	for p.pos < len(p.tokens) && depth > 0 {
		switch p.tokens[p.pos].Kind {
		case TokenLt:
			depth++
		case TokenGt:
			depth--
		case TokenGtGt:
			depth -= 2
		case TokenSemicolon, TokenLBrace, TokenRBrace, TokenEOF:
			return false
		}
		p.pos++
	}
	if depth > 0 {
		return false
	}
	switch p.peekAt(0).Kind {
	case TokenIdent, TokenStar, TokenLParen, TokenRParen, TokenLBracket,
		TokenComma, TokenGt, TokenGtGt, TokenSemicolon, TokenLBrace, TokenEq:
		return true
	}
	return false
}

// ---- Parameters ----

func (p *Parser) parseParamList() []*Param {
	var params []*Param
	if p.check(TokenRParen) {
		return params
	}
	params = append(params, p.parseParam())
	for {
		if _, ok := p.match(TokenComma); !ok {
			break
		}
		params = append(params, p.parseParam())
	}
	return params
}

func (p *Parser) parseParam() *Param {
	tok := p.peek()
	typeExpr := p.parseTypeExpr()
	name := p.expect(TokenIdent, "parameter name").Value
	p.parseArraySuffix(typeExpr)
	var def Expr
	if _, ok := p.match(TokenEq); ok {
		def = p.parseExpr()
	}
	return &Param{position: p.posOf(tok), Type: typeExpr, Name: name, Default: def}
}

// ---- Blocks and statements ----

func (p *Parser) parseBlock() *Block {
	tok := p.expect(TokenLBrace, "'{'")
	block := &Block{position: p.posOf(tok)}
	for !p.check(TokenRBrace) && !p.atEnd() {
		block.Statements = append(block.Statements, p.parseStatement())
	}
	p.expect(TokenRBrace, "'}'")
	return block
}

func (p *Parser) parseStatement() Stmt {
	tok := p.peek()

	switch tok.Kind {
	case TokenLBrace:
		// A '{' in statement position is a nested block unless the
		// colon pattern marks a map literal expression.
		if !p.isMapLiteral() {
			return p.parseBlock()
		}
	case TokenReturn:
		return p.parseReturnStmt()
	case TokenIf:
		return p.parseIfStmt()
	case TokenWhile:
		return p.parseWhileStmt()
	case TokenDo:
		return p.parseDoWhileStmt()
	case TokenFor:
		return p.parseForStmt()
	case TokenParallel:
		return p.parseParallelForStmt()
	case TokenSwitch:
		return p.parseSwitchStmt()
	case TokenBreak:
		p.advance()
		p.expect(TokenSemicolon, "';'")
		return &BreakStmt{position: p.posOf(tok)}
	case TokenContinue:
		p.advance()
		p.expect(TokenSemicolon, "';'")
		return &ContinueStmt{position: p.posOf(tok)}
	case TokenTry:
		return p.parseTryCatch()
	case TokenThrow:
		return p.parseThrow()
	case TokenDelete:
		p.advance()
		expr := p.parseExpr()
		p.expect(TokenSemicolon, "';'")
		return &DeleteStmt{position: p.posOf(tok), Expr: expr}
	}

	if p.isVarDeclStart() {
		return p.parseVarDeclStmt()
	}

	expr := p.parseExpr()
	p.expect(TokenSemicolon, "';'")
	return &ExprStmt{position: p.posOf(tok), Expr: expr}
}

// isVarDeclStart is the statement-level declaration/expression
// disambiguation: a cheap, rewindable positional lookahead.
func (p *Parser) isVarDeclStart() bool {
	tok := p.peek()

	if tok.Kind == TokenVar {
		return true
	}
	if tok.Kind == TokenConst || tok.Kind == TokenStatic ||
		tok.Kind == TokenExtern || tok.Kind == TokenVolatile {
		return true
	}
	if isTypeKeyword(tok.Kind) || tok.Kind == TokenIdent {
		return p.lookaheadIsVarDecl()
	}
	if tok.Kind == TokenLParen && p.isTupleTypeStart() {
		return p.lookaheadIsVarDecl()
	}
	return false
}

// lookaheadIsVarDecl skips qualifiers, a base type token (composite
// forms included), a matched generic argument list, '[]' and stars; a
// following identifier means a declaration. Purely positional; the
// cursor is restored on every path.
func (p *Parser) lookaheadIsVarDecl() bool {
	save := p.pos
	defer func() { p.pos = save }()

	for p.check(TokenConst, TokenStatic, TokenExtern, TokenVolatile) {
		p.pos++
	}

	tok := p.peekAt(0)
	switch {
	case tok.Kind == TokenLParen:
		// Tuple type: scan to the matching ')', then require a name.
		depth := 1
		p.pos++
		for p.pos < len(p.tokens) && depth > 0 {
			switch p.tokens[p.pos].Kind {
			case TokenLParen:
				depth++
			case TokenRParen:
				depth--
			case TokenEOF:
				return false
			}
			p.pos++
		}
		return p.peekAt(0).Kind == TokenIdent
	case tok.Kind == TokenUnsigned || tok.Kind == TokenSigned:
		p.pos++
		switch p.peekAt(0).Kind {
		case TokenInt, TokenShort, TokenLong, TokenChar:
			p.pos++
		}
	case tok.Kind == TokenLong || tok.Kind == TokenShort:
		p.pos++
		switch p.peekAt(0).Kind {
		case TokenInt, TokenLong, TokenDouble:
			p.pos++
		}
	case tok.Kind == TokenStruct || tok.Kind == TokenEnum || tok.Kind == TokenUnion:
		p.pos++
		if p.peekAt(0).Kind == TokenIdent {
			p.pos++
		}
	case isTypeKeyword(tok.Kind) || tok.Kind == TokenIdent:
		p.pos++
	default:
		return false
	}

	// Generic argument list.
	if p.peekAt(0).Kind == TokenLt {
		depth := 1
		p.pos++
		for p.pos < len(p.tokens) && depth > 0 {
			switch p.tokens[p.pos].Kind {
			case TokenLt:
				depth++
			case TokenGt:
				depth--
			case TokenGtGt:
				depth -= 2
			case TokenSemicolon, TokenLBrace, TokenEOF:
				return false
			}
			p.pos++
		}
		if depth > 0 {
			return false
		}
	}

	if p.peekAt(0).Kind == TokenLBracket && p.peekAt(1).Kind == TokenRBracket {
		p.pos += 2
	}

	for p.peekAt(0).Kind == TokenStar {
		p.pos++
	}

	return p.peekAt(0).Kind == TokenIdent
}

func (p *Parser) parseVarDeclStmt() *VarDeclStmt {
	tok := p.peek()

	if p.check(TokenVar) {
		return p.parseVarKeywordDecl()
	}

	typeExpr := p.parseTypeExpr()
	name := p.expect(TokenIdent, "variable name").Value
	p.parseArraySuffix(typeExpr)
	var init Expr
	if _, ok := p.match(TokenEq); ok {
		init = p.parseExpr()
	}
	p.expect(TokenSemicolon, "';'")
	return &VarDeclStmt{position: p.posOf(tok), Type: typeExpr, Name: name, Initializer: init}
}

func (p *Parser) parseReturnStmt() *ReturnStmt {
	tok := p.expect(TokenReturn, "")
	var value Expr
	if !p.check(TokenSemicolon) {
		value = p.parseExpr()
	}
	p.expect(TokenSemicolon, "';'")
	return &ReturnStmt{position: p.posOf(tok), Value: value}
}

func (p *Parser) parseIfStmt() *IfStmt {
	tok := p.expect(TokenIf, "")
	p.expect(TokenLParen, "'('")
	cond := p.parseExpr()
	p.expect(TokenRParen, "')'")
	then := p.parseBlock()
	var elseStmt Stmt
	if _, ok := p.match(TokenElse); ok {
		if p.check(TokenIf) {
			elseStmt = p.parseIfStmt()
		} else {
			elseStmt = p.parseBlock()
		}
	}
	return &IfStmt{position: p.posOf(tok), Cond: cond, Then: then, Else: elseStmt}
}

func (p *Parser) parseWhileStmt() *WhileStmt {
	tok := p.expect(TokenWhile, "")
	p.expect(TokenLParen, "'('")
	cond := p.parseExpr()
	p.expect(TokenRParen, "')'")
	body := p.parseBlock()
	return &WhileStmt{position: p.posOf(tok), Cond: cond, Body: body}
}

func (p *Parser) parseDoWhileStmt() *DoWhileStmt {
	tok := p.expect(TokenDo, "")
	body := p.parseBlock()
	p.expect(TokenWhile, "'while'")
	p.expect(TokenLParen, "'('")
	cond := p.parseExpr()
	p.expect(TokenRParen, "')'")
	p.expect(TokenSemicolon, "';'")
	return &DoWhileStmt{position: p.posOf(tok), Body: body, Cond: cond}
}

func (p *Parser) parseForStmt() Stmt {
	tok := p.expect(TokenFor, "")

	// for-in: 'for' IDENT [',' IDENT] 'in' expr block
	if p.check(TokenIdent) {
		if p.peekAt(1).Kind == TokenIn {
			varName := p.advance().Value
			p.expect(TokenIn, "'in'")
			iterable := p.parseExpr()
			body := p.parseBlock()
			return &ForInStmt{position: p.posOf(tok), VarName: varName, Iterable: iterable, Body: body}
		}
		if p.peekAt(1).Kind == TokenComma && p.peekAt(2).Kind == TokenIdent &&
			p.peekAt(3).Kind == TokenIn {
			varName := p.advance().Value
			p.advance() // ,
			varName2 := p.advance().Value
			p.expect(TokenIn, "'in'")
			iterable := p.parseExpr()
			body := p.parseBlock()
			return &ForInStmt{
				position: p.posOf(tok), VarName: varName, VarName2: varName2,
				Iterable: iterable, Body: body,
			}
		}
	}

	// C-style for.
	p.expect(TokenLParen, "'('")
	var init Stmt
	if !p.check(TokenSemicolon) {
		if p.isVarDeclStart() {
			start := p.peek()
			if p.check(TokenVar) {
				p.advance()
				name := p.expect(TokenIdent, "variable name").Value
				p.expect(TokenEq, "'=' (var requires an initializer)")
				initVal := p.parseExpr()
				init = &VarDeclStmt{position: p.posOf(start), Name: name, Initializer: initVal}
			} else {
				typeExpr := p.parseTypeExpr()
				name := p.expect(TokenIdent, "variable name").Value
				var initVal Expr
				if _, ok := p.match(TokenEq); ok {
					initVal = p.parseExpr()
				}
				init = &VarDeclStmt{position: p.posOf(start), Type: typeExpr, Name: name, Initializer: initVal}
			}
		} else {
			start := p.peek()
			init = &ExprStmt{position: p.posOf(start), Expr: p.parseExpr()}
		}
	}
	p.expect(TokenSemicolon, "';'")

	var cond Expr
	if !p.check(TokenSemicolon) {
		cond = p.parseExpr()
	}
	p.expect(TokenSemicolon, "';'")

	var update Expr
	if !p.check(TokenRParen) {
		update = p.parseExpr()
	}
	p.expect(TokenRParen, "')'")

	body := p.parseBlock()
	return &CForStmt{position: p.posOf(tok), Init: init, Cond: cond, Update: update, Body: body}
}

func (p *Parser) parseParallelForStmt() *ParallelForStmt {
	tok := p.expect(TokenParallel, "")
	p.expect(TokenFor, "'for'")
	varName := p.expect(TokenIdent, "loop variable").Value
	p.expect(TokenIn, "'in'")
	iterable := p.parseExpr()
	body := p.parseBlock()
	return &ParallelForStmt{position: p.posOf(tok), VarName: varName, Iterable: iterable, Body: body}
}

func (p *Parser) parseSwitchStmt() *SwitchStmt {
	tok := p.expect(TokenSwitch, "")
	p.expect(TokenLParen, "'('")
	value := p.parseExpr()
	p.expect(TokenRParen, "')'")
	p.expect(TokenLBrace, "'{'")

	var cases []*CaseClause
	for !p.check(TokenRBrace) && !p.atEnd() {
		cases = append(cases, p.parseCaseClause())
	}
	p.expect(TokenRBrace, "'}'")
	return &SwitchStmt{position: p.posOf(tok), Value: value, Cases: cases}
}

func (p *Parser) parseCaseClause() *CaseClause {
	tok := p.peek()
	var value Expr
	if _, ok := p.match(TokenCase); ok {
		value = p.parseExpr()
	} else if _, ok := p.match(TokenDefault); !ok {
		p.fail(fmt.Sprintf("Expected 'case' or 'default', got '%s'", tok.Value))
	}
	p.expect(TokenColon, "':'")

	var body []Stmt
	for !p.check(TokenCase, TokenDefault, TokenRBrace) && !p.atEnd() {
		body = append(body, p.parseStatement())
	}
	return &CaseClause{position: p.posOf(tok), Value: value, Body: body}
}

func (p *Parser) parseTryCatch() *TryCatchStmt {
	tok := p.expect(TokenTry, "")
	tryBlock := p.parseBlock()
	p.expect(TokenCatch, "'catch'")
	p.expect(TokenLParen, "'('")
	// catch (string e) or catch (e) — the type is always string.
	if p.isTypeStart(p.peek()) && p.peekAt(1).Kind == TokenIdent {
		p.parseTypeExpr()
	}
	catchVar := p.expect(TokenIdent, "catch variable").Value
	p.expect(TokenRParen, "')'")
	catchBlock := p.parseBlock()
	return &TryCatchStmt{
		position: p.posOf(tok), TryBlock: tryBlock,
		CatchVar: catchVar, CatchBlock: catchBlock,
	}
}

func (p *Parser) parseThrow() *ThrowStmt {
	tok := p.expect(TokenThrow, "")
	expr := p.parseExpr()
	p.expect(TokenSemicolon, "';'")
	return &ThrowStmt{position: p.posOf(tok), Expr: expr}
}

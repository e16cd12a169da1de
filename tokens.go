package btrc

import "fmt"

// TokenKind enumerates every lexical category the btrc language knows
// about: literals, identifiers, keywords (C's plus btrc's own),
// operators, delimiters, preprocessor lines and EOF.
type TokenKind int

const (
	// Literals
	TokenIntLit TokenKind = iota
	TokenFloatLit
	TokenStringLit
	TokenCharLit
	TokenIdent

	// C keywords
	TokenAuto
	TokenBreak
	TokenCase
	TokenChar
	TokenConst
	TokenContinue
	TokenDefault
	TokenDo
	TokenDouble
	TokenElse
	TokenEnum
	TokenExtern
	TokenFloat
	TokenFor
	TokenGoto
	TokenIf
	TokenInt
	TokenLong
	TokenRegister
	TokenReturn
	TokenShort
	TokenSigned
	TokenSizeof
	TokenStatic
	TokenStruct
	TokenSwitch
	TokenTypedef
	TokenUnion
	TokenUnsigned
	TokenVoid
	TokenVolatile
	TokenWhile

	// btrc keywords
	TokenClass
	TokenPublic
	TokenPrivate
	TokenSelf
	TokenIn
	TokenParallel
	TokenString
	TokenBool
	TokenTrue
	TokenFalse
	TokenNew
	TokenDelete
	TokenNull
	TokenTry
	TokenCatch
	TokenThrow
	TokenExtends
	TokenVar

	// Built-in container types
	TokenList
	TokenMap
	TokenArray
	TokenSet

	// Annotation
	TokenAtGpu

	// Operators
	TokenPlus             // +
	TokenMinus            // -
	TokenStar             // *
	TokenSlash            // /
	TokenPercent          // %
	TokenEq               // =
	TokenEqEq             // ==
	TokenBangEq           // !=
	TokenLt               // <
	TokenGt               // >
	TokenLtEq             // <=
	TokenGtEq             // >=
	TokenAmpAmp           // &&
	TokenPipePipe         // ||
	TokenBang             // !
	TokenAmp              // &
	TokenPipe             // |
	TokenCaret            // ^
	TokenTilde            // ~
	TokenLtLt             // <<
	TokenGtGt             // >>
	TokenPlusEq           // +=
	TokenMinusEq          // -=
	TokenStarEq           // *=
	TokenSlashEq          // /=
	TokenPercentEq        // %=
	TokenAmpEq            // &=
	TokenPipeEq           // |=
	TokenCaretEq          // ^=
	TokenLtLtEq           // <<=
	TokenGtGtEq           // >>=
	TokenPlusPlus         // ++
	TokenMinusMinus       // --
	TokenArrow            // ->
	TokenFatArrow         // =>
	TokenDot              // .
	TokenQuestion         // ?
	TokenQuestionDot      // ?.
	TokenQuestionQuestion // ??
	TokenColon            // :
	TokenComma            // ,
	TokenSemicolon        // ;

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }

	// Special
	TokenPreprocessor
	TokenFStringLit // f"..." raw interior (without quotes)
	TokenEOF
)

var tokenKindNames = map[TokenKind]string{
	TokenIntLit: "INT_LIT", TokenFloatLit: "FLOAT_LIT", TokenStringLit: "STRING_LIT",
	TokenCharLit: "CHAR_LIT", TokenIdent: "IDENT",
	TokenAuto: "auto", TokenBreak: "break", TokenCase: "case", TokenChar: "char",
	TokenConst: "const", TokenContinue: "continue", TokenDefault: "default",
	TokenDo: "do", TokenDouble: "double", TokenElse: "else", TokenEnum: "enum",
	TokenExtern: "extern", TokenFloat: "float", TokenFor: "for", TokenGoto: "goto",
	TokenIf: "if", TokenInt: "int", TokenLong: "long", TokenRegister: "register",
	TokenReturn: "return", TokenShort: "short", TokenSigned: "signed",
	TokenSizeof: "sizeof", TokenStatic: "static", TokenStruct: "struct",
	TokenSwitch: "switch", TokenTypedef: "typedef", TokenUnion: "union",
	TokenUnsigned: "unsigned", TokenVoid: "void", TokenVolatile: "volatile",
	TokenWhile: "while",
	TokenClass: "class", TokenPublic: "public", TokenPrivate: "private",
	TokenSelf: "self", TokenIn: "in", TokenParallel: "parallel",
	TokenString: "string", TokenBool: "bool", TokenTrue: "true", TokenFalse: "false",
	TokenNew: "new", TokenDelete: "delete", TokenNull: "null", TokenTry: "try",
	TokenCatch: "catch", TokenThrow: "throw", TokenExtends: "extends", TokenVar: "var",
	TokenList: "List", TokenMap: "Map", TokenArray: "Array", TokenSet: "Set",
	TokenAtGpu: "@gpu",
	TokenPlus:  "+", TokenMinus: "-", TokenStar: "*", TokenSlash: "/",
	TokenPercent: "%", TokenEq: "=", TokenEqEq: "==", TokenBangEq: "!=",
	TokenLt: "<", TokenGt: ">", TokenLtEq: "<=", TokenGtEq: ">=",
	TokenAmpAmp: "&&", TokenPipePipe: "||", TokenBang: "!", TokenAmp: "&",
	TokenPipe: "|", TokenCaret: "^", TokenTilde: "~", TokenLtLt: "<<",
	TokenGtGt: ">>", TokenPlusEq: "+=", TokenMinusEq: "-=", TokenStarEq: "*=",
	TokenSlashEq: "/=", TokenPercentEq: "%=", TokenAmpEq: "&=", TokenPipeEq: "|=",
	TokenCaretEq: "^=", TokenLtLtEq: "<<=", TokenGtGtEq: ">>=",
	TokenPlusPlus: "++", TokenMinusMinus: "--", TokenArrow: "->", TokenFatArrow: "=>",
	TokenDot: ".",
	TokenQuestion: "?", TokenQuestionDot: "?.", TokenQuestionQuestion: "??",
	TokenColon: ":", TokenComma: ",", TokenSemicolon: ";",
	TokenLParen: "(", TokenRParen: ")", TokenLBracket: "[", TokenRBracket: "]",
	TokenLBrace: "{", TokenRBrace: "}",
	TokenPreprocessor: "PREPROCESSOR", TokenFStringLit: "FSTRING_LIT", TokenEOF: "EOF",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexeme with its source position. Line and Col are
// both 1-based.
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
	Col   int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q, %d:%d)", t.Kind, t.Value, t.Line, t.Col)
}

// keywords maps identifier spellings to their keyword kinds.
var keywords = map[string]TokenKind{
	// C keywords
	"auto": TokenAuto, "break": TokenBreak, "case": TokenCase, "char": TokenChar,
	"const": TokenConst, "continue": TokenContinue, "default": TokenDefault,
	"do": TokenDo, "double": TokenDouble, "else": TokenElse, "enum": TokenEnum,
	"extern": TokenExtern, "float": TokenFloat, "for": TokenFor, "goto": TokenGoto,
	"if": TokenIf, "int": TokenInt, "long": TokenLong, "register": TokenRegister,
	"return": TokenReturn, "short": TokenShort, "signed": TokenSigned,
	"sizeof": TokenSizeof, "static": TokenStatic, "struct": TokenStruct,
	"switch": TokenSwitch, "typedef": TokenTypedef, "union": TokenUnion,
	"unsigned": TokenUnsigned, "void": TokenVoid, "volatile": TokenVolatile,
	"while": TokenWhile,
	// btrc keywords
	"class": TokenClass, "public": TokenPublic, "private": TokenPrivate,
	"self": TokenSelf, "in": TokenIn, "parallel": TokenParallel,
	"string": TokenString, "bool": TokenBool, "true": TokenTrue, "false": TokenFalse,
	"new": TokenNew, "delete": TokenDelete, "null": TokenNull, "try": TokenTry,
	"catch": TokenCatch, "throw": TokenThrow, "extends": TokenExtends, "var": TokenVar,
	// Built-in container types
	"List": TokenList, "Map": TokenMap, "Array": TokenArray, "Set": TokenSet,
}

// typeKeywords is the set of kinds that may start a type expression.
// The parser's declaration/statement and cast disambiguation both
// consult it.
var typeKeywords = map[TokenKind]bool{
	TokenVoid: true, TokenInt: true, TokenFloat: true, TokenDouble: true,
	TokenChar: true, TokenShort: true, TokenLong: true, TokenUnsigned: true,
	TokenSigned: true, TokenString: true, TokenBool: true,
	TokenList: true, TokenMap: true, TokenArray: true, TokenSet: true,
	TokenStruct: true, TokenEnum: true, TokenUnion: true,
	TokenConst: true, TokenStatic: true, TokenExtern: true, TokenVolatile: true,
}

func isTypeKeyword(k TokenKind) bool { return typeKeywords[k] }

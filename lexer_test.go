package btrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lex(t *testing.T, source string) []Token {
	t.Helper()
	tokens, err := Lex(source)
	require.NoError(t, err)
	return tokens
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestLexEmptyInput(t *testing.T) {
	tokens := lex(t, "")
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenEOF, tokens[0].Kind)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Col)
}

func TestLexFirstTokenPosition(t *testing.T) {
	tokens := lex(t, "int x;")
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Col)
}

func TestLexKeywordsAndIdentifiers(t *testing.T) {
	tokens := lex(t, "class Foo extends Bar")
	assert.Equal(t, []TokenKind{TokenClass, TokenIdent, TokenExtends, TokenIdent, TokenEOF}, kinds(tokens))
	assert.Equal(t, "Foo", tokens[1].Value)
	assert.Equal(t, "Bar", tokens[3].Value)
}

func TestLexNumericLiterals(t *testing.T) {
	for _, test := range []struct {
		Name   string
		Source string
		Kind   TokenKind
		Value  string
	}{
		{"decimal int", "42", TokenIntLit, "42"},
		{"hex", "0xFF", TokenIntLit, "0xFF"},
		{"binary", "0b1010", TokenIntLit, "0b1010"},
		{"octal", "0o755", TokenIntLit, "0o755"},
		{"float with dot", "3.14", TokenFloatLit, "3.14"},
		{"float with exponent", "1e10", TokenFloatLit, "1e10"},
		{"float with signed exponent", "2.5e-3", TokenFloatLit, "2.5e-3"},
		{"float suffix", "1f", TokenFloatLit, "1f"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			tokens := lex(t, test.Source)
			require.GreaterOrEqual(t, len(tokens), 2)
			assert.Equal(t, test.Kind, tokens[0].Kind)
			assert.Equal(t, test.Value, tokens[0].Value)
		})
	}
}

func TestLexStringEscapesPassThrough(t *testing.T) {
	tokens := lex(t, `"a\nb\"c"`)
	assert.Equal(t, TokenStringLit, tokens[0].Kind)
	assert.Equal(t, `"a\nb\"c"`, tokens[0].Value)
}

func TestLexCharLiteral(t *testing.T) {
	tokens := lex(t, `'x' '\n'`)
	assert.Equal(t, TokenCharLit, tokens[0].Kind)
	assert.Equal(t, `'x'`, tokens[0].Value)
	assert.Equal(t, `'\n'`, tokens[1].Value)
}

func TestLexFString(t *testing.T) {
	tokens := lex(t, `f"x = {x}"`)
	assert.Equal(t, TokenFStringLit, tokens[0].Kind)
	assert.Equal(t, "x = {x}", tokens[0].Value)
}

func TestLexMaximalMunch(t *testing.T) {
	tokens := lex(t, "a >>= b << c >> d <= e")
	assert.Equal(t, []TokenKind{
		TokenIdent, TokenGtGtEq, TokenIdent, TokenLtLt, TokenIdent,
		TokenGtGt, TokenIdent, TokenLtEq, TokenIdent, TokenEOF,
	}, kinds(tokens))
}

func TestLexQuestionOperators(t *testing.T) {
	tokens := lex(t, "a ?. b ?? c ? d : e")
	assert.Equal(t, []TokenKind{
		TokenIdent, TokenQuestionDot, TokenIdent, TokenQuestionQuestion, TokenIdent,
		TokenQuestion, TokenIdent, TokenColon, TokenIdent, TokenEOF,
	}, kinds(tokens))
}

func TestLexComments(t *testing.T) {
	tokens := lex(t, "a // line comment\nb /* block\ncomment */ c")
	assert.Equal(t, []TokenKind{TokenIdent, TokenIdent, TokenIdent, TokenEOF}, kinds(tokens))
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[2].Line)
}

func TestLexPreprocessor(t *testing.T) {
	tokens := lex(t, "#include <stdio.h>\nint x;")
	assert.Equal(t, TokenPreprocessor, tokens[0].Kind)
	assert.Equal(t, "#include <stdio.h>", tokens[0].Value)
	assert.Equal(t, TokenInt, tokens[1].Kind)
}

func TestLexPreprocessorContinuation(t *testing.T) {
	tokens := lex(t, "#define X \\\n  1\nint y;")
	assert.Equal(t, TokenPreprocessor, tokens[0].Kind)
	assert.Contains(t, tokens[0].Value, "1")
	assert.Equal(t, TokenInt, tokens[1].Kind)
}

func TestLexPositions(t *testing.T) {
	tokens := lex(t, "int x;\n  y = 1;")
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Col)
	assert.Equal(t, 5, tokens[1].Col) // x
	assert.Equal(t, 2, tokens[3].Line)
	assert.Equal(t, 3, tokens[3].Col) // y
}

func TestLexGpuAnnotation(t *testing.T) {
	tokens := lex(t, "@gpu void k() {}")
	assert.Equal(t, TokenAtGpu, tokens[0].Kind)
}

func TestLexErrors(t *testing.T) {
	for _, test := range []struct {
		Name   string
		Source string
	}{
		{"unterminated string", `"abc`},
		{"unterminated block comment", "/* abc"},
		{"unknown annotation", "@cpu void f() {}"},
		{"stray character", "int $x;"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			_, err := Lex(test.Source)
			require.Error(t, err)
			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Greater(t, lexErr.Line, 0)
		})
	}
}

func TestLexEOFIsLast(t *testing.T) {
	tokens := lex(t, "int main() { return 0; }")
	assert.Equal(t, TokenEOF, tokens[len(tokens)-1].Kind)
}

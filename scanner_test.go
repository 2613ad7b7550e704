package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, source string) []Token {
	t.Helper()
	s := NewScanner([]byte(source))
	var toks []Token
	for {
		tok := s.ScanToken()
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			break
		}
	}
	return toks
}

func TestScannerPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, "(){},.-+;/* ! != = == < <= > >=")
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenComma, TokenDot, TokenMinus, TokenPlus, TokenSemicolon,
		TokenSlash, TokenStar, TokenBang, TokenBangEqual, TokenEqual,
		TokenEqualEqual, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenEOF,
	}, kinds)
}

func TestScannerSkipsWhitespaceAndComments(t *testing.T) {
	toks := scanAll(t, "  // a comment\n\t1")
	require.Len(t, toks, 2)
	assert.Equal(t, TokenNumber, toks[0].Kind)
	assert.Equal(t, 2, toks[0].Line)
}

func TestScannerStrings(t *testing.T) {
	toks := scanAll(t, `"hello"`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokenString, toks[0].Kind)
	assert.Equal(t, `"hello"`, string(toks[0].Lexeme))
}

func TestScannerMultilineString(t *testing.T) {
	toks := scanAll(t, "\"a\nb\" 1")
	require.Len(t, toks, 3)
	assert.Equal(t, TokenString, toks[0].Kind)
	assert.Equal(t, 2, toks[1].Line, "line counter must advance across embedded newlines")
}

func TestScannerUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"unterminated`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokenError, toks[0].Kind)
	assert.Equal(t, "Unterminated string.", string(toks[0].Lexeme))
}

func TestScannerNumbers(t *testing.T) {
	toks := scanAll(t, "123 45.67 8.")
	require.Len(t, toks, 5)
	assert.Equal(t, "123", string(toks[0].Lexeme))
	assert.Equal(t, "45.67", string(toks[1].Lexeme))
	// a trailing '.' with no following digit is not consumed.
	assert.Equal(t, "8", string(toks[2].Lexeme))
	assert.Equal(t, TokenDot, toks[3].Kind)
}

func TestScannerIdentifiersAndKeywords(t *testing.T) {
	toks := scanAll(t, "foo_1 print true false nil and or class else for fun if return super this var while")
	kinds := make([]TokenKind, 0, len(toks)-1)
	for _, tok := range toks[:len(toks)-1] {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{
		TokenIdentifier, TokenPrint, TokenTrue, TokenFalse, TokenNil,
		TokenAnd, TokenOr, TokenClass, TokenElse, TokenFor, TokenFun,
		TokenIf, TokenReturn, TokenSuper, TokenThis, TokenVar, TokenWhile,
	}, kinds)
}

func TestScannerUnexpectedCharacter(t *testing.T) {
	toks := scanAll(t, "@")
	require.Len(t, toks, 2)
	assert.Equal(t, TokenError, toks[0].Kind)
	assert.Equal(t, "Unexpected character.", string(toks[0].Lexeme))
}

func TestScannerEOFIsSticky(t *testing.T) {
	s := NewScanner([]byte(""))
	tok1 := s.ScanToken()
	tok2 := s.ScanToken()
	assert.Equal(t, TokenEOF, tok1.Kind)
	assert.Equal(t, TokenEOF, tok2.Kind)
}

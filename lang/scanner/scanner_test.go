package scanner_test

import (
	"testing"

	"github.com/mtkrol/loxvm/lang/scanner"
	"github.com/mtkrol/loxvm/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(src string) []scanner.Tok {
	s := scanner.New(src)
	var toks []scanner.Tok
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func types(toks []scanner.Tok) []token.Token {
	out := make([]token.Token, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){};,.+-*/ ! != = == < <= > >= : ? & |")
	require.Equal(t, []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.SEMI,
		token.COMMA, token.DOT, token.PLUS, token.MINUS, token.STAR, token.SLASH,
		token.BANG, token.BANG_EQ, token.EQ, token.EQ_EQ, token.LT, token.LT_EQ,
		token.GT, token.GT_EQ, token.COLON, token.QMARK, token.AMP, token.PIPE,
		token.EOF,
	}, types(toks))
}

func TestScanLineComment(t *testing.T) {
	toks := scanAll("1 // a comment\n2")
	require.Equal(t, []token.Token{token.NUMBER, token.NUMBER, token.EOF}, types(toks))
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[1].Line)
}

func TestScanNumber(t *testing.T) {
	toks := scanAll("123 1.5 1.")
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, "1.5", toks[1].Lexeme)
	// trailing dot with no following digit is not part of the number
	require.Equal(t, "1", toks[2].Lexeme)
	require.Equal(t, token.DOT, toks[3].Type)
}

func TestScanString(t *testing.T) {
	toks := scanAll(`"foo bar"`)
	require.Equal(t, token.STRING, toks[0].Type)
	require.Equal(t, `"foo bar"`, toks[0].Lexeme)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(`"foo`)
	require.Equal(t, token.ILLEGAL, toks[0].Type)
}

func TestScanStringSpanningLines(t *testing.T) {
	toks := scanAll("\"foo\nbar\" 1")
	require.Equal(t, token.STRING, toks[0].Type)
	require.Equal(t, 2, toks[1].Line)
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks := scanAll("class fun var foo_bar once switch case default")
	require.Equal(t, []token.Token{
		token.CLASS, token.FUN, token.VAR, token.IDENT, token.ONCE,
		token.SWITCH, token.CASE, token.DEFAULT, token.EOF,
	}, types(toks))
}

func TestScanIllegalCharacter(t *testing.T) {
	toks := scanAll("@")
	require.Equal(t, token.ILLEGAL, toks[0].Type)
}

func TestScanIsIdempotentAtEOF(t *testing.T) {
	s := scanner.New("")
	require.Equal(t, token.EOF, s.Scan().Type)
	require.Equal(t, token.EOF, s.Scan().Type)
}

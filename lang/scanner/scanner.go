// Package scanner implements the lazy, restartable lexer that turns source
// text into a stream of tokens for the compiler.
package scanner

import (
	"fmt"

	"github.com/mtkrol/loxvm/lang/token"
)

// Tok is a single scanned token: its kind, the exact source lexeme it spans,
// and the 1-based source line it ends on (for a string literal spanning
// several lines, its last line). For an ILLEGAL token, Lexeme instead holds
// a human-readable error message.
type Tok struct {
	Type   token.Token
	Lexeme string
	Line   int
}

// Scanner tokenizes a single source buffer on demand. It keeps the buffer
// for its own lifetime, and the Lexeme of each Tok it returns is a substring
// of that buffer.
type Scanner struct {
	src   string
	start int // start of the lexeme currently being scanned
	pos   int // offset of the next unread byte
	line  int
}

// New creates a Scanner positioned at the start of src.
func New(src string) *Scanner {
	return &Scanner{src: src, line: 1}
}

// Scan returns the next token in the source. Once EOF is produced, every
// subsequent call returns EOF again.
func (s *Scanner) Scan() Tok {
	s.skipIgnored()
	s.start = s.pos

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()
	switch {
	case isAlpha(c):
		return s.identifier()
	case isDigit(c):
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LPAREN)
	case ')':
		return s.make(token.RPAREN)
	case '{':
		return s.make(token.LBRACE)
	case '}':
		return s.make(token.RBRACE)
	case ',':
		return s.make(token.COMMA)
	case '.':
		return s.make(token.DOT)
	case '-':
		return s.make(token.MINUS)
	case '+':
		return s.make(token.PLUS)
	case ';':
		return s.make(token.SEMI)
	case '*':
		return s.make(token.STAR)
	case '/':
		return s.make(token.SLASH)
	case ':':
		return s.make(token.COLON)
	case '?':
		return s.make(token.QMARK)
	case '&':
		return s.make(token.AMP)
	case '|':
		return s.make(token.PIPE)
	case '!':
		return s.makeIfMatch('=', token.BANG_EQ, token.BANG)
	case '=':
		return s.makeIfMatch('=', token.EQ_EQ, token.EQ)
	case '<':
		return s.makeIfMatch('=', token.LT_EQ, token.LT)
	case '>':
		return s.makeIfMatch('=', token.GT_EQ, token.GT)
	case '"':
		return s.string()
	}

	return s.errorf("unexpected character %q", c)
}

func (s *Scanner) atEnd() bool { return s.pos >= len(s.src) }

func (s *Scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.pos]
}

func (s *Scanner) peekNext() byte {
	if s.pos+1 >= len(s.src) {
		return 0
	}
	return s.src[s.pos+1]
}

// match consumes the current byte and returns true if it equals want.
func (s *Scanner) match(want byte) bool {
	if s.peek() != want {
		return false
	}
	s.pos++
	return true
}

// skipIgnored advances past whitespace and `//` line comments, tracking line
// numbers as newlines are consumed.
func (s *Scanner) skipIgnored() {
	for !s.atEnd() {
		switch c := s.peek(); c {
		case ' ', '\r', '\t':
			s.pos++
		case '\n':
			s.line++
			s.pos++
		case '/':
			if s.peekNext() != '/' {
				return
			}
			for !s.atEnd() && s.peek() != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *Scanner) identifier() Tok {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.pos++
	}
	word := s.src[s.start:s.pos]
	if kw, ok := token.Keywords[word]; ok {
		return s.make(kw)
	}
	return s.make(token.IDENT)
}

// number recognizes an integer or floating-point literal with at most one
// decimal point between digits.
func (s *Scanner) number() Tok {
	for isDigit(s.peek()) {
		s.pos++
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.pos++ // consume the '.'
		for isDigit(s.peek()) {
			s.pos++
		}
	}
	return s.make(token.NUMBER)
}

// string scans a double-quoted string literal. No escape sequences are
// recognized; a newline inside the literal increments the line counter. An
// unterminated string produces an ILLEGAL token.
func (s *Scanner) string() Tok {
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\n' {
			s.line++
		}
		s.pos++
	}
	if s.atEnd() {
		return s.errorf("unterminated string")
	}
	s.pos++ // closing quote
	return s.make(token.STRING)
}

func (s *Scanner) makeIfMatch(want byte, yes, no token.Token) Tok {
	if s.match(want) {
		return s.make(yes)
	}
	return s.make(no)
}

func (s *Scanner) make(typ token.Token) Tok {
	return Tok{Type: typ, Lexeme: s.src[s.start:s.pos], Line: s.line}
}

func (s *Scanner) errorf(format string, args ...any) Tok {
	return Tok{Type: token.ILLEGAL, Lexeme: fmt.Sprintf(format, args...), Line: s.line}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

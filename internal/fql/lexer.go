package fql

import (
	"fmt"
	"strings"
	"unicode"
)

const eof = -1

// Tokenize converts FQL source text into positioned tokens terminated by a
// single EOF token. The first invalid character aborts with a *LexError.
func Tokenize(source string) ([]Token, error) {
	l := newLexer(source)
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

// lexer scans runes left to right, tracking the 1-based position of the
// rune under examination.
type lexer struct {
	source string
	input  []rune
	off    int
	line   int
	col    int
}

func newLexer(source string) *lexer {
	return &lexer{
		source: source,
		input:  []rune(source),
		line:   1,
		col:    1,
	}
}

func (l *lexer) peek() rune {
	return l.peekAt(0)
}

func (l *lexer) peekAt(n int) rune {
	if l.off+n >= len(l.input) {
		return eof
	}
	return l.input[l.off+n]
}

func (l *lexer) advance() rune {
	r := l.peek()
	if r == eof {
		return eof
	}
	l.off++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) pos() Position {
	return Position{Line: l.line, Column: l.col}
}

func (l *lexer) errorf(kind ErrorKind, pos Position, ch rune, hint, format string, args ...any) *LexError {
	return &LexError{
		Kind:    kind,
		Pos:     pos,
		Char:    ch,
		Message: fmt.Sprintf(format, args...),
		Hint:    hint,
		Source:  l.source,
	}
}

func (l *lexer) skipWhitespaceAndComments() {
	for {
		switch r := l.peek(); {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '#':
			for l.peek() != '\n' && l.peek() != eof {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (Token, error) {
	l.skipWhitespaceAndComments()

	pos := l.pos()
	r := l.peek()

	simple := func(kind Kind, width int) (Token, error) {
		var sb strings.Builder
		for i := 0; i < width; i++ {
			sb.WriteRune(l.advance())
		}
		return Token{Kind: kind, Lexeme: sb.String(), Pos: pos}, nil
	}

	switch r {
	case eof:
		return Token{Kind: EOF, Pos: pos}, nil
	case '.':
		if l.peekAt(1) == '*' {
			return simple(Star, 2)
		}
		return simple(Dot, 1)
	case '|':
		return simple(Pipe, 1)
	case ',':
		return simple(Comma, 1)
	case '(':
		return simple(LParen, 1)
	case ')':
		return simple(RParen, 1)
	case '-':
		if l.peekAt(1) == '>' {
			return simple(Arrow, 2)
		}
		if isDigit(l.peekAt(1)) {
			return l.number()
		}
		return Token{}, l.errorf(ErrInvalidCharacter, pos, r, "", "unexpected character %q", r)
	case '=':
		if l.peekAt(1) == '=' {
			return simple(Eq, 2)
		}
		return Token{}, l.errorf(ErrInvalidCharacter, pos, r, "use '==' for equality", "unexpected character %q", r)
	case '!':
		if l.peekAt(1) == '=' {
			return simple(Ne, 2)
		}
		return Token{}, l.errorf(ErrInvalidCharacter, pos, r, "use '!=' for inequality", "unexpected character %q", r)
	case '>':
		if l.peekAt(1) == '=' {
			return simple(Ge, 2)
		}
		return simple(Gt, 1)
	case '<':
		if l.peekAt(1) == '=' {
			return simple(Le, 2)
		}
		return simple(Lt, 1)
	case '"', '\'':
		return l.str()
	case '@':
		return l.dateMacro()
	}

	switch {
	case isDigit(r):
		return l.number()
	case isIdentStart(r):
		return l.ident(), nil
	}
	return Token{}, l.errorf(ErrInvalidCharacter, pos, r, "", "unexpected character %q", r)
}

func (l *lexer) ident() Token {
	pos := l.pos()
	var sb strings.Builder
	for isIdentPart(l.peek()) {
		sb.WriteRune(l.advance())
	}
	word := sb.String()
	return Token{Kind: lookupIdent(word), Lexeme: word, Pos: pos}
}

// number scans -?digits(.digits)?. Anything glued to it that would make it
// ambiguous is reported as one malformed literal.
func (l *lexer) number() (Token, error) {
	pos := l.pos()
	var sb strings.Builder
	if l.peek() == '-' {
		sb.WriteRune(l.advance())
	}
	for isDigit(l.peek()) {
		sb.WriteRune(l.advance())
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		sb.WriteRune(l.advance())
		for isDigit(l.peek()) {
			sb.WriteRune(l.advance())
		}
	}
	if r := l.peek(); r == '.' || isIdentPart(r) {
		for r := l.peek(); r == '.' || isIdentPart(r); r = l.peek() {
			sb.WriteRune(l.advance())
		}
		return Token{}, l.errorf(ErrMalformedNumber, pos, 0, "", "malformed number %q", sb.String())
	}
	return Token{Kind: NumberLiteral, Lexeme: sb.String(), Pos: pos}, nil
}

// str scans a single- or double-quoted string. Strings do not span lines.
func (l *lexer) str() (Token, error) {
	pos := l.pos()
	quote := l.advance()
	var sb strings.Builder
	for {
		r := l.peek()
		switch r {
		case eof, '\n':
			return Token{}, l.errorf(ErrUnterminatedString, pos, quote, "close the string with "+string(quote), "unterminated string")
		case quote:
			l.advance()
			return Token{Kind: StringLiteral, Lexeme: sb.String(), Pos: pos}, nil
		case '\\':
			escPos := l.pos()
			l.advance()
			switch e := l.peek(); e {
			case '\\', '"', '\'':
				sb.WriteRune(l.advance())
			case 'n':
				l.advance()
				sb.WriteByte('\n')
			case 't':
				l.advance()
				sb.WriteByte('\t')
			case eof, '\n':
				return Token{}, l.errorf(ErrUnterminatedString, pos, quote, "", "unterminated string")
			default:
				return Token{}, l.errorf(ErrInvalidCharacter, escPos, e,
					`valid escapes are \\ \" \' \n \t`, "unknown escape sequence \\%c", e)
			}
		default:
			sb.WriteRune(l.advance())
		}
	}
}

// dateMacro scans @ followed by [A-Za-z0-9_+-]+, e.g. @today-7d.
func (l *lexer) dateMacro() (Token, error) {
	pos := l.pos()
	var sb strings.Builder
	sb.WriteRune(l.advance())
	for isMacroPart(l.peek()) {
		sb.WriteRune(l.advance())
	}
	if sb.Len() == 1 {
		return Token{}, l.errorf(ErrInvalidDateMacro, pos, '@', "write a relative date such as @today-7d", "date macro has no body")
	}
	return Token{Kind: DateMacro, Lexeme: sb.String(), Pos: pos}, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isMacroPart(r rune) bool {
	return isIdentPart(r) || r == '+' || r == '-'
}

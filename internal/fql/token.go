package fql

import (
	"fmt"
	"strings"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota

	// Punctuation
	Dot    // .
	Pipe   // |
	Comma  // ,
	LParen // (
	RParen // )
	Arrow  // ->
	Star   // .*

	// Literals and names
	Identifier
	StringLiteral
	NumberLiteral
	BoolLiteral
	NullLiteral
	DateMacro // @today-7d

	// Comparison operators
	Eq // ==
	Ne // !=
	Gt // >
	Lt // <
	Ge // >=
	Le // <=

	// Keywords
	As
	Join
	LeftJoin
	Order
	Limit
	Page
	Distinct
	Group
	Count
	Avg
	Sum
	Min
	Max
	Having
	Options
)

var kindNames = [...]string{
	EOF:           "end of query",
	Dot:           "'.'",
	Pipe:          "'|'",
	Comma:         "','",
	LParen:        "'('",
	RParen:        "')'",
	Arrow:         "'->'",
	Star:          "'.*'",
	Identifier:    "identifier",
	StringLiteral: "string",
	NumberLiteral: "number",
	BoolLiteral:   "boolean",
	NullLiteral:   "null",
	DateMacro:     "date macro",
	Eq:            "'=='",
	Ne:            "'!='",
	Gt:            "'>'",
	Lt:            "'<'",
	Ge:            "'>='",
	Le:            "'<='",
	As:            "'as'",
	Join:          "'join'",
	LeftJoin:      "'leftjoin'",
	Order:         "'order'",
	Limit:         "'limit'",
	Page:          "'page'",
	Distinct:      "'distinct'",
	Group:         "'group'",
	Count:         "'count'",
	Avg:           "'avg'",
	Sum:           "'sum'",
	Min:           "'min'",
	Max:           "'max'",
	Having:        "'having'",
	Options:       "'options'",
}

// String returns a human-readable name for use in error messages.
func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords maps lower-cased words to their token kind. Stage names are
// keywords only lexically; the parser accepts them as field names after '.'.
var keywords = map[string]Kind{
	"as":       As,
	"join":     Join,
	"leftjoin": LeftJoin,
	"order":    Order,
	"limit":    Limit,
	"page":     Page,
	"distinct": Distinct,
	"group":    Group,
	"count":    Count,
	"avg":      Avg,
	"sum":      Sum,
	"min":      Min,
	"max":      Max,
	"having":   Having,
	"options":  Options,
	"true":     BoolLiteral,
	"false":    BoolLiteral,
	"null":     NullLiteral,
}

func lookupIdent(word string) Kind {
	if k, ok := keywords[strings.ToLower(word)]; ok {
		return k
	}
	return Identifier
}

// IsKeyword reports whether k is a word-like keyword.
func (k Kind) IsKeyword() bool {
	return k >= As && k <= Options
}

// IsComparison reports whether k is a comparison operator.
func (k Kind) IsComparison() bool {
	return k >= Eq && k <= Le
}

// IsAggregate reports whether k names an aggregate function.
func (k Kind) IsAggregate() bool {
	switch k {
	case Count, Avg, Sum, Min, Max:
		return true
	}
	return false
}

// Position is a 1-based line and column in the source text. Columns count
// characters, not bytes.
type Position struct {
	Line   int
	Column int
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Token is a single lexeme with its source position. For string literals
// Lexeme holds the unescaped value.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case Identifier, NumberLiteral, DateMacro:
		return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
	case StringLiteral:
		return fmt.Sprintf("string %q", t.Lexeme)
	default:
		return t.Kind.String()
	}
}

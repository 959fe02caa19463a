package fql

import (
	"fmt"
	"strings"

	"github.com/roach88/fetchql/internal/ast"
)

// stageNames lists every stage keyword, for hints.
const stageNames = "distinct, join, leftjoin, order, limit, page, group, count, avg, sum, min, max, having, options"

// Parse builds a query tree from tokens produced by Tokenize. source is
// only used to render error snippets.
//
// Stages are read left to right. Anything routed through an alias prefix
// is recorded and resolved after the whole pipeline has been read, so a
// stage may reference an alias whose join appears later.
func Parse(tokens []Token, source string) (*ast.Query, error) {
	p := &parser{
		tokens:  tokens,
		source:  source,
		aliases: make(map[string]int),
		query:   &ast.Query{},
	}
	if err := p.parseQuery(); err != nil {
		return nil, err
	}
	if err := p.resolve(); err != nil {
		return nil, err
	}
	return p.query, nil
}

// parser holds all state for a single Parse call.
type parser struct {
	tokens []Token
	source string
	pos    int

	query *ast.Query

	// nodes is the entity arena; index 0 is the main entity. Aliases map to
	// arena indices rather than pointers into the tree under construction.
	nodes      []*entityNode
	aliases    map[string]int
	placements []placement

	// columns holds the output column aliases of an aggregate query:
	// group-by fields and aggregate aliases, across every entity.
	columns map[string]bool
}

// entityNode is an arena slot for one entity of the query.
type entityNode struct {
	ref *ast.EntityRef

	// join is nil for the main entity.
	join *pendingJoin
}

// pendingJoin is a join whose parent has not been resolved yet.
type pendingJoin struct {
	keyword  Token
	from     string
	to       string
	toPrefix string // alias on the right of ->, empty for the current scope
	toTok    Token
	scope    int // entity the join was written under
	linkType ast.LinkType
	parent   int
}

// placement is stage output waiting for its target entity. prefix is the
// alias written before the field, empty for the stage's current entity.
type placement struct {
	prefix string
	tok    Token
	scope  int
	apply  func(target int) error
}

func (p *parser) peek() Token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) Token {
	if i := p.pos + n; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.eofToken()
}

func (p *parser) eofToken() Token {
	if n := len(p.tokens); n > 0 {
		last := p.tokens[n-1]
		if last.Kind == EOF {
			return last
		}
		return Token{Kind: EOF, Pos: Position{Line: last.Pos.Line, Column: last.Pos.Column + len([]rune(last.Lexeme))}}
	}
	return Token{Kind: EOF, Pos: Position{Line: 1, Column: 1}}
}

func (p *parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) check(kind Kind) bool {
	return p.peek().Kind == kind
}

func (p *parser) match(kind Kind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind Kind, context string) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(ErrUnexpectedToken, tok, "", "expected %s %s, found %s", kind, context, tok)
	}
	return p.advance(), nil
}

// expectWord accepts an identifier or a keyword used as a plain name, so
// that fields such as .count or .page stay addressable.
func (p *parser) expectWord(what string) (Token, error) {
	tok := p.peek()
	if !isWord(tok.Kind) {
		return tok, p.errorf(ErrUnexpectedToken, tok, "", "expected %s, found %s", what, tok)
	}
	return p.advance(), nil
}

func isWord(k Kind) bool {
	return k == Identifier || k.IsKeyword()
}

func isIdent(tok Token, word string) bool {
	return tok.Kind == Identifier && strings.EqualFold(tok.Lexeme, word)
}

func (p *parser) errorf(kind ErrorKind, tok Token, hint, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:    kind,
		Pos:     tok.Pos,
		Message: fmt.Sprintf(format, args...),
		Hint:    hint,
		Source:  p.source,
	}
}

func (p *parser) addNode(ref *ast.EntityRef, join *pendingJoin) int {
	p.nodes = append(p.nodes, &entityNode{ref: ref, join: join})
	return len(p.nodes) - 1
}

func (p *parser) declareAlias(tok Token, idx int) error {
	if _, exists := p.aliases[tok.Lexeme]; exists {
		return p.errorf(ErrDuplicateAlias, tok, "every entity needs its own alias",
			"alias %q is already declared", tok.Lexeme)
	}
	p.aliases[tok.Lexeme] = idx
	return nil
}

// claimColumn reserves an aggregate output column alias.
func (p *parser) claimColumn(alias string, tok Token, hint string) error {
	if p.columns == nil {
		p.columns = make(map[string]bool)
	}
	if p.columns[alias] {
		return p.errorf(ErrDuplicateAlias, tok, hint, "column alias %q is already used", alias)
	}
	p.columns[alias] = true
	return nil
}

// place records stage output for later routing.
func (p *parser) place(prefix string, tok Token, scope int, apply func(target int) error) {
	p.placements = append(p.placements, placement{prefix: prefix, tok: tok, scope: scope, apply: apply})
}

// parseQuery reads: "." entity [ "as" alias ] ( "|" stage )* EOF
func (p *parser) parseQuery() error {
	if p.check(EOF) {
		return p.errorf(ErrMissingClause, p.peek(), "start with an entity selector such as .account", "empty query")
	}
	if !p.check(Dot) {
		tok := p.peek()
		return p.errorf(ErrMissingClause, tok, "start with an entity selector such as .account",
			"query must start with an entity selector, found %s", tok)
	}
	p.advance()

	name, err := p.expectWord("entity name")
	if err != nil {
		return err
	}
	root := &ast.EntityRef{Name: name.Lexeme}
	idx := p.addNode(root, nil)

	if p.match(As) {
		alias, err := p.expect(Identifier, "after 'as'")
		if err != nil {
			return err
		}
		root.Alias = alias.Lexeme
		if err := p.declareAlias(alias, idx); err != nil {
			return err
		}
	}

	if err := p.parsePipeline(idx, true); err != nil {
		return err
	}
	if tok := p.peek(); tok.Kind != EOF {
		return p.errorf(ErrUnexpectedToken, tok, "separate stages with '|'", "expected '|' or end of query, found %s", tok)
	}
	return nil
}

// parsePipeline reads ( "|" stage )* for the entity at scope.
func (p *parser) parsePipeline(scope int, topLevel bool) error {
	for p.match(Pipe) {
		if err := p.parseStage(scope, topLevel); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseStage(scope int, topLevel bool) error {
	tok := p.peek()
	switch tok.Kind {
	case Distinct, Limit, Page, Options:
		if !topLevel {
			return p.errorf(ErrUnexpectedToken, tok, "move it outside join(...)",
				"%s is only allowed at the top level of a query", tok.Kind)
		}
	}

	switch tok.Kind {
	case Distinct:
		p.advance()
		p.query.Distinct = true
		return nil
	case Join, LeftJoin:
		return p.parseJoin(scope)
	case Order:
		return p.parseOrder(scope)
	case Limit:
		return p.parseLimit()
	case Page:
		return p.parsePage()
	case Group:
		return p.parseGroup(scope)
	case Count, Avg, Sum, Min, Max:
		return p.parseAggregates(scope)
	case Having:
		return p.parseHaving(scope)
	case Options:
		return p.parseOptions()
	case Dot, Star:
		return p.parseFieldStage(scope)
	case Identifier:
		switch p.peekAt(1).Kind {
		case Dot, Star:
			return p.parseFieldStage(scope)
		case LParen:
			return p.errorf(ErrUnexpectedToken, tok, "valid stages: "+stageNames, "unknown stage %q", tok.Lexeme)
		}
		return p.errorf(ErrUnexpectedToken, tok, "prefix field names with '.', e.g. ."+tok.Lexeme,
			"expected a stage, found %s", tok)
	case EOF:
		return p.errorf(ErrMissingClause, tok, "remove the trailing '|'", "expected a stage after '|'")
	}
	return p.errorf(ErrUnexpectedToken, tok, "", "expected a stage, found %s", tok)
}

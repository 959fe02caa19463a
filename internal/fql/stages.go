package fql

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/fetchql/internal/ast"
)

// fieldRef is a parsed .field, alias.field, .* or alias.* reference.
type fieldRef struct {
	prefix string
	name   string
	all    bool
	tok    Token
}

func (p *parser) parseFieldRef(allowStar bool) (fieldRef, error) {
	tok := p.peek()
	switch tok.Kind {
	case Star:
		p.advance()
		if !allowStar {
			return fieldRef{}, p.errorf(ErrUnexpectedToken, tok, "", "'.*' is only allowed in an attribute list")
		}
		return fieldRef{all: true, tok: tok}, nil
	case Dot:
		p.advance()
		name, err := p.expectWord("field name after '.'")
		if err != nil {
			return fieldRef{}, err
		}
		return fieldRef{name: name.Lexeme, tok: tok}, nil
	case Identifier:
		switch p.peekAt(1).Kind {
		case Dot:
			p.advance()
			p.advance()
			name, err := p.expectWord("field name after '" + tok.Lexeme + ".'")
			if err != nil {
				return fieldRef{}, err
			}
			return fieldRef{prefix: tok.Lexeme, name: name.Lexeme, tok: tok}, nil
		case Star:
			p.advance()
			star := p.advance()
			if !allowStar {
				return fieldRef{}, p.errorf(ErrUnexpectedToken, star, "", "'.*' is only allowed in an attribute list")
			}
			return fieldRef{prefix: tok.Lexeme, all: true, tok: tok}, nil
		}
		return fieldRef{}, p.errorf(ErrUnexpectedToken, tok, "prefix field names with '.', e.g. ."+tok.Lexeme,
			"expected a field reference, found %s", tok)
	}
	return fieldRef{}, p.errorf(ErrUnexpectedToken, tok, "", "expected a field reference, found %s", tok)
}

// parseFieldStage reads either an attribute list or a condition list. The
// first item decides which; the two cannot be mixed in one stage.
func (p *parser) parseFieldStage(scope int) error {
	conditions := false
	for i := 0; ; i++ {
		ref, err := p.parseFieldRef(true)
		if err != nil {
			return err
		}
		isCond := p.peek().Kind.IsComparison()
		if i == 0 {
			conditions = isCond
		} else if isCond != conditions {
			return p.errorf(ErrUnexpectedToken, ref.tok, "separate attribute and condition stages with '|'",
				"cannot mix attributes and conditions in one stage")
		}

		if conditions {
			if ref.all {
				return p.errorf(ErrUnexpectedToken, ref.tok, "", "cannot compare '.*'")
			}
			cond, err := p.parseComparison(ref.name)
			if err != nil {
				return err
			}
			p.place(ref.prefix, ref.tok, scope, func(target int) error {
				e := p.nodes[target].ref
				e.Filter = append(e.Filter, cond)
				return nil
			})
		} else {
			var attr ast.AttributeRef = ast.NamedAttribute{Name: ref.name}
			if ref.all {
				attr = ast.AllAttributes{}
			}
			p.place(ref.prefix, ref.tok, scope, func(target int) error {
				e := p.nodes[target].ref
				e.Attributes = append(e.Attributes, attr)
				return nil
			})
		}

		if !p.match(Comma) {
			return nil
		}
	}
}

// parseComparison reads: operator value
func (p *parser) parseComparison(attribute string) (ast.Condition, error) {
	opTok := p.advance()
	var op ast.Operator
	switch opTok.Kind {
	case Eq:
		op = ast.Eq
	case Ne:
		op = ast.Ne
	case Gt:
		op = ast.Gt
	case Lt:
		op = ast.Lt
	case Ge:
		op = ast.Ge
	case Le:
		op = ast.Le
	default:
		return ast.Condition{}, p.errorf(ErrUnexpectedToken, opTok, "", "expected a comparison operator, found %s", opTok)
	}

	valTok := p.peek()
	cond := ast.Condition{Attribute: attribute, Operator: op}
	switch valTok.Kind {
	case NumberLiteral:
		cond.Value = ast.NumberLiteral{Text: valTok.Lexeme}
	case StringLiteral:
		cond.Value = ast.StringLiteral{Value: valTok.Lexeme}
	case BoolLiteral:
		cond.Value = ast.BoolLiteral{Value: strings.EqualFold(valTok.Lexeme, "true")}
	case NullLiteral:
		switch op {
		case ast.Eq:
			cond.Operator = ast.Null
		case ast.Ne:
			cond.Operator = ast.NotNull
		default:
			return ast.Condition{}, p.errorf(ErrInvalidArgument, opTok, "use == null or != null",
				"null can only be compared with == or !=")
		}
		cond.Value = ast.NullLiteral{}
	case DateMacro:
		switch op {
		case ast.Ge:
			cond.Operator = ast.OnOrAfter
		case ast.Le:
			cond.Operator = ast.OnOrBefore
		}
		cond.Value = ast.DateMacro{Expr: valTok.Lexeme}
	case Identifier:
		return ast.Condition{}, p.errorf(ErrInvalidArgument, valTok, `quote string values: "`+valTok.Lexeme+`"`,
			"expected a value, found %s", valTok)
	default:
		return ast.Condition{}, p.errorf(ErrUnexpectedToken, valTok, "", "expected a value, found %s", valTok)
	}
	p.advance()
	return cond, nil
}

// parseJoin reads:
//
//	("join" | "leftjoin") "(" "." entity "as" alias "on" [alias] "." field "->" [alias "."] field ( "|" stage )* ")"
func (p *parser) parseJoin(scope int) error {
	keyword := p.advance()
	linkType := ast.LinkInner
	if keyword.Kind == LeftJoin {
		linkType = ast.LinkOuter
	}
	usage := "write " + strings.ToLower(keyword.Lexeme) + "(.entity as alias on alias.field -> parent.field)"

	if _, err := p.expect(LParen, "after "+keyword.Kind.String()); err != nil {
		return err
	}
	if tok := p.peek(); tok.Kind != Dot {
		return p.errorf(ErrUnexpectedToken, tok, usage, "expected '.' before the joined entity, found %s", tok)
	}
	p.advance()
	name, err := p.expectWord("entity name")
	if err != nil {
		return err
	}

	if tok := p.peek(); tok.Kind != As {
		return p.errorf(ErrMissingClause, tok, usage, "join requires an alias")
	}
	p.advance()
	alias, err := p.expect(Identifier, "after 'as'")
	if err != nil {
		return err
	}

	if tok := p.peek(); !isIdent(tok, "on") {
		return p.errorf(ErrMissingClause, tok, usage, "join requires an 'on' clause")
	}
	p.advance()

	left, err := p.parseFieldRef(false)
	if err != nil {
		return err
	}
	if left.prefix != "" && left.prefix != alias.Lexeme {
		return p.errorf(ErrInvalidArgument, left.tok, "the left side of '->' names a field of "+alias.Lexeme,
			"join field %s.%s does not belong to the joined entity", left.prefix, left.name)
	}

	if tok := p.peek(); tok.Kind != Arrow {
		return p.errorf(ErrMissingClause, tok, usage, "expected '->' between the join fields, found %s", tok)
	}
	p.advance()

	join := &pendingJoin{
		keyword:  keyword,
		from:     left.name,
		scope:    scope,
		linkType: linkType,
	}
	join.toTok = p.peek()
	switch {
	case p.check(Identifier) && p.peekAt(1).Kind == Dot:
		right, err := p.parseFieldRef(false)
		if err != nil {
			return err
		}
		join.toPrefix, join.to = right.prefix, right.name
	case p.check(Dot):
		right, err := p.parseFieldRef(false)
		if err != nil {
			return err
		}
		join.to = right.name
	default:
		field, err := p.expectWord("parent field after '->'")
		if err != nil {
			return err
		}
		join.to = field.Lexeme
	}

	idx := p.addNode(&ast.EntityRef{Name: name.Lexeme, Alias: alias.Lexeme}, join)
	if err := p.declareAlias(alias, idx); err != nil {
		return err
	}

	if err := p.parsePipeline(idx, false); err != nil {
		return err
	}
	if tok := p.peek(); tok.Kind != RParen {
		return p.errorf(ErrUnexpectedToken, tok, "close the join with ')'", "expected '|' or ')' in join, found %s", tok)
	}
	p.advance()
	return nil
}

// parseOrder reads: "order" "(" field [asc|desc] ( "," field [asc|desc] )* ")"
func (p *parser) parseOrder(scope int) error {
	keyword := p.advance()
	if _, err := p.expect(LParen, "after 'order'"); err != nil {
		return err
	}
	if p.check(RParen) {
		return p.errorf(ErrMissingClause, p.peek(), "write order(.field desc)", "order requires at least one field")
	}
	for {
		ref, err := p.parseFieldRef(false)
		if err != nil {
			return err
		}
		clause := ast.OrderClause{Attribute: ref.name}
		if tok := p.peek(); tok.Kind == Identifier {
			switch {
			case strings.EqualFold(tok.Lexeme, "asc"):
			case strings.EqualFold(tok.Lexeme, "desc"):
				clause.Descending = true
			default:
				return p.errorf(ErrInvalidArgument, tok, "use asc or desc", "unknown sort direction %q", tok.Lexeme)
			}
			p.advance()
		}
		p.place(ref.prefix, ref.tok, scope, func(target int) error {
			if target == 0 {
				p.query.Order = append(p.query.Order, clause)
				return nil
			}
			e := p.nodes[target].ref
			e.Order = append(e.Order, clause)
			return nil
		})
		if !p.match(Comma) {
			break
		}
	}
	_, err := p.expect(RParen, "to close "+keyword.Kind.String())
	return err
}

// parseLimit reads: "limit" "(" n ")"
func (p *parser) parseLimit() error {
	keyword := p.advance()
	if p.query.Top > 0 {
		return p.errorf(ErrConflictingStage, keyword, "", "limit is already set")
	}
	if p.query.Page != nil {
		return p.errorf(ErrConflictingStage, keyword, "use either limit(n) or page(n, size)", "limit cannot be combined with page")
	}
	if _, err := p.expect(LParen, "after 'limit'"); err != nil {
		return err
	}
	n, err := p.positiveInt("limit")
	if err != nil {
		return err
	}
	if _, err := p.expect(RParen, "to close 'limit'"); err != nil {
		return err
	}
	p.query.Top = n
	return nil
}

// parsePage reads: "page" "(" n "," size ")"
func (p *parser) parsePage() error {
	keyword := p.advance()
	if p.query.Page != nil {
		return p.errorf(ErrConflictingStage, keyword, "", "page is already set")
	}
	if p.query.Top > 0 {
		return p.errorf(ErrConflictingStage, keyword, "use either limit(n) or page(n, size)", "page cannot be combined with limit")
	}
	if _, err := p.expect(LParen, "after 'page'"); err != nil {
		return err
	}
	number, err := p.positiveInt("page number")
	if err != nil {
		return err
	}
	if tok := p.peek(); tok.Kind != Comma {
		return p.errorf(ErrMissingClause, tok, "write page(n, size)", "page requires a page size")
	}
	p.advance()
	size, err := p.positiveInt("page size")
	if err != nil {
		return err
	}
	if _, err := p.expect(RParen, "to close 'page'"); err != nil {
		return err
	}
	p.query.Page = &ast.Page{Number: number, Size: size}
	return nil
}

func (p *parser) positiveInt(what string) (int, error) {
	tok := p.peek()
	if tok.Kind != NumberLiteral {
		return 0, p.errorf(ErrInvalidArgument, tok, "", "%s must be a positive integer, found %s", what, tok)
	}
	n, err := strconv.ParseUint(tok.Lexeme, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, p.errorf(ErrInvalidArgument, tok, "", "%s must be at most %d, got %s", what, uint32(math.MaxUint32), tok.Lexeme)
	}
	if err != nil || n < 1 {
		return 0, p.errorf(ErrInvalidArgument, tok, "", "%s must be a positive integer, got %s", what, tok.Lexeme)
	}
	p.advance()
	return int(n), nil
}

// parseGroup reads: "group" "(" field ( "," field )* ")"
func (p *parser) parseGroup(scope int) error {
	p.advance()
	if _, err := p.expect(LParen, "after 'group'"); err != nil {
		return err
	}
	if p.check(RParen) {
		return p.errorf(ErrMissingClause, p.peek(), "write group(.field)", "group requires at least one field")
	}
	for {
		ref, err := p.parseFieldRef(false)
		if err != nil {
			return err
		}
		p.place(ref.prefix, ref.tok, scope, func(target int) error {
			if err := p.claimColumn(ref.name, ref.tok, "each field can be grouped once"); err != nil {
				return err
			}
			agg := aggregationOf(p.nodes[target].ref)
			agg.GroupBy = append(agg.GroupBy, ref.name)
			return nil
		})
		if !p.match(Comma) {
			break
		}
	}
	_, err := p.expect(RParen, "to close 'group'")
	return err
}

// parseAggregates reads a comma-separated list of fn "(" [field] ")" [ "as" alias ].
func (p *parser) parseAggregates(scope int) error {
	for {
		fnTok := p.peek()
		if !fnTok.Kind.IsAggregate() {
			return p.errorf(ErrUnexpectedToken, fnTok, "", "expected an aggregate function, found %s", fnTok)
		}
		p.advance()
		fn := ast.AggFn(strings.ToLower(fnTok.Lexeme))

		if _, err := p.expect(LParen, "after "+fnTok.Kind.String()); err != nil {
			return err
		}
		var ref fieldRef
		if !p.check(RParen) {
			var err error
			if ref, err = p.parseFieldRef(false); err != nil {
				return err
			}
		} else if fn != ast.AggCount {
			return p.errorf(ErrMissingClause, p.peek(), "write "+string(fn)+"(.field)", "%s requires a field", fn)
		}
		if _, err := p.expect(RParen, "to close "+fnTok.Kind.String()); err != nil {
			return err
		}

		expr := ast.AggregateExpr{Function: fn, Field: ref.name, Alias: string(fn)}
		if ref.name != "" {
			expr.Alias = string(fn) + "_" + ref.name
		}
		blame := fnTok
		if ref.name != "" {
			blame = ref.tok
		}
		aliasTok := blame
		if p.match(As) {
			alias, err := p.expectWord("aggregate alias after 'as'")
			if err != nil {
				return err
			}
			expr.Alias = alias.Lexeme
			aliasTok = alias
		}

		p.place(ref.prefix, blame, scope, func(target int) error {
			if err := p.claimColumn(expr.Alias, aliasTok, "name each aggregate with 'as'"); err != nil {
				return err
			}
			agg := aggregationOf(p.nodes[target].ref)
			agg.Aggregates = append(agg.Aggregates, expr)
			return nil
		})

		if !p.match(Comma) {
			return nil
		}
	}
}

// parseHaving reads: "having" "(" condition ( "," condition )* ")". The
// left operand may be a bare aggregate alias.
func (p *parser) parseHaving(scope int) error {
	keyword := p.advance()
	if _, err := p.expect(LParen, "after 'having'"); err != nil {
		return err
	}
	if p.check(RParen) {
		return p.errorf(ErrMissingClause, p.peek(), "write having(alias > n)", "having requires at least one condition")
	}
	for {
		var ref fieldRef
		if tok := p.peek(); isWord(tok.Kind) && p.peekAt(1).Kind.IsComparison() {
			p.advance()
			ref = fieldRef{name: tok.Lexeme, tok: tok}
		} else {
			var err error
			if ref, err = p.parseFieldRef(false); err != nil {
				return err
			}
		}
		cond, err := p.parseComparison(ref.name)
		if err != nil {
			return err
		}
		p.place(ref.prefix, ref.tok, scope, func(target int) error {
			e := p.nodes[target].ref
			if e.Aggregation == nil {
				return p.errorf(ErrMissingClause, keyword, "add group(...) or an aggregate such as count() before having",
					"having requires an aggregation on %s", e.Name)
			}
			e.Aggregation.Having = append(e.Aggregation.Having, cond)
			return nil
		})
		if !p.match(Comma) {
			break
		}
	}
	_, err := p.expect(RParen, "to close 'having'")
	return err
}

const optionNames = "nolock, totalcount, formatted"

// parseOptions reads: "options" "(" option ( "," option )* ")"
func (p *parser) parseOptions() error {
	p.advance()
	if _, err := p.expect(LParen, "after 'options'"); err != nil {
		return err
	}
	for {
		tok, err := p.expectWord("option name")
		if err != nil {
			return err
		}
		switch strings.ToLower(tok.Lexeme) {
		case "nolock":
			p.query.NoLock = true
		case "totalcount", "returntotalrecordcount":
			p.query.ReturnTotalCount = true
		case "formatted":
			p.query.Formatted = true
		default:
			return p.errorf(ErrInvalidArgument, tok, "valid options: "+optionNames, "unknown option %q", tok.Lexeme)
		}
		if !p.match(Comma) {
			break
		}
	}
	_, err := p.expect(RParen, "to close 'options'")
	return err
}

func aggregationOf(e *ast.EntityRef) *ast.Aggregation {
	if e.Aggregation == nil {
		e.Aggregation = &ast.Aggregation{}
	}
	return e.Aggregation
}

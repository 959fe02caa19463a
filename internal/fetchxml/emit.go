package fetchxml

import (
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/fetchql/internal/ast"
	"github.com/roach88/fetchql/internal/fql"
)

// ToFetchXML serializes a query tree into a FetchXML document.
//
// Output is deterministic: the same tree and options always produce
// byte-identical XML. Inside every entity and link-entity the children are
// written in this order:
//
//	attributes → groupby attributes → aggregate attributes → filter →
//	having filter → link-entities → order
//
// The tree is validated first; a tree that breaks an invariant yields an
// *EmitError and no partial output.
func ToFetchXML(q *ast.Query, opts ...Option) (string, error) {
	if q == nil {
		return "", &EmitError{Kind: ErrInvariantViolation, Message: "cannot emit nil query"}
	}
	if result := ast.Validate(q); !result.Valid {
		return "", &EmitError{
			Kind:       ErrInvariantViolation,
			Message:    "invalid query tree",
			Violations: result.Violations,
		}
	}

	cfg := newConfig(opts)
	e := &emitter{cfg: cfg, w: newWriter(cfg.indent)}

	e.w.open("fetch", fetchAttrs(q)...)
	orders := append(append([]ast.OrderClause(nil), q.Order...), q.Entity.Order...)
	if err := e.emitEntity("entity", []attr{{"name", q.Entity.Name}}, q.Entity, orders); err != nil {
		return "", err
	}
	e.w.close("fetch")

	return e.w.String(), nil
}

// Compile runs the whole pipeline: Tokenize, Parse, ToFetchXML. The source
// is NFC-normalized first, so composed and decomposed spellings compile
// alike and agree with store fingerprints. Errors are returned unwrapped so
// callers can errors.As them to *fql.LexError, *fql.ParseError or
// *EmitError.
func Compile(source string, opts ...Option) (string, error) {
	source = norm.NFC.String(source)
	tokens, err := fql.Tokenize(source)
	if err != nil {
		return "", err
	}
	q, err := fql.Parse(tokens, source)
	if err != nil {
		return "", err
	}
	return ToFetchXML(q, opts...)
}

type emitter struct {
	cfg *config
	w   *writer
}

func fetchAttrs(q *ast.Query) []attr {
	attrs := []attr{
		{"version", "1.0"},
		{"output-format", "xml-platform"},
		{"mapping", "logical"},
		{"distinct", strconv.FormatBool(q.Distinct)},
	}
	if q.IsAggregate() {
		attrs = append(attrs, attr{"aggregate", "true"})
	}
	if q.NoLock {
		attrs = append(attrs, attr{"no-lock", "true"})
	}
	if q.ReturnTotalCount {
		attrs = append(attrs, attr{"returntotalrecordcount", "true"})
	}
	// Formatted is carried on the tree but has no FetchXML rendering.
	switch {
	case q.Page != nil:
		attrs = append(attrs,
			attr{"page", strconv.Itoa(q.Page.Number)},
			attr{"count", strconv.Itoa(q.Page.Size)},
		)
	case q.Top > 0:
		attrs = append(attrs, attr{"top", strconv.Itoa(q.Top)})
	}
	return attrs
}

func (e *emitter) emitEntity(element string, attrs []attr, ent *ast.EntityRef, orders []ast.OrderClause) error {
	e.w.open(element, attrs...)

	e.emitAttributes(ent)

	if agg := ent.Aggregation; agg != nil {
		for _, field := range agg.GroupBy {
			e.w.empty("attribute", attr{"name", field}, attr{"groupby", "true"}, attr{"alias", field})
		}
		for _, a := range agg.Aggregates {
			field := a.Field
			if field == "" {
				if ent.Name == "" {
					return &EmitError{
						Kind:    ErrInvariantViolation,
						Message: fmt.Sprintf("cannot infer primary key for %s() on an unnamed entity", a.Function),
					}
				}
				field = e.cfg.primaryKey(ent.Name)
			}
			e.w.empty("attribute", attr{"name", field}, attr{"aggregate", string(a.Function)}, attr{"alias", a.Alias})
		}
	}

	if err := e.emitFilter(ent.Filter); err != nil {
		return fmt.Errorf("entity %s filter: %w", ent.Name, err)
	}
	if ent.Aggregation != nil {
		if err := e.emitFilter(ent.Aggregation.Having); err != nil {
			return fmt.Errorf("entity %s having: %w", ent.Name, err)
		}
	}

	for _, j := range ent.Joins {
		linkAttrs := []attr{{"name", j.Entity.Name}}
		if j.Entity.Alias != "" {
			linkAttrs = append(linkAttrs, attr{"alias", j.Entity.Alias})
		}
		linkAttrs = append(linkAttrs,
			attr{"from", j.From},
			attr{"to", j.To},
			attr{"link-type", string(j.LinkType)},
		)
		if err := e.emitEntity("link-entity", linkAttrs, j.Entity, j.Entity.Order); err != nil {
			return err
		}
	}

	for _, o := range orders {
		e.w.empty("order", attr{"attribute", o.Attribute}, attr{"descending", strconv.FormatBool(o.Descending)})
	}

	e.w.close(element)
	return nil
}

// emitAttributes writes <all-attributes/> when the wildcard was requested,
// otherwise each named attribute once in request order.
func (e *emitter) emitAttributes(ent *ast.EntityRef) {
	if ent.HasAllAttributes() {
		e.w.empty("all-attributes")
		return
	}
	seen := make(map[string]bool, len(ent.Attributes))
	for _, a := range ent.Attributes {
		named, ok := a.(ast.NamedAttribute)
		if !ok || seen[named.Name] {
			continue
		}
		seen[named.Name] = true
		e.w.empty("attribute", attr{"name", named.Name})
	}
}

func (e *emitter) emitFilter(conds []ast.Condition) error {
	if len(conds) == 0 {
		return nil
	}
	e.w.open("filter", attr{"type", "and"})
	for _, c := range conds {
		attrs, err := conditionAttrs(c)
		if err != nil {
			return err
		}
		e.w.empty("condition", attrs...)
	}
	e.w.close("filter")
	return nil
}

func conditionAttrs(c ast.Condition) ([]attr, error) {
	op, err := operatorName(c)
	if err != nil {
		return nil, err
	}
	attrs := []attr{{"attribute", c.Attribute}, {"operator", op}}
	if c.Operator == ast.Null || c.Operator == ast.NotNull {
		return attrs, nil
	}
	value, err := literalValue(c.Value)
	if err != nil {
		return nil, fmt.Errorf("condition on %s: %w", c.Attribute, err)
	}
	return append(attrs, attr{"value", value}), nil
}

// operatorName maps an operator to its FetchXML name. Range comparisons
// against a date macro use the date-range operators.
func operatorName(c ast.Condition) (string, error) {
	if _, isMacro := c.Value.(ast.DateMacro); isMacro {
		switch c.Operator {
		case ast.Ge:
			return "on-or-after", nil
		case ast.Le:
			return "on-or-before", nil
		}
	}
	switch c.Operator {
	case ast.Eq:
		return "eq", nil
	case ast.Ne:
		return "ne", nil
	case ast.Gt:
		return "gt", nil
	case ast.Lt:
		return "lt", nil
	case ast.Ge:
		return "ge", nil
	case ast.Le:
		return "le", nil
	case ast.Null:
		return "null", nil
	case ast.NotNull:
		return "not-null", nil
	case ast.OnOrAfter:
		return "on-or-after", nil
	case ast.OnOrBefore:
		return "on-or-before", nil
	default:
		return "", &EmitError{Kind: ErrInvariantViolation, Message: fmt.Sprintf("unsupported operator %d", int(c.Operator))}
	}
}

func literalValue(lit ast.Literal) (string, error) {
	switch v := lit.(type) {
	case ast.NumberLiteral:
		return v.Text, nil
	case ast.StringLiteral:
		return v.Value, nil
	case ast.BoolLiteral:
		return strconv.FormatBool(v.Value), nil
	case ast.DateMacro:
		return v.Expr, nil
	default:
		return "", &EmitError{Kind: ErrInvariantViolation, Message: fmt.Sprintf("unsupported literal type: %T", lit)}
	}
}

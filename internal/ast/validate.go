package ast

import (
	"fmt"
)

// ValidationResult contains the structural analysis of a query tree.
//
// The parser only ever builds valid trees. Validate exists for trees built
// by hand (tests, programmatic callers) and as the emitter's guard against
// upstream bugs.
type ValidationResult struct {
	// Valid is true when no violations were found.
	Valid bool

	// Violations lists every broken invariant, in tree order.
	Violations []string
}

// Validate checks the invariants the emitter relies on:
//  1. A query has exactly one main entity and every entity has a name
//  2. Aliases are unique across the whole tree
//  3. Top and Page are mutually exclusive and positive
//  4. Joins name both link fields
//  5. Conditions, group-by fields and aggregates are fully specified
//  6. Group-by fields and aggregate aliases name distinct output columns
//
// Validate is a pure function with no side effects.
func Validate(q *Query) ValidationResult {
	v := &validator{
		aliases: make(map[string]bool),
		columns: make(map[string]bool),
	}
	v.validateQuery(q)

	return ValidationResult{
		Valid:      len(v.violations) == 0,
		Violations: v.violations,
	}
}

// validator accumulates violations during traversal.
type validator struct {
	violations []string
	aliases    map[string]bool
	columns    map[string]bool // aggregate query output columns
}

func (v *validator) addViolation(format string, args ...any) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *Query) {
	if q == nil {
		v.addViolation("nil query")
		return
	}
	if q.Entity == nil {
		v.addViolation("query has no main entity")
		return
	}

	if q.Top < 0 {
		v.addViolation("top must be positive, got %d", q.Top)
	}
	if q.Page != nil {
		if q.Top > 0 {
			v.addViolation("top and page are mutually exclusive")
		}
		if q.Page.Number < 1 || q.Page.Size < 1 {
			v.addViolation("page(%d, %d) must use positive numbers", q.Page.Number, q.Page.Size)
		}
	}

	for i, o := range q.Order {
		if o.Attribute == "" {
			v.addViolation("order[%d] has no attribute", i)
		}
	}

	v.validateEntity(q.Entity, "entity")
}

func (v *validator) validateEntity(e *EntityRef, path string) {
	if e.Name == "" {
		v.addViolation("%s has no name", path)
	} else {
		path = fmt.Sprintf("%s %q", path, e.Name)
	}

	if e.Alias != "" {
		if v.aliases[e.Alias] {
			v.addViolation("alias %q is used more than once", e.Alias)
		}
		v.aliases[e.Alias] = true
	}

	for i, a := range e.Attributes {
		switch attr := a.(type) {
		case AllAttributes:
		case NamedAttribute:
			if attr.Name == "" {
				v.addViolation("%s attribute[%d] has no name", path, i)
			}
		case nil:
			v.addViolation("%s attribute[%d] is nil", path, i)
		default:
			v.addViolation("%s attribute[%d] has unknown type %T", path, i, a)
		}
	}

	v.validateConditions(e.Filter, path+" filter")

	if agg := e.Aggregation; agg != nil {
		if len(agg.GroupBy) == 0 && len(agg.Aggregates) == 0 {
			v.addViolation("%s aggregation has no group-by fields or aggregates", path)
		}
		for i, g := range agg.GroupBy {
			if g == "" {
				v.addViolation("%s groupby[%d] has no field", path, i)
				continue
			}
			v.claimColumn(g)
		}
		for i, a := range agg.Aggregates {
			if a.Alias == "" {
				v.addViolation("%s aggregate[%d] has no alias", path, i)
			} else {
				v.claimColumn(a.Alias)
			}
			if a.Field == "" && a.Function != AggCount {
				v.addViolation("%s aggregate[%d] %s requires a field", path, i, a.Function)
			}
		}
		v.validateConditions(agg.Having, path+" having")
	}

	for i, j := range e.Joins {
		if j.Entity == nil {
			v.addViolation("%s join[%d] has no entity", path, i)
			continue
		}
		if j.From == "" || j.To == "" {
			v.addViolation("%s join[%d] must name both link fields", path, i)
		}
		if j.LinkType != LinkInner && j.LinkType != LinkOuter {
			v.addViolation("%s join[%d] has unknown link type %q", path, i, j.LinkType)
		}
		v.validateEntity(j.Entity, fmt.Sprintf("%s join[%d]", path, i))
	}
}

func (v *validator) claimColumn(alias string) {
	if v.columns[alias] {
		v.addViolation("column alias %q is used more than once", alias)
	}
	v.columns[alias] = true
}

func (v *validator) validateConditions(conds []Condition, path string) {
	for i, c := range conds {
		if c.Attribute == "" {
			v.addViolation("%s condition[%d] has no attribute", path, i)
		}
		switch c.Operator {
		case Null, NotNull:
			if c.Value != nil {
				if _, ok := c.Value.(NullLiteral); !ok {
					v.addViolation("%s condition[%d] %s cannot carry a value", path, i, c.Operator)
				}
			}
		default:
			if c.Value == nil {
				v.addViolation("%s condition[%d] has no value", path, i)
			}
			if _, ok := c.Value.(NullLiteral); ok {
				v.addViolation("%s condition[%d] compares null with %s", path, i, c.Operator)
			}
		}
	}
}

package ast

// Query is the root of a parsed FQL program.
//
// Semantics:
//
//	<fetch distinct=... top=... page=... count=...>
//	  <entity name=Entity.Name> ... </entity>
//	</fetch>
//
// Top and Page are mutually exclusive; the parser rejects queries that set
// both and Validate reports it for hand-built trees.
type Query struct {
	Entity           *EntityRef    // main entity (required)
	Distinct         bool          // distinct stage present
	NoLock           bool          // options(nolock)
	ReturnTotalCount bool          // options(totalcount)
	Formatted        bool          // options(formatted); carried but not rendered
	Top              int           // limit(n); 0 when unset
	Page             *Page         // page(n, size); nil when unset
	Order            []OrderClause // main-entity order clauses in request order
}

// Page is the pagination pair of a page(n, size) stage.
type Page struct {
	Number int // 1-based page number
	Size   int // records per page
}

// EntityRef is an entity node: the main entity of a query or the target of
// a join.
//
// Example:
//
//	.contact as c | .fullname | c.statecode == 0
//
// becomes:
//
//	EntityRef{
//	  Name:       "contact",
//	  Alias:      "c",
//	  Attributes: []AttributeRef{NamedAttribute{Name: "fullname"}},
//	  Filter:     []Condition{{Attribute: "statecode", Operator: Eq, Value: NumberLiteral{Text: "0"}}},
//	}
type EntityRef struct {
	Name        string         // logical entity name
	Alias       string         // empty when no alias was given
	Attributes  []AttributeRef // projected attributes in request order
	Filter      []Condition    // single AND conjunction in source order
	Joins       []JoinClause   // nested link-entities in source order
	Aggregation *Aggregation   // nil when the entity is not aggregated
	Order       []OrderClause  // order clauses routed to a link-entity
}

// HasAllAttributes reports whether the wildcard was requested.
func (e *EntityRef) HasAllAttributes() bool {
	for _, a := range e.Attributes {
		if _, ok := a.(AllAttributes); ok {
			return true
		}
	}
	return false
}

// LinkType is the join direction of a link-entity.
type LinkType string

const (
	LinkInner LinkType = "inner" // join(...)
	LinkOuter LinkType = "outer" // leftjoin(...)
)

// JoinClause links a nested entity to its parent.
//
// From and To are positional: in
//
//	join(.contact as c on c.contactid -> account.primarycontactid)
//
// From is "contactid" (left of ->) and To is "primarycontactid" (right of
// ->), regardless of which side is the one or the many side.
type JoinClause struct {
	Entity   *EntityRef
	From     string
	To       string
	LinkType LinkType
}

// AttributeRef is a projected attribute: AllAttributes or NamedAttribute.
type AttributeRef interface {
	attributeNode()
}

// AllAttributes is the .* wildcard.
type AllAttributes struct{}

func (AllAttributes) attributeNode() {}

// NamedAttribute is a single projected field.
type NamedAttribute struct {
	Name string
}

func (NamedAttribute) attributeNode() {}

// Operator is a condition comparison operator.
type Operator int

const (
	Eq Operator = iota
	Ne
	Gt
	Lt
	Ge
	Le
	Null
	NotNull
	OnOrAfter
	OnOrBefore
)

var operatorSymbols = [...]string{
	Eq:         "==",
	Ne:         "!=",
	Gt:         ">",
	Lt:         "<",
	Ge:         ">=",
	Le:         "<=",
	Null:       "== null",
	NotNull:    "!= null",
	OnOrAfter:  ">= @",
	OnOrBefore: "<= @",
}

// String returns the FQL spelling of the operator.
func (o Operator) String() string {
	if int(o) >= 0 && int(o) < len(operatorSymbols) {
		return operatorSymbols[o]
	}
	return "unknown"
}

// Condition compares one attribute against a literal.
type Condition struct {
	Attribute string
	Operator  Operator
	Value     Literal // NullLiteral for Null and NotNull
}

// Literal is the right-hand side of a condition.
type Literal interface {
	literalNode()
}

// NumberLiteral keeps the number exactly as written so that emitted values
// are byte-identical to the source.
type NumberLiteral struct {
	Text string
}

func (NumberLiteral) literalNode() {}

// StringLiteral is an unescaped quoted string.
type StringLiteral struct {
	Value string
}

func (StringLiteral) literalNode() {}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Value bool
}

func (BoolLiteral) literalNode() {}

// NullLiteral is the null keyword.
type NullLiteral struct{}

func (NullLiteral) literalNode() {}

// DateMacro is a relative date such as @today-7d, passed through verbatim.
type DateMacro struct {
	Expr string
}

func (DateMacro) literalNode() {}

// AggFn is an aggregate function name; the value is the FetchXML spelling.
type AggFn string

const (
	AggCount AggFn = "count"
	AggAvg   AggFn = "avg"
	AggSum   AggFn = "sum"
	AggMin   AggFn = "min"
	AggMax   AggFn = "max"
)

// Aggregation holds the grouping and aggregate attributes of one entity.
type Aggregation struct {
	GroupBy    []string
	Aggregates []AggregateExpr
	Having     []Condition // emitted as a separate filter after the aggregates
}

// AggregateExpr is one aggregate attribute. Field is empty for count(),
// in which case the emitter uses the entity's primary key.
type AggregateExpr struct {
	Function AggFn
	Field    string
	Alias    string
}

// OrderClause sorts by one attribute.
type OrderClause struct {
	Attribute  string
	Descending bool
}

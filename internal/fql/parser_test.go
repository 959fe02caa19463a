package fql

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fetchql/internal/ast"
)

func mustParse(t *testing.T, source string) *ast.Query {
	t.Helper()
	tokens, err := Tokenize(source)
	require.NoError(t, err)
	q, err := Parse(tokens, source)
	require.NoError(t, err)
	return q
}

func parseErr(t *testing.T, source string) *ParseError {
	t.Helper()
	tokens, err := Tokenize(source)
	require.NoError(t, err)
	_, err = Parse(tokens, source)
	require.Error(t, err)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr), "expected *ParseError, got %T", err)
	return parseErr
}

// findJoin returns the link-entity with alias anywhere below e.
func findJoin(e *ast.EntityRef, alias string) *ast.JoinClause {
	for i := range e.Joins {
		j := &e.Joins[i]
		if j.Entity.Alias == alias {
			return j
		}
		if found := findJoin(j.Entity, alias); found != nil {
			return found
		}
	}
	return nil
}

func TestParse_EntityOnly(t *testing.T) {
	q := mustParse(t, ".account")

	require.NotNil(t, q.Entity)
	assert.Equal(t, "account", q.Entity.Name)
	assert.Empty(t, q.Entity.Alias)
	assert.False(t, q.Distinct)
	assert.Zero(t, q.Top)
	assert.Nil(t, q.Page)
}

func TestParse_EntityAlias(t *testing.T) {
	q := mustParse(t, ".account as a | a.name")

	assert.Equal(t, "a", q.Entity.Alias)
	assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "name"}}, q.Entity.Attributes)
}

func TestParse_AttributesAndDistinct(t *testing.T) {
	q := mustParse(t, ".account | distinct | .industrycode, .name | .*")

	assert.True(t, q.Distinct)
	assert.Equal(t, []ast.AttributeRef{
		ast.NamedAttribute{Name: "industrycode"},
		ast.NamedAttribute{Name: "name"},
		ast.AllAttributes{},
	}, q.Entity.Attributes)
}

func TestParse_KeywordsAsFieldNames(t *testing.T) {
	q := mustParse(t, ".account | .count, .page | .order == 1")

	assert.Equal(t, []ast.AttributeRef{
		ast.NamedAttribute{Name: "count"},
		ast.NamedAttribute{Name: "page"},
	}, q.Entity.Attributes)
	require.Len(t, q.Entity.Filter, 1)
	assert.Equal(t, "order", q.Entity.Filter[0].Attribute)
}

func TestParse_Conditions(t *testing.T) {
	q := mustParse(t, `.account | .revenue > 1000.5, .name != 'x' | .statecode == 0 | .active == true | .parentid == null | .ownerid != null`)

	assert.Equal(t, []ast.Condition{
		{Attribute: "revenue", Operator: ast.Gt, Value: ast.NumberLiteral{Text: "1000.5"}},
		{Attribute: "name", Operator: ast.Ne, Value: ast.StringLiteral{Value: "x"}},
		{Attribute: "statecode", Operator: ast.Eq, Value: ast.NumberLiteral{Text: "0"}},
		{Attribute: "active", Operator: ast.Eq, Value: ast.BoolLiteral{Value: true}},
		{Attribute: "parentid", Operator: ast.Null, Value: ast.NullLiteral{}},
		{Attribute: "ownerid", Operator: ast.NotNull, Value: ast.NullLiteral{}},
	}, q.Entity.Filter)
}

func TestParse_DateMacroOperators(t *testing.T) {
	q := mustParse(t, ".account | .createdon >= @today-7d | .createdon <= @today | .modifiedon == @yesterday")

	require.Len(t, q.Entity.Filter, 3)
	assert.Equal(t, ast.OnOrAfter, q.Entity.Filter[0].Operator)
	assert.Equal(t, ast.DateMacro{Expr: "@today-7d"}, q.Entity.Filter[0].Value)
	assert.Equal(t, ast.OnOrBefore, q.Entity.Filter[1].Operator)
	assert.Equal(t, ast.Eq, q.Entity.Filter[2].Operator)
}

func TestParse_Join(t *testing.T) {
	q := mustParse(t, ".account | join(.contact as c on c.contactid -> account.primarycontactid)")

	require.Len(t, q.Entity.Joins, 1)
	j := q.Entity.Joins[0]
	assert.Equal(t, "contact", j.Entity.Name)
	assert.Equal(t, "c", j.Entity.Alias)
	assert.Equal(t, "contactid", j.From)
	assert.Equal(t, "primarycontactid", j.To)
	assert.Equal(t, ast.LinkInner, j.LinkType)
}

func TestParse_LeftJoin(t *testing.T) {
	q := mustParse(t, ".account | leftjoin(.contact as c on .contactid -> primarycontactid)")

	require.Len(t, q.Entity.Joins, 1)
	j := q.Entity.Joins[0]
	assert.Equal(t, ast.LinkOuter, j.LinkType)
	assert.Equal(t, "contactid", j.From)
	assert.Equal(t, "primarycontactid", j.To)
}

func TestParse_JoinSubPipeline(t *testing.T) {
	q := mustParse(t, ".account | join(.contact as c on c.contactid -> account.primarycontactid | .fullname | .statecode == 0)")

	c := q.Entity.Joins[0].Entity
	assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "fullname"}}, c.Attributes)
	require.Len(t, c.Filter, 1)
	assert.Equal(t, "statecode", c.Filter[0].Attribute)
	assert.Empty(t, q.Entity.Attributes)
	assert.Empty(t, q.Entity.Filter)
}

func TestParse_NestedJoins(t *testing.T) {
	source := `.account
	| join(.contact as c on c.contactid -> account.primarycontactid
		| join(.systemuser as u on u.systemuserid -> c.owninguser | .fullname))`
	q := mustParse(t, source)

	require.Len(t, q.Entity.Joins, 1)
	c := q.Entity.Joins[0].Entity
	require.Len(t, c.Joins, 1)
	assert.Equal(t, "u", c.Joins[0].Entity.Alias)
	assert.Equal(t, "owninguser", c.Joins[0].To)
	assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "fullname"}}, c.Joins[0].Entity.Attributes)
}

func TestParse_JoinParentFromRightPrefix(t *testing.T) {
	// u is written at the top level but links to a field of c, so it nests
	// under c.
	q := mustParse(t, ".account | join(.contact as c on c.contactid -> account.primarycontactid) | join(.systemuser as u on u.systemuserid -> c.owninguser)")

	require.Len(t, q.Entity.Joins, 1)
	require.Len(t, q.Entity.Joins[0].Entity.Joins, 1)
	assert.Equal(t, "u", q.Entity.Joins[0].Entity.Joins[0].Entity.Alias)
}

func TestParse_JoinParentDeclaredLater(t *testing.T) {
	q := mustParse(t, ".account | join(.systemuser as u on u.systemuserid -> c.owninguser) | join(.contact as c on c.contactid -> account.primarycontactid)")

	require.Len(t, q.Entity.Joins, 1)
	assert.Equal(t, "c", q.Entity.Joins[0].Entity.Alias)
	assert.Equal(t, "u", q.Entity.Joins[0].Entity.Joins[0].Entity.Alias)
}

func TestParse_AliasRouting_ForwardReference(t *testing.T) {
	q := mustParse(t, ".account | c.fullname | c.emailaddress1 == null | join(.contact as c on c.contactid -> account.primarycontactid)")

	assert.Empty(t, q.Entity.Attributes)
	assert.Empty(t, q.Entity.Filter)

	c := q.Entity.Joins[0].Entity
	assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "fullname"}}, c.Attributes)
	assert.Equal(t, []ast.Condition{
		{Attribute: "emailaddress1", Operator: ast.Null, Value: ast.NullLiteral{}},
	}, c.Filter)
}

func TestParse_AliasRouting_OuterAliasInsideJoin(t *testing.T) {
	q := mustParse(t, ".account as a | join(.contact as c on c.contactid -> a.primarycontactid | a.name | c.* | a.statecode == 0)")

	assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "name"}}, q.Entity.Attributes)
	require.Len(t, q.Entity.Filter, 1)
	assert.Equal(t, "statecode", q.Entity.Filter[0].Attribute)
	assert.Equal(t, []ast.AttributeRef{ast.AllAttributes{}}, q.Entity.Joins[0].Entity.Attributes)
}

func TestParse_AliasRouting_RandomStageOrder(t *testing.T) {
	stages := []string{
		"join(.contact as c on c.contactid -> account.primarycontactid)",
		"c.emailaddress1 == null",
		"c.fullname",
		".name",
		".statecode == 0",
		"leftjoin(.systemuser as u on u.systemuserid -> account.ownerid | .fullname)",
		"u.isdisabled == false",
		"order(.name, c.fullname desc)",
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		rng.Shuffle(len(stages), func(a, b int) { stages[a], stages[b] = stages[b], stages[a] })
		source := ".account | " + strings.Join(stages, " | ")

		q := mustParse(t, source)

		assert.Equal(t, []ast.Condition{
			{Attribute: "statecode", Operator: ast.Eq, Value: ast.NumberLiteral{Text: "0"}},
		}, q.Entity.Filter, source)
		assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "name"}}, q.Entity.Attributes, source)
		assert.Equal(t, []ast.OrderClause{{Attribute: "name"}}, q.Order, source)

		c := findJoin(q.Entity, "c")
		require.NotNil(t, c, source)
		assert.Equal(t, []ast.Condition{
			{Attribute: "emailaddress1", Operator: ast.Null, Value: ast.NullLiteral{}},
		}, c.Entity.Filter, source)
		assert.Equal(t, []ast.AttributeRef{ast.NamedAttribute{Name: "fullname"}}, c.Entity.Attributes, source)
		assert.Equal(t, []ast.OrderClause{{Attribute: "fullname", Descending: true}}, c.Entity.Order, source)

		u := findJoin(q.Entity, "u")
		require.NotNil(t, u, source)
		assert.Equal(t, ast.LinkOuter, u.LinkType, source)
		assert.Equal(t, []ast.Condition{
			{Attribute: "isdisabled", Operator: ast.Eq, Value: ast.BoolLiteral{Value: false}},
		}, u.Entity.Filter, source)
	}
}

func TestParse_ConditionInsideOrOutsideJoinLandsInJoin(t *testing.T) {
	inside := mustParse(t, ".account | join(.contact as c on c.contactid -> account.primarycontactid | c.emailaddress1 == null)")
	outside := mustParse(t, ".account | join(.contact as c on c.contactid -> account.primarycontactid) | c.emailaddress1 == null")

	for _, q := range []*ast.Query{inside, outside} {
		assert.Empty(t, q.Entity.Filter)
		require.Len(t, q.Entity.Joins[0].Entity.Filter, 1)
		assert.Equal(t, ast.Null, q.Entity.Joins[0].Entity.Filter[0].Operator)
	}
}

func TestParse_Order(t *testing.T) {
	q := mustParse(t, ".account | order(.name, .revenue DESC) | order(.createdon asc)")

	assert.Equal(t, []ast.OrderClause{
		{Attribute: "name"},
		{Attribute: "revenue", Descending: true},
		{Attribute: "createdon"},
	}, q.Order)
}

func TestParse_OrderInsideJoinTargetsJoin(t *testing.T) {
	q := mustParse(t, ".account | join(.contact as c on c.contactid -> account.primarycontactid | order(.fullname))")

	assert.Empty(t, q.Order)
	assert.Equal(t, []ast.OrderClause{{Attribute: "fullname"}}, q.Entity.Joins[0].Entity.Order)
}

func TestParse_LimitAndPage(t *testing.T) {
	q := mustParse(t, ".account | limit(50)")
	assert.Equal(t, 50, q.Top)
	assert.Nil(t, q.Page)

	q = mustParse(t, ".account | page(3, 50)")
	assert.Zero(t, q.Top)
	assert.Equal(t, &ast.Page{Number: 3, Size: 50}, q.Page)

	q = mustParse(t, ".account | limit(4294967295)")
	assert.Equal(t, 4294967295, q.Top)
}

func TestParse_Options(t *testing.T) {
	q := mustParse(t, ".account | options(nolock, totalcount, formatted)")
	assert.True(t, q.NoLock)
	assert.True(t, q.ReturnTotalCount)
	assert.True(t, q.Formatted)

	q = mustParse(t, ".account | options(returntotalrecordcount)")
	assert.True(t, q.ReturnTotalCount)
	assert.False(t, q.NoLock)
}

func TestParse_GroupAndAggregates(t *testing.T) {
	q := mustParse(t, ".account | group(.industrycode) | count() as total, avg(.revenue), sum(.revenue) as rev | having(total > 5)")

	agg := q.Entity.Aggregation
	require.NotNil(t, agg)
	assert.Equal(t, []string{"industrycode"}, agg.GroupBy)
	assert.Equal(t, []ast.AggregateExpr{
		{Function: ast.AggCount, Alias: "total"},
		{Function: ast.AggAvg, Field: "revenue", Alias: "avg_revenue"},
		{Function: ast.AggSum, Field: "revenue", Alias: "rev"},
	}, agg.Aggregates)
	assert.Equal(t, []ast.Condition{
		{Attribute: "total", Operator: ast.Gt, Value: ast.NumberLiteral{Text: "5"}},
	}, agg.Having)
	assert.Empty(t, q.Entity.Filter, "having never merges into filter")
}

func TestParse_AggregateDefaultAliases(t *testing.T) {
	q := mustParse(t, ".opportunity | count() | min(.estimatedvalue) | max(.estimatedvalue)")

	require.NotNil(t, q.Entity.Aggregation)
	assert.Equal(t, []ast.AggregateExpr{
		{Function: ast.AggCount, Alias: "count"},
		{Function: ast.AggMin, Field: "estimatedvalue", Alias: "min_estimatedvalue"},
		{Function: ast.AggMax, Field: "estimatedvalue", Alias: "max_estimatedvalue"},
	}, q.Entity.Aggregation.Aggregates)
}

func TestParse_AggregateRoutedToJoin(t *testing.T) {
	q := mustParse(t, ".account | join(.contact as c on c.parentcustomerid -> account.accountid) | group(.name) | count(c.contactid) as contacts")

	assert.Equal(t, []string{"name"}, q.Entity.Aggregation.GroupBy)
	assert.Empty(t, q.Entity.Aggregation.Aggregates)
	c := q.Entity.Joins[0].Entity
	require.NotNil(t, c.Aggregation)
	assert.Equal(t, []ast.AggregateExpr{
		{Function: ast.AggCount, Field: "contactid", Alias: "contacts"},
	}, c.Aggregation.Aggregates)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrorKind
		pos   Position
		msg   string
		hint  string
	}{
		{
			name:  "empty",
			input: "",
			kind:  ErrMissingClause,
			pos:   Position{1, 1},
			msg:   "empty query",
		},
		{
			name:  "no entity selector",
			input: "account | .name",
			kind:  ErrMissingClause,
			pos:   Position{1, 1},
			msg:   "must start with an entity selector",
		},
		{
			name:  "unknown alias",
			input: ".account | x.name",
			kind:  ErrUnknownAlias,
			pos:   Position{1, 12},
			msg:   `unknown alias "x"`,
			hint:  "known aliases: account",
		},
		{
			name:  "unknown alias in join target",
			input: ".account | join(.contact as c on c.contactid -> z.primarycontactid)",
			kind:  ErrUnknownAlias,
			pos:   Position{1, 49},
			msg:   `unknown alias "z"`,
		},
		{
			name:  "duplicate alias",
			input: ".account as a | join(.contact as a on a.contactid -> primarycontactid)",
			kind:  ErrDuplicateAlias,
			pos:   Position{1, 34},
			msg:   `alias "a" is already declared`,
		},
		{
			name:  "repeated default aggregate alias",
			input: ".account | count(), count()",
			kind:  ErrDuplicateAlias,
			pos:   Position{1, 21},
			msg:   `column alias "count" is already used`,
		},
		{
			name:  "aggregate alias shadows group-by column",
			input: ".account | group(.name) | count() as name",
			kind:  ErrDuplicateAlias,
			pos:   Position{1, 38},
			msg:   `column alias "name" is already used`,
		},
		{
			name:  "group-by column repeated across entities",
			input: ".account | join(.contact as c on c.parentcustomerid -> accountid) | group(.name, c.name)",
			kind:  ErrDuplicateAlias,
			msg:   `column alias "name" is already used`,
		},
		{
			name:  "join without alias",
			input: ".account | join(.contact on contactid -> primarycontactid)",
			kind:  ErrMissingClause,
			pos:   Position{1, 26},
			msg:   "join requires an alias",
		},
		{
			name:  "join without on",
			input: ".account | join(.contact as c c.contactid -> primarycontactid)",
			kind:  ErrMissingClause,
			pos:   Position{1, 31},
			msg:   "join requires an 'on' clause",
		},
		{
			name:  "join without arrow",
			input: ".account | join(.contact as c on c.contactid primarycontactid)",
			kind:  ErrMissingClause,
			pos:   Position{1, 46},
			msg:   "expected '->'",
		},
		{
			name:  "join left side of another entity",
			input: ".account | join(.contact as c on account.contactid -> primarycontactid)",
			kind:  ErrInvalidArgument,
			pos:   Position{1, 34},
			msg:   "does not belong to the joined entity",
		},
		{
			name:  "join links to itself",
			input: ".account | join(.contact as c on c.contactid -> c.parentcontactid)",
			kind:  ErrInvalidArgument,
			pos:   Position{1, 49},
			msg:   "cannot link to itself",
		},
		{
			name:  "join cycle",
			input: ".account | join(.contact as c on c.contactid -> u.contactid) | join(.systemuser as u on u.systemuserid -> c.owninguser)",
			kind:  ErrInvalidArgument,
			pos:   Position{1, 12},
			msg:   "part of a cycle",
		},
		{
			name:  "unclosed join",
			input: ".account | join(.contact as c on c.contactid -> primarycontactid",
			kind:  ErrUnexpectedToken,
			msg:   "expected '|' or ')' in join",
		},
		{
			name:  "zero limit",
			input: ".account | limit(0)",
			kind:  ErrInvalidArgument,
			pos:   Position{1, 18},
			msg:   "limit must be a positive integer",
		},
		{
			name:  "decimal limit",
			input: ".account | limit(2.5)",
			kind:  ErrInvalidArgument,
			msg:   "limit must be a positive integer",
		},
		{
			name:  "negative page size",
			input: ".account | page(1, -10)",
			kind:  ErrInvalidArgument,
			msg:   "page size must be a positive integer",
		},
		{
			name:  "limit beyond 32 bits",
			input: ".account | limit(4294967296)",
			kind:  ErrInvalidArgument,
			pos:   Position{1, 18},
			msg:   "limit must be at most 4294967295",
		},
		{
			name:  "page size beyond 32 bits",
			input: ".account | page(1, 99999999999)",
			kind:  ErrInvalidArgument,
			msg:   "page size must be at most 4294967295",
		},
		{
			name:  "page without size",
			input: ".account | page(1)",
			kind:  ErrMissingClause,
			msg:   "page requires a page size",
		},
		{
			name:  "limit then page",
			input: ".account | limit(10) | page(1, 10)",
			kind:  ErrConflictingStage,
			pos:   Position{1, 24},
			msg:   "page cannot be combined with limit",
		},
		{
			name:  "page then limit",
			input: ".account | page(1, 10) | limit(10)",
			kind:  ErrConflictingStage,
			msg:   "limit cannot be combined with page",
		},
		{
			name:  "limit twice",
			input: ".account | limit(10) | limit(5)",
			kind:  ErrConflictingStage,
			msg:   "limit is already set",
		},
		{
			name:  "limit inside join",
			input: ".account | join(.contact as c on c.contactid -> primarycontactid | limit(5))",
			kind:  ErrUnexpectedToken,
			msg:   "only allowed at the top level",
		},
		{
			name:  "null with greater than",
			input: ".account | .revenue > null",
			kind:  ErrInvalidArgument,
			msg:   "null can only be compared with == or !=",
		},
		{
			name:  "unquoted string value",
			input: ".account | .name == Contoso",
			kind:  ErrInvalidArgument,
			pos:   Position{1, 21},
			msg:   `expected a value, found identifier "Contoso"`,
			hint:  `quote string values: "Contoso"`,
		},
		{
			name:  "unknown stage",
			input: ".account | where(.name == 'x')",
			kind:  ErrUnexpectedToken,
			msg:   `unknown stage "where"`,
			hint:  "valid stages: distinct, join",
		},
		{
			name:  "bare field name",
			input: ".account | name",
			kind:  ErrUnexpectedToken,
			hint:  "prefix field names with '.'",
		},
		{
			name:  "mixed attributes and conditions",
			input: ".account | .name, .statecode == 0",
			kind:  ErrUnexpectedToken,
			msg:   "cannot mix attributes and conditions",
		},
		{
			name:  "unknown option",
			input: ".account | options(fast)",
			kind:  ErrInvalidArgument,
			msg:   `unknown option "fast"`,
			hint:  "valid options: nolock, totalcount, formatted",
		},
		{
			name:  "having without aggregation",
			input: ".account | having(total > 5)",
			kind:  ErrMissingClause,
			pos:   Position{1, 12},
			msg:   "having requires an aggregation",
		},
		{
			name:  "sum without field",
			input: ".account | sum()",
			kind:  ErrMissingClause,
			msg:   "sum requires a field",
		},
		{
			name:  "bad sort direction",
			input: ".account | order(.name sideways)",
			kind:  ErrInvalidArgument,
			msg:   `unknown sort direction "sideways"`,
		},
		{
			name:  "trailing pipe",
			input: ".account |",
			kind:  ErrMissingClause,
			pos:   Position{1, 11},
			msg:   "expected a stage after '|'",
		},
		{
			name:  "missing pipe",
			input: ".account .name",
			kind:  ErrUnexpectedToken,
			pos:   Position{1, 10},
			msg:   "expected '|' or end of query",
		},
		{
			name:  "wildcard comparison",
			input: ".account | .* == 1",
			kind:  ErrUnexpectedToken,
			msg:   "cannot compare '.*'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.input)

			assert.Equal(t, tt.kind, perr.Kind)
			if tt.pos.IsValid() {
				assert.Equal(t, tt.pos, perr.Pos)
			}
			if tt.msg != "" {
				assert.Contains(t, perr.Message, tt.msg)
			}
			if tt.hint != "" {
				assert.Contains(t, perr.Hint, tt.hint)
			}
		})
	}
}

func TestParse_ErrorRendering(t *testing.T) {
	source := ".account\n| x.name"
	perr := parseErr(t, source)

	assert.Equal(t,
		"parse error at line 2, column 3: unknown alias \"x\"\n"+
			"  2 | | x.name\n"+
			"    |   ^\n"+
			"hint: known aliases: account",
		perr.Error())
}

func TestParse_IsDeterministic(t *testing.T) {
	source := ".account | join(.contact as c on c.contactid -> account.primarycontactid | .fullname) | c.statecode == 0 | order(.name)"

	first := mustParse(t, source)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, mustParse(t, source))
	}
}

func TestParse_WithoutEOFToken(t *testing.T) {
	tokens, err := Tokenize(".account | limit(5)")
	require.NoError(t, err)

	q, err := Parse(tokens[:len(tokens)-1], "")
	require.NoError(t, err)
	assert.Equal(t, 5, q.Top)
}

// Package filtertext parses a compact textual filter syntax into validated
// filter expressions:
//
//	age >= 18 and name != "root"
//	status in ["active", "trial"] or not (score < 3.5)
//	deleted_at not exists
//
// Paths are resolved and operands type-checked against the registered
// document type, so a parsed filter carries the same guarantees as one built
// with the expression constructors.
package filtertext

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/mondolib/mondo/typed"
)

// --- Participle grammar structs ---

// expression is the top-level grammar: or-expressions over and-expressions.
type expression struct {
	Or []*andExpression `parser:"@@ ( 'or' @@ )*"`
}

type andExpression struct {
	And []*unaryExpression `parser:"@@ ( 'and' @@ )*"`
}

type unaryExpression struct {
	Not   *unaryExpression `parser:"  'not' @@"`
	Group *expression      `parser:"| '(' @@ ')'"`
	Cond  *condition       `parser:"| @@"`
}

// condition parses: path [not] (in-list | exists | comparison)
type condition struct {
	Path   string      `parser:"@Path"`
	Not    bool        `parser:"@'not'?"`
	In     *listTail   `parser:"( @@"`
	Exists bool        `parser:"| @'exists'"`
	Cmp    *comparison `parser:"| @@ )"`
}

type listTail struct {
	Values []*literal `parser:"'in' '[' @@ ( ',' @@ )* ']'"`
}

type comparison struct {
	Op    string   `parser:"@Operator"`
	Value *literal `parser:"@@"`
}

type literal struct {
	Str   *string  `parser:"  @String"`
	Float *float64 `parser:"| @Float"`
	Int   *int64   `parser:"| @Int"`
	True  bool     `parser:"| @'true'"`
	False bool     `parser:"| @'false'"`
}

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "Keyword", Pattern: `\b(and|or|not|in|exists|true|false)\b`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Float", Pattern: `-?[0-9]+\.[0-9]+`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Path", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(?:\.(?:[a-zA-Z_][a-zA-Z0-9_]*|[0-9]+|\$))*`},
	{Name: "Operator", Pattern: `==|!=|>=|<=|[<>=]`},
	{Name: "Punct", Pattern: `[\[\](),]`},
})

var filterParser = participle.MustBuild[expression](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses src into a filter over the registered document type T.
func Parse[T typed.Doc](src string) (typed.Filter, error) {
	m, err := typed.ModelFor[T]()
	if err != nil {
		return nil, err
	}
	ast, err := filterParser.ParseString("filter", src)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	f, err := convertOr(m, ast)
	if err != nil {
		return nil, err
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

func convertOr(m *typed.ModelInfo, e *expression) (typed.Filter, error) {
	subs := make([]typed.Filter, 0, len(e.Or))
	for _, a := range e.Or {
		f, err := convertAnd(m, a)
		if err != nil {
			return nil, err
		}
		subs = append(subs, f)
	}
	if len(subs) == 1 {
		return subs[0], nil
	}
	return typed.Or(subs...), nil
}

func convertAnd(m *typed.ModelInfo, e *andExpression) (typed.Filter, error) {
	subs := make([]typed.Filter, 0, len(e.And))
	for _, u := range e.And {
		f, err := convertUnary(m, u)
		if err != nil {
			return nil, err
		}
		subs = append(subs, f)
	}
	if len(subs) == 1 {
		return subs[0], nil
	}
	return typed.And(subs...), nil
}

func convertUnary(m *typed.ModelInfo, e *unaryExpression) (typed.Filter, error) {
	switch {
	case e.Not != nil:
		f, err := convertUnary(m, e.Not)
		if err != nil {
			return nil, err
		}
		return typed.Not(f), nil
	case e.Group != nil:
		return convertOr(m, e.Group)
	}
	return convertCondition(m, e.Cond)
}

func convertCondition(m *typed.ModelInfo, c *condition) (typed.Filter, error) {
	p, err := m.ParsePath(c.Path)
	if err != nil {
		return nil, err
	}
	switch {
	case c.In != nil:
		operands := make([]any, 0, len(c.In.Values))
		for _, lit := range c.In.Values {
			v, err := literalValue(lit)
			if err != nil {
				return nil, err
			}
			operands = append(operands, v)
		}
		if c.Not {
			return typed.Nin(p, operands...), nil
		}
		return typed.In(p, operands...), nil
	case c.Exists:
		if c.Not {
			return typed.NotExists(p), nil
		}
		return typed.Exists(p), nil
	case c.Cmp != nil:
		if c.Not {
			return nil, fmt.Errorf("filter %q: 'not' combines with 'in' or 'exists', not %q", c.Path, c.Cmp.Op)
		}
		v, err := literalValue(c.Cmp.Value)
		if err != nil {
			return nil, err
		}
		switch c.Cmp.Op {
		case "=", "==":
			return typed.Eq(p, v), nil
		case "!=":
			return typed.Ne(p, v), nil
		case "<":
			return typed.Lt(p, v), nil
		case "<=":
			return typed.Lte(p, v), nil
		case ">":
			return typed.Gt(p, v), nil
		case ">=":
			return typed.Gte(p, v), nil
		}
		return nil, fmt.Errorf("filter %q: unknown operator %q", c.Path, c.Cmp.Op)
	}
	return nil, fmt.Errorf("filter %q: incomplete condition", c.Path)
}

func literalValue(lit *literal) (any, error) {
	switch {
	case lit.Str != nil:
		s, err := strconv.Unquote(*lit.Str)
		if err != nil {
			return nil, fmt.Errorf("string literal %s: %w", *lit.Str, err)
		}
		return s, nil
	case lit.Float != nil:
		return *lit.Float, nil
	case lit.Int != nil:
		return *lit.Int, nil
	case lit.True:
		return true, nil
	case lit.False:
		return false, nil
	}
	return nil, fmt.Errorf("empty literal")
}

package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/view"
)

// Operator is a comparison of a filter condition
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLike
	OpNotLike
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpIn
	OpNotIn
)

var operatorNames = map[Operator]string{
	OpEqual:        "=",
	OpNotEqual:     "!=",
	OpLike:         "LIKE",
	OpNotLike:      "NOT LIKE",
	OpGreater:      ">",
	OpLess:         "<",
	OpGreaterEqual: ">=",
	OpLessEqual:    "<=",
	OpIn:           "IN",
	OpNotIn:        "NOT IN",
}

func (o Operator) String() string {
	return operatorNames[o]
}

// GroupType joins the items of a filter group
type GroupType int

const (
	TypeAnd GroupType = iota
	TypeOr
)

func (t GroupType) String() string {
	if t == TypeOr {
		return "OR"
	}
	return "AND"
}

// Filter is a node of a filter tree: *Condition or *Group
type Filter interface {
	filterNode()
}

// Condition compares the values of a column against one or more values.
// Count compares the number of values instead.
type Condition struct {
	Column   string
	Operator Operator
	Values   []string
	Count    bool
}

// Group joins filters with AND or OR
type Group struct {
	Type  GroupType
	Items []Filter
}

func (*Condition) filterNode() {}
func (*Group) filterNode()     {}

// And joins filters with AND
func And(items ...Filter) *Group {
	return &Group{Type: TypeAnd, Items: items}
}

// Or joins filters with OR
func Or(items ...Filter) *Group {
	return &Group{Type: TypeOr, Items: items}
}

// Eq matches column = value. A "*" in value turns the condition into LIKE.
func Eq(column, value string) *Condition {
	if strings.Contains(value, "*") {
		return &Condition{Column: column, Operator: OpLike, Values: []string{wildcard(value)}}
	}
	return &Condition{Column: column, Operator: OpEqual, Values: []string{value}}
}

// NotEq matches column != value. A "*" in value turns the condition into NOT LIKE.
func NotEq(column, value string) *Condition {
	if strings.Contains(value, "*") {
		return &Condition{Column: column, Operator: OpNotLike, Values: []string{wildcard(value)}}
	}
	return &Condition{Column: column, Operator: OpNotEqual, Values: []string{value}}
}

// Like matches column against a pattern using % as wildcard
func Like(column, pattern string) *Condition {
	return &Condition{Column: column, Operator: OpLike, Values: []string{pattern}}
}

// Compare builds a condition with an arbitrary operator
func Compare(column string, op Operator, values ...string) *Condition {
	return &Condition{Column: column, Operator: op, Values: values}
}

// In matches when any column value is one of values
func In(column string, values ...string) *Condition {
	return &Condition{Column: column, Operator: OpIn, Values: values}
}

func wildcard(value string) string {
	return strings.ReplaceAll(value, "*", "%")
}

// predicate is a compiled filter
type predicate func(rec *model.Record) bool

// compileFilter translates f through v. Nested groups of the same type are
// flattened; mixed groups keep their nesting.
func compileFilter(f Filter, v *view.View, res view.Resolver) (predicate, error) {
	switch n := f.(type) {
	case *Condition:
		return compileCondition(n, v, res)
	case *Group:
		items := flatten(n)
		preds := make([]predicate, 0, len(items))
		for _, item := range items {
			p, err := compileFilter(item, v, res)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if n.Type == TypeOr {
			return func(rec *model.Record) bool {
				for _, p := range preds {
					if p(rec) {
						return true
					}
				}
				return false
			}, nil
		}
		return func(rec *model.Record) bool {
			for _, p := range preds {
				if !p(rec) {
					return false
				}
			}
			return true
		}, nil
	default:
		return func(*model.Record) bool { return true }, nil
	}
}

func flatten(g *Group) []Filter {
	var out []Filter
	for _, item := range g.Items {
		if sub, ok := item.(*Group); ok && sub.Type == g.Type {
			out = append(out, flatten(sub)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

func compileCondition(c *Condition, v *view.View, res view.Resolver) (predicate, error) {
	col, err := v.Column(c.Column)
	if err != nil {
		return nil, err
	}

	var pattern *regexp.Regexp
	if c.Operator == OpLike || c.Operator == OpNotLike {
		if len(c.Values) > 0 {
			pattern = likePattern(c.Values[0])
		}
	}

	return func(rec *model.Record) bool {
		values := col.Values(res, rec)
		if c.Count {
			values = []string{strconv.Itoa(len(values))}
		}
		return matchAny(c, pattern, values)
	}, nil
}

// matchAny reports whether any value satisfies the condition. A column
// without values never matches, except for NOT IN which holds when no value
// is listed.
func matchAny(c *Condition, pattern *regexp.Regexp, values []string) bool {
	if c.Operator == OpNotIn {
		for _, value := range values {
			if inValues(value, c.Values) {
				return false
			}
		}
		return true
	}
	for _, value := range values {
		if matchValue(c, pattern, value) {
			return true
		}
	}
	return false
}

func matchValue(c *Condition, pattern *regexp.Regexp, value string) bool {
	if len(c.Values) == 0 {
		return false
	}
	expected := c.Values[0]

	switch c.Operator {
	case OpEqual:
		return looseEqual(value, expected)
	case OpNotEqual:
		return !looseEqual(value, expected)
	case OpLike:
		return pattern != nil && pattern.MatchString(value)
	case OpNotLike:
		return pattern != nil && !pattern.MatchString(value)
	case OpGreater:
		return looseCompare(value, expected) > 0
	case OpLess:
		return looseCompare(value, expected) < 0
	case OpGreaterEqual:
		return looseCompare(value, expected) >= 0
	case OpLessEqual:
		return looseCompare(value, expected) <= 0
	case OpIn:
		return inValues(value, c.Values)
	default:
		return false
	}
}

func inValues(value string, values []string) bool {
	for _, candidate := range values {
		if looseEqual(value, candidate) {
			return true
		}
	}
	return false
}

// looseEqual compares numerically when both sides are numbers and
// case-insensitively otherwise
func looseEqual(a, b string) bool {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		return fa == fb
	}
	return strings.EqualFold(a, b)
}

func looseCompare(a, b string) int {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// decimal is the numeric syntax a value needs to compare as a number. Words
// ParseFloat also accepts, like "nan" or "infinity", stay strings.
var decimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimal.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// likePattern anchors a % wildcard pattern as a regular expression
func likePattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "%")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

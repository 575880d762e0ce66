package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// ExprOp represents an expression operator.
type ExprOp int

const (
	OpAnd ExprOp = iota
	OpOr
	OpNot
	OpEq
	OpNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpIsNull
	OpNotNull
	OpStartsWith
	OpNotStartsWith
)

var opNames = [...]string{
	OpAnd:           "AND",
	OpOr:            "OR",
	OpNot:           "NOT",
	OpEq:            "=",
	OpNotEq:         "!=",
	OpLt:            "<",
	OpLte:           "<=",
	OpGt:            ">",
	OpGte:           ">=",
	OpIn:            "IN",
	OpNotIn:         "NOT IN",
	OpIsNull:        "IS NULL",
	OpNotNull:       "IS NOT NULL",
	OpStartsWith:    "STARTS WITH",
	OpNotStartsWith: "NOT STARTS WITH",
}

// String returns the string representation of the operator.
func (op ExprOp) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "UNKNOWN"
	}
	return opNames[op]
}

// ColRef is a comparison operand that refers to another column instead
// of a literal, as in old.id = new.id.
type ColRef struct {
	Name string
}

func (r ColRef) String() string {
	return r.Name
}

// Expression represents a filter or join expression.
type Expression struct {
	Op       ExprOp
	Column   string
	Value    any
	Values   []any
	Children []*Expression
}

// String returns a string representation of the expression.
func (e *Expression) String() string {
	if e == nil {
		return "nil"
	}

	switch e.Op {
	case OpAnd, OpOr:
		parts := make([]string, len(e.Children))
		for i, c := range e.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+e.Op.String()+" ") + ")"
	case OpNot:
		if len(e.Children) > 0 {
			return "NOT " + e.Children[0].String()
		}
		return "NOT nil"
	case OpIn, OpNotIn:
		return fmt.Sprintf("%s %s %v", e.Column, e.Op, e.Values)
	case OpIsNull, OpNotNull:
		return fmt.Sprintf("%s %s", e.Column, e.Op)
	default:
		return fmt.Sprintf("%s %s %v", e.Column, e.Op, e.Value)
	}
}

// ExprBuilder helps build filter expressions.
type ExprBuilder struct {
	column string
}

// Col creates a new expression builder for the given column.
func Col(name string) *ExprBuilder {
	return &ExprBuilder{column: name}
}

func (b *ExprBuilder) cmp(op ExprOp, value any) *Expression {
	return &Expression{Op: op, Column: b.column, Value: value}
}

// Eq creates an equality expression.
func (b *ExprBuilder) Eq(value any) *Expression { return b.cmp(OpEq, value) }

// EqCol creates a column-to-column equality expression.
func (b *ExprBuilder) EqCol(other string) *Expression { return b.cmp(OpEq, ColRef{Name: other}) }

// NotEq creates a not-equal expression.
func (b *ExprBuilder) NotEq(value any) *Expression { return b.cmp(OpNotEq, value) }

// Lt creates a less-than expression.
func (b *ExprBuilder) Lt(value any) *Expression { return b.cmp(OpLt, value) }

// Lte creates a less-than-or-equal expression.
func (b *ExprBuilder) Lte(value any) *Expression { return b.cmp(OpLte, value) }

// Gt creates a greater-than expression.
func (b *ExprBuilder) Gt(value any) *Expression { return b.cmp(OpGt, value) }

// Gte creates a greater-than-or-equal expression.
func (b *ExprBuilder) Gte(value any) *Expression { return b.cmp(OpGte, value) }

// StartsWith creates a STARTS WITH expression.
func (b *ExprBuilder) StartsWith(prefix string) *Expression { return b.cmp(OpStartsWith, prefix) }

// NotStartsWith creates a NOT STARTS WITH expression.
func (b *ExprBuilder) NotStartsWith(prefix string) *Expression {
	return b.cmp(OpNotStartsWith, prefix)
}

// In creates an IN expression.
func (b *ExprBuilder) In(values ...any) *Expression {
	return &Expression{Op: OpIn, Column: b.column, Values: values}
}

// NotIn creates a NOT IN expression.
func (b *ExprBuilder) NotIn(values ...any) *Expression {
	return &Expression{Op: OpNotIn, Column: b.column, Values: values}
}

// IsNull creates an IS NULL expression.
func (b *ExprBuilder) IsNull() *Expression {
	return &Expression{Op: OpIsNull, Column: b.column}
}

// IsNotNull creates an IS NOT NULL expression.
func (b *ExprBuilder) IsNotNull() *Expression {
	return &Expression{Op: OpNotNull, Column: b.column}
}

// And combines expressions with AND.
func And(exprs ...*Expression) *Expression {
	return &Expression{Op: OpAnd, Children: exprs}
}

// Or combines expressions with OR.
func Or(exprs ...*Expression) *Expression {
	return &Expression{Op: OpOr, Children: exprs}
}

// Not negates an expression.
func Not(expr *Expression) *Expression {
	return &Expression{Op: OpNot, Children: []*Expression{expr}}
}

// Eq is a shorthand for Col(column).Eq(value).
func Eq(column string, value any) *Expression { return Col(column).Eq(value) }

// NotEq is a shorthand for Col(column).NotEq(value).
func NotEq(column string, value any) *Expression { return Col(column).NotEq(value) }

// Lt is a shorthand for Col(column).Lt(value).
func Lt(column string, value any) *Expression { return Col(column).Lt(value) }

// Lte is a shorthand for Col(column).Lte(value).
func Lte(column string, value any) *Expression { return Col(column).Lte(value) }

// Gt is a shorthand for Col(column).Gt(value).
func Gt(column string, value any) *Expression { return Col(column).Gt(value) }

// Gte is a shorthand for Col(column).Gte(value).
func Gte(column string, value any) *Expression { return Col(column).Gte(value) }

// In is a shorthand for Col(column).In(values...).
func In(column string, values ...any) *Expression { return Col(column).In(values...) }

// IsNull is a shorthand for Col(column).IsNull().
func IsNull(column string) *Expression { return Col(column).IsNull() }

// IsNotNull is a shorthand for Col(column).IsNotNull().
func IsNotNull(column string) *Expression { return Col(column).IsNotNull() }

// Between creates column >= lower AND column <= upper.
func Between(column string, lower, upper any) *Expression {
	return And(Col(column).Gte(lower), Col(column).Lte(upper))
}

// EqualColumns builds the AND of left[i] = right[i] for every pair, in
// order. left and right must have the same length.
func EqualColumns(left, right []string) *Expression {
	children := make([]*Expression, len(left))
	for i := range left {
		children[i] = Col(left[i]).EqCol(right[i])
	}
	return And(children...)
}

// Clone creates a deep copy of the expression.
func (e *Expression) Clone() *Expression {
	if e == nil {
		return nil
	}

	clone := &Expression{
		Op:     e.Op,
		Column: e.Column,
		Value:  e.Value,
		Values: slices.Clone(e.Values),
	}
	if e.Children != nil {
		clone.Children = make([]*Expression, len(e.Children))
		for i, child := range e.Children {
			clone.Children[i] = child.Clone()
		}
	}
	return clone
}

// Simplify flattens single-child AND/OR nodes and removes double negation.
func (e *Expression) Simplify() *Expression {
	if e == nil {
		return nil
	}

	switch e.Op {
	case OpAnd, OpOr:
		simplified := make([]*Expression, 0, len(e.Children))
		for _, child := range e.Children {
			if s := child.Simplify(); s != nil {
				simplified = append(simplified, s)
			}
		}
		switch len(simplified) {
		case 0:
			return nil
		case 1:
			return simplified[0]
		}
		return &Expression{Op: e.Op, Children: simplified}
	case OpNot:
		if len(e.Children) == 0 {
			return nil
		}
		child := e.Children[0].Simplify()
		if child == nil {
			return nil
		}
		if child.Op == OpNot && len(child.Children) > 0 {
			return child.Children[0].Simplify()
		}
		return Not(child)
	default:
		return e
	}
}

// GetReferencedColumns returns all columns referenced by the expression,
// including column references on the right-hand side, in first-seen order.
func (e *Expression) GetReferencedColumns() []string {
	var cols []string
	e.collectColumns(&cols)
	return cols
}

func (e *Expression) collectColumns(cols *[]string) {
	if e == nil {
		return
	}
	add := func(c string) {
		if c != "" && !slices.Contains(*cols, c) {
			*cols = append(*cols, c)
		}
	}
	add(e.Column)
	if ref, ok := e.Value.(ColRef); ok {
		add(ref.Name)
	}
	for _, child := range e.Children {
		child.collectColumns(cols)
	}
}

// Matches evaluates the expression against row idx of rec. Comparisons
// involving NULL are false. A nil expression matches every row.
func (e *Expression) Matches(rec arrow.Record, idx int) bool {
	if e == nil {
		return true
	}

	switch e.Op {
	case OpAnd:
		for _, child := range e.Children {
			if !child.Matches(rec, idx) {
				return false
			}
		}
		return true

	case OpOr:
		for _, child := range e.Children {
			if child.Matches(rec, idx) {
				return true
			}
		}
		return false

	case OpNot:
		if len(e.Children) == 0 {
			return true
		}
		return !e.Children[0].Matches(rec, idx)
	}

	col := recordColumn(rec, e.Column)
	if col == nil {
		return false
	}

	switch e.Op {
	case OpIsNull:
		return col.IsNull(idx)
	case OpNotNull:
		return !col.IsNull(idx)
	}

	value := getValueAt(col, idx)
	if value == nil {
		return false
	}

	switch e.Op {
	case OpIn, OpNotIn:
		found := slices.ContainsFunc(e.Values, func(v any) bool {
			return compareValues(value, v, OpEq)
		})
		return found == (e.Op == OpIn)

	case OpStartsWith, OpNotStartsWith:
		s, ok := value.(string)
		if !ok {
			return false
		}
		return strings.HasPrefix(s, toString(e.Value)) == (e.Op == OpStartsWith)

	default:
		other := e.Value
		if ref, ok := other.(ColRef); ok {
			refCol := recordColumn(rec, ref.Name)
			if refCol == nil {
				return false
			}
			other = getValueAt(refCol, idx)
		}
		return compareValues(value, other, e.Op)
	}
}

func recordColumn(rec arrow.Record, name string) arrow.Array {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil
	}
	return rec.Column(indices[0])
}

// JoinPair is one equality of an equi-join: a target column equal to a
// source column.
type JoinPair struct {
	Target string
	Source string
}

// EquiJoinColumns extracts the column pairs of a condition made only of
// AND-ed equalities between targetAlias.x and sourceAlias.y. Either side
// of each equality may carry either alias. Alias prefixes are stripped.
func (e *Expression) EquiJoinColumns(targetAlias, sourceAlias string) ([]JoinPair, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: empty condition", ErrInvalidCondition)
	}

	var pairs []JoinPair
	var walk func(*Expression) error
	walk = func(n *Expression) error {
		switch n.Op {
		case OpAnd:
			for _, child := range n.Children {
				if err := walk(child); err != nil {
					return err
				}
			}
			return nil
		case OpEq:
			ref, ok := n.Value.(ColRef)
			if !ok {
				return fmt.Errorf("%w: %s is not a column equality", ErrInvalidCondition, n)
			}
			lAlias, lCol := splitAlias(n.Column)
			rAlias, rCol := splitAlias(ref.Name)
			switch {
			case lAlias == targetAlias && rAlias == sourceAlias:
				pairs = append(pairs, JoinPair{Target: lCol, Source: rCol})
			case lAlias == sourceAlias && rAlias == targetAlias:
				pairs = append(pairs, JoinPair{Target: rCol, Source: lCol})
			default:
				return fmt.Errorf("%w: %s must compare %s.* with %s.*",
					ErrInvalidCondition, n, targetAlias, sourceAlias)
			}
			return nil
		default:
			return fmt.Errorf("%w: unsupported operator %s", ErrInvalidCondition, n.Op)
		}
	}

	if err := walk(e); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no column equalities", ErrInvalidCondition)
	}
	return pairs, nil
}

func splitAlias(name string) (alias, column string) {
	alias, column, ok := strings.Cut(name, ".")
	if !ok {
		return "", name
	}
	return alias, column
}

package expr

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Condition is a predicate over item attributes. It is either a single
// Comparison or a Join of conditions. Conditions are built per call,
// classified once, and discarded; they are never mutated after another
// condition has taken them as a child.
type Condition interface {
	// And combines with another condition. Calling And on a freshly built
	// AND join appends in place so repeated joins stay flat.
	And(Condition) Condition
	// Or combines with another condition, with the same flattening rule.
	Or(Condition) Condition

	// KeyCondition renders the condition as a native key predicate.
	KeyCondition() (expression.KeyConditionBuilder, error)
	// FilterCondition renders the condition as a native filter predicate.
	FilterCondition() (expression.ConditionBuilder, error)

	fmt.Stringer
	isCondition()
}

// Comparison is a single operator applied to one attribute.
type Comparison struct {
	Attr   Attr
	Op     Operator
	Values []any
}

// NewComparison builds a comparison, validating the operand count against
// the operator's fixed arity.
func NewComparison(a Attr, op Operator, operands ...any) (*Comparison, error) {
	if !op.valid() {
		return nil, NewExpressionError("unknown operator %q", string(op))
	}
	if len(operands) != op.Arity() {
		return nil, NewExpressionError("operator %s takes %d operand(s), got %d", op, op.Arity(), len(operands))
	}
	return &Comparison{Attr: a, Op: op, Values: operands}, nil
}

func mustComparison(a Attr, op Operator, operands ...any) *Comparison {
	c, err := NewComparison(a, op, operands...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Comparison) isCondition() {}

func (c *Comparison) And(other Condition) Condition {
	return &Join{Op: JoinAnd, Children: []Condition{c, other}}
}

func (c *Comparison) Or(other Condition) Condition {
	return &Join{Op: JoinOr, Children: []Condition{c, other}}
}

func (c *Comparison) String() string {
	switch c.Op.Arity() {
	case 0:
		return fmt.Sprintf("%s(%s)", c.Op, c.Attr.Name)
	case 2:
		return fmt.Sprintf("%s %s (%v, %v)", c.Attr.Name, c.Op, c.Values[0], c.Values[1])
	default:
		return fmt.Sprintf("%s %s %v", c.Attr.Name, c.Op, c.Values[0])
	}
}

// JoinOperator is the boolean connective of a Join.
type JoinOperator string

const (
	JoinAnd JoinOperator = "AND"
	JoinOr  JoinOperator = "OR"
)

// Join is an ordered n-ary boolean combination of conditions.
type Join struct {
	Op       JoinOperator
	Children []Condition
}

// And builds the conjunction of the given conditions as a single flat join.
func And(first Condition, rest ...Condition) Condition {
	j := &Join{Op: JoinAnd, Children: []Condition{first}}
	j.Children = append(j.Children, rest...)
	return j
}

// Or builds the disjunction of the given conditions as a single flat join.
func Or(first Condition, rest ...Condition) Condition {
	j := &Join{Op: JoinOr, Children: []Condition{first}}
	j.Children = append(j.Children, rest...)
	return j
}

func (j *Join) isCondition() {}

func (j *Join) And(other Condition) Condition {
	if j.Op == JoinAnd {
		j.Children = append(j.Children, other)
		return j
	}
	return &Join{Op: JoinAnd, Children: []Condition{j, other}}
}

func (j *Join) Or(other Condition) Condition {
	if j.Op == JoinOr {
		j.Children = append(j.Children, other)
		return j
	}
	return &Join{Op: JoinOr, Children: []Condition{j, other}}
}

func (j *Join) String() string {
	parts := make([]string, len(j.Children))
	for i, c := range j.Children {
		parts[i] = "(" + c.String() + ")"
	}
	sep := " & "
	if j.Op == JoinOr {
		sep = " | "
	}
	return strings.Join(parts, sep)
}

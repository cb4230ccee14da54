package expr

import (
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Rendering is deferred until dispatch time: conditions are classified
// structurally first, and only the parts that survive classification are
// turned into native predicates here.

// KeyCondition renders the comparison as a native key predicate. Only the
// operators the key-condition grammar supports are accepted; IN yields
// ErrKeyInCondition so the dispatcher can reroute instead of failing.
func (c *Comparison) KeyCondition() (expression.KeyConditionBuilder, error) {
	var zero expression.KeyConditionBuilder
	if err := c.checkEncodable(); err != nil {
		return zero, err
	}
	key := expression.Key(c.Attr.Name)
	switch c.Op {
	case OpEq:
		return expression.KeyEqual(key, expression.Value(c.Values[0])), nil
	case OpLt:
		return expression.KeyLessThan(key, expression.Value(c.Values[0])), nil
	case OpLte:
		return expression.KeyLessThanEqual(key, expression.Value(c.Values[0])), nil
	case OpGt:
		return expression.KeyGreaterThan(key, expression.Value(c.Values[0])), nil
	case OpGte:
		return expression.KeyGreaterThanEqual(key, expression.Value(c.Values[0])), nil
	case OpBeginsWith:
		prefix, ok := c.Values[0].(string)
		if !ok {
			return zero, NewExpressionError("BEGINS_WITH operand for %q must be a string, got %T", c.Attr.Name, c.Values[0])
		}
		return expression.KeyBeginsWith(key, prefix), nil
	case OpBetween:
		return expression.KeyBetween(key, expression.Value(c.Values[0]), expression.Value(c.Values[1])), nil
	case OpIn:
		return zero, fmt.Errorf("key condition on %q: %w", c.Attr.Name, ErrKeyInCondition)
	default:
		return zero, NewExpressionError("operator %s cannot be used in a key condition", c.Op)
	}
}

// FilterCondition renders the comparison as a native filter predicate.
func (c *Comparison) FilterCondition() (expression.ConditionBuilder, error) {
	var zero expression.ConditionBuilder
	if err := c.checkEncodable(); err != nil {
		return zero, err
	}
	name := expression.Name(c.Attr.Name)
	switch c.Op {
	case OpEq:
		return name.Equal(expression.Value(c.Values[0])), nil
	case OpNe:
		return name.NotEqual(expression.Value(c.Values[0])), nil
	case OpLt:
		return name.LessThan(expression.Value(c.Values[0])), nil
	case OpLte:
		return name.LessThanEqual(expression.Value(c.Values[0])), nil
	case OpGt:
		return name.GreaterThan(expression.Value(c.Values[0])), nil
	case OpGte:
		return name.GreaterThanEqual(expression.Value(c.Values[0])), nil
	case OpIn:
		values, err := c.InValues()
		if err != nil {
			return zero, err
		}
		if len(values) == 0 {
			return zero, NewExpressionError("IN condition on %q needs at least one value", c.Attr.Name)
		}
		first := expression.Value(values[0])
		rest := make([]expression.OperandBuilder, 0, len(values)-1)
		for _, v := range values[1:] {
			rest = append(rest, expression.Value(v))
		}
		return name.In(first, rest...), nil
	case OpContains:
		substr, ok := c.Values[0].(string)
		if !ok {
			return zero, NewExpressionError("CONTAINS operand for %q must be a string, got %T", c.Attr.Name, c.Values[0])
		}
		return name.Contains(substr), nil
	case OpBeginsWith:
		prefix, ok := c.Values[0].(string)
		if !ok {
			return zero, NewExpressionError("BEGINS_WITH operand for %q must be a string, got %T", c.Attr.Name, c.Values[0])
		}
		return name.BeginsWith(prefix), nil
	case OpExists:
		return name.AttributeExists(), nil
	case OpNotExists:
		return name.AttributeNotExists(), nil
	case OpBetween:
		return name.Between(expression.Value(c.Values[0]), expression.Value(c.Values[1])), nil
	default:
		return zero, NewExpressionError("operator %s cannot be used in a filter condition", c.Op)
	}
}

// InValues returns the candidate value list of an IN comparison.
func (c *Comparison) InValues() ([]any, error) {
	if c.Op != OpIn {
		return nil, NewExpressionError("%s is not an IN comparison", c.String())
	}
	if vs, ok := c.Values[0].([]any); ok {
		return vs, nil
	}
	rv := reflect.ValueOf(c.Values[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, NewExpressionError("IN operand for %q must be a list, got %T", c.Attr.Name, c.Values[0])
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// checkEncodable verifies every operand converts to a DynamoDB primitive so
// encoding failures surface before any transport call.
func (c *Comparison) checkEncodable() error {
	for _, v := range c.Values {
		if c.Op == OpIn {
			values, err := c.InValues()
			if err != nil {
				return err
			}
			for _, e := range values {
				if _, err := c.Attr.Encode(e); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := c.Attr.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// KeyCondition renders an AND join by conjoining its children's key
// predicates. A top-level OR can never form a key condition: the store has
// no way to locate items from a disjunction.
func (j *Join) KeyCondition() (expression.KeyConditionBuilder, error) {
	var zero expression.KeyConditionBuilder
	if j.Op == JoinOr {
		return zero, NewExpressionError("OR conditions cannot form a key condition")
	}
	var out expression.KeyConditionBuilder
	for i, child := range j.Children {
		kc, err := child.KeyCondition()
		if err != nil {
			return zero, err
		}
		if i == 0 {
			out = kc
		} else {
			out = out.And(kc)
		}
	}
	return out, nil
}

// FilterCondition renders the join by folding its children, preserving
// child order.
func (j *Join) FilterCondition() (expression.ConditionBuilder, error) {
	var zero expression.ConditionBuilder
	var out expression.ConditionBuilder
	for i, child := range j.Children {
		fc, err := child.FilterCondition()
		if err != nil {
			return zero, err
		}
		if i == 0 {
			out = fc
			continue
		}
		if j.Op == JoinAnd {
			out = out.And(fc)
		} else {
			out = out.Or(fc)
		}
	}
	return out, nil
}

package dynaq

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"dynaq/expr"
)

// Strict selects which key attributes must be equality-compared when
// classifying a condition. The dispatcher classifies loosely (StrictNone)
// to discover what key information exists, and strictly (StrictBoth with
// allRequired) when resolving a single definite item. StrictPartition is
// the query shape: the partition key must be pinned while the sort key may
// range-match.
type Strict int

const (
	StrictNone Strict = iota
	StrictPartition
	StrictSort
	StrictBoth
)

func (s Strict) covers(partition bool) bool {
	switch s {
	case StrictBoth:
		return true
	case StrictPartition:
		return partition
	case StrictSort:
		return !partition
	default:
		return false
	}
}

// extractKeyConditions separates the key-bearing comparisons of a condition
// from its filter parts. Only comparisons that sit directly in the
// condition, or directly inside a single top-level AND, are eligible; a
// comparison under an OR can never locate items. Returns nil when the
// condition carries no key information at all.
func (t *Table) extractKeyConditions(cond expr.Condition, strict Strict, allRequired bool) ([]*expr.Comparison, error) {
	if cond == nil {
		return nil, nil
	}

	var eligible []*expr.Comparison
	switch c := cond.(type) {
	case *expr.Comparison:
		if t.isKeyComparison(c) {
			eligible = append(eligible, c)
		}
	case *expr.Join:
		if c.Op == expr.JoinAnd {
			for _, child := range c.Children {
				if cmp, ok := child.(*expr.Comparison); ok && t.isKeyComparison(cmp) {
					eligible = append(eligible, cmp)
				}
			}
		}
	}

	pk := t.partitionKeyName()
	sk := t.sortKeyName()

	// key attributes may appear at most once
	seen := map[string]bool{}
	for _, c := range eligible {
		if seen[c.Attr.Name] {
			return nil, expr.NewExpressionError("cannot repeat key attribute %q in %s", c.Attr.Name, cond)
		}
		seen[c.Attr.Name] = true
	}

	for _, c := range eligible {
		if strict.covers(c.Attr.Name == pk) && c.Op != expr.OpEq {
			kind := "sort"
			if c.Attr.Name == pk {
				kind = "partition"
			}
			return nil, expr.NewExpressionError("an equality comparison is required for the %s key %q in %s", kind, c.Attr.Name, cond)
		}
	}

	if allRequired && len(eligible) != t.def.KeyDefinitions.Size() {
		if t.hasSortKey() {
			return nil, expr.NewExpressionError("conditions on both partition key %q and sort key %q must be specified, joined with And", pk, sk)
		}
		return nil, expr.NewExpressionError("a condition on partition key %q must be specified", pk)
	}

	if len(eligible) == 0 {
		return nil, nil
	}

	// a sort-key condition alone cannot locate a partition
	if len(eligible) == 1 && eligible[0].Attr.Name == sk {
		return nil, expr.NewExpressionError("sort key %q cannot be used without partition key %q", sk, pk)
	}

	return eligible, nil
}

func (t *Table) isKeyComparison(c *expr.Comparison) bool {
	name := c.Attr.Name
	return name == t.partitionKeyName() || (t.hasSortKey() && name == t.sortKeyName())
}

// keyMap resolves a condition to an exact primary key. Every key attribute
// must be equality-bound, composite keys require both halves joined with
// And.
func (t *Table) keyMap(cond expr.Condition) (Item, error) {
	comps, err := t.extractKeyConditions(cond, StrictBoth, true)
	if err != nil {
		return nil, err
	}
	key := make(Item, len(comps))
	for _, c := range comps {
		av, err := c.Attr.Encode(c.Values[0])
		if err != nil {
			return nil, err
		}
		key[c.Attr.Name] = av
	}
	return key, nil
}

// filterCondition renders the non-key parts of a condition as a native
// filter predicate. Returns ok=false when nothing is left to filter on.
func (t *Table) filterCondition(cond expr.Condition) (expression.ConditionBuilder, bool, error) {
	var zero expression.ConditionBuilder
	if cond == nil {
		return zero, false, nil
	}

	switch c := cond.(type) {
	case *expr.Comparison:
		if t.isKeyComparison(c) {
			return zero, false, nil
		}
		fc, err := c.FilterCondition()
		if err != nil {
			return zero, false, err
		}
		return fc, true, nil

	case *expr.Join:
		if c.Op == expr.JoinOr {
			fc, err := c.FilterCondition()
			if err != nil {
				return zero, false, err
			}
			return fc, true, nil
		}
		// omit key comparisons from a top-level AND
		var rest []expr.Condition
		for _, child := range c.Children {
			if cmp, ok := child.(*expr.Comparison); ok && t.isKeyComparison(cmp) {
				continue
			}
			rest = append(rest, child)
		}
		if len(rest) == 0 {
			return zero, false, nil
		}
		remainder := &expr.Join{Op: expr.JoinAnd, Children: rest}
		fc, err := remainder.FilterCondition()
		if err != nil {
			return zero, false, err
		}
		return fc, true, nil
	}

	return zero, false, expr.NewExpressionError("unsupported condition %s", cond)
}

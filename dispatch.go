package dynaq

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"dynaq/expr"
)

type queryOptions struct {
	limit                int
	descending           bool
	eventuallyConsistent bool
}

// Option adjusts how a read operation executes.
type Option func(*queryOptions)

// Limit caps the total number of items an operation yields.
func Limit(n int) Option {
	return func(o *queryOptions) { o.limit = n }
}

// Descending reverses the sort-key order of a query. Ignored by batch gets
// and scans, which have no inherent order.
func Descending() Option {
	return func(o *queryOptions) { o.descending = true }
}

// EventuallyConsistent allows stale reads in exchange for half the read
// cost. Reads are strongly consistent by default.
func EventuallyConsistent() Option {
	return func(o *queryOptions) { o.eventuallyConsistent = true }
}

func applyOptions(opts []Option) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GetOne retrieves exactly one item by its primary key. The strategy must
// pin every key attribute; a [Where] strategy must bind all key attributes
// with equality and carry nothing else. Returns a nil item when the key
// does not exist.
func (t *Table) GetOne(ctx context.Context, s Strategy, opts ...Option) (Item, error) {
	o := applyOptions(opts)

	key, cond, err := t.resolveKey(s)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		if _, ok, err := t.filterCondition(cond); err != nil {
			return nil, err
		} else if ok {
			return nil, expr.NewValidationError("condition %s carries non-key comparisons, use GetMany", cond)
		}
	}

	out, err := t.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &t.def.Name,
		Key:            key,
		ConsistentRead: ptr(!o.eventuallyConsistent),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	return out.Item, nil
}

// GetMany retrieves all items matched by the strategy, choosing the
// cheapest correct operation:
//
//   - a [KeyList] or point strategy turns into a batch get
//   - a [Where] condition that pins the partition key with equality turns
//     into a key-condition query, with the non-key remainder as a filter
//   - an IN comparison on the partition key of a simple-key table turns
//     into a batch get over the listed values
//   - everything else falls back to a filtered scan
func (t *Table) GetMany(ctx context.Context, s Strategy, opts ...Option) (*Iter, error) {
	o := applyOptions(opts)

	switch v := s.(type) {
	case keyListStrategy:
		keys := make([]Item, 0, len(v.keys))
		for _, ks := range v.keys {
			key, cond, err := t.resolveKey(ks)
			if err != nil {
				return nil, err
			}
			if cond != nil {
				if _, ok, err := t.filterCondition(cond); err != nil {
					return nil, err
				} else if ok {
					return nil, expr.NewValidationError("condition %s carries non-key comparisons and cannot appear in a key list", cond)
				}
			}
			keys = append(keys, key)
		}
		return t.newBatchIter(keys, o), nil

	case conditionStrategy:
		return t.dispatchCondition(v.cond, o)

	default:
		key, _, err := t.resolveKey(s)
		if err != nil {
			return nil, err
		}
		return t.newBatchIter([]Item{key}, o), nil
	}
}

// dispatchCondition classifies a condition and picks the operation.
func (t *Table) dispatchCondition(cond expr.Condition, o queryOptions) (*Iter, error) {
	comps, err := t.extractKeyConditions(cond, StrictNone, false)
	if err != nil {
		return nil, err
	}

	// no key information at all, scan with the whole condition as a filter
	if len(comps) == 0 {
		fc, err := cond.FilterCondition()
		if err != nil {
			return nil, err
		}
		return t.newScanIter(fc, true, o)
	}

	// an IN on the partition key of a simple-key table enumerates point
	// lookups, as long as nothing else needs filtering
	if len(comps) == 1 && comps[0].Op == expr.OpIn &&
		comps[0].Attr.Name == t.partitionKeyName() && !t.hasSortKey() {
		if _, hasFilter, err := t.filterCondition(cond); err != nil {
			return nil, err
		} else if !hasFilter {
			values, err := comps[0].InValues()
			if err != nil {
				return nil, err
			}
			keys := make([]Item, 0, len(values))
			for _, val := range values {
				av, err := comps[0].Attr.Encode(val)
				if err != nil {
					return nil, err
				}
				keys = append(keys, Item{comps[0].Attr.Name: av})
			}
			return t.newBatchIter(keys, o), nil
		}
	}

	keyCond, ok, err := t.buildKeyCondition(comps)
	if err != nil {
		return nil, err
	}
	if !ok {
		// key attributes compared with operators a query cannot serve
		fc, err := cond.FilterCondition()
		if err != nil {
			return nil, err
		}
		return t.newScanIter(fc, true, o)
	}

	filter, hasFilter, err := t.filterCondition(cond)
	if err != nil {
		return nil, err
	}
	return t.newQueryIter(keyCond, filter, hasFilter, o)
}

// buildKeyCondition renders eligible key comparisons as a native key
// condition. Returns ok=false when the shape is not queryable, such as a
// partition key that is not equality-bound or an operator the key grammar
// does not support.
func (t *Table) buildKeyCondition(comps []*expr.Comparison) (expression.KeyConditionBuilder, bool, error) {
	var zero expression.KeyConditionBuilder

	var pkComp, skComp *expr.Comparison
	for _, c := range comps {
		if c.Attr.Name == t.partitionKeyName() {
			pkComp = c
		} else {
			skComp = c
		}
	}
	if pkComp == nil || pkComp.Op != expr.OpEq {
		return zero, false, nil
	}

	keyCond, err := pkComp.KeyCondition()
	if err != nil {
		return zero, false, err
	}
	if skComp != nil {
		skCond, err := skComp.KeyCondition()
		if err != nil {
			if errors.Is(err, expr.ErrKeyInCondition) {
				return zero, false, nil
			}
			var ee *expr.ExpressionError
			if errors.As(err, &ee) {
				return zero, false, nil
			}
			return zero, false, err
		}
		keyCond = expression.KeyAnd(keyCond, skCond)
	}
	return keyCond, true, nil
}

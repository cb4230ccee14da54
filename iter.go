package dynaq

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Iter is a lazy, finite sequence of raw items produced by one dispatched
// operation. Continuation calls and the batch retry policy happen behind
// Next. An Iter is single-use: create a new one to iterate again.
type Iter struct {
	fetch func(ctx context.Context) ([]Item, bool, error)

	buf         []Item
	done        bool
	unprocessed []Item
}

// Next returns the next item. The second return is false once the sequence
// is exhausted.
func (it *Iter) Next(ctx context.Context) (Item, bool, error) {
	for len(it.buf) == 0 {
		if it.done {
			return nil, false, nil
		}
		page, done, err := it.fetch(ctx)
		if err != nil {
			it.done = true
			return nil, false, err
		}
		it.buf = page
		it.done = done
	}
	item := it.buf[0]
	it.buf = it.buf[1:]
	return item, true, nil
}

// All drains the iterator.
func (it *Iter) All(ctx context.Context) ([]Item, error) {
	var items []Item
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// Unprocessed returns the keys of a batch retrieval that were never
// yielded: keys the store kept reporting as unprocessed until retries ran
// out, plus items a caller limit cut off. Empty for query and scan
// iterators and for batches that completed.
func (it *Iter) Unprocessed() []Item {
	return it.unprocessed
}

// newBatchIter retrieves point lookups with BatchGetItem, feeding
// unprocessed keys back in. After a round trip with zero items, one more
// round is attempted only if the round before it returned something; two
// empty rounds in a row stop the iteration so a permanently empty remainder
// cannot livelock.
func (t *Table) newBatchIter(keys []Item, opts queryOptions) *Iter {
	it := &Iter{}
	remaining := keys
	retryOnEmpty := true
	var total int
	it.fetch = func(ctx context.Context) ([]Item, bool, error) {
		if len(remaining) == 0 {
			return nil, true, nil
		}
		out, err := t.ddb.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				t.def.Name: {
					Keys:           remaining,
					ConsistentRead: ptr(!opts.eventuallyConsistent),
				},
			},
		})
		if err != nil {
			return nil, false, fmt.Errorf("batch get failed: %w", err)
		}
		items := out.Responses[t.def.Name]
		if unp, ok := out.UnprocessedKeys[t.def.Name]; ok {
			remaining = unp.Keys
		} else {
			remaining = nil
		}

		if opts.limit > 0 && total+len(items) >= opts.limit {
			cut := opts.limit - total
			leftover := items[cut:]
			items = items[:cut]
			// retrieved but never yielded, so their keys count as unresolved
			unp := make([]Item, 0, len(leftover)+len(remaining))
			for _, item := range leftover {
				pk, err := t.def.ExtractPrimaryKey(item)
				if err != nil {
					return nil, false, fmt.Errorf("retrieved item has no valid key: %w", err)
				}
				key, err := pk.DDB()
				if err != nil {
					return nil, false, err
				}
				unp = append(unp, key)
			}
			it.unprocessed = append(unp, remaining...)
			return items, true, nil
		}
		total += len(items)

		if len(items) > 0 {
			retryOnEmpty = true
		} else if retryOnEmpty {
			retryOnEmpty = false
		} else {
			it.unprocessed = remaining
			return nil, true, nil
		}
		return items, len(remaining) == 0, nil
	}
	return it
}

// newQueryIter pages through a key-condition query. A caller limit stops
// the iteration mid-round without a continuation call; otherwise the limit
// is decremented by items already yielded before each round.
func (t *Table) newQueryIter(keyCond expression.KeyConditionBuilder, filter expression.ConditionBuilder, hasFilter bool, opts queryOptions) (*Iter, error) {
	b := expression.NewBuilder().WithKeyCondition(keyCond)
	if hasFilter {
		b = b.WithFilter(filter)
	}
	e, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	it := &Iter{}
	var cursor map[string]types.AttributeValue
	var total int
	it.fetch = func(ctx context.Context) ([]Item, bool, error) {
		input := &dynamodb.QueryInput{
			TableName:                 &t.def.Name,
			KeyConditionExpression:    e.KeyCondition(),
			FilterExpression:          e.Filter(),
			ExpressionAttributeNames:  e.Names(),
			ExpressionAttributeValues: e.Values(),
			ConsistentRead:            ptr(!opts.eventuallyConsistent),
			ScanIndexForward:          ptr(!opts.descending),
			ExclusiveStartKey:         cursor,
		}
		if opts.limit > 0 {
			input.Limit = ptr(int32(opts.limit - total))
		}
		out, err := t.ddb.Query(ctx, input)
		if err != nil {
			return nil, false, fmt.Errorf("query failed: %w", err)
		}
		items := out.Items
		if opts.limit > 0 && total+len(items) >= opts.limit {
			items = items[:opts.limit-total]
			return items, true, nil
		}
		total += len(items)
		cursor = out.LastEvaluatedKey
		return items, cursor == nil, nil
	}
	return it, nil
}

// newScanIter pages through a full scan with the whole condition applied as
// a filter.
func (t *Table) newScanIter(filter expression.ConditionBuilder, hasFilter bool, opts queryOptions) (*Iter, error) {
	var e expression.Expression
	if hasFilter {
		var err error
		e, err = expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build scan expression: %w", err)
		}
	}

	it := &Iter{}
	var cursor map[string]types.AttributeValue
	var total int
	it.fetch = func(ctx context.Context) ([]Item, bool, error) {
		input := &dynamodb.ScanInput{
			TableName:                 &t.def.Name,
			FilterExpression:          e.Filter(),
			ExpressionAttributeNames:  e.Names(),
			ExpressionAttributeValues: e.Values(),
			ConsistentRead:            ptr(!opts.eventuallyConsistent),
			ExclusiveStartKey:         cursor,
		}
		if opts.limit > 0 {
			input.Limit = ptr(int32(opts.limit - total))
		}
		out, err := t.ddb.Scan(ctx, input)
		if err != nil {
			return nil, false, fmt.Errorf("scan failed: %w", err)
		}
		items := out.Items
		if opts.limit > 0 && total+len(items) >= opts.limit {
			items = items[:opts.limit-total]
			return items, true, nil
		}
		total += len(items)
		cursor = out.LastEvaluatedKey
		return items, cursor == nil, nil
	}
	return it, nil
}

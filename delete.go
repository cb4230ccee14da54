package dynaq

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DeleteOne removes a single item and returns it as it was stored, or nil
// when no such item existed. A [Where] strategy's non-key comparisons act
// as a guard: when the stored item does not satisfy them the delete fails
// with [ErrConditionNotMet].
func (t *Table) DeleteOne(ctx context.Context, s Strategy) (Item, error) {
	key, cond, err := t.resolveKey(s)
	if err != nil {
		return nil, err
	}

	conds, err := t.guards(writeOptions{}, cond)
	if err != nil {
		return nil, err
	}
	e, guarded, err := buildGuard(conds)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.DeleteItemInput{
		TableName:    &t.def.Name,
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	}
	if guarded {
		input.ConditionExpression = e.Condition()
		input.ExpressionAttributeNames = e.Names()
		input.ExpressionAttributeValues = e.Values()
	}
	out, err := t.ddb.DeleteItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrConditionNotMet
		}
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	if out.Attributes == nil {
		return nil, nil
	}
	return out.Attributes, nil
}

// DeleteMany removes every item the strategy matches. Key lists and point
// strategies delete directly; a [Where] strategy first retrieves the
// matching items, then deletes them by key. Entries inside a key list that
// carry their own guard go through [DeleteOne] so each guard is evaluated
// per item, with failures collected on [BatchResult.Failed] rather than
// aborting the rest. Succeeded holds the deleted items, or their bare keys
// when no retrieval happened.
func (t *Table) DeleteMany(ctx context.Context, s Strategy) (BatchResult, error) {
	var res BatchResult

	if v, ok := s.(conditionStrategy); ok {
		it, err := t.dispatchCondition(v.cond, queryOptions{})
		if err != nil {
			return res, err
		}
		items, err := it.All(ctx)
		if err != nil {
			return res, err
		}
		reqs := make([]types.WriteRequest, 0, len(items))
		for _, item := range items {
			pk, err := t.def.ExtractPrimaryKey(item)
			if err != nil {
				return res, fmt.Errorf("matched item has no valid key: %w", err)
			}
			key, err := pk.DDB()
			if err != nil {
				return res, err
			}
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
		}
		if err := t.batchWrite(ctx, reqs); err != nil {
			return res, err
		}
		res.Succeeded = items
		return res, nil
	}

	strategies := []Strategy{s}
	if v, ok := s.(keyListStrategy); ok {
		strategies = v.keys
	}
	var keys []Item
	for _, ks := range strategies {
		key, cond, err := t.resolveKey(ks)
		if err != nil {
			return res, err
		}
		guarded := false
		if cond != nil {
			if _, ok, err := t.filterCondition(cond); err != nil {
				return res, err
			} else if ok {
				guarded = true
			}
		}
		if !guarded {
			keys = append(keys, key)
			continue
		}
		deleted, err := t.DeleteOne(ctx, ks)
		if err != nil {
			if errors.Is(err, ErrConditionNotMet) {
				res.Failed = append(res.Failed, ks)
				continue
			}
			return res, err
		}
		if deleted == nil {
			deleted = key
		}
		res.Succeeded = append(res.Succeeded, deleted)
	}

	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
	}
	if err := t.batchWrite(ctx, reqs); err != nil {
		return res, err
	}
	res.Succeeded = append(res.Succeeded, keys...)
	return res, nil
}

package dynaq

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"dynaq/expr"
)

type writeOptions struct {
	noOverwrite bool
	guard       expr.Condition
}

// WriteOption adjusts how a save executes.
type WriteOption func(*writeOptions)

// NoOverwrite makes the save fail with [ErrConditionNotMet] when an item
// with the same primary key already exists.
func NoOverwrite() WriteOption {
	return func(o *writeOptions) { o.noOverwrite = true }
}

// SaveIf guards the save with a condition evaluated against the stored
// item. A failed guard surfaces as [ErrConditionNotMet].
func SaveIf(cond expr.Condition) WriteOption {
	return func(o *writeOptions) { o.guard = cond }
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// guards renders the option's guard conditions, if any.
func (t *Table) guards(o writeOptions, extra expr.Condition) ([]expression.ConditionBuilder, error) {
	var conds []expression.ConditionBuilder
	if o.noOverwrite {
		conds = append(conds, expression.AttributeNotExists(expression.Name(t.partitionKeyName())))
	}
	for _, c := range []expr.Condition{o.guard, extra} {
		if c == nil {
			continue
		}
		fc, ok, err := t.filterCondition(c)
		if err != nil {
			return nil, err
		}
		if ok {
			conds = append(conds, fc)
		}
	}
	return conds, nil
}

// buildGuard folds guard conditions into one built condition expression.
// ok=false means the write is unguarded.
func buildGuard(conds []expression.ConditionBuilder) (expression.Expression, bool, error) {
	if len(conds) == 0 {
		return expression.Expression{}, false, nil
	}
	g := conds[0]
	for _, c := range conds[1:] {
		g = g.And(c)
	}
	e, err := expression.NewBuilder().WithCondition(g).Build()
	if err != nil {
		return expression.Expression{}, false, fmt.Errorf("failed to build guard expression: %w", err)
	}
	return e, true, nil
}

// marshalRecord turns a caller value into a raw item. Raw items pass
// through untouched.
func marshalRecord(rec any) (Item, error) {
	if item, ok := rec.(Item); ok {
		return item, nil
	}
	if item, ok := rec.(map[string]types.AttributeValue); ok {
		return item, nil
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, expr.NewValidationError("failed to marshal record: %v", err)
	}
	return item, nil
}

// SaveOne writes a full item, replacing any existing item with the same
// primary key unless [NoOverwrite] or [SaveIf] guard it. Returns the item
// as written.
func (t *Table) SaveOne(ctx context.Context, rec any, opts ...WriteOption) (Item, error) {
	o := applyWriteOptions(opts)

	item, err := marshalRecord(rec)
	if err != nil {
		return nil, err
	}
	if _, err := t.def.ExtractPrimaryKey(item); err != nil {
		return nil, expr.NewValidationError("record is missing key attributes: %v", err)
	}

	conds, err := t.guards(o, nil)
	if err != nil {
		return nil, err
	}
	e, guarded, err := buildGuard(conds)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.PutItemInput{
		TableName: &t.def.Name,
		Item:      item,
	}
	if guarded {
		input.ConditionExpression = e.Condition()
		input.ExpressionAttributeNames = e.Names()
		input.ExpressionAttributeValues = e.Values()
	}
	if _, err := t.ddb.PutItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrConditionNotMet
		}
		return nil, fmt.Errorf("put failed: %w", err)
	}
	return item, nil
}

// SaveMany writes the given records. Unguarded saves go through batched
// writes; guarded saves are written one by one so each guard is evaluated
// per item, with guard failures collected on [BatchResult.Failed] rather
// than aborting the rest.
func (t *Table) SaveMany(ctx context.Context, recs []any, opts ...WriteOption) (BatchResult, error) {
	o := applyWriteOptions(opts)

	var res BatchResult
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		item, err := marshalRecord(rec)
		if err != nil {
			return res, err
		}
		if _, err := t.def.ExtractPrimaryKey(item); err != nil {
			return res, expr.NewValidationError("record is missing key attributes: %v", err)
		}
		items = append(items, item)
	}

	if !o.noOverwrite && o.guard == nil {
		reqs := make([]types.WriteRequest, 0, len(items))
		for _, item := range items {
			reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}
		if err := t.batchWrite(ctx, reqs); err != nil {
			return res, err
		}
		res.Succeeded = items
		return res, nil
	}

	for i, item := range items {
		saved, err := t.SaveOne(ctx, item, opts...)
		if err != nil {
			if errors.Is(err, ErrConditionNotMet) {
				res.Failed = append(res.Failed, recs[i])
				continue
			}
			return res, err
		}
		res.Succeeded = append(res.Succeeded, saved)
	}
	return res, nil
}

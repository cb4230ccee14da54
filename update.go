package dynaq

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"dynaq/expr"
)

// UpdateOne applies the given updates to one existing item and returns the
// item as stored afterwards. The update never creates an item: a guard on
// the partition key makes a missing item fail with [ErrConditionNotMet].
// A [Where] strategy's non-key comparisons join that guard.
func (t *Table) UpdateOne(ctx context.Context, s Strategy, updates ...expr.Update) (Item, error) {
	key, cond, err := t.resolveKey(s)
	if err != nil {
		return nil, err
	}

	for _, u := range updates {
		if u.Target().IsKey() {
			return nil, expr.NewValidationError("cannot update key attribute %q", u.Target().Name)
		}
	}

	compiled, err := expr.Compile(updates...)
	if err != nil {
		return nil, err
	}
	if compiled.Empty() {
		return nil, expr.NewValidationError("updates produced no effective change")
	}

	conds := []expression.ConditionBuilder{
		expression.AttributeExists(expression.Name(t.partitionKeyName())),
	}
	extra, err := t.guards(writeOptions{}, cond)
	if err != nil {
		return nil, err
	}
	conds = append(conds, extra...)
	e, _, err := buildGuard(conds)
	if err != nil {
		return nil, err
	}

	// guard values use ":N" placeholders and compiled values ":vN", so the
	// two tables never collide
	values := make(map[string]types.AttributeValue, len(compiled.Values)+len(e.Values()))
	for ph, av := range e.Values() {
		values[ph] = av
	}
	for ph, av := range compiled.Values {
		values[ph] = av
	}

	out, err := t.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &t.def.Name,
		Key:                       key,
		UpdateExpression:          &compiled.Expression,
		ConditionExpression:       e.Condition(),
		ExpressionAttributeNames:  e.Names(),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrConditionNotMet
		}
		return nil, fmt.Errorf("update failed: %w", err)
	}
	return out.Attributes, nil
}

// UpdateFromMap sets every non-key field of the given document on the
// item, in deterministic field order. Key attributes in the document are
// ignored; they only identify the item through the strategy.
func (t *Table) UpdateFromMap(ctx context.Context, s Strategy, doc map[string]any) (Item, error) {
	names := make([]string, 0, len(doc))
	for name := range doc {
		if name == t.partitionKeyName() || (t.hasSortKey() && name == t.sortKeyName()) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	updates := make([]expr.Update, 0, len(names))
	for _, name := range names {
		updates = append(updates, expr.String(name).Set(doc[name]))
	}
	return t.UpdateOne(ctx, s, updates...)
}

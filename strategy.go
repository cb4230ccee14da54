package dynaq

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"dynaq/expr"
	"dynaq/table"
)

// Strategy identifies the item(s) an operation should act on. One variant
// per accepted shape; the dispatcher resolves them with a single exhaustive
// switch.
type Strategy interface {
	isStrategy()
}

type keyStrategy struct {
	hash any
}

type compositeKeyStrategy struct {
	hash any
	sort any
}

type keyMapStrategy struct {
	keys map[string]any
}

type recordStrategy struct {
	rec any
}

type keyListStrategy struct {
	keys []Strategy
}

type conditionStrategy struct {
	cond expr.Condition
}

func (keyStrategy) isStrategy()          {}
func (compositeKeyStrategy) isStrategy() {}
func (keyMapStrategy) isStrategy()       {}
func (recordStrategy) isStrategy()       {}
func (keyListStrategy) isStrategy()      {}
func (conditionStrategy) isStrategy()    {}

// Key selects an item by its partition key value. Only valid for tables
// without a sort key.
func Key(hash any) Strategy {
	return keyStrategy{hash: hash}
}

// CompositeKey selects an item by its (partition, sort) key pair.
func CompositeKey(hash, sort any) Strategy {
	return compositeKeyStrategy{hash: hash, sort: sort}
}

// KeyMap selects an item by a map containing the primary key attributes.
func KeyMap(keys map[string]any) Strategy {
	return keyMapStrategy{keys: keys}
}

// Record selects an item by a typed record carrying its own key attributes.
func Record(rec any) Strategy {
	return recordStrategy{rec: rec}
}

// KeyList selects multiple items by their individual point strategies.
func KeyList(keys ...Strategy) Strategy {
	return keyListStrategy{keys: keys}
}

// Where selects items matching a condition.
func Where(cond expr.Condition) Strategy {
	return conditionStrategy{cond: cond}
}

// resolveKey turns a point strategy into a native key map. For condition
// strategies the leftover non-key condition is returned alongside so the
// caller can attach it as a write guard.
func (t *Table) resolveKey(s Strategy) (Item, expr.Condition, error) {
	def := t.def.KeyDefinitions
	switch v := s.(type) {
	case conditionStrategy:
		key, err := t.keyMap(v.cond)
		if err != nil {
			return nil, nil, err
		}
		return key, v.cond, nil

	case keyStrategy:
		if t.hasSortKey() {
			return nil, nil, expr.NewValidationError("table %q has a composite primary key, use CompositeKey", t.def.Name)
		}
		pk := table.PrimaryKey{
			Definition: def,
			Values:     table.PrimaryKeyValues{PartitionKey: v.hash},
		}
		key, err := pk.DDB()
		if err != nil {
			return nil, nil, expr.NewValidationError("invalid key: %v", err)
		}
		return key, nil, nil

	case compositeKeyStrategy:
		if !t.hasSortKey() {
			return nil, nil, expr.NewValidationError("table %q has no sort key, use Key", t.def.Name)
		}
		pk := table.PrimaryKey{
			Definition: def,
			Values:     table.PrimaryKeyValues{PartitionKey: v.hash, SortKey: v.sort},
		}
		key, err := pk.DDB()
		if err != nil {
			return nil, nil, expr.NewValidationError("invalid key: %v", err)
		}
		return key, nil, nil

	case keyMapStrategy:
		doc := make(Item, len(v.keys))
		for name, val := range v.keys {
			av, err := attributevalue.Marshal(val)
			if err != nil {
				return nil, nil, &expr.EncodingError{Attr: name, Cause: err}
			}
			doc[name] = av
		}
		return t.keyFromDocument(doc)

	case recordStrategy:
		doc, err := attributevalue.MarshalMap(v.rec)
		if err != nil {
			return nil, nil, expr.NewValidationError("failed to marshal record: %v", err)
		}
		return t.keyFromDocument(doc)

	default:
		return nil, nil, expr.NewValidationError("strategy %T cannot identify a single item", s)
	}
}

func (t *Table) keyFromDocument(doc Item) (Item, expr.Condition, error) {
	pk, err := t.def.ExtractPrimaryKey(doc)
	if err != nil {
		return nil, nil, expr.NewValidationError("invalid key: %v", err)
	}
	key, err := pk.DDB()
	if err != nil {
		return nil, nil, expr.NewValidationError("invalid key: %v", err)
	}
	return key, nil, nil
}

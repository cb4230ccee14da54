package expr

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"dynaq/table"
)

// Attr identifies a schema attribute by name and carries the metadata the
// engine needs: its primitive kind, whether it is part of the primary key,
// and whether a value is required on writes.
//
// Condition and update builders hang off Attr so callers can write
//
//	userID.Eq("u1").And(email.BeginsWith("a"))
//	expr.Compile(name.Set("X"), tag.Remove())
type Attr struct {
	Name         string
	Kind         table.KeyKind
	PartitionKey bool
	SortKey      bool
	Required     bool
}

// String declares a string attribute.
func String(name string) Attr {
	return Attr{Name: name, Kind: table.KeyKindS}
}

// Number declares a numeric attribute.
func Number(name string) Attr {
	return Attr{Name: name, Kind: table.KeyKindN}
}

// Binary declares a binary attribute.
func Binary(name string) Attr {
	return Attr{Name: name, Kind: table.KeyKindB}
}

// AsPartitionKey marks the attribute as the table's partition key.
// Key attributes are always required.
func (a Attr) AsPartitionKey() Attr {
	if a.SortKey {
		panic("attribute " + a.Name + " cannot be both partition key and sort key")
	}
	a.PartitionKey = true
	a.Required = true
	return a
}

// AsSortKey marks the attribute as the table's sort key.
func (a Attr) AsSortKey() Attr {
	if a.PartitionKey {
		panic("attribute " + a.Name + " cannot be both partition key and sort key")
	}
	a.SortKey = true
	a.Required = true
	return a
}

// AsRequired marks the attribute as mandatory on writes.
func (a Attr) AsRequired() Attr {
	a.Required = true
	return a
}

// IsKey reports whether the attribute is part of the primary key.
func (a Attr) IsKey() bool {
	return a.PartitionKey || a.SortKey
}

// KeyDef converts the attribute to a table key definition.
func (a Attr) KeyDef() table.KeyDef {
	return table.KeyDef{Name: a.Name, Kind: a.Kind}
}

// Encode converts a logical value to its DynamoDB primitive.
func (a Attr) Encode(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Attr: a.Name, Cause: err}
	}
	return av, nil
}

// Decode converts a DynamoDB primitive back to a logical value.
func (a Attr) Decode(av types.AttributeValue, out any) error {
	if err := attributevalue.Unmarshal(av, out); err != nil {
		return &EncodingError{Attr: a.Name, Cause: err}
	}
	return nil
}

// Comparison builders. Arity is fixed by each signature; NewComparison is
// the checked entry point for operators chosen at runtime.

func (a Attr) Eq(v any) Condition  { return mustComparison(a, OpEq, v) }
func (a Attr) Ne(v any) Condition  { return mustComparison(a, OpNe, v) }
func (a Attr) Lt(v any) Condition  { return mustComparison(a, OpLt, v) }
func (a Attr) Lte(v any) Condition { return mustComparison(a, OpLte, v) }
func (a Attr) Gt(v any) Condition  { return mustComparison(a, OpGt, v) }
func (a Attr) Gte(v any) Condition { return mustComparison(a, OpGte, v) }

// In matches any of the given values.
func (a Attr) In(values ...any) Condition {
	return mustComparison(a, OpIn, values)
}

// Contains matches items whose value contains the given substring or set
// element.
func (a Attr) Contains(v string) Condition {
	return mustComparison(a, OpContains, v)
}

// BeginsWith matches string values with the given prefix.
func (a Attr) BeginsWith(prefix string) Condition {
	return mustComparison(a, OpBeginsWith, prefix)
}

// Exists matches items that have the attribute.
func (a Attr) Exists() Condition {
	return mustComparison(a, OpExists)
}

// NotExists matches items that lack the attribute.
func (a Attr) NotExists() Condition {
	return mustComparison(a, OpNotExists)
}

// Between matches values in the inclusive range [lo, hi].
func (a Attr) Between(lo, hi any) Condition {
	return mustComparison(a, OpBetween, lo, hi)
}

// Update builders.

// Set assigns the attribute the given value. Setting an empty value removes
// the attribute instead.
func (a Attr) Set(v any) Update {
	return &SetUpdate{Attr: a, Value: v}
}

// SetIfNotExists assigns the value only when the attribute is absent.
func (a Attr) SetIfNotExists(v any) Update {
	return &SetUpdate{Attr: a, Value: v, IfNotExists: true}
}

// Remove deletes the attribute from the item.
func (a Attr) Remove() Update {
	return &RemoveUpdate{Attr: a}
}

// Increment adds one to the numeric attribute.
func (a Attr) Increment() Update {
	return Add(a, 1)
}

// Decrement subtracts one from the numeric attribute.
func (a Attr) Decrement() Update {
	return Subtract(a, 1)
}

// Append extends a list attribute with the given values at the end.
func (a Attr) Append(values ...any) Update {
	return &ListExtendUpdate{Attr: a, Values: values, Append: true}
}

// Prepend extends a list attribute with the given values at the front.
func (a Attr) Prepend(values ...any) Update {
	return &ListExtendUpdate{Attr: a, Values: values}
}

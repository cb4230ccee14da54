// Package dynaq is a client-side query and mutation layer for DynamoDB.
//
// Callers express intent through a typed condition and update algebra (see
// the expr package) and the engine translates it into the cheapest correct
// store operation: a point get, a batch get, a key-condition query, or a
// full scan. Pagination, batch backpressure, and conditional-write outcomes
// are handled behind a lazy result iterator.
package dynaq

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"dynaq/table"
)

// Table binds a table definition to a transport client. All reads and
// writes go through it. A Table holds no per-call state and is safe for
// concurrent use.
type Table struct {
	ddb DynamoClient
	def table.TableDefinition
}

// New creates a table handle. The definition's partition key must be set.
func New(ddb DynamoClient, def table.TableDefinition) *Table {
	if def.KeyDefinitions.PartitionKey.Name == "" {
		panic("table definition " + def.Name + " has no partition key")
	}
	return &Table{ddb: ddb, def: def}
}

// Definition returns the bound table definition.
func (t *Table) Definition() table.TableDefinition {
	return t.def
}

func (t *Table) partitionKeyName() string {
	return t.def.KeyDefinitions.PartitionKey.Name
}

func (t *Table) sortKeyName() string {
	return t.def.KeyDefinitions.SortKey.Name
}

func (t *Table) hasSortKey() bool {
	return t.def.KeyDefinitions.HasSortKey()
}

// Unmarshal decodes a raw item into the caller's struct.
func Unmarshal(item Item, out any) error {
	return attributevalue.UnmarshalMap(item, out)
}

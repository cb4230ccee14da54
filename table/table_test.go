package table

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contactsDef = TableDefinition{
	Name: "user-contacts",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "user_id", Kind: KeyKindS},
		SortKey:      KeyDef{Name: "email", Kind: KeyKindS},
	},
}

var countersDef = TableDefinition{
	Name: "counters",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "counter_id", Kind: KeyKindS},
	},
}

func TestPrimaryKey_DDB(t *testing.T) {
	t.Run("composite key", func(t *testing.T) {
		pk := PrimaryKey{
			Definition: contactsDef.KeyDefinitions,
			Values:     PrimaryKeyValues{PartitionKey: "u1", SortKey: "a@x.io"},
		}
		key, err := pk.DDB()
		require.NoError(t, err)
		require.Len(t, key, 2)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, key["user_id"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "a@x.io"}, key["email"])
	})

	t.Run("simple key", func(t *testing.T) {
		pk := PrimaryKey{
			Definition: countersDef.KeyDefinitions,
			Values:     PrimaryKeyValues{PartitionKey: "c1"},
		}
		key, err := pk.DDB()
		require.NoError(t, err)
		require.Len(t, key, 1)
	})

	t.Run("missing sort key value", func(t *testing.T) {
		pk := PrimaryKey{
			Definition: contactsDef.KeyDefinitions,
			Values:     PrimaryKeyValues{PartitionKey: "u1"},
		}
		_, err := pk.DDB()
		require.Error(t, err)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		pk := PrimaryKey{
			Definition: countersDef.KeyDefinitions,
			Values:     PrimaryKeyValues{PartitionKey: 42},
		}
		_, err := pk.DDB()
		require.Error(t, err)
	})
}

func TestExtractPrimaryKey(t *testing.T) {
	t.Run("pulls both key halves", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: "u1"},
			"email":   &types.AttributeValueMemberS{Value: "a@x.io"},
			"name":    &types.AttributeValueMemberS{Value: "Alice"},
		}
		pk, err := contactsDef.ExtractPrimaryKey(doc)
		require.NoError(t, err)
		assert.Equal(t, "u1", pk.Values.PartitionKey)
		assert.Equal(t, "a@x.io", pk.Values.SortKey)
	})

	t.Run("missing partition key", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: "a@x.io"},
		}
		_, err := contactsDef.ExtractPrimaryKey(doc)
		require.Error(t, err)
	})

	t.Run("missing sort key", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: "u1"},
		}
		_, err := contactsDef.ExtractPrimaryKey(doc)
		require.Error(t, err)
	})

	t.Run("wrong kind", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"counter_id": &types.AttributeValueMemberN{Value: "1"},
		}
		_, err := countersDef.ExtractPrimaryKey(doc)
		require.Error(t, err)
	})
}

func TestLoadSchema(t *testing.T) {
	t.Run("loads composite and simple tables", func(t *testing.T) {
		doc := `
tables:
  - name: user-contacts
    partitionKey: {name: user_id, kind: S}
    sortKey: {name: email, kind: S}
  - name: counters
    partitionKey: {name: counter_id, kind: S}
`
		defs, err := Load(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, defs, 2)

		assert.Equal(t, "user-contacts", defs[0].Name)
		assert.True(t, defs[0].KeyDefinitions.HasSortKey())
		assert.Equal(t, 2, defs[0].KeyDefinitions.Size())

		assert.Equal(t, "counters", defs[1].Name)
		assert.False(t, defs[1].KeyDefinitions.HasSortKey())
		assert.Equal(t, 1, defs[1].KeyDefinitions.Size())
	})

	t.Run("rejects invalid key kind", func(t *testing.T) {
		doc := `
tables:
  - name: broken
    partitionKey: {name: id, kind: X}
`
		_, err := Load(strings.NewReader(doc))
		require.Error(t, err)
	})

	t.Run("rejects missing table name", func(t *testing.T) {
		doc := `
tables:
  - partitionKey: {name: id, kind: S}
`
		_, err := Load(strings.NewReader(doc))
		require.Error(t, err)
	})

	t.Run("rejects missing key name", func(t *testing.T) {
		doc := `
tables:
  - name: broken
    partitionKey: {kind: S}
`
		_, err := Load(strings.NewReader(doc))
		require.Error(t, err)
	})
}

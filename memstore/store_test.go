package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynaq/table"
)

var contactsDef = table.TableDefinition{
	Name: "contacts",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

var ratingsDef = table.TableDefinition{
	Name: "ratings",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "score", Kind: table.KeyKindN},
	},
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{}, contactsDef, ratingsDef)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strAV(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }
func numAV(n string) types.AttributeValue { return &types.AttributeValueMemberN{Value: n} }

func contactItem(pk, sk, name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":   strAV(pk),
		"sk":   strAV(sk),
		"name": strAV(name),
	}
}

func putContact(t *testing.T, s *Store, item map[string]types.AttributeValue) {
	t.Helper()
	_, err := s.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: &contactsDef.Name,
		Item:      item,
	})
	require.NoError(t, err)
}

func TestStore_PutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putContact(t, s, contactItem("u1", "a", "Alice"))

	key := map[string]types.AttributeValue{"pk": strAV("u1"), "sk": strAV("a")}
	got, err := s.GetItem(ctx, &dynamodb.GetItemInput{TableName: &contactsDef.Name, Key: key})
	require.NoError(t, err)
	require.NotNil(t, got.Item)
	assert.Equal(t, strAV("Alice"), got.Item["name"])

	del, err := s.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    &contactsDef.Name,
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	require.NoError(t, err)
	assert.Equal(t, strAV("Alice"), del.Attributes["name"])

	got, err = s.GetItem(ctx, &dynamodb.GetItemInput{TableName: &contactsDef.Name, Key: key})
	require.NoError(t, err)
	assert.Nil(t, got.Item)
}

func TestStore_PutCondition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putContact(t, s, contactItem("u1", "a", "Alice"))

	_, err := s.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &contactsDef.Name,
		Item:                contactItem("u1", "a", "Eve"),
		ConditionExpression: aws.String("attribute_not_exists (#0)"),
		ExpressionAttributeNames: map[string]string{
			"#0": "pk",
		},
	})
	require.Error(t, err)
	var ccf *types.ConditionalCheckFailedException
	require.True(t, errors.As(err, &ccf))

	// the guarded write left the stored item untouched
	got, err := s.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &contactsDef.Name,
		Key:       map[string]types.AttributeValue{"pk": strAV("u1"), "sk": strAV("a")},
	})
	require.NoError(t, err)
	assert.Equal(t, strAV("Alice"), got.Item["name"])
}

func TestStore_UpdateItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putContact(t, s, map[string]types.AttributeValue{
		"pk": strAV("u1"), "sk": strAV("a"),
		"name":  strAV("Alice"),
		"age":   numAV("30"),
		"extra": strAV("bye"),
	})

	out, err := s.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &contactsDef.Name,
		Key:              map[string]types.AttributeValue{"pk": strAV("u1"), "sk": strAV("a")},
		UpdateExpression: aws.String("SET name = :v1, nick = if_not_exists(nick, :v2) ADD age :v3 REMOVE extra"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v1": strAV("Alicia"),
			":v2": strAV("Al"),
			":v3": numAV("2"),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	require.NoError(t, err)
	assert.Equal(t, strAV("Alicia"), out.Attributes["name"])
	assert.Equal(t, strAV("Al"), out.Attributes["nick"])
	assert.Equal(t, numAV("32"), out.Attributes["age"])
	assert.NotContains(t, out.Attributes, "extra")
}

func TestStore_UpdateItem_ConditionBlocksCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &contactsDef.Name,
		Key:                 map[string]types.AttributeValue{"pk": strAV("ghost"), "sk": strAV("g")},
		UpdateExpression:    aws.String("SET name = :v1"),
		ConditionExpression: aws.String("attribute_exists (#0)"),
		ExpressionAttributeNames: map[string]string{
			"#0": "pk",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v1": strAV("X"),
		},
	})
	var ccf *types.ConditionalCheckFailedException
	require.True(t, errors.As(err, &ccf))

	got, err := s.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &contactsDef.Name,
		Key:       map[string]types.AttributeValue{"pk": strAV("ghost"), "sk": strAV("g")},
	})
	require.NoError(t, err)
	assert.Nil(t, got.Item)
}

func TestStore_UpdateItem_ListAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putContact(t, s, map[string]types.AttributeValue{
		"pk": strAV("u1"), "sk": strAV("a"),
		"log": &types.AttributeValueMemberL{Value: []types.AttributeValue{strAV("one")}},
	})

	out, err := s.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &contactsDef.Name,
		Key:              map[string]types.AttributeValue{"pk": strAV("u1"), "sk": strAV("a")},
		UpdateExpression: aws.String("SET log = list_append(log, :v1)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v1": &types.AttributeValueMemberL{Value: []types.AttributeValue{strAV("two")}},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	require.NoError(t, err)
	list, ok := out.Attributes["log"].(*types.AttributeValueMemberL)
	require.True(t, ok)
	require.Len(t, list.Value, 2)
	assert.Equal(t, strAV("one"), list.Value[0])
	assert.Equal(t, strAV("two"), list.Value[1])
}

func TestStore_BatchOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			contactsDef.Name: {
				{PutRequest: &types.PutRequest{Item: contactItem("u1", "a", "Alice")}},
				{PutRequest: &types.PutRequest{Item: contactItem("u2", "b", "Bob")}},
				{PutRequest: &types.PutRequest{Item: contactItem("u3", "c", "Carol")}},
			},
		},
	})
	require.NoError(t, err)

	got, err := s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			contactsDef.Name: {Keys: []map[string]types.AttributeValue{
				{"pk": strAV("u1"), "sk": strAV("a")},
				{"pk": strAV("u3"), "sk": strAV("c")},
				{"pk": strAV("u9"), "sk": strAV("z")},
			}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, got.Responses[contactsDef.Name], 2)
	assert.Empty(t, got.UnprocessedKeys)

	_, err = s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			contactsDef.Name: {
				{DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"pk": strAV("u1"), "sk": strAV("a"),
				}}},
			},
		},
	})
	require.NoError(t, err)

	item, err := s.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &contactsDef.Name,
		Key:       map[string]types.AttributeValue{"pk": strAV("u1"), "sk": strAV("a")},
	})
	require.NoError(t, err)
	assert.Nil(t, item.Item)
}

func TestStore_UnknownTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String("nope"),
		Key:       map[string]types.AttributeValue{"pk": strAV("u1")},
	})
	require.Error(t, err)
}

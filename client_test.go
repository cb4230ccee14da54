package dynaq

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"dynaq/expr"
	"dynaq/memstore"
	"dynaq/table"
)

// Shared fixtures: a composite-key users table and a hash-only counters
// table, with attribute handles used across the engine tests.

var (
	userID    = expr.String("user_id").AsPartitionKey()
	userEmail = expr.String("email").AsSortKey()
	userName  = expr.String("name")
	userAge   = expr.Number("age")
	userTags  = expr.String("tags")

	counterID  = expr.String("counter_id").AsPartitionKey()
	counterVal = expr.Number("value")
)

var usersTable = table.TableDefinition{
	Name: "users",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: userID.KeyDef(),
		SortKey:      userEmail.KeyDef(),
	},
}

var countersTable = table.TableDefinition{
	Name: "counters",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: counterID.KeyDef(),
	},
}

// newTestTable binds a table definition to a fresh in-memory store.
func newTestTable(t *testing.T, def table.TableDefinition) *Table {
	t.Helper()
	store, err := memstore.New(memstore.Options{}, usersTable, countersTable)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, def)
}

type user struct {
	UserID string `dynamodbav:"user_id"`
	Email  string `dynamodbav:"email"`
	Name   string `dynamodbav:"name,omitempty"`
	Age    int    `dynamodbav:"age,omitempty"`
	Tags   string `dynamodbav:"tags,omitempty"`
}

func seedUsers(t *testing.T, tbl *Table, users ...user) {
	t.Helper()
	ctx := context.Background()
	for _, u := range users {
		_, err := tbl.SaveOne(ctx, u)
		require.NoError(t, err)
	}
}

func stringAV(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numberAV(n string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: n}
}

// fakeClient scripts transport responses for tests that need precise
// control over pagination and unprocessed keys. Unset methods panic.
type fakeClient struct {
	getItem        func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	batchGetItem   func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	putItem        func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	deleteItem     func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	updateItem     func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	batchWriteItem func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	query          func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scan           func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
}

var _ DynamoClient = &fakeClient{}

func (f *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(params)
}

func (f *fakeClient) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return f.batchGetItem(params)
}

func (f *fakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(params)
}

func (f *fakeClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return f.deleteItem(params)
}

func (f *fakeClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(params)
}

func (f *fakeClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return f.batchWriteItem(params)
}

func (f *fakeClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(params)
}

func (f *fakeClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return f.scan(params)
}

func TestNew_RequiresPartitionKey(t *testing.T) {
	require.Panics(t, func() {
		New(&fakeClient{}, table.TableDefinition{Name: "broken"})
	})
}

func TestUnmarshal(t *testing.T) {
	tbl := newTestTable(t, usersTable)
	seedUsers(t, tbl, user{UserID: "u1", Email: "a@x.io", Name: "Alice"})

	item, err := tbl.GetOne(context.Background(), CompositeKey("u1", "a@x.io"))
	require.NoError(t, err)
	require.NotNil(t, item)

	var got user
	require.NoError(t, Unmarshal(item, &got))
	require.Equal(t, "Alice", got.Name)
}

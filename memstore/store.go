// Package memstore is an in-process DynamoDB stand-in backed by BadgerDB.
// It implements the subset of the DynamoDB API the engine dispatches to,
// including condition expressions, update expressions, and paginated
// queries, so engine behavior can be exercised without a live table.
package memstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"dynaq/table"
)

// Store is a DynamoDB-compatible store backed by BadgerDB.
type Store struct {
	db     *badger.DB
	tables map[string]*tableSchema
}

type tableSchema struct {
	definition table.TableDefinition
	enc        keyEncoder
}

// Options configures the BadgerDB store.
type Options struct {
	// Path to the database directory. Empty means in-memory mode.
	Path string
	// Logger for BadgerDB. Nil disables logging.
	Logger badger.Logger
}

// New opens a store holding the given table definitions.
func New(opts Options, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	tables := make(map[string]*tableSchema, len(defs))
	for _, def := range defs {
		tables[def.Name] = &tableSchema{definition: def, enc: keyEncoder{def: def}}
	}
	return &Store{db: db, tables: tables}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil {
		return nil, fmt.Errorf("table name is required")
	}
	t, ok := s.tables[*tableName]
	if !ok {
		return nil, fmt.Errorf("table not found: %s", *tableName)
	}
	return t, nil
}

func (t *tableSchema) badgerKey(item map[string]types.AttributeValue) ([]byte, error) {
	pk, err := t.definition.ExtractPrimaryKey(item)
	if err != nil {
		return nil, fmt.Errorf("extract primary key: %w", err)
	}
	return t.enc.encode(pk)
}

// loadItem reads and decodes one item inside a transaction. Missing items
// return nil with no error.
func loadItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	entry, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = entry.Value(func(val []byte) error {
		decoded, err := deserializeItem(val)
		if err != nil {
			return err
		}
		item = decoded
		return nil
	})
	return item, err
}

// checkCondition evaluates a guard against the stored item, which may be
// nil when the item does not exist.
func checkCondition(cond *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	if cond == nil {
		return nil
	}
	match, err := evalCondition(*cond, names, values, item)
	if err != nil {
		return err
	}
	if !match {
		return &types.ConditionalCheckFailedException{
			Message: aws.String("The conditional request failed"),
		}
	}
	return nil
}

// GetItem retrieves a single item by its primary key.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.badgerKey(params.Key)
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = loadItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// PutItem stores a full item, optionally guarded by a condition on the
// current stored state.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.badgerKey(params.Item)
	if err != nil {
		return nil, err
	}

	out := &dynamodb.PutItemOutput{}
	err = s.db.Update(func(txn *badger.Txn) error {
		existing, err := loadItem(txn, key)
		if err != nil {
			return err
		}
		if err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
			return err
		}
		if params.ReturnValues == types.ReturnValueAllOld {
			out.Attributes = existing
		}
		data, err := serializeItem(params.Item)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItem removes an item by key, optionally guarded.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.badgerKey(params.Key)
	if err != nil {
		return nil, err
	}

	out := &dynamodb.DeleteItemOutput{}
	err = s.db.Update(func(txn *badger.Txn) error {
		existing, err := loadItem(txn, key)
		if err != nil {
			return err
		}
		if err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
			return err
		}
		if params.ReturnValues == types.ReturnValueAllOld {
			out.Attributes = existing
		}
		if existing == nil {
			return nil
		}
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItem applies an update expression to one item. A missing item is
// created from the key attributes unless a guard forbids it.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.badgerKey(params.Key)
	if err != nil {
		return nil, err
	}
	if params.UpdateExpression == nil {
		return nil, fmt.Errorf("update expression is required")
	}

	out := &dynamodb.UpdateItemOutput{}
	err = s.db.Update(func(txn *badger.Txn) error {
		existing, err := loadItem(txn, key)
		if err != nil {
			return err
		}
		if err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
			return err
		}

		base := existing
		if base == nil {
			base = make(map[string]types.AttributeValue, len(params.Key))
			for k, v := range params.Key {
				base[k] = v
			}
		}
		updated, err := applyUpdate(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, base)
		if err != nil {
			return err
		}
		data, err := serializeItem(updated)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		switch params.ReturnValues {
		case types.ReturnValueAllNew:
			out.Attributes = updated
		case types.ReturnValueAllOld:
			out.Attributes = existing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchGetItem retrieves the requested keys. Every key is processed; the
// unprocessed-keys map is always empty.
func (s *Store) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	out := &dynamodb.BatchGetItemOutput{
		Responses:       make(map[string][]map[string]types.AttributeValue),
		UnprocessedKeys: make(map[string]types.KeysAndAttributes),
	}
	err := s.db.View(func(txn *badger.Txn) error {
		for tableName, req := range params.RequestItems {
			t, err := s.getTable(&tableName)
			if err != nil {
				return err
			}
			for _, keyAttrs := range req.Keys {
				key, err := t.badgerKey(keyAttrs)
				if err != nil {
					return err
				}
				item, err := loadItem(txn, key)
				if err != nil {
					return err
				}
				if item != nil {
					out.Responses[tableName] = append(out.Responses[tableName], item)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BatchWriteItem applies put and delete requests. Every request is
// processed; the unprocessed-items map is always empty.
func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		for tableName, reqs := range params.RequestItems {
			t, err := s.getTable(&tableName)
			if err != nil {
				return err
			}
			for _, req := range reqs {
				switch {
				case req.PutRequest != nil:
					key, err := t.badgerKey(req.PutRequest.Item)
					if err != nil {
						return err
					}
					data, err := serializeItem(req.PutRequest.Item)
					if err != nil {
						return err
					}
					if err := txn.Set(key, data); err != nil {
						return err
					}
				case req.DeleteRequest != nil:
					key, err := t.badgerKey(req.DeleteRequest.Key)
					if err != nil {
						return err
					}
					if err := txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
						return err
					}
				default:
					return fmt.Errorf("write request for table %s has neither put nor delete", tableName)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: make(map[string][]types.WriteRequest),
	}, nil
}

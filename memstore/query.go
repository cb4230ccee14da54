package memstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Query returns the items of one partition in sort-key order, bounded by
// the key condition, with the filter applied afterwards. The limit counts
// key-matched items before filtering, and a page that stops early reports
// its resume point through LastEvaluatedKey.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.KeyConditionExpression == nil {
		return nil, fmt.Errorf("key condition expression is required")
	}

	keyCond := *params.KeyConditionExpression
	p := newParser(keyCond)
	root, err := p.parseOr()
	if err != nil || !p.atEnd() {
		return nil, fmt.Errorf("parse key condition %q: %v", keyCond, err)
	}

	pkValue, ok := findPartitionEquality(root, t.definition.KeyDefinitions.PartitionKey.Name, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if !ok {
		return nil, fmt.Errorf("key condition %q does not pin the partition key", keyCond)
	}
	prefix, err := t.enc.partitionPrefix(keyValueOf(pkValue))
	if err != nil {
		return nil, err
	}

	forward := params.ScanIndexForward == nil || *params.ScanIndexForward

	var startAfter []byte
	if params.ExclusiveStartKey != nil {
		startAfter, err = t.badgerKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
	}

	out := &dynamodb.QueryOutput{}
	err = s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = !forward
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		seek := prefix
		if !forward {
			// position past the largest key in the partition
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		if startAfter != nil {
			seek = startAfter
		}
		it.Seek(seek)
		if startAfter != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), startAfter) {
			it.Next()
		}

		var scanned int
		for ; it.ValidForPrefix(prefix); it.Next() {
			item, err := decodeEntry(it.Item())
			if err != nil {
				return err
			}

			match, err := evalCondition(keyCond, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return err
			}
			if !match {
				continue
			}
			scanned++

			keep := true
			if params.FilterExpression != nil {
				keep, err = evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
				if err != nil {
					return err
				}
			}
			if keep {
				out.Items = append(out.Items, item)
			}

			if params.Limit != nil && scanned >= int(*params.Limit) {
				it.Next()
				if it.ValidForPrefix(prefix) {
					lek, err := lastEvaluatedKey(t, item)
					if err != nil {
						return err
					}
					out.LastEvaluatedKey = lek
				}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// Scan walks the whole table in key order with an optional filter. The
// limit counts scanned items, not filtered ones, matching store semantics.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	prefix := t.enc.tablePrefix()

	var startAfter []byte
	if params.ExclusiveStartKey != nil {
		startAfter, err = t.badgerKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
	}

	out := &dynamodb.ScanOutput{}
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := prefix
		if startAfter != nil {
			seek = startAfter
		}
		it.Seek(seek)
		if startAfter != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), startAfter) {
			it.Next()
		}

		var scanned int
		for ; it.ValidForPrefix(prefix); it.Next() {
			item, err := decodeEntry(it.Item())
			if err != nil {
				return err
			}
			scanned++

			keep := true
			if params.FilterExpression != nil {
				keep, err = evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
				if err != nil {
					return err
				}
			}
			if keep {
				out.Items = append(out.Items, item)
			}

			if params.Limit != nil && scanned >= int(*params.Limit) {
				it.Next()
				if it.ValidForPrefix(prefix) {
					lek, err := lastEvaluatedKey(t, item)
					if err != nil {
						return err
					}
					out.LastEvaluatedKey = lek
				}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func decodeEntry(entry *badger.Item) (map[string]types.AttributeValue, error) {
	var item map[string]types.AttributeValue
	err := entry.Value(func(val []byte) error {
		decoded, err := deserializeItem(val)
		if err != nil {
			return err
		}
		item = decoded
		return nil
	})
	return item, err
}

func lastEvaluatedKey(t *tableSchema, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	pk, err := t.definition.ExtractPrimaryKey(item)
	if err != nil {
		return nil, err
	}
	return pk.DDB()
}

// findPartitionEquality walks a key-condition tree looking for an equality
// comparison on the partition key and returns its bound value.
func findPartitionEquality(n condNode, pkName string, names map[string]string, values map[string]types.AttributeValue) (types.AttributeValue, bool) {
	switch v := n.(type) {
	case binaryNode:
		if av, ok := findPartitionEquality(v.l, pkName, names, values); ok {
			return av, true
		}
		return findPartitionEquality(v.r, pkName, names, values)
	case cmpNode:
		if v.op != "=" {
			return nil, false
		}
		path, ok := v.l.(pathOperand)
		if !ok {
			return nil, false
		}
		name := path.ref
		if strings.HasPrefix(name, "#") {
			name = names[name]
		}
		if name != pkName {
			return nil, false
		}
		val, ok := v.r.(valueOperand)
		if !ok {
			return nil, false
		}
		av, ok := values[val.ref]
		return av, ok
	}
	return nil, false
}

// keyValueOf unwraps a key attribute to the representation the key encoder
// expects.
func keyValueOf(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		return nil
	}
}

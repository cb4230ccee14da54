package memstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"dynaq/table"
)

// Badger key layout: [tableName][0x00][typed partition key][0x00][typed sort key].
// Each typed key value starts with its kind marker so mixed kinds never
// interleave, and values are encoded so that byte order equals key order.

const keySeparator byte = 0x00

const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

type keyEncoder struct {
	def table.TableDefinition
}

func (e keyEncoder) tablePrefix() []byte {
	var buf bytes.Buffer
	buf.WriteString(e.def.Name)
	buf.WriteByte(keySeparator)
	return buf.Bytes()
}

// partitionPrefix returns the prefix shared by every item in one partition.
func (e keyEncoder) partitionPrefix(partitionValue any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(e.tablePrefix())
	pk, err := encodeKeyValue(partitionValue, e.def.KeyDefinitions.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pk)
	buf.WriteByte(keySeparator)
	return buf.Bytes(), nil
}

func (e keyEncoder) encode(pk table.PrimaryKey) ([]byte, error) {
	prefix, err := e.partitionPrefix(pk.Values.PartitionKey)
	if err != nil {
		return nil, err
	}
	if !e.def.KeyDefinitions.HasSortKey() {
		return prefix, nil
	}
	sk, err := encodeKeyValue(pk.Values.SortKey, e.def.KeyDefinitions.SortKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode sort key: %w", err)
	}
	return append(prefix, sk...), nil
}

func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case table.KeyKindS:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.WriteByte(keyTypeString)
		buf.Write(escapeBytes([]byte(s)))

	case table.KeyKindN:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected number string for N key, got %T", value)
		}
		encoded, err := encodeNumber(s)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(keyTypeNumber)
		buf.Write(encoded)

	case table.KeyKindB:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected bytes for B key, got %T", value)
		}
		buf.WriteByte(keyTypeBinary)
		buf.Write(escapeBytes(b))

	default:
		return nil, fmt.Errorf("unsupported key kind %q", kind)
	}
	return buf.Bytes(), nil
}

// encodeNumber maps a decimal string to 8 bytes whose lexicographic order
// matches numeric order. Non-negative values get the float sign bit
// flipped; negative values get all bits inverted.
func encodeNumber(numStr string) ([]byte, error) {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", numStr, err)
	}
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf, nil
}

// escapeBytes rewrites 0x00 and 0x01 so the separator byte never appears
// inside an encoded key component.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// wireValue is a JSON-encodable rendering of an attribute value. The type
// tag disambiguates empty collections.
type wireValue struct {
	Type string               `json:"t"`
	S    string               `json:"s,omitempty"`
	N    string               `json:"n,omitempty"`
	B    []byte               `json:"b,omitempty"`
	Bool bool                 `json:"bool,omitempty"`
	L    []wireValue          `json:"l,omitempty"`
	M    map[string]wireValue `json:"m,omitempty"`
	SS   []string             `json:"ss,omitempty"`
	NS   []string             `json:"ns,omitempty"`
	BS   [][]byte             `json:"bs,omitempty"`
}

func serializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	wire := make(map[string]wireValue, len(item))
	for k, v := range item {
		wv, err := toWire(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		wire[k] = wv
	}
	return json.Marshal(wire)
}

func deserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var wire map[string]wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item := make(map[string]types.AttributeValue, len(wire))
	for k, wv := range wire {
		item[k] = fromWire(wv)
	}
	return item, nil
}

func toWire(av types.AttributeValue) (wireValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return wireValue{Type: "S", S: v.Value}, nil
	case *types.AttributeValueMemberN:
		return wireValue{Type: "N", N: v.Value}, nil
	case *types.AttributeValueMemberB:
		return wireValue{Type: "B", B: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return wireValue{Type: "BOOL", Bool: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return wireValue{Type: "NULL"}, nil
	case *types.AttributeValueMemberL:
		l := make([]wireValue, 0, len(v.Value))
		for _, el := range v.Value {
			wv, err := toWire(el)
			if err != nil {
				return wireValue{}, err
			}
			l = append(l, wv)
		}
		return wireValue{Type: "L", L: l}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]wireValue, len(v.Value))
		for k, el := range v.Value {
			wv, err := toWire(el)
			if err != nil {
				return wireValue{}, err
			}
			m[k] = wv
		}
		return wireValue{Type: "M", M: m}, nil
	case *types.AttributeValueMemberSS:
		return wireValue{Type: "SS", SS: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return wireValue{Type: "NS", NS: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return wireValue{Type: "BS", BS: v.Value}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func fromWire(wv wireValue) types.AttributeValue {
	switch wv.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: wv.S}
	case "N":
		return &types.AttributeValueMemberN{Value: wv.N}
	case "B":
		return &types.AttributeValueMemberB{Value: wv.B}
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: wv.Bool}
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: true}
	case "L":
		l := make([]types.AttributeValue, 0, len(wv.L))
		for _, el := range wv.L {
			l = append(l, fromWire(el))
		}
		return &types.AttributeValueMemberL{Value: l}
	case "M":
		m := make(map[string]types.AttributeValue, len(wv.M))
		for k, el := range wv.M {
			m[k] = fromWire(el)
		}
		return &types.AttributeValueMemberM{Value: m}
	case "SS":
		return &types.AttributeValueMemberSS{Value: wv.SS}
	case "NS":
		return &types.AttributeValueMemberNS{Value: wv.NS}
	case "BS":
		return &types.AttributeValueMemberBS{Value: wv.BS}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}

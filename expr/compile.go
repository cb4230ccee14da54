package expr

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// placeholderSeq issues placeholder names for compiled update expressions.
// It lives for the whole process so placeholders stay unique even when a
// caller merges value tables from independent compilations.
var placeholderSeq atomic.Uint64

func nextPlaceholder() string {
	return fmt.Sprintf(":v%d", placeholderSeq.Add(1))
}

// Compiled is a single update expression with its value table, ready to hand
// to the transport's update operation.
type Compiled struct {
	Expression string
	Values     map[string]types.AttributeValue
}

// Empty reports whether compilation produced no clauses at all, which
// happens when every input update was a no-op.
func (c Compiled) Empty() bool {
	return c.Expression == ""
}

type clause struct {
	group string // "SET", "ADD", or "REMOVE"
	text  string
	ph    string
	value types.AttributeValue
}

// Compile turns a sequence of updates into one update expression. Clause
// groups are emitted in the order SET, ADD, REMOVE, which is the order the
// update-expression grammar requires. When the same attribute is targeted
// more than once, the last update wins.
func Compile(updates ...Update) (Compiled, error) {
	// last-write-wins per attribute, keeping first-occurrence order
	ordered := make([]Update, 0, len(updates))
	index := make(map[string]int, len(updates))
	for _, u := range updates {
		name := u.Target().Name
		if i, ok := index[name]; ok {
			ordered[i] = u
			continue
		}
		index[name] = len(ordered)
		ordered = append(ordered, u)
	}

	groups := map[string][]string{}
	values := map[string]types.AttributeValue{}
	for _, u := range ordered {
		cl, err := compileOne(u)
		if err != nil {
			return Compiled{}, err
		}
		if cl == nil {
			continue
		}
		groups[cl.group] = append(groups[cl.group], cl.text)
		if cl.ph != "" {
			values[cl.ph] = cl.value
		}
	}

	var segments []string
	for _, group := range []string{"SET", "ADD", "REMOVE"} {
		if len(groups[group]) > 0 {
			segments = append(segments, group+" "+strings.Join(groups[group], ", "))
		}
	}
	if len(segments) == 0 {
		return Compiled{}, nil
	}
	return Compiled{
		Expression: strings.Join(segments, " "),
		Values:     values,
	}, nil
}

func compileOne(u Update) (*clause, error) {
	name := u.Target().Name
	if strings.Contains(name, ".") {
		return nil, NewValidationError("updates on nested attribute %q are not supported", name)
	}

	switch v := u.(type) {
	case *SetUpdate:
		if IsEmpty(v.Value) {
			if v.IfNotExists {
				// nothing to do: the value is unset and the field should
				// only be written when missing
				return nil, nil
			}
			// setting nothing removes the field
			return compileOne(&RemoveUpdate{Attr: v.Attr})
		}
		av, err := v.Attr.Encode(v.Value)
		if err != nil {
			return nil, err
		}
		ph := nextPlaceholder()
		rhs := ph
		if v.IfNotExists {
			rhs = fmt.Sprintf("if_not_exists(%s, %s)", name, ph)
		}
		return &clause{group: "SET", text: fmt.Sprintf("%s = %s", name, rhs), ph: ph, value: av}, nil

	case *RemoveUpdate:
		if v.Attr.Required {
			return nil, NewValidationError("cannot remove required attribute %q", name)
		}
		return &clause{group: "REMOVE", text: name}, nil

	case *AddUpdate:
		if v.Delta == 0 {
			// adding zero is valid but wasteful
			return nil, nil
		}
		av, err := v.Attr.Encode(v.Delta)
		if err != nil {
			return nil, err
		}
		ph := nextPlaceholder()
		return &clause{group: "ADD", text: fmt.Sprintf("%s %s", name, ph), ph: ph, value: av}, nil

	case *ListExtendUpdate:
		if len(v.Values) == 0 {
			return nil, nil
		}
		av, err := v.Attr.Encode(v.Values)
		if err != nil {
			return nil, err
		}
		ph := nextPlaceholder()
		text := fmt.Sprintf("%s = list_append(%s, %s)", name, name, ph)
		if !v.Append {
			text = fmt.Sprintf("%s = list_append(%s, %s)", name, ph, name)
		}
		return &clause{group: "SET", text: text, ph: ph, value: av}, nil

	default:
		return nil, NewValidationError("unsupported update type %T", u)
	}
}

// IsEmpty reports whether a value is absent: nil, an empty string, or a
// zero-length collection.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

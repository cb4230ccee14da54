package memstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// applyUpdate evaluates an update expression against a copy of the item.
// Supports the SET, ADD, and REMOVE sections with the if_not_exists and
// list_append functions.
func applyUpdate(update string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item)+2)
	for k, v := range item {
		out[k] = v
	}
	env := exprEnv{names: names, values: values, item: out}

	p := newParser(update)
	for !p.atEnd() {
		switch {
		case p.keyword("SET"):
			if err := p.applySetSection(env, out); err != nil {
				return nil, err
			}
		case p.keyword("ADD"):
			if err := p.applyAddSection(env, out); err != nil {
				return nil, err
			}
		case p.keyword("REMOVE"):
			if err := p.applyRemoveSection(env, out); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected token %q in update expression", p.peek().text)
		}
	}
	return out, nil
}

// sectionDone reports whether the next token starts a new clause group.
func (p *parser) sectionDone() bool {
	t := p.peek()
	if t.kind == tokEOF {
		return true
	}
	if t.kind != tokIdent {
		return false
	}
	switch strings.ToUpper(t.text) {
	case "SET", "ADD", "REMOVE", "DELETE":
		return true
	}
	return false
}

func (p *parser) resolvePath(env exprEnv) (string, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return t.text, nil
	case tokNameRef:
		name, ok := env.names[t.text]
		if !ok {
			return "", fmt.Errorf("unknown name placeholder %q", t.text)
		}
		return name, nil
	default:
		return "", fmt.Errorf("expected attribute name, got %q", t.text)
	}
}

func (p *parser) applySetSection(env exprEnv, out map[string]types.AttributeValue) error {
	for {
		name, err := p.resolvePath(env)
		if err != nil {
			return err
		}
		t := p.next()
		if t.kind != tokCmp || t.text != "=" {
			return fmt.Errorf("expected = after %q, got %q", name, t.text)
		}
		v, err := p.evalSetValue(env)
		if err != nil {
			return err
		}
		out[name] = v

		if p.sectionDone() {
			return nil
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
	}
}

// evalSetValue evaluates the right-hand side of a SET action: a plain
// operand, if_not_exists(path, operand), or list_append(operand, operand).
func (p *parser) evalSetValue(env exprEnv) (types.AttributeValue, error) {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, "if_not_exists") {
		p.next()
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		name, err := p.resolvePath(env)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		fallback, err := p.evalSetValue(env)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		if existing, ok := env.item[name]; ok {
			return existing, nil
		}
		return fallback, nil
	}

	if t.kind == tokIdent && strings.EqualFold(t.text, "list_append") {
		p.next()
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		first, err := p.evalSetValue(env)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		second, err := p.evalSetValue(env)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return appendLists(first, second)
	}

	o, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	v, ok, err := o.resolve(env)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a missing list operand of list_append acts as an empty list
		return &types.AttributeValueMemberL{}, nil
	}
	return v, nil
}

func appendLists(a, b types.AttributeValue) (types.AttributeValue, error) {
	al, ok := a.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("list_append operand is %T, not a list", a)
	}
	bl, ok := b.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("list_append operand is %T, not a list", b)
	}
	merged := make([]types.AttributeValue, 0, len(al.Value)+len(bl.Value))
	merged = append(merged, al.Value...)
	merged = append(merged, bl.Value...)
	return &types.AttributeValueMemberL{Value: merged}, nil
}

func (p *parser) applyAddSection(env exprEnv, out map[string]types.AttributeValue) error {
	for {
		name, err := p.resolvePath(env)
		if err != nil {
			return err
		}
		o, err := p.parseOperand()
		if err != nil {
			return err
		}
		delta, ok, err := o.resolve(env)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("ADD %s: operand did not resolve", name)
		}
		merged, err := addValues(out[name], delta)
		if err != nil {
			return fmt.Errorf("ADD %s: %w", name, err)
		}
		out[name] = merged

		if p.sectionDone() {
			return nil
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
	}
}

// addValues implements ADD: numeric addition for N, set union for the set
// types. A missing current value acts as zero or the empty set.
func addValues(current, delta types.AttributeValue) (types.AttributeValue, error) {
	switch d := delta.(type) {
	case *types.AttributeValueMemberN:
		base := 0.0
		if current != nil {
			cn, ok := current.(*types.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("cannot add number to %T", current)
			}
			f, err := strconv.ParseFloat(cn.Value, 64)
			if err != nil {
				return nil, err
			}
			base = f
		}
		inc, err := strconv.ParseFloat(d.Value, 64)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{
			Value: strconv.FormatFloat(base+inc, 'f', -1, 64),
		}, nil

	case *types.AttributeValueMemberSS:
		existing := map[string]bool{}
		var merged []string
		if current != nil {
			cs, ok := current.(*types.AttributeValueMemberSS)
			if !ok {
				return nil, fmt.Errorf("cannot add string set to %T", current)
			}
			merged = append(merged, cs.Value...)
			for _, s := range cs.Value {
				existing[s] = true
			}
		}
		for _, s := range d.Value {
			if !existing[s] {
				merged = append(merged, s)
			}
		}
		return &types.AttributeValueMemberSS{Value: merged}, nil

	case *types.AttributeValueMemberNS:
		existing := map[string]bool{}
		var merged []string
		if current != nil {
			cs, ok := current.(*types.AttributeValueMemberNS)
			if !ok {
				return nil, fmt.Errorf("cannot add number set to %T", current)
			}
			merged = append(merged, cs.Value...)
			for _, s := range cs.Value {
				existing[s] = true
			}
		}
		for _, s := range d.Value {
			if !existing[s] {
				merged = append(merged, s)
			}
		}
		return &types.AttributeValueMemberNS{Value: merged}, nil

	default:
		return nil, fmt.Errorf("unsupported ADD operand %T", delta)
	}
}

func (p *parser) applyRemoveSection(env exprEnv, out map[string]types.AttributeValue) error {
	for {
		name, err := p.resolvePath(env)
		if err != nil {
			return err
		}
		delete(out, name)

		if p.sectionDone() {
			return nil
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
	}
}

package memstore

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Evaluator for condition and filter expressions. Covers the grammar the
// engine's expression builder emits: comparators, BETWEEN, IN, the
// attribute functions, NOT, AND, OR, and parentheses. Attribute names may
// be #-placeholders or plain identifiers.

type exprEnv struct {
	names  map[string]string
	values map[string]types.AttributeValue
	item   map[string]types.AttributeValue
}

func evalCondition(cond string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	p := newParser(cond)
	n, err := p.parseOr()
	if err != nil {
		return false, fmt.Errorf("parse condition %q: %w", cond, err)
	}
	if !p.atEnd() {
		return false, fmt.Errorf("parse condition %q: trailing input at %q", cond, p.rest())
	}
	return n.eval(exprEnv{names: names, values: values, item: item})
}

// tokens

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNameRef  // #name
	tokValueRef // :value
	tokLParen
	tokRParen
	tokComma
	tokCmp // = <> < <= > >=
)

type token struct {
	kind tokenKind
	text string
}

type parser struct {
	toks []token
	pos  int
}

func newParser(input string) *parser {
	return &parser{toks: tokenize(input)}
}

func tokenize(input string) []token {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '=':
			toks = append(toks, token{tokCmp, "="})
			i++
		case c == '<':
			if i+1 < len(input) && input[i+1] == '>' {
				toks = append(toks, token{tokCmp, "<>"})
				i += 2
			} else if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokCmp, "<="})
				i += 2
			} else {
				toks = append(toks, token{tokCmp, "<"})
				i++
			}
		case c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokCmp, ">="})
				i += 2
			} else {
				toks = append(toks, token{tokCmp, ">"})
				i++
			}
		case c == '#' || c == ':' || isIdentChar(c):
			start := i
			i++
			for i < len(input) && isIdentChar(input[i]) {
				i++
			}
			text := input[start:i]
			switch {
			case c == '#':
				toks = append(toks, token{tokNameRef, text})
			case c == ':':
				toks = append(toks, token{tokValueRef, text})
			default:
				toks = append(toks, token{tokIdent, text})
			}
		default:
			// unknown byte, emit as ident so the parser reports it
			toks = append(toks, token{tokIdent, string(c)})
			i++
		}
	}
	return toks
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) atEnd() bool {
	return p.peek().kind == tokEOF
}

func (p *parser) rest() string {
	var parts []string
	for _, t := range p.toks[min(p.pos, len(p.toks)):] {
		parts = append(parts, t.text)
	}
	return strings.Join(parts, " ")
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s, got %q", what, t.text)
	}
	return t, nil
}

// nodes

type condNode interface {
	eval(env exprEnv) (bool, error)
}

type binaryNode struct {
	and  bool
	l, r condNode
}

func (n binaryNode) eval(env exprEnv) (bool, error) {
	lv, err := n.l.eval(env)
	if err != nil {
		return false, err
	}
	if n.and && !lv {
		return false, nil
	}
	if !n.and && lv {
		return true, nil
	}
	return n.r.eval(env)
}

type notNode struct {
	n condNode
}

func (n notNode) eval(env exprEnv) (bool, error) {
	v, err := n.n.eval(env)
	return !v, err
}

type cmpNode struct {
	op   string
	l, r operand
}

func (n cmpNode) eval(env exprEnv) (bool, error) {
	lv, lok, err := n.l.resolve(env)
	if err != nil {
		return false, err
	}
	rv, rok, err := n.r.resolve(env)
	if err != nil {
		return false, err
	}
	if !lok || !rok {
		return false, nil
	}
	switch n.op {
	case "=":
		return equalAV(lv, rv), nil
	case "<>":
		return !equalAV(lv, rv), nil
	}
	c, ok := compareAV(lv, rv)
	if !ok {
		return false, nil
	}
	switch n.op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("unsupported comparator %q", n.op)
}

type betweenNode struct {
	v, lo, hi operand
}

func (n betweenNode) eval(env exprEnv) (bool, error) {
	v, ok, err := n.v.resolve(env)
	if err != nil || !ok {
		return false, err
	}
	lo, lok, err := n.lo.resolve(env)
	if err != nil || !lok {
		return false, err
	}
	hi, hok, err := n.hi.resolve(env)
	if err != nil || !hok {
		return false, err
	}
	cl, ok1 := compareAV(v, lo)
	ch, ok2 := compareAV(v, hi)
	return ok1 && ok2 && cl >= 0 && ch <= 0, nil
}

type inNode struct {
	v    operand
	list []operand
}

func (n inNode) eval(env exprEnv) (bool, error) {
	v, ok, err := n.v.resolve(env)
	if err != nil || !ok {
		return false, err
	}
	for _, o := range n.list {
		c, cok, err := o.resolve(env)
		if err != nil {
			return false, err
		}
		if cok && equalAV(v, c) {
			return true, nil
		}
	}
	return false, nil
}

type fnNode struct {
	name string
	args []operand
}

func (n fnNode) eval(env exprEnv) (bool, error) {
	switch strings.ToLower(n.name) {
	case "attribute_exists":
		_, ok, err := n.args[0].resolve(env)
		return ok, err

	case "attribute_not_exists":
		_, ok, err := n.args[0].resolve(env)
		return !ok, err

	case "begins_with":
		v, vok, err := n.args[0].resolve(env)
		if err != nil || !vok {
			return false, err
		}
		prefix, pok, err := n.args[1].resolve(env)
		if err != nil || !pok {
			return false, err
		}
		vs, ok1 := v.(*types.AttributeValueMemberS)
		ps, ok2 := prefix.(*types.AttributeValueMemberS)
		return ok1 && ok2 && strings.HasPrefix(vs.Value, ps.Value), nil

	case "contains":
		v, vok, err := n.args[0].resolve(env)
		if err != nil || !vok {
			return false, err
		}
		needle, nok, err := n.args[1].resolve(env)
		if err != nil || !nok {
			return false, err
		}
		return containsAV(v, needle), nil

	default:
		return false, fmt.Errorf("unsupported function %q", n.name)
	}
}

// operands

type operand interface {
	resolve(env exprEnv) (types.AttributeValue, bool, error)
}

type pathOperand struct {
	ref string // #placeholder or literal attribute name
}

func (o pathOperand) resolve(env exprEnv) (types.AttributeValue, bool, error) {
	name := o.ref
	if strings.HasPrefix(name, "#") {
		resolved, ok := env.names[name]
		if !ok {
			return nil, false, fmt.Errorf("unknown name placeholder %q", name)
		}
		name = resolved
	}
	v, ok := env.item[name]
	return v, ok, nil
}

type valueOperand struct {
	ref string
}

func (o valueOperand) resolve(env exprEnv) (types.AttributeValue, bool, error) {
	v, ok := env.values[o.ref]
	if !ok {
		return nil, false, fmt.Errorf("unknown value placeholder %q", o.ref)
	}
	return v, true, nil
}

// grammar, lowest precedence first

func (p *parser) parseOr() (condNode, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = binaryNode{and: false, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (condNode, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = binaryNode{and: true, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseNot() (condNode, error) {
	if p.keyword("NOT") {
		n, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{n: n}, nil
	}
	return p.parsePrimary()
}

var condFunctions = map[string]int{
	"attribute_exists":     1,
	"attribute_not_exists": 1,
	"begins_with":          2,
	"contains":             2,
}

func (p *parser) parsePrimary() (condNode, error) {
	t := p.peek()

	if t.kind == tokLParen {
		p.next()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return n, nil
	}

	if t.kind == tokIdent {
		if arity, ok := condFunctions[strings.ToLower(t.text)]; ok {
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if len(args) != arity {
				return nil, fmt.Errorf("%s takes %d arguments, got %d", t.text, arity, len(args))
			}
			return fnNode{name: t.text, args: args}, nil
		}
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch {
	case p.peek().kind == tokCmp:
		op := p.next().text
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: op, l: left, r: right}, nil

	case p.keyword("BETWEEN"):
		lo, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, fmt.Errorf("expected AND in BETWEEN, got %q", p.peek().text)
		}
		hi, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return betweenNode{v: left, lo: lo, hi: hi}, nil

	case p.keyword("IN"):
		list, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("IN requires at least one operand")
		}
		return inNode{v: left, list: list}, nil
	}

	return nil, fmt.Errorf("expected comparator after %q", p.toks[p.pos-1].text)
}

func (p *parser) parseArgs() ([]operand, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var args []operand
	for {
		o, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		args = append(args, o)
		t := p.next()
		if t.kind == tokRParen {
			return args, nil
		}
		if t.kind != tokComma {
			return nil, fmt.Errorf("expected , or ) in argument list, got %q", t.text)
		}
	}
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokNameRef, tokIdent:
		return pathOperand{ref: t.text}, nil
	case tokValueRef:
		return valueOperand{ref: t.text}, nil
	default:
		return nil, fmt.Errorf("expected operand, got %q", t.text)
	}
}

// value comparison

func equalAV(a, b types.AttributeValue) bool {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		af, err1 := strconv.ParseFloat(an.Value, 64)
		bf, err2 := strconv.ParseFloat(bn.Value, 64)
		if err1 == nil && err2 == nil {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareAV orders two values of the same scalar type. ok=false for
// mismatched or unordered types.
func compareAV(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		af, err1 := strconv.ParseFloat(av.Value, 64)
		bf, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	case *types.AttributeValueMemberB:
		bv, ok := b.(*types.AttributeValueMemberB)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av.Value, bv.Value), true
	}
	return 0, false
}

func containsAV(haystack, needle types.AttributeValue) bool {
	switch h := haystack.(type) {
	case *types.AttributeValueMemberS:
		n, ok := needle.(*types.AttributeValueMemberS)
		return ok && strings.Contains(h.Value, n.Value)
	case *types.AttributeValueMemberSS:
		n, ok := needle.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, s := range h.Value {
			if s == n.Value {
				return true
			}
		}
	case *types.AttributeValueMemberNS:
		n, ok := needle.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		for _, s := range h.Value {
			if equalAV(&types.AttributeValueMemberN{Value: s}, n) {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, el := range h.Value {
			if equalAV(el, needle) {
				return true
			}
		}
	}
	return false
}

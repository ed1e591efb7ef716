package calc

import (
	"fmt"
	"math"
	"strconv"

	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// The formula strategy is a closed arithmetic grammar, not a scripting
// hook: numbers, dependency identifiers, + - * /, unary minus, parentheses,
// and a fixed function set (min, max, abs, round, floor, ceil). Identifiers
// are whole lexer tokens, so a dependency key can never match inside a
// longer identifier, and nothing here ever executes authored code.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	pos  int
	num  float64
	text string
}

func lexFormula(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{kind: tokPlus, pos: i})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, pos: i})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, pos: i})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, pos: i})
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			seenDot := false
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				if src[i] == '.' {
					if seenDot {
						return nil, &MalformedExpressionError{Expression: src, Pos: i, Reason: "number with two decimal points"}
					}
					seenDot = true
				}
				i++
			}
			n, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &MalformedExpressionError{Expression: src, Pos: start, Reason: "invalid number " + src[start:i]}
			}
			toks = append(toks, token{kind: tokNumber, pos: start, num: n})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, pos: start, text: src[start:i]})
		default:
			return nil, &MalformedExpressionError{Expression: src, Pos: i, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// expr is a parsed formula node.
type expr interface {
	eval(inputs map[slot.Key]domain.Value) (float64, error)
}

type numberExpr struct{ value float64 }

type identExpr struct {
	name string
	pos  int
}

type unaryExpr struct{ operand expr }

type binaryExpr struct {
	op          tokenKind
	left, right expr
}

type callExpr struct {
	name string
	pos  int
	args []expr
}

func (e numberExpr) eval(map[slot.Key]domain.Value) (float64, error) {
	return e.value, nil
}

func (e identExpr) eval(inputs map[slot.Key]domain.Value) (float64, error) {
	v, ok := inputs[slot.Key(e.name)]
	if !ok || v.IsMissing() {
		return 0, fmt.Errorf("identifier %q is not a declared dependency", e.name)
	}
	if v.IsNull() {
		return 0, fmt.Errorf("operand %q is null", e.name)
	}
	n, ok := v.Number()
	if !ok {
		return 0, fmt.Errorf("operand %q is %s, not a number", e.name, v.Kind())
	}
	return n, nil
}

func (e unaryExpr) eval(inputs map[slot.Key]domain.Value) (float64, error) {
	n, err := e.operand.eval(inputs)
	if err != nil {
		return 0, err
	}
	return -n, nil
}

func (e binaryExpr) eval(inputs map[slot.Key]domain.Value) (float64, error) {
	l, err := e.left.eval(inputs)
	if err != nil {
		return 0, err
	}
	r, err := e.right.eval(inputs)
	if err != nil {
		return 0, err
	}
	switch e.op {
	case tokPlus:
		return l + r, nil
	case tokMinus:
		return l - r, nil
	case tokStar:
		return l * r, nil
	case tokSlash:
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown binary operator")
}

func (e callExpr) eval(inputs map[slot.Key]domain.Value) (float64, error) {
	args := make([]float64, 0, len(e.args))
	for _, a := range e.args {
		n, err := a.eval(inputs)
		if err != nil {
			return 0, err
		}
		args = append(args, n)
	}
	switch e.name {
	case "min":
		out := args[0]
		for _, n := range args[1:] {
			out = math.Min(out, n)
		}
		return out, nil
	case "max":
		out := args[0]
		for _, n := range args[1:] {
			out = math.Max(out, n)
		}
		return out, nil
	case "abs":
		return math.Abs(args[0]), nil
	case "floor":
		return math.Floor(args[0]), nil
	case "ceil":
		return math.Ceil(args[0]), nil
	case "round":
		precision := 0
		if len(args) == 2 {
			precision = int(args[1])
		}
		return roundHalfAwayFromZero(args[0], precision), nil
	}
	return 0, fmt.Errorf("unknown function %q", e.name)
}

// arity[name] = {min args, max args}; max -1 means unbounded.
var arity = map[string][2]int{
	"min":   {1, -1},
	"max":   {1, -1},
	"abs":   {1, 1},
	"floor": {1, 1},
	"ceil":  {1, 1},
	"round": {1, 2},
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// parseFormula parses src into an evaluable expression tree.
func parseFormula(src string) (expr, error) {
	toks, err := lexFormula(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf(p.peek().pos, "unexpected trailing input")
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &MalformedExpressionError{Expression: p.src, Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) parseExpr() (expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokPlus && op != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokStar && op != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.peek().kind == tokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberExpr{value: t.num}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return identExpr{name: t.text, pos: t.pos}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.kind != tokRParen {
			return nil, p.errorf(tok.pos, "expected closing parenthesis")
		}
		return inner, nil
	}
	return nil, p.errorf(t.pos, "expected number, identifier, or parenthesis")
}

func (p *parser) parseCall(name token) (expr, error) {
	bounds, ok := arity[name.text]
	if !ok {
		return nil, p.errorf(name.pos, "unknown function %q", name.text)
	}
	p.next() // consume '('

	var args []expr
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if tok := p.next(); tok.kind != tokRParen {
		return nil, p.errorf(tok.pos, "expected closing parenthesis after %s arguments", name.text)
	}
	if len(args) < bounds[0] || (bounds[1] >= 0 && len(args) > bounds[1]) {
		return nil, p.errorf(name.pos, "function %q called with %d arguments", name.text, len(args))
	}
	return callExpr{name: name.text, pos: name.pos, args: args}, nil
}

// evaluateFormula parses and evaluates a formula against the inputs map.
func evaluateFormula(expression string, inputs map[slot.Key]domain.Value) (domain.Value, error) {
	tree, err := parseFormula(expression)
	if err != nil {
		return domain.Value{}, err
	}
	n, err := tree.eval(inputs)
	if err != nil {
		return domain.Value{}, err
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return domain.Value{}, fmt.Errorf("expression result is not a finite number")
	}
	return domain.NumberValue(n), nil
}

// roundHalfAwayFromZero rounds at the given decimal precision with halves
// moving away from zero: 2.345 at 2 is 2.35, -2.345 at 2 is -2.35.
func roundHalfAwayFromZero(n float64, precision int) float64 {
	shift := math.Pow(10, float64(precision))
	if n >= 0 {
		return math.Floor(n*shift+0.5) / shift
	}
	return math.Ceil(n*shift-0.5) / shift
}

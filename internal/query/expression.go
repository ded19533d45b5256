package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
)

// Named holds values referenced as :name in a filter expression
type Named map[string]interface{}

type exprTokenType int

const (
	exprEOF exprTokenType = iota
	exprWord
	exprQuoted
	exprLParen
	exprRParen
	exprAnd
	exprOr
)

type exprToken struct {
	typ      exprTokenType
	literal  string
	position int
}

type exprLexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
}

func newExprLexer(input string) *exprLexer {
	l := &exprLexer{input: input}
	l.readChar()
	return l
}

func (l *exprLexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *exprLexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *exprLexer) NextToken() (exprToken, error) {
	l.skipWhitespace()
	tok := exprToken{position: l.position}

	switch l.ch {
	case 0:
		tok.typ = exprEOF
		return tok, nil
	case '(':
		tok.typ = exprLParen
		l.readChar()
		return tok, nil
	case ')':
		tok.typ = exprRParen
		l.readChar()
		return tok, nil
	case '\'', '"':
		quote := l.ch
		l.readChar()
		start := l.position
		for l.ch != quote {
			if l.ch == 0 {
				return tok, fmt.Errorf("unterminated quote at position %d", tok.position)
			}
			l.readChar()
		}
		tok.typ = exprQuoted
		tok.literal = l.input[start:l.position]
		l.readChar()
		return tok, nil
	}

	start := l.position
	for l.ch != 0 && l.ch != ' ' && l.ch != '\t' && l.ch != '\n' && l.ch != '\r' && l.ch != '(' && l.ch != ')' {
		l.readChar()
	}
	tok.literal = l.input[start:l.position]

	switch strings.ToUpper(tok.literal) {
	case "AND":
		tok.typ = exprAnd
	case "OR":
		tok.typ = exprOr
	default:
		tok.typ = exprWord
	}
	return tok, nil
}

type exprParser struct {
	input      string
	tokens     []exprToken
	pos        int
	positional []interface{}
	named      Named
}

// ParseFilter parses a filter expression such as
//
//	host_name = ? AND (status.current_state > 0 OR COUNT{comment} >= 1)
//
// "?" takes the next positional argument, ":name" a value from a Named
// argument. Mixing AND and OR nests the remainder: "a AND b OR c" reads as
// "a AND (b OR c)".
func ParseFilter(expr string, args ...interface{}) (Filter, error) {
	p := &exprParser{input: expr, named: Named{}}
	for _, arg := range args {
		if named, ok := arg.(Named); ok {
			for k, v := range named {
				p.named[k] = v
			}
			continue
		}
		p.positional = append(p.positional, arg)
	}

	lex := newExprLexer(expr)
	for {
		tok, err := lex.NextToken()
		if err != nil {
			return nil, errors.InvalidFilter(expr, err.Error())
		}
		p.tokens = append(p.tokens, tok)
		if tok.typ == exprEOF {
			break
		}
	}

	root := &Group{Type: TypeAnd}
	if err := p.parseInto(root, false); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != exprEOF {
		return nil, p.fail("unexpected ')' at position %d", tok.position)
	}
	if len(root.Items) == 1 {
		return root.Items[0], nil
	}
	return root, nil
}

func (p *exprParser) peek() exprToken {
	return p.tokens[p.pos]
}

func (p *exprParser) next() exprToken {
	tok := p.tokens[p.pos]
	if tok.typ != exprEOF {
		p.pos++
	}
	return tok
}

func (p *exprParser) fail(format string, a ...interface{}) error {
	return errors.InvalidFilter(p.input, fmt.Sprintf(format, a...))
}

func (p *exprParser) parseInto(g *Group, typeSet bool) error {
	for {
		item, err := p.parseOperand()
		if err != nil {
			return err
		}
		g.Items = append(g.Items, item)

		tok := p.peek()
		if tok.typ == exprEOF || tok.typ == exprRParen {
			return nil
		}
		p.next()

		typ := TypeAnd
		if tok.typ == exprOr {
			typ = TypeOr
		}
		if !typeSet {
			g.Type = typ
			typeSet = true
			continue
		}
		if typ == g.Type {
			continue
		}

		last := g.Items[len(g.Items)-1]
		g.Items = g.Items[:len(g.Items)-1]
		implicit := &Group{Type: typ, Items: []Filter{last}}
		if err := p.parseInto(implicit, true); err != nil {
			return err
		}
		g.Items = append(g.Items, implicit)
		return nil
	}
}

func (p *exprParser) parseOperand() (Filter, error) {
	tok := p.peek()
	if tok.typ == exprLParen {
		p.next()
		sub := &Group{Type: TypeAnd}
		if err := p.parseInto(sub, false); err != nil {
			return nil, err
		}
		if closing := p.next(); closing.typ != exprRParen {
			return nil, p.fail("missing ')' for group opened at position %d", tok.position)
		}
		if len(sub.Items) == 1 {
			return sub.Items[0], nil
		}
		return sub, nil
	}

	var words []exprToken
	for {
		tok := p.peek()
		if tok.typ != exprWord && tok.typ != exprQuoted {
			break
		}
		words = append(words, p.next())
	}
	if len(words) == 0 {
		return nil, p.fail("expected expression at position %d", tok.position)
	}
	return p.condition(words)
}

var countFunction = regexp.MustCompile(`^COUNT\{(.*)\}$`)

func (p *exprParser) condition(words []exprToken) (Filter, error) {
	if len(words) < 3 {
		return nil, p.fail("expressions must have the form FIELD OPERATOR VALUE")
	}

	c := &Condition{Column: words[0].literal}
	if m := countFunction.FindStringSubmatch(c.Column); m != nil {
		c.Column = m[1]
		c.Count = true
	}

	opText := strings.ToUpper(words[1].literal)
	rest := words[2:]
	if opText == "NOT" {
		opText += " " + strings.ToUpper(words[2].literal)
		rest = words[3:]
		if len(rest) == 0 {
			return nil, p.fail("missing value after %s", opText)
		}
	}

	op, ok := parseOperator(opText)
	if !ok {
		return nil, p.fail("unknown operator %s", words[1].literal)
	}
	c.Operator = op

	values, err := p.values(op, rest)
	if err != nil {
		return nil, err
	}
	c.Values = values
	return c, nil
}

func parseOperator(text string) (Operator, bool) {
	for op, name := range operatorNames {
		if name == text {
			return op, true
		}
	}
	return 0, false
}

func (p *exprParser) values(op Operator, words []exprToken) ([]string, error) {
	if len(words) == 1 && words[0].typ == exprWord {
		w := words[0].literal
		switch {
		case w == "?":
			if len(p.positional) == 0 {
				return nil, p.fail("not enough values for placeholders")
			}
			arg := p.positional[0]
			p.positional = p.positional[1:]
			return stringValues(arg), nil
		case strings.HasPrefix(w, ":") && len(w) > 1:
			arg, ok := p.named[w[1:]]
			if !ok {
				return nil, p.fail("no value for %s", w)
			}
			return stringValues(arg), nil
		}
	}

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.literal
	}
	value := strings.Join(parts, " ")
	if len(words) == 1 && words[0].typ == exprQuoted {
		return []string{value}, nil
	}
	if op == OpIn || op == OpNotIn {
		var out []string
		for _, v := range strings.Split(value, ",") {
			out = append(out, strings.TrimSpace(v))
		}
		return out, nil
	}
	return []string{value}, nil
}

func stringValues(arg interface{}) []string {
	switch v := arg.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

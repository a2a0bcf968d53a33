// Package condition evaluates the narrow boolean expressions attached to
// conditional intents. The grammar is deliberately small and auditable:
// dotted-path lookups into dependency results, comparisons against literals,
// and !, &&, || with parentheses. It is not a scripting language.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Eval evaluates expr against scope, where scope maps a dependency name to
// its result data. A bare path is truthy when it resolves to true, a
// non-zero number, or a non-empty string; a missing path is false.
func Eval(expr string, scope map[string]any) (bool, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	p := &exprParser{tokens: tokens, scope: scope}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.eof() {
		return false, fmt.Errorf("unexpected trailing input %q", p.peek().text)
	}
	return truthy(result), nil
}

type tokenKind int

const (
	tokenPath tokenKind = iota
	tokenNumber
	tokenString
	tokenOp    // == != < <= > >=
	tokenNot   // !
	tokenAnd   // &&
	tokenOr    // ||
	tokenLParen
	tokenRParen
)

type exprToken struct {
	kind tokenKind
	text string
}

func tokenize(expr string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(':
			tokens = append(tokens, exprToken{tokenLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, exprToken{tokenRParen, ")"})
			i++
		case c == '&':
			if i+1 >= len(expr) || expr[i+1] != '&' {
				return nil, fmt.Errorf("expected && at offset %d", i)
			}
			tokens = append(tokens, exprToken{tokenAnd, "&&"})
			i += 2
		case c == '|':
			if i+1 >= len(expr) || expr[i+1] != '|' {
				return nil, fmt.Errorf("expected || at offset %d", i)
			}
			tokens = append(tokens, exprToken{tokenOr, "||"})
			i += 2
		case c == '!':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, exprToken{tokenOp, "!="})
				i += 2
			} else {
				tokens = append(tokens, exprToken{tokenNot, "!"})
				i++
			}
		case c == '=':
			if i+1 >= len(expr) || expr[i+1] != '=' {
				return nil, fmt.Errorf("expected == at offset %d", i)
			}
			tokens = append(tokens, exprToken{tokenOp, "=="})
			i += 2
		case c == '<' || c == '>':
			op := string(c)
			i++
			if i < len(expr) && expr[i] == '=' {
				op += "="
				i++
			}
			tokens = append(tokens, exprToken{tokenOp, op})
		case c == '\'' || c == '"':
			quote := c
			end := i + 1
			for end < len(expr) && expr[end] != quote {
				end++
			}
			if end >= len(expr) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, exprToken{tokenString, expr[i+1 : end]})
			i = end + 1
		case c == '-' || unicode.IsDigit(rune(c)):
			end := i + 1
			for end < len(expr) && (unicode.IsDigit(rune(expr[end])) || expr[end] == '.') {
				end++
			}
			tokens = append(tokens, exprToken{tokenNumber, expr[i:end]})
			i = end
		case unicode.IsLetter(rune(c)) || c == '_':
			end := i
			for end < len(expr) {
				r := rune(expr[end])
				if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
					end++
					continue
				}
				break
			}
			tokens = append(tokens, exprToken{tokenPath, expr[i:end]})
			i = end
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return tokens, nil
}

type exprParser struct {
	tokens []exprToken
	pos    int
	scope  map[string]any
}

func (p *exprParser) eof() bool {
	return p.pos >= len(p.tokens)
}

func (p *exprParser) peek() exprToken {
	if p.eof() {
		return exprToken{}
	}
	return p.tokens[p.pos]
}

func (p *exprParser) next() exprToken {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseUnary() (any, error) {
	if !p.eof() && p.peek().kind == tokenNot {
		p.next()
		value, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !truthy(value), nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (any, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.eof() || p.peek().kind != tokenOp {
		return left, nil
	}
	op := p.next().text
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return compare(left, op, right)
}

func (p *exprParser) parsePrimary() (any, error) {
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	tok := p.next()
	switch tok.kind {
	case tokenLParen:
		value, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek().kind != tokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return value, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", tok.text)
		}
		return f, nil
	case tokenString:
		return tok.text, nil
	case tokenPath:
		switch tok.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return lookupPath(p.scope, tok.text), nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}

// lookupPath walks a dotted path through nested maps. Missing segments
// resolve to nil rather than erroring: a condition over an absent field is
// simply false.
func lookupPath(scope map[string]any, path string) any {
	segments := strings.Split(path, ".")
	var current any = scope
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return current
}

func compare(left any, op string, right any) (any, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	switch op {
	case "==":
		return fmt.Sprint(left) == fmt.Sprint(right), nil
	case "!=":
		return fmt.Sprint(left) != fmt.Sprint(right), nil
	default:
		return nil, fmt.Errorf("operator %s requires numeric operands", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

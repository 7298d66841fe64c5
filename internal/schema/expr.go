package schema

import (
	"fmt"
	"strings"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// The contract expression language lets advanced users author a contract as
// text using the same vocabulary as the programmatic combinators:
//
//	object({ title: string(), price: number().optional(),
//	         tags: array(string()), meta: object({ id: string() }) })
//
// Expression text is parsed into a Contract, never executed. The grammar is
// deliberately closed: six constructors (object, array, string, number,
// boolean, any) and two postfix modifiers (.optional(), .describe("...")).

// maxExpressionDepth bounds constructor nesting so hostile input cannot
// exhaust the stack.
const maxExpressionDepth = 32

// ParseExpression parses contract expression source text. The top-level
// constructor must be object(...).
func ParseExpression(src string) (*Contract, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errf(schemas.SchemaSourceExpression, "expression is empty")
	}
	p := &exprParser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	c, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, exprErrf(p.tok.pos, "unexpected %s after expression", describeToken(p.tok))
	}
	if c.Kind != KindObject {
		return nil, errf(schemas.SchemaSourceExpression, "expression must produce an object contract, got %s", c.Kind)
	}
	return c, nil
}

// -- Lexer --

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokColon
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	lit  string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, *SchemaError) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, lit: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, lit: ")", pos: start}, nil
	case c == '{':
		l.pos++
		return token{kind: tokLBrace, lit: "{", pos: start}, nil
	case c == '}':
		l.pos++
		return token{kind: tokRBrace, lit: "}", pos: start}, nil
	case c == ':':
		l.pos++
		return token{kind: tokColon, lit: ":", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, lit: ",", pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokDot, lit: ".", pos: start}, nil
	case c == '"' || c == '\'':
		return l.scanString(c)
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, lit: l.src[start:l.pos], pos: start}, nil
	default:
		return token{}, exprErrf(start, "unexpected character %q", string(c))
	}
}

func (l *lexer) scanString(quote byte) (token, *SchemaError) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{kind: tokString, lit: b.String(), pos: start}, nil
		case '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return token{}, exprErrf(start, "unterminated string literal")
			}
			switch esc := l.src[l.pos]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteByte(esc)
			default:
				return token{}, exprErrf(l.pos, "unsupported escape \\%s", string(esc))
			}
			l.pos++
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, exprErrf(start, "unterminated string literal")
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }

// -- Parser --

type exprParser struct {
	lex lexer
	tok token
}

func (p *exprParser) advance() *SchemaError {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *exprParser) expect(kind tokenKind, want string) *SchemaError {
	if p.tok.kind != kind {
		return exprErrf(p.tok.pos, "expected %s, got %s", want, describeToken(p.tok))
	}
	return p.advance()
}

func (p *exprParser) parseExpr(depth int) (*Contract, *SchemaError) {
	if depth > maxExpressionDepth {
		return nil, exprErrf(p.tok.pos, "expression nesting exceeds %d levels", maxExpressionDepth)
	}
	if p.tok.kind != tokIdent {
		return nil, exprErrf(p.tok.pos, "expected a contract constructor, got %s", describeToken(p.tok))
	}
	name, namePos := p.tok.lit, p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}

	var c *Contract
	switch name {
	case "object":
		obj, err := p.parseObjectBody(depth)
		if err != nil {
			return nil, err
		}
		c = obj
	case "array":
		if err := p.expect(tokLParen, `"("`); err != nil {
			return nil, err
		}
		item, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		c = Array(item)
	case "string", "number", "boolean", "any":
		if err := p.parseEmptyCall(); err != nil {
			return nil, err
		}
		switch name {
		case "string":
			c = String()
		case "number":
			c = Number()
		case "boolean":
			c = Boolean()
		default:
			c = Any()
		}
	default:
		return nil, exprErrf(namePos, "unknown contract constructor %q", name)
	}

	return p.parsePostfix(c)
}

func (p *exprParser) parseObjectBody(depth int) (*Contract, *SchemaError) {
	if err := p.expect(tokLParen, `"("`); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, `"{"`); err != nil {
		return nil, err
	}

	props := map[string]*Contract{}
	for p.tok.kind != tokRBrace {
		if p.tok.kind != tokIdent && p.tok.kind != tokString {
			return nil, exprErrf(p.tok.pos, "expected a property name, got %s", describeToken(p.tok))
		}
		key, keyPos := p.tok.lit, p.tok.pos
		if _, exists := props[key]; exists {
			return nil, exprErrf(keyPos, "duplicate property %q", key)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, `":"`); err != nil {
			return nil, err
		}
		value, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		props[key] = value

		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue // trailing comma before "}" is fine
		}
		if p.tok.kind != tokRBrace {
			return nil, exprErrf(p.tok.pos, `expected "," or "}", got %s`, describeToken(p.tok))
		}
	}

	if err := p.advance(); err != nil { // consume "}"
		return nil, err
	}
	if err := p.expect(tokRParen, `")"`); err != nil {
		return nil, err
	}
	return Object(props), nil
}

func (p *exprParser) parsePostfix(c *Contract) (*Contract, *SchemaError) {
	for p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, exprErrf(p.tok.pos, "expected a modifier name, got %s", describeToken(p.tok))
		}
		name, namePos := p.tok.lit, p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch name {
		case "optional":
			if err := p.parseEmptyCall(); err != nil {
				return nil, err
			}
			c.AsOptional()
		case "describe":
			if err := p.expect(tokLParen, `"("`); err != nil {
				return nil, err
			}
			if p.tok.kind != tokString {
				return nil, exprErrf(p.tok.pos, "describe requires a string literal, got %s", describeToken(p.tok))
			}
			c.Describe(p.tok.lit)
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expect(tokRParen, `")"`); err != nil {
				return nil, err
			}
		default:
			return nil, exprErrf(namePos, "unknown modifier %q", name)
		}
	}
	return c, nil
}

func (p *exprParser) parseEmptyCall() *SchemaError {
	if err := p.expect(tokLParen, `"("`); err != nil {
		return err
	}
	return p.expect(tokRParen, `")"`)
}

func describeToken(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return fmt.Sprintf("string %q", t.lit)
	default:
		return fmt.Sprintf("%q", t.lit)
	}
}

func exprErrf(pos int, format string, args ...any) *SchemaError {
	return &SchemaError{
		Source: schemas.SchemaSourceExpression,
		Detail: fmt.Sprintf(format, args...),
		Pos:    pos,
	}
}

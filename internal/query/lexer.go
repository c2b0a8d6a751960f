package query

import (
	"strings"

	"elesrank/internal/ranking"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokTerm
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	default:
		return "term"
	}
}

type token struct {
	kind  tokenKind
	pos   int
	field string
	value string
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(pos int, msg string) error {
	return &ranking.SyntaxError{Query: l.src, Pos: pos, Msg: msg}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isDelim(c byte) bool { return isSpace(c) || c == '(' || c == ')' }

func isFieldChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (l *lexer) tokens() ([]token, error) {
	var out []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if t.kind == tokEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case strings.HasPrefix(l.src[l.pos:], "&&"):
		l.pos += 2
		return token{kind: tokAnd, pos: start}, nil
	case strings.HasPrefix(l.src[l.pos:], "||"):
		l.pos += 2
		return token{kind: tokOr, pos: start}, nil
	case c == '!':
		l.pos++
		return token{kind: tokNot, pos: start}, nil
	case c == '-' && l.pos+1 < len(l.src) && !isDelim(l.src[l.pos+1]):
		l.pos++
		return token{kind: tokNot, pos: start}, nil
	case c == '"':
		v, err := l.quoted()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokTerm, pos: start, value: v}, nil
	}

	// field:value or bare word
	i := l.pos
	for i < len(l.src) && isFieldChar(l.src[i]) {
		i++
	}
	if i > l.pos && i < len(l.src) && l.src[i] == ':' {
		field := l.src[l.pos:i]
		l.pos = i + 1
		var (
			v   string
			err error
		)
		if l.pos < len(l.src) && l.src[l.pos] == '"' {
			v, err = l.quoted()
		} else {
			v, err = l.bare()
		}
		if err != nil {
			return token{}, err
		}
		if v == "" {
			return token{}, l.errorf(l.pos, "missing value for field "+field)
		}
		return token{kind: tokTerm, pos: start, field: strings.ToLower(field), value: v}, nil
	}

	v, err := l.bare()
	if err != nil {
		return token{}, err
	}
	switch v {
	case "AND":
		return token{kind: tokAnd, pos: start}, nil
	case "OR":
		return token{kind: tokOr, pos: start}, nil
	case "NOT":
		return token{kind: tokNot, pos: start}, nil
	}
	return token{kind: tokTerm, pos: start, value: v}, nil
}

func (l *lexer) bare() (string, error) {
	var b strings.Builder
	for l.pos < len(l.src) && !isDelim(l.src[l.pos]) {
		c := l.src[l.pos]
		if c == '\\' {
			if l.pos+1 >= len(l.src) {
				return "", l.errorf(l.pos, "dangling escape")
			}
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return b.String(), nil
}

func (l *lexer) quoted() (string, error) {
	open := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			if l.pos+1 >= len(l.src) {
				return "", l.errorf(l.pos, "dangling escape")
			}
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case '"':
			l.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return "", l.errorf(open, "unterminated quote")
}

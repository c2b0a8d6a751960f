package query

import (
	"fmt"
	"strconv"
	"strings"

	"elesrank/internal/ranking"
)

// Parser compiles search expressions into ranking matchers.
// It is stateless and safe for concurrent use.
type Parser struct{}

func New() *Parser { return &Parser{} }

var _ ranking.SearchParser = (*Parser)(nil)

// Parse compiles q. Malformed input returns a *ranking.SyntaxError.
func (p *Parser) Parse(q string) (ranking.Matcher, error) {
	lx := &lexer{src: q}
	toks, err := lx.tokens()
	if err != nil {
		return nil, err
	}
	ps := &parser{src: q, toks: toks}
	m, err := ps.parseOr()
	if err != nil {
		return nil, err
	}
	if t := ps.peek(); t.kind != tokEOF {
		return nil, ps.errorf(t.pos, fmt.Sprintf("unexpected %s", t.kind))
	}
	return m, nil
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(pos int, msg string) error {
	return &ranking.SyntaxError{Query: p.src, Pos: pos, Msg: msg}
}

func (p *parser) parseOr() (ranking.Matcher, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(match ranking.FieldMatcher, rec *ranking.Record) bool {
			return l(match, rec) || r(match, rec)
		}
	}
	return left, nil
}

func (p *parser) parseAnd() (ranking.Matcher, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.advance()
		case tokNot, tokLParen, tokTerm:
			// juxtaposition is an implicit AND
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(match ranking.FieldMatcher, rec *ranking.Record) bool {
			return l(match, rec) && r(match, rec)
		}
	}
}

func (p *parser) parseUnary() (ranking.Matcher, error) {
	if p.peek().kind == tokNot {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return func(match ranking.FieldMatcher, rec *ranking.Record) bool {
			return !inner(match, rec)
		}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ranking.Matcher, error) {
	t := p.advance()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.advance(); c.kind != tokRParen {
			return nil, p.errorf(t.pos, "unbalanced parenthesis")
		}
		return inner, nil
	case tokTerm:
		return p.term(t)
	default:
		return nil, p.errorf(t.pos, fmt.Sprintf("expected term, found %s", t.kind))
	}
}

func (p *parser) term(t token) (ranking.Matcher, error) {
	if t.value == "" {
		return nil, p.errorf(t.pos, "empty term")
	}
	if t.field != "" {
		if !ranking.IsField(t.field) {
			return nil, p.errorf(t.pos, fmt.Sprintf("unknown field %q", t.field))
		}
		if ranking.IsNumericField(t.field) {
			if _, _, err := parseComparison(t.value); err != nil {
				return nil, p.errorf(t.pos, err.Error())
			}
		}
	}
	field, value := t.field, t.value
	return func(match ranking.FieldMatcher, rec *ranking.Record) bool {
		return match(rec, field, value)
	}, nil
}

// MatchField tests term against a record field. An empty field matches any
// text field. Text comparison is a case-insensitive substring match; numeric
// fields compare with an optional operator prefix (>, >=, <, <=, =).
func (p *Parser) MatchField(rec *ranking.Record, field, term string) bool {
	if rec == nil {
		return false
	}
	if field == "" {
		for _, name := range ranking.TextFields() {
			if v, _ := rec.Field(name); containsFold(v.Text, term) {
				return true
			}
		}
		return false
	}
	v, ok := rec.Field(field)
	if !ok || v.IsMissing() {
		return false
	}
	if v.Kind == ranking.KindNumber {
		op, n, err := parseComparison(term)
		if err != nil {
			return false
		}
		return compareNum(v.Num, op, n)
	}
	return containsFold(v.Text, term)
}

func parseComparison(term string) (string, float64, error) {
	op := "="
	for _, cand := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(term, cand) {
			op = cand
			term = term[len(cand):]
			break
		}
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(term), 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid number %q", term)
	}
	return op, n, nil
}

func compareNum(v float64, op string, n float64) bool {
	switch op {
	case ">":
		return v > n
	case ">=":
		return v >= n
	case "<":
		return v < n
	case "<=":
		return v <= n
	default:
		return v == n
	}
}

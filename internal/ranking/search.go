package ranking

import (
	"errors"
	"fmt"
)

// FieldMatcher tests a single search term against a record. An empty field
// means "any text field".
type FieldMatcher func(rec *Record, field, term string) bool

// Matcher is a compiled search expression.
type Matcher func(match FieldMatcher, rec *Record) bool

// SearchParser compiles search expressions. A malformed query must be reported
// as a *SyntaxError; any other error is treated as fatal by ComputeView.
type SearchParser interface {
	Parse(query string) (Matcher, error)
	MatchField(rec *Record, field, term string) bool
}

// SyntaxError reports a malformed search expression.
type SyntaxError struct {
	Query string
	Pos   int // byte offset into Query
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("search syntax error at %d: %s", e.Pos, e.Msg)
}

// IsSyntaxError reports whether err is (or wraps) a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

package view

import (
	"fmt"
	"net/url"
	"strings"

	"elesrank/internal/ranking"
)

// DefaultOrderBy ranks the worst performers first.
const DefaultOrderBy = "-broken_time_percentage"

// State is the user-controlled table state.
type State struct {
	Period    ranking.Period
	UnitTypes ranking.UnitTypeFilter
	Search    string
	OrderBy   ranking.SortSpec
}

func DefaultState() State {
	return State{
		Period:    ranking.AllTime,
		UnitTypes: ranking.AllTypes,
		OrderBy:   ranking.ParseSort(DefaultOrderBy),
	}
}

// Pristine reports whether the filters are at their defaults. Sorting is not
// a filter and is ignored.
func (s State) Pristine() bool {
	return s.Period == ranking.AllTime && s.UnitTypes == ranking.AllTypes && s.Search == ""
}

// Reset clears the filters and keeps the sort order.
func (s State) Reset() State {
	d := DefaultState()
	d.OrderBy = s.OrderBy
	return d
}

// Encode renders the state as a query string with stable key order. An empty
// search is omitted; order_by is always present so "no sort" survives a
// round trip.
func (s State) Encode() string {
	v := url.Values{}
	v.Set("time_period", string(s.Period))
	v.Set("unit_type", string(s.UnitTypes))
	if s.Search != "" {
		v.Set("search_string", s.Search)
	}
	v.Set("order_by", s.OrderBy.String())
	return v.Encode()
}

// DecodeState parses an Encode result. Missing keys take defaults; invalid
// period or unit type values are errors.
func DecodeState(raw string) (State, error) {
	st := DefaultState()
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return st, err
	}
	if p := v.Get("time_period"); p != "" {
		if st.Period, err = ranking.ParsePeriod(p); err != nil {
			return st, err
		}
	}
	if u := v.Get("unit_type"); u != "" {
		if st.UnitTypes, err = ranking.ParseUnitTypeFilter(u); err != nil {
			return st, err
		}
	}
	st.Search = v.Get("search_string")
	if v.Has("order_by") {
		st.OrderBy = ranking.ParseSort(v.Get("order_by"))
	}
	return st, nil
}

func (s State) viewState() ranking.ViewState {
	return ranking.ViewState{
		Sort:          s.OrderBy,
		SortingActive: !s.OrderBy.IsZero(),
		UnitTypes:     s.UnitTypes,
		Search:        s.Search,
	}
}

// Describe is a one-line summary of the state for prompts and logs.
func (s State) Describe() string {
	parts := []string{string(s.Period), string(s.UnitTypes)}
	if enc := s.OrderBy.String(); enc != "" {
		parts = append(parts, "sort "+enc)
	}
	if s.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", s.Search))
	}
	return strings.Join(parts, ", ")
}

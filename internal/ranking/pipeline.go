package ranking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoParser is returned when a search string is given without a parser.
var ErrNoParser = errors.New("ranking: search parser required")

// ViewState is the immutable sort/filter/search state for one pipeline run.
type ViewState struct {
	Sort          SortSpec
	SortingActive bool
	UnitTypes     UnitTypeFilter
	Search        string
}

// View is the pipeline output.
type View struct {
	// Records are fresh copies in display order with Rank set.
	Records []Record
	// Ranked is the size of the sorted set ranks were assigned over.
	Ranked int

	SearchError bool
	// Syntax holds the parser's diagnostic when SearchError is true.
	Syntax *SyntaxError
}

// Total is the number of records after filtering.
func (v View) Total() int { return len(v.Records) }

// ComputeView sorts, ranks, and filters records for display.
//
// Steps run in a fixed order: stable sort (when st.SortingActive and st.Sort is
// set), dense 1-based rank assignment over the full sorted set, unit-type
// filter, then search filter. A malformed search query yields an empty result
// with SearchError set; any other parser error is returned.
//
// The input slice and its records are not modified.
func ComputeView(records []Record, st ViewState, parser SearchParser) (View, error) {
	ordered := make([]Record, len(records))
	copy(ordered, records)

	if st.SortingActive {
		sortStable(ordered, st.Sort)
	}

	for i := range ordered {
		ordered[i].Rank = i + 1
	}

	filtered := make([]Record, 0, len(ordered))
	for _, r := range ordered {
		if st.UnitTypes.Keep(r.UnitType) {
			filtered = append(filtered, r)
		}
	}

	view := View{Ranked: len(ordered)}

	query := strings.TrimSpace(st.Search)
	if query == "" {
		view.Records = filtered
		return view, nil
	}
	if parser == nil {
		return View{}, ErrNoParser
	}

	match, err := parser.Parse(query)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			view.SearchError = true
			view.Syntax = se
			view.Records = []Record{}
			return view, nil
		}
		return View{}, fmt.Errorf("parse search %q: %w", query, err)
	}

	kept := filtered[:0]
	for i := range filtered {
		if match(parser.MatchField, &filtered[i]) {
			kept = append(kept, filtered[i])
		}
	}
	view.Records = kept
	return view, nil
}

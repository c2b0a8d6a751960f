package ranking

import (
	"sort"
	"strings"
)

// Direction is the sort order of a SortSpec.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortSpec sorts by a single field. The zero value means "no explicit sort".
type SortSpec struct {
	Field string
	Dir   Direction
}

func (s SortSpec) IsZero() bool { return s.Field == "" }

// ParseSort decodes the compact "<+|-><field>" encoding.
//
// An empty string yields the zero SortSpec. A string without a direction
// prefix sorts ascending by the whole string.
func ParseSort(raw string) SortSpec {
	s := strings.TrimSpace(raw)
	if s == "" {
		return SortSpec{}
	}
	switch s[0] {
	case '+':
		return SortSpec{Field: strings.TrimSpace(s[1:]), Dir: Asc}.normalize()
	case '-':
		return SortSpec{Field: strings.TrimSpace(s[1:]), Dir: Desc}.normalize()
	default:
		return SortSpec{Field: s, Dir: Asc}
	}
}

func (s SortSpec) normalize() SortSpec {
	if s.Field == "" {
		return SortSpec{}
	}
	return s
}

// String encodes the spec back to "<+|-><field>", or "" for no sort.
func (s SortSpec) String() string {
	if s.IsZero() {
		return ""
	}
	if s.Dir == Desc {
		return "-" + s.Field
	}
	return "+" + s.Field
}

// sortStable orders recs in place by spec. Equal keys keep their input order;
// records lacking the field sort as the minimal key.
func sortStable(recs []Record, spec SortSpec) {
	if spec.IsZero() || len(recs) < 2 {
		return
	}
	keys := make([]Value, len(recs))
	for i := range recs {
		keys[i], _ = recs[i].Field(spec.Field)
	}
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	desc := spec.Dir == Desc
	sort.SliceStable(idx, func(a, b int) bool {
		c := Compare(keys[idx[a]], keys[idx[b]])
		if desc {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]Record, len(recs))
	for i, j := range idx {
		sorted[i] = recs[j]
	}
	copy(recs, sorted)
}

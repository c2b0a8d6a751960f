package ranking

import (
	"math"
	"sort"
	"strings"
)

// PerformanceSummary holds precomputed metrics for a unit over one period.
// Nil fields were not reported for that period and sort as missing.
type PerformanceSummary struct {
	Availability           *float64 `json:"availability,omitempty"`
	BrokenTimePercentage   *float64 `json:"broken_time_percentage,omitempty"`
	BrokenTime             *float64 `json:"broken_time,omitempty"` // seconds
	OffTime                *float64 `json:"off_time,omitempty"`    // seconds
	TotalTime              *float64 `json:"total_time,omitempty"`  // seconds
	NumBreaks              *float64 `json:"num_breaks,omitempty"`
	NumInspections         *float64 `json:"num_inspections,omitempty"`
	NumFixes               *float64 `json:"num_fixes,omitempty"`
	MeanTimeBetweenFailure *float64 `json:"mean_time_between_failures,omitempty"` // seconds
}

// Record is one unit's flattened view for a single period.
//
// Rank is assigned by ComputeView on its own copies; records passed in are
// never modified.
type Record struct {
	UnitID       string
	UnitType     UnitType
	Station      string
	StationCode  string
	StationLines []string
	StationDesc  string
	EscDesc      string
	Rank         int

	Period  Period
	Summary *PerformanceSummary
}

// RecordBuilder merges unit identity, station location and one period's
// performance summary into a Record.
type RecordBuilder struct {
	rec Record
}

func NewRecord(unitID string, unitType UnitType) *RecordBuilder {
	return &RecordBuilder{rec: Record{UnitID: unitID, UnitType: unitType}}
}

func (b *RecordBuilder) Station(code, longName string, lines []string) *RecordBuilder {
	b.rec.StationCode = code
	b.rec.Station = longName
	b.rec.StationLines = append([]string(nil), lines...)
	return b
}

func (b *RecordBuilder) Descriptions(stationDesc, escDesc string) *RecordBuilder {
	b.rec.StationDesc = stationDesc
	b.rec.EscDesc = escDesc
	return b
}

// Performance attaches the summary for period p. A nil summary leaves every
// metric missing.
func (b *RecordBuilder) Performance(p Period, s *PerformanceSummary) *RecordBuilder {
	b.rec.Period = p
	if s != nil {
		cp := *s
		b.rec.Summary = &cp
	} else {
		b.rec.Summary = nil
	}
	return b
}

func (b *RecordBuilder) Build() Record { return b.rec }

// ---- Field access ----

// Kind classifies a field value for comparison.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

// Value is a dynamically typed field value. Missing values order before
// numbers, numbers before text.
type Value struct {
	Kind Kind
	Num  float64
	Text string
}

func Missing() Value { return Value{} }

// Number returns a numeric value; NaN is treated as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{Kind: KindNumber, Num: f}
}

func Text(s string) Value { return Value{Kind: KindText, Text: s} }

func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Compare orders two values: missing < number < text; text compares
// case-insensitively.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNumber:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
	case KindText:
		return strings.Compare(strings.ToLower(a.Text), strings.ToLower(b.Text))
	}
	return 0
}

type fieldDef struct {
	numeric bool
	text    bool // searched by bare terms
	get     func(r *Record) Value
}

func metric(pick func(s *PerformanceSummary) *float64) fieldDef {
	return fieldDef{numeric: true, get: func(r *Record) Value {
		if r.Summary == nil {
			return Missing()
		}
		p := pick(r.Summary)
		if p == nil {
			return Missing()
		}
		return Number(*p)
	}}
}

var fields = map[string]fieldDef{
	"unit_id":       {text: true, get: func(r *Record) Value { return Text(r.UnitID) }},
	"unit_type":     {text: true, get: func(r *Record) Value { return Text(string(r.UnitType)) }},
	"station":       {text: true, get: func(r *Record) Value { return Text(r.Station) }},
	"station_code":  {text: true, get: func(r *Record) Value { return Text(r.StationCode) }},
	"station_lines": {text: true, get: func(r *Record) Value { return Text(strings.Join(r.StationLines, ",")) }},
	"station_desc":  {text: true, get: func(r *Record) Value { return Text(r.StationDesc) }},
	"esc_desc":      {text: true, get: func(r *Record) Value { return Text(r.EscDesc) }},

	// rank is the input rank while sorting and the assigned rank while
	// searching, since ranks are assigned between the two.
	"rank": {numeric: true, get: func(r *Record) Value { return Number(float64(r.Rank)) }},

	"availability":               metric(func(s *PerformanceSummary) *float64 { return s.Availability }),
	"broken_time_percentage":     metric(func(s *PerformanceSummary) *float64 { return s.BrokenTimePercentage }),
	"broken_time":                metric(func(s *PerformanceSummary) *float64 { return s.BrokenTime }),
	"off_time":                   metric(func(s *PerformanceSummary) *float64 { return s.OffTime }),
	"total_time":                 metric(func(s *PerformanceSummary) *float64 { return s.TotalTime }),
	"num_breaks":                 metric(func(s *PerformanceSummary) *float64 { return s.NumBreaks }),
	"num_inspections":            metric(func(s *PerformanceSummary) *float64 { return s.NumInspections }),
	"num_fixes":                  metric(func(s *PerformanceSummary) *float64 { return s.NumFixes }),
	"mean_time_between_failures": metric(func(s *PerformanceSummary) *float64 { return s.MeanTimeBetweenFailure }),
}

// Field returns the named field. Unknown names report ok=false and a missing value.
func (r *Record) Field(name string) (Value, bool) {
	def, ok := fields[name]
	if !ok {
		return Missing(), false
	}
	return def.get(r), true
}

// FieldNames lists every addressable field, sorted.
func FieldNames() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsField reports whether name is addressable.
func IsField(name string) bool {
	_, ok := fields[name]
	return ok
}

// IsSortField reports whether ordering by name is meaningful. rank is
// excluded: it is assigned from the sort, so sorting by it only replays the
// previous pass.
func IsSortField(name string) bool {
	return name != "rank" && IsField(name)
}

// IsNumericField reports whether name holds numbers.
func IsNumericField(name string) bool {
	return fields[name].numeric
}

// TextFields lists the fields matched by a bare search term, sorted.
func TextFields() []string {
	out := make([]string, 0, 8)
	for k, d := range fields {
		if d.text {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

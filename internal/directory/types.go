package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"elesrank/internal/ranking"
)

type Station struct {
	Code      string   `json:"code"`
	ShortName string   `json:"short_name,omitempty"`
	LongName  string   `json:"long_name"`
	AllLines  []string `json:"all_lines,omitempty"`
}

type Unit struct {
	UnitID      string                                        `json:"unit_id"`
	UnitType    ranking.UnitType                              `json:"unit_type"`
	StationCode string                                        `json:"station_code"`
	StationDesc string                                        `json:"station_desc,omitempty"`
	EscDesc     string                                        `json:"esc_desc,omitempty"`
	Performance map[ranking.Period]*ranking.PerformanceSummary `json:"performance_summary,omitempty"`
}

type document struct {
	Stations []Station `json:"stations"`
	Units    []Unit    `json:"units"`
}

// Directory is an immutable snapshot of the unit directory.
type Directory struct {
	Stations map[string]Station
	Units    []Unit

	// Orphans counts units whose station code is not in the directory.
	Orphans int

	rankings map[ranking.Period][]ranking.Record
}

// Decode parses a directory document. Unit order in the document is the
// input order handed to the ranking pipeline.
func Decode(r io.Reader) (*Directory, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Directory, error) {
	d := &Directory{
		Stations: make(map[string]Station, len(doc.Stations)),
		Units:    make([]Unit, 0, len(doc.Units)),
		rankings: make(map[ranking.Period][]ranking.Record),
	}
	for _, st := range doc.Stations {
		code := strings.TrimSpace(st.Code)
		if code == "" {
			return nil, fmt.Errorf("station %q: code required", st.LongName)
		}
		d.Stations[code] = st
	}
	seen := make(map[string]struct{}, len(doc.Units))
	for i, u := range doc.Units {
		if strings.TrimSpace(u.UnitID) == "" {
			return nil, fmt.Errorf("units[%d]: unit_id required", i)
		}
		if _, dup := seen[u.UnitID]; dup {
			return nil, fmt.Errorf("units[%d]: duplicate unit_id %q", i, u.UnitID)
		}
		seen[u.UnitID] = struct{}{}
		u.UnitType = ranking.UnitType(strings.ToUpper(string(u.UnitType)))
		if _, ok := d.Stations[u.StationCode]; !ok {
			d.Orphans++
		}
		d.Units = append(d.Units, u)
	}
	for _, p := range ranking.Periods() {
		d.rankings[p] = d.records(p)
	}
	return d, nil
}

func (d *Directory) records(p ranking.Period) []ranking.Record {
	out := make([]ranking.Record, 0, len(d.Units))
	for _, u := range d.Units {
		st := d.Stations[u.StationCode]
		out = append(out, ranking.NewRecord(u.UnitID, u.UnitType).
			Station(u.StationCode, st.LongName, st.AllLines).
			Descriptions(u.StationDesc, u.EscDesc).
			Performance(p, u.Performance[p]).
			Build())
	}
	return out
}

// Rankings returns the records for period p. The slice is shared; callers
// must treat it as read-only (ranking.ComputeView copies before ranking).
func (d *Directory) Rankings(p ranking.Period) []ranking.Record {
	if d == nil {
		return nil
	}
	return d.rankings[p]
}

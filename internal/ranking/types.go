package ranking

import (
	"fmt"
	"strings"
)

// UnitType identifies the kind of monitored unit.
type UnitType string

const (
	Escalator UnitType = "ESCALATOR"
	Elevator  UnitType = "ELEVATOR"
)

// Period selects which performance summary is merged into a record.
type Period string

const (
	AllTime     Period = "all_time"
	OneDay      Period = "one_day"
	ThreeDay    Period = "three_day"
	SevenDay    Period = "seven_day"
	FourteenDay Period = "fourteen_day"
	ThirtyDay   Period = "thirty_day"
)

var periods = []Period{AllTime, OneDay, ThreeDay, SevenDay, FourteenDay, ThirtyDay}

// Periods returns every recognized period in display order.
func Periods() []Period {
	return append([]Period(nil), periods...)
}

func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AllTime, nil
	}
	for _, p := range periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// UnitTypeFilter restricts the visible unit types.
type UnitTypeFilter string

const (
	AllTypes       UnitTypeFilter = "all_types"
	EscalatorsOnly UnitTypeFilter = "escalators_only"
	ElevatorsOnly  UnitTypeFilter = "elevators_only"
)

func ParseUnitTypeFilter(s string) (UnitTypeFilter, error) {
	switch UnitTypeFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", AllTypes:
		return AllTypes, nil
	case EscalatorsOnly:
		return EscalatorsOnly, nil
	case ElevatorsOnly:
		return ElevatorsOnly, nil
	default:
		return "", fmt.Errorf("unknown unit type filter %q", s)
	}
}

// Keep reports whether a unit of type t passes the filter.
func (f UnitTypeFilter) Keep(t UnitType) bool {
	switch {
	case f == AllTypes || f == "":
		return true
	case t == Escalator && f == EscalatorsOnly:
		return true
	case t == Elevator && f == ElevatorsOnly:
		return true
	default:
		return false
	}
}

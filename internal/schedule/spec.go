// Package schedule runs periodic jobs (directory reloads) on robfig/cron.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

func (k Kind) String() string {
	if k == KindInterval {
		return "interval"
	}
	return "cron"
}

// Spec is a normalized schedule string.
//
// Accepted forms:
//   - cron: "*/5 * * * *", "0 30 6 * * *", "@hourly", "@every 10m"
//   - Go duration: "10m", "1h30m"
//   - HH:MM interval: "00:10" (ten minutes), "02:30"
//
// A "cron:" or "every:" prefix forces the interpretation.
type Spec struct {
	Kind  Kind
	Cron  string
	Every time.Duration
}

var hhmm = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// Parse normalizes raw into a Spec without validating cron fields; Service.Add
// reports malformed cron expressions.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Spec{}, fmt.Errorf("cron expression required after 'cron:'")
		}
		return Spec{Kind: KindCron, Cron: expr}, nil
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(s[len("every:"):])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindInterval, Every: d}, nil
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return Spec{Kind: KindCron, Cron: s}, nil
	}
	d, err := parseInterval(s)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '*/10 * * * *', HH:MM like '00:30', or a duration like '10m')", raw)
	}
	return Spec{Kind: KindInterval, Every: d}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	var d time.Duration
	if m := hhmm.FindStringSubmatch(v); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(h)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("invalid interval %q", v)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

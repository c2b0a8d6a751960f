package view

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"elesrank/internal/ranking"
)

const missingCell = "-"

// Render writes p as an aligned text table followed by the pagination label.
func Render(w io.Writer, p Page) error {
	if _, err := fmt.Fprintf(w, "Rankings: %s\n", p.State.Describe()); err != nil {
		return err
	}
	if p.SearchError {
		msg := "malformed search query"
		if p.Syntax != nil {
			msg = p.Syntax.Error()
		}
		_, err := fmt.Fprintf(w, "! %s\n", msg)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUNIT\tTYPE\tSTATION\tLINES\tBROKEN\tAVAIL\tBREAKS\tBROKEN TIME\tDESCRIPTION")
	for i := range p.Records {
		r := &p.Records[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Rank,
			r.UnitID,
			strings.ToLower(string(r.UnitType)),
			cell(r.Station),
			cell(strings.Join(r.StationLines, " ")),
			percent(r, "broken_time_percentage"),
			percent(r, "availability"),
			count(r, "num_breaks"),
			seconds(r, "broken_time"),
			cell(r.StationDesc),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, p.Label())
	return err
}

func cell(s string) string {
	if strings.TrimSpace(s) == "" {
		return missingCell
	}
	return s
}

func number(r *ranking.Record, field string) (float64, bool) {
	v, _ := r.Field(field)
	if v.Kind != ranking.KindNumber {
		return 0, false
	}
	return v.Num, true
}

// percent renders a 0..1 ratio as a percentage.
func percent(r *ranking.Record, field string) string {
	f, ok := number(r, field)
	if !ok {
		return missingCell
	}
	return humanize.FtoaWithDigits(f*100, 2) + "%"
}

func count(r *ranking.Record, field string) string {
	f, ok := number(r, field)
	if !ok {
		return missingCell
	}
	return humanize.Comma(int64(f))
}

func seconds(r *ranking.Record, field string) string {
	f, ok := number(r, field)
	if !ok {
		return missingCell
	}
	return (time.Duration(f * float64(time.Second))).Round(time.Minute).String()
}

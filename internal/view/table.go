package view

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// DefaultPageSize matches the rankings table's initial row count.
const DefaultPageSize = 20

// Table is the pagination state. Page is 1-based.
type Table struct {
	Page  int
	Count int
	Total int
}

// Pages is the number of pages, at least 1.
func (t Table) Pages() int {
	n := t.size()
	pages := (t.Total + n - 1) / n
	return max(pages, 1)
}

func (t Table) size() int {
	if t.Count <= 0 {
		return DefaultPageSize
	}
	return t.Count
}

// Clamp returns t with Page inside [1, Pages()].
func (t Table) Clamp() Table {
	t.Page = min(max(t.Page, 1), t.Pages())
	return t
}

// Bounds returns the half-open index range of the current page.
func (t Table) Bounds() (from, to int) {
	t = t.Clamp()
	n := t.size()
	from = min((t.Page-1)*n, t.Total)
	to = min(from+n, t.Total)
	return from, to
}

// Slice returns the items on the current page.
func Slice[T any](items []T, t Table) []T {
	t.Total = len(items)
	from, to := t.Bounds()
	return items[from:to]
}

// Label is a compact pagination summary, e.g. "Page 2/7 · 21-40 of 131".
func (t Table) Label() string {
	t = t.Clamp()
	if t.Total == 0 {
		return "Page 1/1 · no units"
	}
	from, to := t.Bounds()
	return fmt.Sprintf("Page %d/%d · %d-%d of %s", t.Page, t.Pages(), from+1, to, humanize.Comma(int64(t.Total)))
}

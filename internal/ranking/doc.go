// Package ranking turns a period's unit records into the ordered, ranked and
// filtered list a rankings table displays.
//
// ComputeView runs a fixed pipeline: stable sort, dense rank assignment,
// unit-type filter, search filter. Ranks are assigned before filtering, so a
// record's rank is its position in the full sorted set.
package ranking

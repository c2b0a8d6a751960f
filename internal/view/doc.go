// Package view owns the rankings table: the mutable filter/sort/search state,
// pagination, and the debounced refreshes that run the ranking pipeline when
// that state changes.
//
// Each setter mirrors one watched input. Period and unit type changes refresh
// through a postponing scheduler; search edits refresh after a short delay that
// is not postponed while typing, and sync the encoded state on a second,
// postponing scheduler. Refreshed pages are published on an eventbus.Bus.
package view

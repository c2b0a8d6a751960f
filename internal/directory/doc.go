// Package directory loads the unit directory (stations, units and their
// per-period performance summaries) and exposes it as ranking records.
//
// Source resolves once: Ready is closed after the first successful load and
// later reloads swap the snapshot in place.
package directory

// Package delay provides a debounce primitive for coalescing bursts of
// triggers (keystrokes, filter toggles, file events) into one deferred call.
//
// Each call site owns its own Scheduler. A Scheduler keeps at most one pending
// invocation:
//   - Schedule with postpone=true resets the countdown of a pending invocation
//   - Schedule with postpone=false leaves a pending invocation untouched
//   - a callback returning true is re-armed after the same delay (poll until ready)
package delay

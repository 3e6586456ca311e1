// Package rotation maintains the sequence of crypto periods and resolves,
// for any media timestamp, which period's keys are active.
//
// Periods are cached by index and created on demand, so out-of-order
// requests for past indices return the originally cached keys rather than
// triggering a fresh fetch. Concurrent requests for the same period are
// coalesced into a single provider call; no lock is held across provider
// I/O, and cancelling the job context fails all callers blocked on an
// in-flight fetch.
package rotation

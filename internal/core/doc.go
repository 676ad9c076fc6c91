// Package core provides the bulk import reconciliation engine.
//
// It owns the working set of an import session: the rows parsed from a file,
// their display order, and their validation problems. It lets the user edit
// and delete rows, submits the batch, and merges the server's per-row outcome
// back into the session. The package has no transport or rendering
// dependencies; web handlers, the CLI and tests drive it the same way.
//
// # State
//
// A session's [State] holds three indices keyed by row id:
//
//   - Row Store: id -> [WorkingRow]
//   - Order Index: display order of ids
//   - Error Index: id -> []FieldError from [Validate]
//
// State only changes through [Reduce], a reducer over a [Phase] enum:
//
//	idle -> loading -> reviewing -> submitting -> reconciling -> done
//	                      ^                                   \-> partial_failure
//	                      \------------- edit/delete -------------/
//
// # Sessions
//
// [Session] serializes commands behind a mutex and runs the file load and the
// batch submit on goroutines. Each async call is tagged with a generation; a
// result whose generation is no longer current is dropped with [ErrStale], so a
// superseded load can never bring old rows back. Subscribers receive a [View]
// after every change.
//
// [Manager] keeps sessions by id, sweeps idle ones on a cron schedule, and
// shares one [ParseLimiter] across all of them.
//
// # Reconciliation
//
// The batch endpoint reports failures by 1-based position in the submitted
// order. Rows cannot be edited or deleted while a submission is in flight, so
// the snapshot taken at submit time still matches the response. Every row the
// server did not name is treated as imported and removed; named rows stay
// with their message attached. A transport failure or a response naming an
// impossible position leaves the working set untouched.
//
// # Error Handling
//
// Command errors are sentinels wrapped with %w. [MapError] turns any error into
// a coded [UserMessage]:
//
//   - FILE001-FILE007: file errors (size, type, headers, row limit)
//   - IMP001-IMP008: import session errors
//   - NET001-NET005: batch endpoint errors
//   - ATT001-ATT003: receipt attachment errors
//   - RATE001-RATE002: throttling
package core

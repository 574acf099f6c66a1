// Package collection mirrors a remote REST collection in memory.
//
// A Synchronizer owns a local list of records, a loading flag and a single error slot,
// and exposes four operations against an Endpoint: FetchAll, Add, Update and Remove.
// Failures are collapsed into one fixed message per operation, recorded in the error slot
// and announced through a Notifier; the returned Go error carries the cause for callers
// that want it.
//
// The list is a cache of the server: it is replaced by FetchAll and Add, patched by
// Update and Remove, and discarded by Close. Results that arrive after Close never
// touch the state.
package collection

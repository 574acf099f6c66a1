// Package domain defines the core data structures of rankdesk.
// It contains the processor ranking record and its total mapping from raw API payloads,
// the response envelope used by the rankings API, user-facing notifications,
// and the repository interfaces that define the contracts for persistence.
//
// The package has no knowledge of HTTP transports, SQL or the CLI. Implementations
// of the repository interfaces live in the db package, and the collection package
// builds the synchronization logic on top of these types.
package domain

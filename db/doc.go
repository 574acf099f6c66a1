// Package db provides the SQLite persistence layer for rankdesk.
// It implements the repository interfaces declared in the domain package:
//   - StorageRepository: the key/value store holding the client session token (`storage_repo.go`).
//   - NotificationRepository: the history of user-facing notifications (`notification_repo.go`).
//   - ProcessorRepository: the server-side rankings collection used by the reference API (`processor_repo.go`).
//
// Connections are opened with New, which applies the embedded goose migrations (`migrations/`).
// Database structs use `sql.Null*` types for nullable columns and are converted to and from
// domain structs at the repository boundary.
package db

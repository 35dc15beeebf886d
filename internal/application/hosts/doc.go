// Package hosts implements the application layer for the virtual-host registry.
//
// Every caller (the CLI commands, the HTTP API and the tray monitor) goes through
// Service, so the read-modify-write discipline lives in one place.
//
// # Service
//
// Service exposes the query and mutation operations:
//   - ListHosts: fresh read of hosts.json, no lock, one retry on a half-written file
//   - ReplaceAll: overwrite the whole registry with a caller-supplied set
//   - DeleteOne, ToggleActive, SetAllActive: the tray and list actions
//   - UpsertHost, RenameDomain, RenameGroup: editing single records
//   - AddAlias, RemoveAlias, ToggleAlias: alias management
//   - Export, Import: JSON or YAML transfer of the full registry
//
// Mutations run through Repository.Update, which holds the cross-process lock for
// the whole load, modify and save cycle. A mutation that finds nothing to change
// returns without writing.
//
// # Monitor
//
// Monitor watches hosts.json and publishes a Change for every edit made by any
// process, computed against the last snapshot it saw.
//
// # Errors
//
// Operations return the domain errors from internal/domain/vhost unchanged so
// callers can branch with errors.Is on vhost.ErrNotFound, vhost.ErrLockTimeout,
// vhost.ErrParse and vhost.ErrInvalidDomain.
package hosts

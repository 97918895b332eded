// Package history stores the outcome of every finished job in SQLite.
//
// The engine only appends through AddItem; the CLI reads entries back with
// List and Stats. The schema is embedded and versioned; a version mismatch
// asks the user to clear the database rather than migrating it.
package history

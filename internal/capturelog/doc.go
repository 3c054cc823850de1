// Package capturelog persists the station's capture history in SQLite:
// published quality verdicts, forced sensor recoveries and saved PNG
// snapshots.
//
// The schema lives in the top-level migrations package and is applied by
// database.Migrate at startup. Rows are append-only; Prune trims old verdict
// and recovery rows.
package capturelog

// Package database provides SQLite-based replay history for ringscan.
//
// HistoryDB stores:
//   - Replay reports as JSON with summary columns for listing
//   - Every capture attempt of a replay, for per-slot and per-reason queries
//
// SQLite (via modernc.org/sqlite) keeps the history in a single file and
// needs no CGO.
package database

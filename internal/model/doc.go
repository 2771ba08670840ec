// Package model defines the data structures shared by the replay pipeline,
// the report writers and the history database.
//
// This package contains the following main types:
//   - ReplayReport: the result of replaying one capture trace
//   - AttemptRecord: one capture attempt and its outcome
//   - CoverageSummary: per-ring coverage, gaps and rejection counts
//
// Models live in their own package so that pipeline, report and database can
// share them without import cycles. They serialize to JSON for report output
// and database storage.
package model

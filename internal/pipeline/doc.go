// Package pipeline replays capture traces through a sequence of steps.
//
// A replay loads a trace file, builds a scan session from the effective
// configuration, drives the session through the trace's events, and
// summarizes coverage. Each stage is a Step that receives the shared Run and
// may modify it; the Pipeline runs them in order with consistent logging,
// error recording and cancellation.
//
// BatchProcessor replays many traces concurrently. Sessions never share
// state, so traces are independent and the only limit is the configured
// concurrency (errgroup.SetLimit).
package pipeline

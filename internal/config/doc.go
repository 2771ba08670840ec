// Package config provides configuration structures and utilities for the
// ringscan CLI. It holds replay, report and history options, and loads the
// .ringscan YAML file that overrides ring geometry and capture thresholds.
package config

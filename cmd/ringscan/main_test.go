package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// executeCmd runs the root command with args and returns what it wrote to
// stdout and stderr.
func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile writes content to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const fullOrbitTrace = `
name: full-orbit
description: both rings at good light
events:
  - placeAnchor: {position: [0, 0, 0]}
  - orbit: {ring: lower, brightness: 500}
  - orbit: {ring: upper, brightness: 500}
`

const darkTrace = `
name: dark-room
events:
  - placeAnchor: {position: [0, 0, 0]}
  - capture: {position: [0.5, 0, 0], brightness: 20, expect: too_dark}
  - capture: {position: [0.5, 0, 0], brightness: 400}
  - capture: {position: [0.5, 0, 0], brightness: 400, expect: duplicate_angle}
`

const mismatchTrace = `
name: wrong-guess
events:
  - capture: {position: [0.5, 0, 0], expect: accepted}
`

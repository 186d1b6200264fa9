//go:build tools

// Package tools pins build-time tooling in go.mod without pulling it into
// the application build, the standard Go idiom for a dependency that is
// invoked from the command line (or a Makefile target) rather than
// imported by source. None of these were ever imported by the teacher's
// own pkg/mcast either — they travelled in on its vendored dependency
// graph as coverage/cross-compile/lint tooling.
package tools

import (
	_ "github.com/axw/gocov/gocov"
	_ "github.com/matm/gocov-html"
	_ "github.com/mitchellh/gox"
	_ "golang.org/x/lint/golint"
)

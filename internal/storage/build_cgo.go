//go:build sqlite_cgo

package storage

// Compiled with CGO and the sqlite_cgo tag:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// Uses the C SQLite amalgamation through github.com/mattn/go-sqlite3, which
// is faster for bulk ingestion.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

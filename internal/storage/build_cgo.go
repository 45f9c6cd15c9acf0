//go:build cgosqlite

package storage

// Built with: CGO_ENABLED=1 go build -tags cgosqlite ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by mattn/go-sqlite3
	DriverName = "sqlite3"

	// BuildMode is reported by the version command
	BuildMode = "cgo"
)

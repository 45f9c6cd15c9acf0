//go:build !cgosqlite

package storage

// Default build: pure Go, no C toolchain required.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite
	DriverName = "sqlite"

	// BuildMode is reported by the version command
	BuildMode = "purego"
)

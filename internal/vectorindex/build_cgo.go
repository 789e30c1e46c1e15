//go:build sqlite_vec

package vectorindex

// Compiled with CGO and the sqlite_vec tag. Distance ranking runs inside
// SQLite through the sqlite-vec extension.
//
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vec_distance_l2 can be used in SQL
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

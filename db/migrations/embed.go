// Package dbmigrations exposes embedded SQL migrations for straddle binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into straddle binaries.
//
//go:embed *.sql
var Files embed.FS

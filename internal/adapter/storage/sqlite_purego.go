//go:build !sqlite_cgo

package storage

// Pure Go SQLite, no C toolchain needed. Build with -tags sqlite_cgo to use mattn/go-sqlite3.
import (
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

//go:build sqlite_cgo

package storage

// CGO_ENABLED=1 go build -tags sqlite_cgo ./...
import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "sqlite3"

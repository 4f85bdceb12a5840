package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Migration is one schema step. Up holds single statements because the MySQL driver rejects
// multi-statement Exec unless the DSN opts in.
type Migration struct {
	Version string
	Up      []string
}

var sqliteMigrations = []Migration{
	{
		Version: "1.0.0",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS products (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				price      TEXT NOT NULL,
				stock      INTEGER NOT NULL CHECK (stock >= 0),
				version    INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS orders (
				id             TEXT PRIMARY KEY,
				customer_email TEXT NOT NULL,
				created_at     DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_customer_email ON orders(customer_email)`,
			`CREATE TABLE IF NOT EXISTS order_items (
				id           TEXT PRIMARY KEY,
				order_id     TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				position     INTEGER NOT NULL,
				product_id   TEXT NOT NULL,
				product_name TEXT NOT NULL,
				quantity     INTEGER NOT NULL,
				unit_price   TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
		},
	},
}

var mysqlMigrations = []Migration{
	{
		Version: "1.0.0",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS products (
				id         VARCHAR(36) PRIMARY KEY,
				name       VARCHAR(255) NOT NULL,
				price      DECIMAL(12,2) NOT NULL,
				stock      INT NOT NULL,
				version    INT NOT NULL DEFAULT 0,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS orders (
				id             VARCHAR(36) PRIMARY KEY,
				customer_email VARCHAR(320) NOT NULL,
				created_at     DATETIME(6) NOT NULL,
				INDEX idx_orders_customer_email (customer_email)
			)`,
			`CREATE TABLE IF NOT EXISTS order_items (
				id           VARCHAR(36) PRIMARY KEY,
				order_id     VARCHAR(36) NOT NULL,
				position     INT NOT NULL,
				product_id   VARCHAR(36) NOT NULL,
				product_name VARCHAR(255) NOT NULL,
				quantity     INT NOT NULL,
				unit_price   DECIMAL(12,2) NOT NULL,
				INDEX idx_order_items_order_id (order_id),
				CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
			)`,
		},
	},
}

func migrationsFor(d Dialect) []Migration {
	if d == DialectMySQL {
		return mysqlMigrations
	}
	return sqliteMigrations
}

// ApplyMigrations runs every migration newer than the highest recorded schema version.
func ApplyMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    VARCHAR(32) NOT NULL PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrationsFor(d) {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(v) {
			continue
		}
		for _, stmt := range m.Up {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		current = v
	}
	return nil
}

// SchemaVersion reports the highest applied migration, 0.0.0 on an empty database.
func SchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	v, err := currentSchemaVersion(ctx, db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Versions are compared as semver, string ordering would put 1.10.0 before 1.9.0.
func currentSchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan schema_version: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

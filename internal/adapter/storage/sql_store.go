package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/orderflow/internal/core/domain"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// querier is implemented by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements both the catalog and the order repository on database/sql. Placeholders
// are "?" for every supported driver, only the schema differs per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore migrates the schema and returns a ready store.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := ApplyMigrations(ctx, db, dialect); err != nil {
		return nil, err
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// OpenSQLite opens a SQLite database. ":memory:" gives a private database that lives as long as
// its single connection.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// OpenMySQL opens and pings a MySQL pool. parseTime is forced on so DATETIME columns scan into
// time.Time.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const productColumns = `id, name, price, stock, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *SQLStore) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	return findProduct(ctx, s.db, id)
}

func findProduct(ctx context.Context, q querier, id string) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLStore) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, stock = ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		product.Name, product.Price, product.Stock, now, product.ID,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES (?, ?, ?, ?, 0, ?, ?)`,
			product.ID, product.Name, product.Price, product.Stock, now, now,
		)
		if err != nil {
			return domain.Product{}, fmt.Errorf("insert product: %w", err)
		}
	}

	saved, err := findProduct(ctx, tx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}
	return *saved, nil
}

// DecreaseStock is a single decrement-if-sufficient statement, so concurrent orders never
// oversell and never lose a decrement that had stock.
func (s *SQLStore) DecreaseStock(ctx context.Context, id string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = ?
		WHERE id = ? AND stock >= ?`,
		quantity, s.now(), id, quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("decrease stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	product, err := findProduct(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return 0, domain.ProductNotFound(id)
	}
	if rows == 0 {
		return product.Stock, &domain.InsufficientStockError{ProductID: id, Available: product.Stock, Requested: quantity}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return product.Stock, nil
}

func (s *SQLStore) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (s *SQLStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// SaveOrder writes the order row and all item rows in one transaction.
func (s *SQLStore) SaveOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	saved, err := order.Persisted(uuid.NewString(), s.now())
	if err != nil {
		return domain.Order{}, err
	}
	saved = saved.WithItemIDs(uuid.NewString)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_email, created_at)
		VALUES (?, ?, ?)`,
		saved.ID, saved.CustomerEmail, saved.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range saved.Items() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, saved.ID, i, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

const orderQuery = `
	SELECT o.id, o.customer_email, o.created_at,
	       i.id, i.product_id, i.product_name, i.quantity, i.unit_price
	FROM orders o
	JOIN order_items i ON i.order_id = o.id`

func (s *SQLStore) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	orders, err := s.queryOrders(ctx, `WHERE o.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (s *SQLStore) FindAllOrders(ctx context.Context) ([]domain.Order, error) {
	return s.queryOrders(ctx, "")
}

func (s *SQLStore) FindOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return s.queryOrders(ctx, `WHERE o.customer_email = ?`, email)
}

// queryOrders folds the joined rows back into orders. Rows arrive grouped by order.
func (s *SQLStore) queryOrders(ctx context.Context, where string, args ...any) ([]domain.Order, error) {
	var b strings.Builder
	b.WriteString(orderQuery)
	if where != "" {
		b.WriteString("\n\t")
		b.WriteString(where)
	}
	b.WriteString("\n\tORDER BY o.created_at, o.id, i.position")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	type header struct {
		id, email string
		createdAt time.Time
	}
	var (
		orders  = make([]domain.Order, 0)
		current *header
		items   []domain.OrderItem
	)
	flush := func() {
		if current != nil {
			orders = append(orders, domain.RestoreOrder(current.id, current.email, current.createdAt, items))
		}
	}

	for rows.Next() {
		var (
			h    header
			item domain.OrderItem
		)
		if err := rows.Scan(&h.id, &h.email, &h.createdAt,
			&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if current == nil || current.id != h.id {
			flush()
			current = &h
			items = nil
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	flush()
	return orders, nil
}

func (s *SQLStore) DeleteOrder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return tx.Commit()
}

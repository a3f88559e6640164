// Package gormdb implements the repository interfaces with gorm.
//
// TWO BACKENDS:
// The DSN picks the database:
//   - "postgres://..." / "postgresql://..." → gorm.io/driver/postgres (pgx underneath)
//   - anything else                        → a SQLite file path, or ":memory:" for tests
//
// For SQLite we open the connection ourselves with modernc.org/sqlite (pure Go,
// no cgo) and hand it to gorm.io/driver/sqlite as an existing pool. The pool is
// capped at one connection: an in-memory database and its PRAGMAs belong to a
// single connection, and SQLite serializes writers anyway.
//
// TRANSACTIONS:
// Each repository method runs inside db.transaction. A returned error rolls the
// transaction back before the error is translated into an *apperror.AppError.
package gormdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
)

// DB wraps a gorm connection pool and hands out the per-entity repositories.
type DB struct {
	conn   *gorm.DB
	hasher repository.Hasher
	now    func() time.Time
}

type options struct {
	hasher repository.Hasher
	debug  bool
}

// Option configures New.
type Option func(*options)

// WithHasher replaces the bcrypt PasswordService used to hash user passwords.
func WithHasher(h repository.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

// WithDebug makes gorm log every statement.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// New opens the database described by dsn and migrates the schema.
//
//	db, err := gormdb.New("data/registry.db")
//	if err != nil { ... }
//	defer db.Close()
func New(dsn string, opts ...Option) (*DB, error) {
	o := options{hasher: auth.NewPasswordService()}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if o.debug {
		level = logger.Info
	}

	db := &DB{hasher: o.hasher, now: time.Now}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return db.now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("gormdb: opening database: %w", err)
	}
	db.conn = conn

	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("gormdb: running migrations: %w", err)
	}

	return db, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

func openDialector(dsn string) (gorm.Dialector, error) {
	if isPostgresDSN(dsn) {
		return postgres.New(postgres.Config{DSN: dsn}), nil
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("gormdb: opening sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gormdb: pinging sqlite: %w", err)
	}

	// WAL lets readers proceed while a write is in flight. Foreign keys are
	// off by default in SQLite.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("gormdb: %s: %w", pragma, err)
		}
	}

	return sqlite.New(sqlite.Config{Conn: conn}), nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Users returns the user repository backed by this pool.
func (db *DB) Users() *UserDB { return &UserDB{db: db} }

// Products returns the product repository backed by this pool.
func (db *DB) Products() *ProductDB { return &ProductDB{db: db} }

func (db *DB) migrate() error {
	return db.conn.AutoMigrate(&model.User{}, &model.Product{})
}

func (db *DB) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.conn.WithContext(ctx).Transaction(fn)
}

// writeError turns an error returned from a rolled-back write into an
// *apperror.AppError. Errors that already carry a kind pass through.
func writeError(action string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Persistence(action, err)
}

// readError translates a failed read. Rows whose photos column cannot be
// decoded are reported as malformed rather than as a storage failure.
func readError(resource, id, action string, err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(resource, id)
	case errors.Is(err, model.ErrMalformedPhotos):
		return apperror.Malformed(resource, id, err)
	default:
		return apperror.Persistence(action, err)
	}
}

// isUniqueViolation recognises a unique-constraint failure from either backend.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const versionRowKey = "__version"

const kvSchema = `CREATE TABLE IF NOT EXISTS kv_store (
	namespace VARCHAR(128) NOT NULL,
	k VARCHAR(255) NOT NULL,
	value_json LONGTEXT NOT NULL,
	PRIMARY KEY (namespace, k)
)`

// SQLStore persists the namespace in a kv_store table. It has no push channel,
// so other handles see its writes through Version polling.
type SQLStore struct {
	db        *sql.DB
	namespace string
	origin    string
}

// NewSQLStore creates the kv_store table when missing and returns a handle.
func NewSQLStore(ctx context.Context, db *sql.DB, namespace string) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return &SQLStore{db: db, namespace: namespace, origin: uuid.New().String()}, nil
}

func (s *SQLStore) Origin() string { return s.origin }

// Close is a no-op; the pool belongs to the caller.
func (s *SQLStore) Close() error { return nil }

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value_json FROM kv_store WHERE namespace = ? AND k = ?",
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get %s: %w: %w", key, ErrUnavailable, err)
	}
	return []byte(value), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql begin: %w: %w", ErrUnavailable, err)
	}
	defer tx.Rollback()

	// The version row is locked first so concurrent writers queue behind it.
	if err := bumpVersion(ctx, tx, s.namespace); err != nil {
		return fmt.Errorf("sql bump version: %w: %w", ErrUnavailable, err)
	}
	if err := replaceRow(ctx, tx, s.namespace, key, string(value)); err != nil {
		return fmt.Errorf("sql set %s: %w: %w", key, ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql commit: %w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLStore) Version(ctx context.Context) (uint64, error) {
	version, err := readVersion(ctx, s.db, s.namespace)
	if err != nil {
		return 0, fmt.Errorf("sql version: %w: %w", ErrUnavailable, err)
	}
	return version, nil
}

// replaceRow is delete+insert so the same statements work on MySQL and SQLite.
func replaceRow(ctx context.Context, tx *sql.Tx, namespace, key, value string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM kv_store WHERE namespace = ? AND k = ?", namespace, key); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO kv_store (namespace, k, value_json) VALUES (?, ?, ?)", namespace, key, value)
	return err
}

const bumpVersionSQL = `UPDATE kv_store
	SET value_json = CAST(CAST(value_json AS UNSIGNED) + 1 AS CHAR)
	WHERE namespace = ? AND k = ?`

// bumpVersion increments the version row in place, creating it at 1. A writer
// that loses the race to create it retries the increment.
func bumpVersion(ctx context.Context, tx *sql.Tx, namespace string) error {
	for attempt := 0; ; attempt++ {
		res, err := tx.ExecContext(ctx, bumpVersionSQL, namespace, versionRowKey)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO kv_store (namespace, k, value_json) VALUES (?, ?, '1')", namespace, versionRowKey)
		if err == nil || attempt > 0 || !isDuplicateKey(err) {
			return err
		}
	}
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readVersion(ctx context.Context, q rowQuerier, namespace string) (uint64, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		"SELECT value_json FROM kv_store WHERE namespace = ? AND k = ?",
		namespace, versionRowKey,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

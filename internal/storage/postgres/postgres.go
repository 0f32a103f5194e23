package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the query surface repositories run against. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so a repository bound to a transaction via WithTx keeps
// the same method set.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Private config for using inside postgres storage and open connections
type config struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// Simple helper function to read an environment or return a default value
func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func (c *config) init() {
	c.Host = getEnv("DB_HOST", "localhost")
	c.Port = getEnv("DB_PORT", "5432")
	c.Username = getEnv("DB_USER", "postgres")
	c.Password = getEnv("DB_PASS", "postgres")
	c.Database = getEnv("DB_NAME", "authd_db")
}

// Storage holds the connection pool all repositories share.
type Storage struct {
	conf config
	pool *pgxpool.Pool
}

// New opens the connection pool and verifies it.
func New(ctx context.Context) (*Storage, error) {
	conf := config{}
	conf.init()
	pool, err := pgxpool.New(ctx, connString(conf))
	if err != nil {
		return nil, errors.New("error connecting to database: " + err.Error())
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, errors.New("error pinging database: " + err.Error())
	}
	return &Storage{conf: conf, pool: pool}, nil
}

// Pool exposes the underlying pool for repository construction.
func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

// CloseStorage ends database pool connection.
func (s *Storage) CloseStorage() {
	s.pool.Close()
}

// WithinTx runs fn inside a transaction: commit on nil error, rollback
// otherwise. The code-exchange and refresh-rotation paths rely on this to
// keep their read-validate-mark-issue sequence atomic.
func (s *Storage) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func connString(conf config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		conf.Username, conf.Password, conf.Host, conf.Port, conf.Database)
}

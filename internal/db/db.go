package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the database connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection with OpenTelemetry instrumentation
func NewDB(dsn, serviceName string, logger *zap.Logger) (*DB, error) {
	driverName, err := otelsql.Register("mysql",
		otelsql.WithAttributes(
			attribute.String("db.system", "mysql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Connection pool gauges come from otelsql's built-in stats reporting
	if err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(
		attribute.String("db.system", "mysql"),
		attribute.String("service.name", serviceName),
	)); err != nil {
		logger.Warn("failed to register otelsql stats metrics", zap.Error(err))
	}

	return Wrap(db, logger), nil
}

// Wrap adopts an already opened pool, e.g. a sqlmock connection in tests
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise; fn's error is returned unchanged.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InitSchema runs schema.sql one statement at a time; go-sql-driver/mysql
// rejects multi-statement Exec without multiStatements=true
func (db *DB) InitSchema(ctx context.Context, schemaSQL string) error {
	for i, stmt := range splitSQLStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d (%s): %w", i+1, firstLine(stmt), err)
		}
	}

	db.logger.Info("database schema initialized")
	return nil
}

// splitSQLStatements cuts a script on semicolons, dropping blank lines and
// whole-line "--" comments. Semicolons inside string literals are not
// supported; schema.sql has none.
func splitSQLStatements(script string) []string {
	var stmts []string
	var cur strings.Builder
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		for {
			end := strings.IndexByte(line, ';')
			if end < 0 {
				break
			}
			cur.WriteString(line[:end])
			flush()
			line = line[end+1:]
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()

	return stmts
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

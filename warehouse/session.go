package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opsdata/etl-scripts/frame"
)

// Session is a reusable handle over a connection pool and its dialect.
type Session struct {
	Logger       *slog.Logger
	db           *sql.DB
	dialect      Dialect
	maxIdleConns int

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the database described by p and verifies the login with a
// ping. Every failure is returned as a *ConnectionError.
func Open(ctx context.Context, p Params, logger *slog.Logger) (*Session, error) {
	connErr := func(err error) error {
		return &ConnectionError{Driver: p.Driver, Host: p.Host, Cause: err}
	}

	dialect, err := DialectFor(p.Driver)
	if err != nil {
		return nil, connErr(err)
	}

	db, err := openDB(p, logger)
	if err != nil {
		return nil, connErr(err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connErr(err)
	}

	logger.Info(fmt.Sprintf("Connected to %s database", p.Driver), "host", p.Host, "database", p.Database, "auth", string(p.Auth))
	return NewSession(db, dialect, p.MaxIdleConns, logger), nil
}

// DefaultMaxIdleConns is database/sql's own idle pool size.
const DefaultMaxIdleConns = 2

// NewSession wraps an already opened pool. A non-positive maxIdleConns
// keeps DefaultMaxIdleConns.
func NewSession(db *sql.DB, dialect Dialect, maxIdleConns int, logger *slog.Logger) *Session {
	if maxIdleConns <= 0 {
		maxIdleConns = DefaultMaxIdleConns
	}
	db.SetMaxIdleConns(maxIdleConns)
	return &Session{
		Logger:       logger,
		db:           db,
		dialect:      dialect,
		maxIdleConns: maxIdleConns,
	}
}

func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Conn pins a single physical connection. The caller must close it.
func (s *Session) Conn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

// Query runs a statement and materializes its result.
func (s *Session) Query(ctx context.Context, query string) (*frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return frame.FromRows(rows)
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// Dispose drops idle pooled connections so that the next statement runs on
// a freshly opened physical connection.
func (s *Session) Dispose() {
	s.db.SetMaxIdleConns(0)
	s.db.SetMaxIdleConns(s.maxIdleConns)
	s.Logger.Debug("Disposed idle database connections")
}

// Close releases the pool. Calls after the first are no-ops.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
		s.Logger.Info("Database session closed")
	})
	return s.closeErr
}

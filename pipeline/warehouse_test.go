package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/extract"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/notify"
	"github.com/opsdata/etl-scripts/utils"
	"github.com/opsdata/etl-scripts/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []notify.Message
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return n.err
}

func (n *recordingNotifier) bodies() []string {
	var out []string
	for _, m := range n.messages {
		out = append(out, m.Body)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.NewConfig("yaml", strings.NewReader(yaml), nil, "test")
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

var runDate = utils.FixedTimeProvider{T: time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)}

type fakeSession struct {
	closed   int
	queryErr error
}

func (s *fakeSession) Dispose() {}

func (s *fakeSession) Query(_ context.Context, _ string) (*frame.Frame, error) {
	return nil, s.queryErr
}

func (s *fakeSession) Conn(_ context.Context) (*sql.Conn, error) {
	return nil, errors.New("no connection")
}

func (s *fakeSession) Dialect() warehouse.Dialect {
	d, _ := warehouse.DialectFor(warehouse.DuckDB)
	return d
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// countingSession counts Close calls on a real session.
type countingSession struct {
	*warehouse.Session
	closed int
}

func (s *countingSession) Close() error {
	s.closed++
	return s.Session.Close()
}

func warehouseYAML(dir string) string {
	return fmt.Sprintf(`
files:
  log_file: %[1]s/run.log
  query_file: %[1]s/query.sql
database:
  driver: duckdb
  user_dsn: %[1]s/etl.duckdb
  temp_db: main.staging_orders
  prod_db: main.orders
  max_retries: 0
emails:
  email_to_subject: ETL OK
  email_to_error_subject: ERROR OCCURRED
`, dir)
}

func setupWarehouseDB(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	session, err := warehouse.Open(ctx, warehouse.Params{Driver: warehouse.DuckDB, Host: filepath.Join(dir, "etl.duckdb")}, testLogger())
	require.NoError(t, err)
	defer session.Close()

	for _, stmt := range []string{
		"CREATE TABLE main.source_orders (id BIGINT, name VARCHAR)",
		"INSERT INTO main.source_orders VALUES (1, 'Alice'), (2, 'Bob'), (2, 'Bob')",
		"CREATE TABLE main.staging_orders (id BIGINT, name VARCHAR)",
		"CREATE TABLE main.orders (id BIGINT, name VARCHAR)",
	} {
		_, err := session.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	writeFile(t, filepath.Join(dir, "query.sql"), "SELECT id, name FROM main.source_orders;\n")
}

func TestWarehouseRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	setupWarehouseDB(t, dir)
	cfg := testConfig(t, warehouseYAML(dir))

	notifier := &recordingNotifier{}
	w := NewWarehouse(cfg, testLogger(), notifier, runDate)
	var sessions []*countingSession
	w.Open = func(ctx context.Context, p warehouse.Params, logger *slog.Logger) (Session, error) {
		session, err := warehouse.Open(ctx, p, logger)
		if err != nil {
			return nil, err
		}
		counted := &countingSession{Session: session}
		sessions = append(sessions, counted)
		return counted, nil
	}

	inserted, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// a second run finds nothing new
	inserted, err = w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	require.Len(t, sessions, 2)
	for _, session := range sessions {
		assert.Equal(t, 1, session.closed)
	}

	assert.Equal(t, []string{
		"2 rows are inserted to main.orders on 2024-03-05",
		"0 rows are inserted to main.orders on 2024-03-05",
	}, notifier.bodies())
	assert.Equal(t, "ETL OK", notifier.messages[0].Subject)
	assert.Equal(t, filepath.Join(dir, "run.log"), notifier.messages[0].Attachment)

	session, err := warehouse.Open(context.Background(), warehouse.Params{Driver: warehouse.DuckDB, Host: filepath.Join(dir, "etl.duckdb")}, testLogger())
	require.NoError(t, err)
	defer session.Close()
	prod, err := session.Query(context.Background(), "SELECT id, name FROM main.orders ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}}, prod.Rows())
}

func TestWarehouseRunClosesSessionOnceOnQueryFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "query.sql"), "SELECT 1")
	cfg := testConfig(t, warehouseYAML(dir))

	session := &fakeSession{queryErr: errors.New("deadlock victim")}
	notifier := &recordingNotifier{}
	w := NewWarehouse(cfg, testLogger(), notifier, runDate)
	w.Open = func(context.Context, warehouse.Params, *slog.Logger) (Session, error) {
		return session, nil
	}

	_, err := w.Run(context.Background())

	var exhausted *extract.QueryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, 1, session.closed)
	assert.Equal(t, []string{"Unable to query data; Max Attempt #1 reached", "Check log"}, notifier.bodies())
}

func TestWarehouseRunNotificationFailureKeepsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "query.sql"), "SELECT 1")
	cfg := testConfig(t, warehouseYAML(dir))

	connErr := &warehouse.ConnectionError{Driver: warehouse.DuckDB, Host: "etl.duckdb", Cause: errors.New("locked")}
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	w := NewWarehouse(cfg, testLogger(), notifier, runDate)
	w.Open = func(context.Context, warehouse.Params, *slog.Logger) (Session, error) {
		return nil, connErr
	}

	_, err := w.Run(context.Background())

	assert.ErrorIs(t, err, connErr)
	assert.Equal(t, []string{"Check log"}, notifier.bodies())
}

func TestWarehouseRunMissingKeys(t *testing.T) {
	cfg := testConfig(t, `
database:
  driver: sqlserver
emails:
  email_to_error_subject: ERROR OCCURRED
`)
	notifier := &recordingNotifier{}
	w := NewWarehouse(cfg, testLogger(), notifier, runDate)
	w.Open = func(context.Context, warehouse.Params, *slog.Logger) (Session, error) {
		t.Fatal("session must not be opened without configuration")
		return nil, nil
	}

	_, err := w.Run(context.Background())

	require.Error(t, err)
	for _, key := range []string{"files.query_file", "database.prod_db", "database.user_dsn", "credentials.service_pw"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.Equal(t, []string{"Check log"}, notifier.bodies())
}

func TestCredentialKeys(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected []string
	}{
		{
			name:     "Embedded database",
			yaml:     "database:\n  driver: duckdb\n",
			expected: nil,
		},
		{
			name:     "Service account",
			yaml:     "database:\n  driver: mysql\n",
			expected: []string{"database.user_dsn", "credentials.service_account", "credentials.service_pw"},
		},
		{
			name:     "LDAP account",
			yaml:     "database:\n  driver: sqlserver\n  auth: ldap\n",
			expected: []string{"database.user_dsn", "credentials.ldap_account", "credentials.ldap_pw"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, credentialKeys(testConfig(t, tt.yaml)))
		})
	}
}

func TestConnectionParamsUsesLDAPCredentials(t *testing.T) {
	cfg := testConfig(t, `
database:
  driver: postgres
  user_dsn: db.internal
  port: 5433
  name: reporting
  auth: ldap
credentials:
  service_account: svc
  service_pw: svc-pw
  ldap_account: jdoe
  ldap_pw: jdoe-pw
`)

	p, err := connectionParams(cfg)
	require.NoError(t, err)
	assert.Equal(t, warehouse.Postgres, p.Driver)
	assert.Equal(t, warehouse.AuthLDAP, p.Auth)
	assert.Equal(t, "db.internal", p.Host)
	assert.Equal(t, 5433, p.Port)
	assert.Equal(t, "jdoe", p.Account)
	assert.Equal(t, "jdoe-pw", p.Secret)
}

func TestWarehouseKeysLeaveRetriesToDefault(t *testing.T) {
	cfg := testConfig(t, "database:\n  driver: duckdb\n")

	assert.NotContains(t, warehouseKeys(cfg), "database.max_retries")
	assert.Equal(t, config.DefaultMaxRetries, cfg.Database.MaxRetries)
}

package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/marcboeker/go-duckdb"
	mssql "github.com/microsoft/go-mssqldb"
)

const readUncommitted = "SET TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"

// openDB builds a *sql.DB whose physical connections all run with
// uncommitted-read isolation. It does not contact the server.
func openDB(p Params, logger *slog.Logger) (*sql.DB, error) {
	switch p.Driver {
	case SQLServer:
		return openSQLServer(p)
	case MySQL:
		return openMySQL(p)
	case Postgres:
		return openPostgres(p)
	case DuckDB:
		return openDuckDB(p, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", p.Driver)
	}
}

func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func openSQLServer(p Params) (*sql.DB, error) {
	query := url.Values{}
	if p.Database != "" {
		query.Add("database", p.Database)
	}
	if p.Auth == AuthLDAP {
		// Domain accounts (DOMAIN\user) are negotiated with NTLM.
		query.Add("authenticator", "ntlm")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(p.Account, p.Secret),
		Host:     hostPort(p.Host, p.Port),
		RawQuery: query.Encode(),
	}

	connector, err := mssql.NewConnector(u.String())
	if err != nil {
		return nil, err
	}
	connector.SessionInitSQL = readUncommitted

	return sql.OpenDB(connector), nil
}

func openMySQL(p Params) (*sql.DB, error) {
	port := p.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = p.Account
	cfg.Passwd = p.Secret
	cfg.Net = "tcp"
	cfg.Addr = hostPort(p.Host, port)
	cfg.DBName = p.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"transaction_isolation": "'READ-UNCOMMITTED'"}
	// LDAP pluggable authentication needs the cleartext client plugin.
	cfg.AllowCleartextPasswords = p.Auth == AuthLDAP

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func openPostgres(p Params) (*sql.DB, error) {
	sslMode := "prefer"
	if p.Auth == AuthLDAP {
		sslMode = "require"
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.Account, p.Secret),
		Host:     hostPort(p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}

	cfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, err
	}
	cfg.RuntimeParams["default_transaction_isolation"] = "read uncommitted"

	return stdlib.OpenDB(*cfg), nil
}

func openDuckDB(p Params, logger *slog.Logger) (*sql.DB, error) {
	if p.Auth == AuthLDAP {
		return nil, fmt.Errorf("ldap authentication is not supported for an embedded database")
	}

	path := p.Host
	if path == ":memory:" {
		path = ""
	}

	var connInitFn func(driver.ExecerContext) error
	if len(p.InitQueryFiles) > 0 {
		connInitFn = func(exec driver.ExecerContext) error {
			for _, file := range p.InitQueryFiles {
				query, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read init query file %s: %w", file, err)
				}
				if _, err := exec.ExecContext(context.Background(), string(query), nil); err != nil {
					return fmt.Errorf("failed to execute query from file %s: %w", file, err)
				}
			}
			return nil
		}
		logger.Debug(fmt.Sprintf("Connection initialization queries: %v", p.InitQueryFiles))
	}

	connector, err := duckdb.NewConnector(path, connInitFn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

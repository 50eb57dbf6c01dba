package warehouse

import (
	"fmt"
	"strings"
)

// Driver identifies the database engine behind a Session.
type Driver string

const (
	SQLServer Driver = "sqlserver"
	MySQL     Driver = "mysql"
	Postgres  Driver = "postgres"
	DuckDB    Driver = "duckdb"
)

// ParseDriver maps a configured driver name to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case SQLServer, MySQL, Postgres, DuckDB:
		return d, nil
	case "mssql":
		return SQLServer, nil
	case "pgx", "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver '%s'", s)
	}
}

// AuthMode selects how the account authenticates.
type AuthMode string

const (
	AuthDirect AuthMode = "direct"
	AuthLDAP   AuthMode = "ldap"
)

// ParseAuthMode maps a configured auth name to an AuthMode. An empty value
// means direct authentication.
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "td2":
		return AuthDirect, nil
	case "ldap":
		return AuthLDAP, nil
	default:
		return "", fmt.Errorf("unsupported auth mode '%s'", s)
	}
}

// Params describes how to reach one database. For DuckDB, Host is the
// database file path, or empty for an in-memory database.
type Params struct {
	Driver   Driver
	Auth     AuthMode
	Host     string
	Port     int
	Database string
	Account  string
	Secret   string

	// MaxIdleConns is restored after every Dispose. Zero means
	// DefaultMaxIdleConns.
	MaxIdleConns int
	// InitQueryFiles are executed on every new DuckDB connection.
	InitQueryFiles []string
}

// TableRef is a schema-qualified relation name.
type TableRef struct {
	Schema string
	Name   string
}

// ParseTableRef parses "schema.table".
func ParseTableRef(s string) (TableRef, error) {
	schema, name, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || schema == "" || name == "" {
		return TableRef{}, fmt.Errorf("invalid table reference '%s': expected schema.table", s)
	}
	return TableRef{Schema: schema, Name: name}, nil
}

func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

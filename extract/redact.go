package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marcboeker/go-duckdb"
	mssql "github.com/microsoft/go-mssqldb"
)

const redactedStatement = "[statement redacted]"

// Diagnostic is an engine error reduced to fields that are safe to log.
type Diagnostic struct {
	Engine  string
	Code    string
	Message string
}

func (d Diagnostic) String() string {
	if d.Code == "" {
		return fmt.Sprintf("%s: %s", d.Engine, d.Message)
	}
	return fmt.Sprintf("%s error %s: %s", d.Engine, d.Code, d.Message)
}

// Diagnose extracts engine, code and message from a driver error. Fields
// that echo the submitted statement are dropped, and any verbatim copy of
// statement left in the message is replaced.
func Diagnose(err error, statement string) Diagnostic {
	var (
		d       Diagnostic
		msErr   mssql.Error
		myErr   *mysql.MySQLError
		pgErr   *pgconn.PgError
		duckErr *duckdb.Error
	)

	switch {
	case errors.As(err, &msErr):
		d = Diagnostic{Engine: "sqlserver", Code: strconv.Itoa(int(msErr.Number)), Message: msErr.Message}
	case errors.As(err, &myErr):
		d = Diagnostic{Engine: "mysql", Code: strconv.Itoa(int(myErr.Number)), Message: myErr.Message}
	case errors.As(err, &pgErr):
		// InternalQuery and Where carry statement text
		msg := pgErr.Message
		if pgErr.Detail != "" {
			msg += ": " + pgErr.Detail
		}
		d = Diagnostic{Engine: "postgres", Code: pgErr.Code, Message: msg}
	case errors.As(err, &duckErr):
		d = Diagnostic{Engine: "duckdb", Code: strconv.Itoa(int(duckErr.Type)), Message: dropLineContext(duckErr.Msg)}
	default:
		d = Diagnostic{Engine: "unknown", Message: err.Error()}
	}

	d.Message = redactStatement(d.Message, statement)
	return d
}

// dropLineContext removes the "LINE n: <sql>" echo and its caret marker.
func dropLineContext(msg string) string {
	lines := strings.Split(msg, "\n")
	kept := lines[:0]
	for i := 0; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "LINE ") {
			if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) == "^" {
				i++
			}
			continue
		}
		kept = append(kept, lines[i])
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func redactStatement(msg, statement string) string {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, statement, redactedStatement)
	if trimmed := strings.TrimRight(statement, "; \t\r\n"); trimmed != statement && trimmed != "" {
		msg = strings.ReplaceAll(msg, trimmed, redactedStatement)
	}
	return msg
}

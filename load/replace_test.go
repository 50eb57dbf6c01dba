package load

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTable(t *testing.T) {
	ctx := context.Background()
	session, err := warehouse.Open(ctx, warehouse.Params{Driver: warehouse.DuckDB}, testLogger())
	require.NoError(t, err)
	defer session.Close()

	table := warehouse.TableRef{Schema: "main", Name: "tickets"}
	_, err = session.Exec(ctx, "CREATE TABLE main.tickets (legacy INTEGER)")
	require.NoError(t, err)

	tickets, err := frame.New([]string{"Ticket", "Status", "Age"}, [][]any{
		{"T-1", "New", 3},
		{"T-2", "In Progress", nil},
	})
	require.NoError(t, err)

	loaded, err := ReplaceTable(ctx, session, table, tickets, DefaultBatchSize, testLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded)

	got, err := session.Query(ctx, `SELECT "Ticket", "Status", "Age" FROM main.tickets ORDER BY "Ticket"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"T-1", "New", "3"}, {"T-2", "In Progress", nil}}, got.Rows())

	// a second import replaces the table
	loaded, err = ReplaceTable(ctx, session, table, tickets.Filter(func(r frame.Record) bool { return r["Ticket"] == "T-2" }), DefaultBatchSize, testLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded)

	count, err := session.Query(ctx, "SELECT count(*) AS n FROM main.tickets")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Row(0)[0])
}

func TestReplaceTableMySQLStatements(t *testing.T) {
	tgt, mock := newMockTarget(t, warehouse.MySQL)

	mock.ExpectExec("DROP TABLE IF EXISTS `ops`.`tickets`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE `ops`.`tickets` (`Ticket` VARCHAR(255), `Status` VARCHAR(255))").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `ops`.`tickets` (`Ticket`, `Status`) VALUES (?, ?)").
		WithArgs("T-1", "New").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tickets, err := frame.New([]string{"Ticket", "Status"}, [][]any{{"T-1", "New"}})
	require.NoError(t, err)

	loaded, err := ReplaceTable(context.Background(), tgt, warehouse.TableRef{Schema: "ops", Name: "tickets"}, tickets, DefaultBatchSize, testLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectQuotingAndPlaceholders(t *testing.T) {
	ref := TableRef{Schema: "prod", Name: "order lines"}

	tests := []struct {
		driver      Driver
		table       string
		placeholder string
		quoted      string
	}{
		{driver: SQLServer, table: "[prod].[order lines]", placeholder: "@p3", quoted: "[a]]b]"},
		{driver: MySQL, table: "`prod`.`order lines`", placeholder: "?", quoted: "`a]b`"},
		{driver: Postgres, table: `"prod"."order lines"`, placeholder: "$3", quoted: `"a]b"`},
		{driver: DuckDB, table: `"prod"."order lines"`, placeholder: "$3", quoted: `"a]b"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.driver), func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, d.Driver())
			assert.Equal(t, tt.table, d.Table(ref))
			assert.Equal(t, tt.placeholder, d.Placeholder(3))
			assert.Equal(t, tt.quoted, d.Quote("a]b"))
		})
	}

	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func TestInsertNewRows(t *testing.T) {
	staging := TableRef{Schema: "stage", Name: "orders"}
	target := TableRef{Schema: "prod", Name: "orders"}

	sqlserver, err := DialectFor(SQLServer)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO [prod].[orders] SELECT * FROM [stage].[orders] EXCEPT SELECT * FROM [prod].[orders]",
		sqlserver.InsertNewRows(staging, target, []string{"id", "amount"}))

	mysqlDialect, err := DialectFor(MySQL)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO `prod`.`orders` SELECT DISTINCT s.* FROM `stage`.`orders` AS s WHERE NOT EXISTS "+
			"(SELECT 1 FROM `prod`.`orders` AS t WHERE t.`id` <=> s.`id` AND t.`amount` <=> s.`amount`)",
		mysqlDialect.InsertNewRows(staging, target, []string{"id", "amount"}))
}

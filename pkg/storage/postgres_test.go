package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/opscart/model-ops/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreWithDB(db), mock
}

func TestGPUCostsByCluster(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT model, cluster, "cardNum" AS card_num, price FROM "GPUHourCost" WHERE cluster = $1`)).
		WithArgs("prov-1").
		WillReturnRows(sqlmock.NewRows([]string{"model", "cluster", "card_num", "price"}).
			AddRow("h100", "prov-1", 8, 2.5))

	costs, err := store.GPUCostsByCluster(context.Background(), "prov-1")
	require.NoError(t, err)
	assert.Equal(t, []models.GPUHourCost{{Model: "h100", Cluster: "prov-1", CardNum: 8, Price: 2.5}}, costs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGPUCostsByClusterError(t *testing.T) {
	store, mock := newMockPostgres(t)
	mock.ExpectQuery("GPUHourCost").WillReturnError(errors.New("connection reset"))

	_, err := store.GPUCostsByCluster(context.Background(), "prov-1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestUpdateProviderCost(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE public."ProviderTokenCost" SET "inputCostMil" = $1, "outputCostMil" = $2 WHERE id = $3`)).
		WithArgs(1.234, 6.17, "prov-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateProviderCost(context.Background(), models.ProviderCost{ID: "prov-1", InputCostMil: 1.234, OutputCostMil: 6.17})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProviderCostMissingRow(t *testing.T) {
	store, mock := newMockPostgres(t)
	mock.ExpectExec("ProviderTokenCost").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateProviderCost(context.Background(), models.ProviderCost{ID: "gone"})
	assert.ErrorContains(t, err, "provider cost not found: gone")
}

func TestBatchInsertGPUHourCosts(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO public."GPUHourCost"`)).
		WithArgs("h100", "prov-1", 8, 2.5, "a100", "prov-2", 4, 1.1).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.BatchInsertGPUHourCosts(context.Background(), []models.GPUHourCost{
		{Model: "h100", Cluster: "prov-1", CardNum: 8, Price: 2.5},
		{Model: "a100", Cluster: "prov-2", CardNum: 4, Price: 1.1},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// nothing to insert, no statement
	assert.NoError(t, store.BatchInsertGPUHourCosts(context.Background(), nil))
}

func TestInsertGPUHourCostDuplicate(t *testing.T) {
	store, mock := newMockPostgres(t)
	mock.ExpectExec("INSERT INTO").
		WillReturnError(&pq.Error{Code: "23505", Detail: "Key (model, cluster, \"cardNum\") already exists."})

	err := store.InsertGPUHourCost(context.Background(), models.GPUHourCost{Model: "h100", Cluster: "prov-1", CardNum: 8, Price: 2.5})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestQueryGPUPrices(t *testing.T) {
	minPrice, maxPrice := 1.0, 3.0
	tests := []struct {
		name   string
		filter GPUPriceFilter
		where  string
		args   []driver.Value
	}{
		{
			name:  "no filter",
			where: `FROM "GPUHourCost" ORDER BY model, "cardNum"`,
		},
		{
			name:   "model",
			filter: GPUPriceFilter{Model: "h100"},
			where:  `WHERE (model = $1) ORDER BY`,
			args:   []driver.Value{"h100"},
		},
		{
			name:   "price range",
			filter: GPUPriceFilter{MinPrice: &minPrice, MaxPrice: &maxPrice},
			where:  `WHERE (price >= $1 AND price <= $2) ORDER BY`,
			args:   []driver.Value{1.0, 3.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockPostgres(t)
			q := mock.ExpectQuery(regexp.QuoteMeta(tt.where))
			if len(tt.args) > 0 {
				q = q.WithArgs(tt.args...)
			}
			q.WillReturnRows(sqlmock.NewRows([]string{"model", "cluster", "card_num", "price"}).
				AddRow("h100", "prov-1", 8, 2.5))

			costs, err := store.QueryGPUPrices(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Len(t, costs, 1)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListTables(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`table_schema = $1 AND table_type = $2`)).
		WithArgs("public", "BASE TABLE").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("GPUHourCost").AddRow("ProviderTokenCost"))

	tables, err := store.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GPUHourCost", "ProviderTokenCost"}, tables)
}

func TestMigrate(t *testing.T) {
	store, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "GPUHourCost"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/opscart/model-ops/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

const (
	tableGPUHourCost  = `"GPUHourCost"`
	tableProviderCost = `public."ProviderTokenCost"`

	// unique_violation
	pqUniqueViolation = "23505"
)

var gpuHourCostColumns = []string{"model", "cluster", `"cardNum" AS card_num`, "price"}

// PostgresStore implements PriceStore using PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens and pings the pricing database
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an open connection
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

func builder() sqrl.StatementBuilderType {
	return sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar)
}

// Migrate creates the pricing tables when they are missing
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema, err := postgresFS.ReadFile("migrations/001_postgres_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// GPUCostsByCluster returns every pricing row of cluster
func (s *PostgresStore) GPUCostsByCluster(ctx context.Context, cluster string) ([]models.GPUHourCost, error) {
	query, args, err := builder().
		Select(gpuHourCostColumns...).
		From(tableGPUHourCost).
		Where(sqrl.Eq{"cluster": cluster}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build gpu cost query: %w", err)
	}

	var costs []models.GPUHourCost
	if err := s.db.SelectContext(ctx, &costs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query gpu costs for %s: %w", cluster, err)
	}
	return costs, nil
}

// UpdateProviderCost writes the derived mil costs of one provider
func (s *PostgresStore) UpdateProviderCost(ctx context.Context, cost models.ProviderCost) error {
	query, args, err := builder().
		Update(tableProviderCost).
		Set(`"inputCostMil"`, cost.InputCostMil).
		Set(`"outputCostMil"`, cost.OutputCostMil).
		Where(sqrl.Eq{"id": cost.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build provider cost update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update provider cost %s: %w", cost.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update provider cost %s: %w", cost.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("provider cost not found: %s", cost.ID)
	}
	return nil
}

// InsertGPUHourCost adds one pricing row
func (s *PostgresStore) InsertGPUHourCost(ctx context.Context, cost models.GPUHourCost) error {
	return s.BatchInsertGPUHourCosts(ctx, []models.GPUHourCost{cost})
}

// BatchInsertGPUHourCosts adds all rows in a single statement, so either
// every row is inserted or none is.
func (s *PostgresStore) BatchInsertGPUHourCosts(ctx context.Context, costs []models.GPUHourCost) error {
	if len(costs) == 0 {
		return nil
	}

	insert := builder().
		Insert(`public.` + tableGPUHourCost).
		Columns("model", "cluster", `"cardNum"`, "price")
	for _, c := range costs {
		insert = insert.Values(c.Model, c.Cluster, c.CardNum, c.Price)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build gpu cost insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Detail)
		}
		return fmt.Errorf("failed to insert gpu costs: %w", err)
	}
	return nil
}

// QueryGPUPrices lists pricing rows ordered by model and card count
func (s *PostgresStore) QueryGPUPrices(ctx context.Context, filter GPUPriceFilter) ([]models.GPUHourCost, error) {
	where := sqrl.And{}
	if filter.Model != "" {
		where = append(where, sqrl.Eq{"model": filter.Model})
	}
	if filter.MinPrice != nil {
		where = append(where, sqrl.GtOrEq{"price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		where = append(where, sqrl.LtOrEq{"price": *filter.MaxPrice})
	}

	sel := builder().Select(gpuHourCostColumns...).From(tableGPUHourCost)
	if len(where) > 0 {
		sel = sel.Where(where)
	}
	query, args, err := sel.OrderBy("model", `"cardNum"`).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build gpu price query: %w", err)
	}

	var costs []models.GPUHourCost
	if err := s.db.SelectContext(ctx, &costs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query gpu prices: %w", err)
	}
	return costs, nil
}

// ListTables returns the base tables of the public schema
func (s *PostgresStore) ListTables(ctx context.Context) ([]string, error) {
	query, args, err := builder().
		Select("table_name").
		From("information_schema.tables").
		Where(sqrl.Eq{"table_schema": "public", "table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build table query: %w", err)
	}

	var tables []string
	if err := s.db.SelectContext(ctx, &tables, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

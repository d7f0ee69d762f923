package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/opscart/model-ops/pkg/models"
	log "github.com/sirupsen/logrus"
)

const (
	viewProviderCost = "flow_rds_prod.view_ai_prod_provider_token_cost"
	tableRequests    = "flow_report_app.tbl_chat_llm_model_request"
)

// MySQLStore implements UsageStore against the MySQL-protocol reporting
// database
type MySQLStore struct {
	db *sqlx.DB
}

func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open reporting database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping reporting database: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func NewMySQLStoreWithDB(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: sqlx.NewDb(db, "mysql")}
}

type usageRow struct {
	ID           string         `db:"id"`
	InputTokens  sql.NullInt64  `db:"input_tokens"`
	OutputTokens sql.NullInt64  `db:"output_tokens"`
	Model        string         `db:"model"`
	URL          string         `db:"url"`
	EventDate    sql.NullString `db:"event_date"`
}

// MatchedUsage filters the request table by date inside the join so that
// provider rows without requests that day come back with NULL counts.
func (s *MySQLStore) MatchedUsage(ctx context.Context, eventDate string) ([]models.TokenUsage, []models.UnmatchedCost, error) {
	query, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Question).
		Select("ptc.id", "tclmr.input_tokens", "tclmr.output_tokens", "ptc.model", "ptc.url", "tclmr.event_date").
		From(viewProviderCost+" ptc").
		LeftJoin(tableRequests+" tclmr ON ptc.model = tclmr.model_id AND ptc.url = tclmr.request_url AND tclmr.event_date = ?", eventDate).
		Where(sqrl.Eq{"ptc.active": true}).
		ToSql()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build usage query: %w", err)
	}

	var rows []usageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to query usage for %s: %w", eventDate, err)
	}

	var matched []models.TokenUsage
	var unmatched []models.UnmatchedCost
	for _, r := range rows {
		if !r.InputTokens.Valid || !r.OutputTokens.Valid {
			log.WithFields(log.Fields{
				"provider_id": r.ID,
				"model":       r.Model,
				"url":         r.URL,
				"event_date":  eventDate,
			}).Error("no request record for provider cost")
			unmatched = append(unmatched, models.UnmatchedCost{ID: r.ID, Model: r.Model, URL: r.URL})
			continue
		}
		matched = append(matched, models.TokenUsage{
			ID:           r.ID,
			InputTokens:  r.InputTokens.Int64,
			OutputTokens: r.OutputTokens.Int64,
			EventDate:    r.EventDate.String,
		})
	}
	return matched, unmatched, nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

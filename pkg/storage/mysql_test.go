package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/opscart/model-ops/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchedUsage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewMySQLStoreWithDB(db)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN flow_report_app.tbl_chat_llm_model_request tclmr ON ptc.model = tclmr.model_id AND ptc.url = tclmr.request_url AND tclmr.event_date = ?")).
		WithArgs("2026-10-17", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "input_tokens", "output_tokens", "model", "url", "event_date"}).
			AddRow("prov-1", 1000000, 200000, "llama-70b", "http://llama", "2026-10-17").
			AddRow("prov-2", nil, nil, "qwen3", "http://qwen3", nil))

	matched, unmatched, err := store.MatchedUsage(context.Background(), "2026-10-17")
	require.NoError(t, err)

	assert.Equal(t, []models.TokenUsage{
		{ID: "prov-1", InputTokens: 1000000, OutputTokens: 200000, EventDate: "2026-10-17"},
	}, matched)
	assert.Equal(t, []models.UnmatchedCost{
		{ID: "prov-2", Model: "qwen3", URL: "http://qwen3"},
	}, unmatched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchedUsageQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Unknown database 'flow_rds_prod'"))

	_, _, err = NewMySQLStoreWithDB(db).MatchedUsage(context.Background(), "2026-10-17")
	assert.ErrorContains(t, err, "failed to query usage for 2026-10-17")
}

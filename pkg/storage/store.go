package storage

import (
	"context"
	"errors"

	"github.com/opscart/model-ops/pkg/models"
)

// ErrDuplicate is returned when a row violates a unique constraint
var ErrDuplicate = errors.New("duplicate row")

// UsageStore reads daily token usage from the reporting database
type UsageStore interface {
	// MatchedUsage joins active provider cost rows with their token counts
	// for eventDate (YYYY-MM-DD). Rows without counts are returned as unmatched.
	MatchedUsage(ctx context.Context, eventDate string) ([]models.TokenUsage, []models.UnmatchedCost, error)
	Ping(ctx context.Context) error
	Close() error
}

// PriceStore reads GPU pricing and writes derived provider costs
type PriceStore interface {
	GPUCostsByCluster(ctx context.Context, cluster string) ([]models.GPUHourCost, error)
	UpdateProviderCost(ctx context.Context, cost models.ProviderCost) error
	Ping(ctx context.Context) error
	Close() error
}

// GPUPriceFilter narrows QueryGPUPrices. Zero values do not filter.
type GPUPriceFilter struct {
	Model    string
	MinPrice *float64
	MaxPrice *float64
}

// Package cost derives the cost per million tokens of each provider from
// the GPUs it runs on and the tokens it served in a day.
package cost

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/opscart/model-ops/pkg/models"
)

const (
	HoursPerDay = 24
	// OutputTokenWeight prices one output token as this many input tokens
	OutputTokenWeight = 5

	dateLayout = "2006-01-02"
)

// ErrNoTokens means a record served no tokens, so no unit cost exists
var ErrNoTokens = errors.New("no tokens served")

// Compute applies
//
//	gpu_daily  = price * cards * 24
//	input_mil  = round3(gpu_daily / (input + 5*output) * 1e6)
//	output_mil = round3(input_mil * 5)
func Compute(usage models.TokenUsage, gpu models.GPUHourCost) (models.ProviderCost, error) {
	weighted := usage.InputTokens + OutputTokenWeight*usage.OutputTokens
	if weighted <= 0 {
		return models.ProviderCost{}, fmt.Errorf("%s: %w", usage.ID, ErrNoTokens)
	}

	daily := gpu.Price * float64(gpu.CardNum) * HoursPerDay
	inputMil := round3(daily / float64(weighted) * 1e6)

	return models.ProviderCost{
		ID:            usage.ID,
		GPUDailyCost:  daily,
		InputCostMil:  inputMil,
		OutputCostMil: round3(inputMil * OutputTokenWeight),
	}, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// DefaultEventDate is the day before now, in now's location
func DefaultEventDate(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(dateLayout)
}

// ParseEventDate validates a YYYY-MM-DD date
func ParseEventDate(s string) (string, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t.Format(dateLayout), nil
}

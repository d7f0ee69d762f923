package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/opscart/model-ops/pkg/cost"
	"github.com/opscart/model-ops/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatTable ReportFormat = "table"
	FormatCSV   ReportFormat = "csv"
)

// Report contains all data for a cost reconciliation report
type Report struct {
	RunID        string
	EventDate    string
	GeneratedAt  time.Time
	DryRun       bool
	Rows         []Row
	Unmatched    []models.UnmatchedCost
	StatusCounts map[cost.Status]int
	TotalGPUCost float64
}

// Row is one provider of the report
type Row struct {
	ID            string
	InputTokens   int64
	OutputTokens  int64
	GPUModel      string
	CardNum       int
	GPUDailyCost  float64
	InputCostMil  float64
	OutputCostMil float64
	Status        cost.Status
	Error         string
}

// Reporter writes cost reconciliation reports
type Reporter struct {
	format ReportFormat
}

func New(format ReportFormat) (*Reporter, error) {
	switch format {
	case FormatTable, FormatCSV:
		return &Reporter{format: format}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Generate builds a report from a reconciliation summary
func (r *Reporter) Generate(summary *cost.Summary) *Report {
	report := &Report{
		RunID:        summary.RunID,
		EventDate:    summary.EventDate,
		GeneratedAt:  time.Now(),
		DryRun:       summary.DryRun,
		Unmatched:    summary.Unmatched,
		StatusCounts: make(map[cost.Status]int),
	}

	for _, res := range summary.Results {
		row := Row{
			ID:           res.Usage.ID,
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
			Status:       res.Status,
		}
		if res.GPU != nil {
			row.GPUModel = res.GPU.Model
			row.CardNum = res.GPU.CardNum
		}
		if res.Cost != nil {
			row.GPUDailyCost = res.Cost.GPUDailyCost
			row.InputCostMil = res.Cost.InputCostMil
			row.OutputCostMil = res.Cost.OutputCostMil
			report.TotalGPUCost += res.Cost.GPUDailyCost
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		report.Rows = append(report.Rows, row)
		report.StatusCounts[res.Status]++
	}
	return report
}

// Write renders report in the reporter's format
func (r *Reporter) Write(report *Report, w io.Writer) error {
	if r.format == FormatCSV {
		return GenerateCSV(report, w)
	}
	RenderCostTable(report, w)
	return nil
}

package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/opscart/model-ops/pkg/cost"
)

// GenerateCSV creates a CSV report
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)

	header := []string{
		"Provider ID",
		"Input Tokens",
		"Output Tokens",
		"GPU Model",
		"Cards",
		"GPU Daily Cost ($)",
		"Input Cost / Mil ($)",
		"Output Cost / Mil ($)",
		"Status",
		"Error",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range report.Rows {
		record := []string{
			row.ID,
			fmt.Sprintf("%d", row.InputTokens),
			fmt.Sprintf("%d", row.OutputTokens),
			row.GPUModel,
			fmt.Sprintf("%d", row.CardNum),
			fmt.Sprintf("%.2f", row.GPUDailyCost),
			fmt.Sprintf("%.3f", row.InputCostMil),
			fmt.Sprintf("%.3f", row.OutputCostMil),
			string(row.Status),
			row.Error,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Event Date", report.EventDate})
	w.Write([]string{"Run ID", report.RunID})
	w.Write([]string{"Dry Run", fmt.Sprintf("%t", report.DryRun)})
	w.Write([]string{"Total GPU Daily Cost", fmt.Sprintf("$%.2f", report.TotalGPUCost)})

	statuses := make([]string, 0, len(report.StatusCounts))
	for s := range report.StatusCounts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		w.Write([]string{s, fmt.Sprintf("%d", report.StatusCounts[cost.Status(s)])})
	}

	if len(report.Unmatched) > 0 {
		w.Write([]string{})
		w.Write([]string{"UNMATCHED"})
		w.Write([]string{"Provider ID", "Model", "URL"})
		for _, u := range report.Unmatched {
			w.Write([]string{u.ID, u.Model, u.URL})
		}
	}

	w.Flush()
	return w.Error()
}

package reporter

import (
	"fmt"
	"io"
	"time"

	pt "github.com/jedib0t/go-pretty/v6/table"
	"github.com/opscart/model-ops/pkg/cost"
	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/reclaim"
)

func newTable(out io.Writer) pt.Writer {
	t := pt.NewWriter()
	t.SetStyle(pt.StyleLight)
	t.SetOutputMirror(out)
	return t
}

// RenderCostTable prints one row per provider with the totals as footer
func RenderCostTable(report *Report, out io.Writer) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("Provider costs for %s", report.EventDate))
	t.AppendHeader(pt.Row{
		"Provider ID",
		"Input Tokens",
		"Output Tokens",
		"GPU",
		"GPU Daily Cost",
		"Input / Mil",
		"Output / Mil",
		"Status",
	})

	for _, row := range report.Rows {
		gpu := ""
		if row.GPUModel != "" {
			gpu = fmt.Sprintf("%s x%d", row.GPUModel, row.CardNum)
		}
		status := string(row.Status)
		if row.Error != "" {
			status += ": " + row.Error
		}
		t.AppendRow(pt.Row{
			row.ID,
			row.InputTokens,
			row.OutputTokens,
			gpu,
			fmt.Sprintf("$%.2f", row.GPUDailyCost),
			fmt.Sprintf("$%.3f", row.InputCostMil),
			fmt.Sprintf("$%.3f", row.OutputCostMil),
			status,
		})
	}
	for _, u := range report.Unmatched {
		t.AppendRow(pt.Row{u.ID, "", "", "", "", "", "", "unmatched: " + u.Model})
	}

	t.AppendSeparator()
	t.AppendFooter(pt.Row{
		"TOTAL",
		"",
		"",
		"",
		fmt.Sprintf("$%.2f", report.TotalGPUCost),
		"",
		"",
		fmt.Sprintf("%d updated", report.StatusCounts[cost.StatusUpdated]),
	})
	t.Render()
}

// RenderReclaimTable prints one row per cluster
func RenderReclaimTable(report *reclaim.Report, out io.Writer) {
	t := newTable(out)
	title := "Reclaim run " + report.RunID
	if report.DryRun {
		title += " (dry run)"
	}
	t.SetTitle(title)
	t.AppendHeader(pt.Row{"Cluster", "Vendor", "Workloads", "Excluded", "Idle", "Stale", "Scaled", "Delete Failures", "Notes"})

	for i := range report.Clusters {
		cr := &report.Clusters[i]
		t.AppendRow(pt.Row{
			cr.Cluster.Context,
			cr.Cluster.Vendor,
			cr.Workloads,
			len(cr.Excluded),
			cr.Count(models.ActionScaleToZero),
			cr.Count(models.ActionDelete),
			cr.Scaled,
			cr.DeleteFailures(),
			clusterNotes(cr),
		})
	}
	t.Render()
}

func clusterNotes(cr *reclaim.ClusterReport) string {
	switch {
	case cr.InventoryErr != nil:
		return "inventory: " + cr.InventoryErr.Error()
	case cr.ScaleErr != nil:
		return "stopped: " + cr.ScaleErr.Error()
	case cr.MetricsErr != nil:
		return "no demand data: " + cr.MetricsErr.Error()
	case len(cr.NamingErrors) > 0:
		return fmt.Sprintf("%d uncorrelated samples", len(cr.NamingErrors))
	}
	return ""
}

// RenderWorkloads prints the inventory of one context
func RenderWorkloads(workloads []models.WorkloadDescriptor, now time.Time, out io.Writer) {
	t := newTable(out)
	t.AppendHeader(pt.Row{"Name", "Created", "Age (days)", "Ready"})
	for _, w := range workloads {
		t.AppendRow(pt.Row{
			w.Name,
			w.CreationTime.UTC().Format(time.RFC3339),
			int(w.Age(now).Hours() / 24),
			w.ReadyReplicas,
		})
	}
	t.Render()
}

// RenderGPUPrices prints pricing rows
func RenderGPUPrices(costs []models.GPUHourCost, out io.Writer) {
	t := newTable(out)
	t.AppendHeader(pt.Row{"Model", "Cluster", "Cards", "Price / Hour", "Daily"})
	for _, c := range costs {
		t.AppendRow(pt.Row{
			c.Model,
			c.Cluster,
			c.CardNum,
			fmt.Sprintf("$%.4f", c.Price),
			fmt.Sprintf("$%.2f", c.Price*float64(c.CardNum)*cost.HoursPerDay),
		})
	}
	t.Render()
}

// RenderTimeSamples prints a range query result with its total
func RenderTimeSamples(samples []models.TimeSample, total float64, out io.Writer) {
	t := newTable(out)
	t.AppendHeader(pt.Row{"Timestamp", "Value"})
	for _, s := range samples {
		t.AppendRow(pt.Row{s.Timestamp.Format(time.RFC3339), s.Value})
	}
	t.AppendFooter(pt.Row{"Total", total})
	t.Render()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/google/uuid"
)

// analysis is the output of the analyze command.
type analysis struct {
	Summary          analytics.Summary              `json:"summary"`
	CategorySnapshot analytics.CategorySnapshot     `json:"category_snapshot"`
	Recurring        []analytics.RecurringCandidate `json:"recurring"`
	Anomalies        []analytics.Anomaly            `json:"anomalies"`
	Forecast         analytics.ForecastResult       `json:"forecast"`
}

func buildAnalysis(txs []domain.Transaction, opts analytics.SnapshotOptions) analysis {
	return analysis{
		Summary:          analytics.Summarize(txs),
		CategorySnapshot: analytics.BuildCategorySnapshot(txs, opts),
		Recurring:        analytics.DetectRecurring(txs),
		Anomalies:        analytics.DetectAnomalies(txs),
		Forecast:         analytics.Forecast(txs),
	}
}

// parseMapping reads "role=Column,role=Column".
func parseMapping(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		role, column, ok := strings.Cut(pair, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" {
			return nil, fmt.Errorf("invalid mapping entry %q, want role=Column", pair)
		}
		out[role] = strings.TrimSpace(column)
	}
	return out, nil
}

func snapshotOptions(from, to string) (analytics.SnapshotOptions, error) {
	var opts analytics.SnapshotOptions
	if from != "" {
		m, err := domain.ParseMonth(from)
		if err != nil {
			return opts, err
		}
		opts.From = &m
	}
	if to != "" {
		m, err := domain.ParseMonth(to)
		if err != nil {
			return opts, err
		}
		opts.To = &m
	}
	return opts, nil
}

func printReport(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "=== %s ===\n", res.Filename)
	fmt.Fprintf(w, "Transactions: %d\n", len(res.Transactions))

	for _, r := range res.Reports {
		fmt.Fprintf(w, "\nSheet %q: %d of %d rows kept\n", r.Sheet, r.RowsEmitted, r.RowsIn)
		for _, role := range []pipeline.Role{
			pipeline.RoleDate, pipeline.RoleBillingDate, pipeline.RoleAmount,
			pipeline.RoleDescription, pipeline.RoleCategory,
		} {
			if col, ok := r.Mapping[role]; ok {
				fmt.Fprintf(w, "  %-12s <- %s\n", role, col)
			}
		}
		counts := []struct {
			label string
			n     int
		}{
			{"zero amount dropped", r.DroppedZeroAmount},
			{"missing date dropped", r.DroppedMissingDate},
			{"descriptions defaulted", r.DefaultedDescriptions},
			{"categories defaulted", r.DefaultedCategories},
			{"billing dates unparsed", r.UnparsedBillingDates},
			{"billed amount fallbacks", r.BilledAmountFallbacks},
			{"reclassified", r.Reclassified},
		}
		for _, c := range counts {
			if c.n > 0 {
				fmt.Fprintf(w, "  %s: %d\n", c.label, c.n)
			}
		}
		if r.PolarityInverted {
			fmt.Fprintln(w, "  amounts inverted (positive = expense)")
		}
	}
}

func printSnapshot(w io.Writer, snap analytics.CategorySnapshot) {
	fmt.Fprintf(w, "\n=== Expenses by category (%d months, last %s) ===\n", snap.MonthCount, snap.LastMonth)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Category\tTotal\tCount\tShare\tChange\tTop merchant\t")
	for _, c := range snap.Categories {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%.1f%%\t%+.1f%%\t%s\t\n",
			c.Name, c.Total, c.Count, c.Percent, c.MonthChange, c.TopMerchant)
	}
	fmt.Fprintf(tw, "Total\t%.2f\t%d\t\t\t\t\n", snap.Total, snap.TotalCount)
	tw.Flush()
}

func printTransactions(w io.Writer, uploadID string, txs []domain.Transaction) {
	fmt.Fprintf(w, "\n=== Upload %s: %d transactions ===\n", uploadID, len(txs))
	for i, tx := range txs {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, tx.Description)
		fmt.Fprintf(w, "   Date:     %s\n", tx.Date)
		if tx.BillingDate != nil {
			fmt.Fprintf(w, "   Billed:   %s\n", *tx.BillingDate)
		}
		fmt.Fprintf(w, "   Amount:   %.2f\n", tx.Amount)
		fmt.Fprintf(w, "   Category: %s\n", tx.Category)
	}
	fmt.Fprintln(w)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func uuidString() string {
	return uuid.New().String()
}

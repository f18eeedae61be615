package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"oos-analytics/models"
	"oos-analytics/utils"
)

const (
	topN     = 5
	maxBarSz = 30
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Begin starts an empty summary for the given run.
func (s *SummaryService) Begin(runID string) *models.RunSummary {
	return &models.RunSummary{
		RunID:          runID,
		EventsByPage:   make(map[string]int64),
		EventsByAction: make(map[string]int64),
	}
}

// Record folds one processed date into the summary.
func (s *SummaryService) Record(sum *models.RunSummary, res *models.DateResult, daily []models.DailyEvent) {
	sum.Dates = append(sum.Dates, res)
	sum.TotalPages += res.Pages
	for _, d := range daily {
		sum.TotalEvents += d.TotalEvents
		sum.EventsByPage[d.Page] += d.TotalEvents
		sum.EventsByAction[d.EventAction] += d.TotalEvents
	}
}

func (s *SummaryService) Print(w io.Writer, r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  OUT-OF-STOCK EVENT PULL\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	failed := r.Failed()

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID          : %s\n", r.RunID)
	fmt.Fprintf(w, "  Dates processed : \033[1m%d\033[0m\n", len(r.Dates)-len(failed))
	fmt.Fprintf(w, "  Dates failed    : \033[1m%d\033[0m\n", len(failed))
	fmt.Fprintf(w, "  Pages fetched   : \033[1m%d\033[0m\n", r.TotalPages)
	fmt.Fprintf(w, "  Total events    : \033[1m%d\033[0m\n", r.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Per date\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Dates) == 0 {
		fmt.Fprintf(w, "  No dates processed\n")
	}
	for _, d := range r.Dates {
		if d.Err != nil {
			fmt.Fprintf(w, "  %s  \033[1;31mFAILED\033[0m %v\n", d.Date, d.Err)
			continue
		}
		fmt.Fprintf(w, "  %s  pages %-3d records %-7d daily rows %-6d events %d\n",
			d.Date, d.Pages, d.FlatRows, d.DailyRows, d.TotalEvents)
	}
	fmt.Fprintln(w)

	printTop(w, "Top pages by events", r.EventsByPage, thin)
	printTop(w, "Top event actions", r.EventsByAction, thin)

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

type keyCount struct {
	key   string
	count int64
}

// topCounts returns the n largest entries, ties broken by key.
func topCounts(m map[string]int64, n int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func printTop(w io.Writer, title string, m map[string]int64, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)

	top := topCounts(m, topN)
	if len(top) == 0 {
		fmt.Fprintf(w, "  No events\n\n")
		return
	}
	maxCount := top[0].count
	for _, kc := range top {
		bar := 1
		if maxCount > 0 {
			bar = int(kc.count * maxBarSz / maxCount)
		}
		if bar < 1 {
			bar = 1
		}
		fmt.Fprintf(w, "  %-24s %s (%d)\n", truncate(kc.key, 22), strings.Repeat("█", bar), kc.count)
	}
	fmt.Fprintln(w)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

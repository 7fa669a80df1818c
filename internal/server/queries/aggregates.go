package queries

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
	"github.com/dmitrijs2005/kycvault/internal/timex"
)

// Filter selects summaries from the monthly indexes. Start and End are
// calendar days, both inclusive; Status and SubjectContains are optional.
type Filter struct {
	Start           time.Time
	End             time.Time
	Status          models.Status
	SubjectContains string
}

// DayStats is one row of a statistics report. Days without a summary
// document appear with zero counts.
type DayStats struct {
	Date        string `json:"date"`
	Total       int    `json:"total"`
	Passed      int    `json:"passed"`
	Failed      int    `json:"failed"`
	UniqueUsers int    `json:"unique_users"`
}

type StatsReport struct {
	Days           []DayStats `json:"days"`
	Total          int        `json:"total_verifications"`
	Passed         int        `json:"total_passed"`
	Failed         int        `json:"total_failed"`
	UniqueSubjects int        `json:"unique_subjects"`
	// PassRate is Passed/Total, or 0 for an empty range.
	PassRate float64 `json:"pass_rate"`
}

func (e *Engine) GetDailySummary(ctx context.Context, date string) (*models.DailySummary, error) {
	defer e.metrics.ObserveQuery("daily_summary", time.Now())

	if _, err := timex.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	return e.loadDaily(ctx, date)
}

func (e *Engine) GetMonthlyIndex(ctx context.Context, month string) (*models.MonthlyIndex, error) {
	defer e.metrics.ObserveQuery("monthly_index", time.Now())

	if _, err := timex.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	return e.loadMonthly(ctx, month)
}

// Search reads the monthly index of every month overlapping the range and
// returns the matching summaries, newest first. A range with End before
// Start matches nothing. On a store failure the result is empty and the
// error is returned.
func (e *Engine) Search(ctx context.Context, f Filter) ([]models.VerificationSummary, error) {
	defer e.metrics.ObserveQuery("search", time.Now())

	if f.Start.IsZero() || f.End.IsZero() {
		return []models.VerificationSummary{}, fmt.Errorf("%w: search needs a start and an end date", common.ErrorValidation)
	}
	if f.Status != "" && !f.Status.Valid() {
		return []models.VerificationSummary{}, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, f.Status)
	}
	from, to := f.Start.UTC().Format(timex.DateLayout), f.End.UTC().Format(timex.DateLayout)
	if to < from {
		return []models.VerificationSummary{}, nil
	}

	months := timex.MonthsBetween(f.Start.UTC(), f.End.UTC())
	indexes := make([]*models.MonthlyIndex, len(months))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, month := range months {
		g.Go(func() error {
			idx, err := e.loadMonthly(gctx, month)
			switch {
			case err == nil:
				indexes[i] = idx
			case errors.Is(err, common.ErrorNotFound):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Error(ctx, "search failed", "from", from, "to", to, "error", err)
		return []models.VerificationSummary{}, err
	}

	needle := strings.ToLower(f.SubjectContains)
	results := []models.VerificationSummary{}
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		for _, s := range idx.Verifications {
			day := s.DateKey()
			if day < from || day > to {
				continue
			}
			if f.Status != "" && s.Status != f.Status {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(s.Subject), needle) {
				continue
			}
			results = append(results, s)
		}
	}
	sortNewestFirst(results)
	return results, nil
}

// MaxStatsDays bounds the range of a DailyStats call.
const MaxStatsDays = 366

// DailyStats returns one row per day of [start, end] plus range totals.
func (e *Engine) DailyStats(ctx context.Context, start, end time.Time) (*StatsReport, error) {
	defer e.metrics.ObserveQuery("daily_stats", time.Now())

	start, end = start.UTC(), end.UTC()
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: statistics range needs a start and an end date", common.ErrorValidation)
	}
	if timex.DaySpan(start, end) > MaxStatsDays {
		return nil, fmt.Errorf("%w: statistics range exceeds %d days", common.ErrorValidation, MaxStatsDays)
	}
	days := timex.DaysBetween(start, end)
	summaries := make([]*models.DailySummary, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, day := range days {
		g.Go(func() error {
			d, err := e.loadDaily(gctx, day)
			switch {
			case err == nil:
				summaries[i] = d
			case errors.Is(err, common.ErrorNotFound):
				summaries[i] = models.NewDailySummary(day)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &StatsReport{Days: make([]DayStats, 0, len(days))}
	subjects := make(map[string]struct{})
	for _, d := range summaries {
		report.Days = append(report.Days, DayStats{
			Date:        d.Date,
			Total:       d.Total,
			Passed:      d.Passed,
			Failed:      d.Failed,
			UniqueUsers: d.UniqueCount,
		})
		report.Total += d.Total
		report.Passed += d.Passed
		report.Failed += d.Failed
		for _, s := range d.Subjects {
			subjects[s] = struct{}{}
		}
	}
	report.UniqueSubjects = len(subjects)
	if report.Total > 0 {
		report.PassRate = float64(report.Passed) / float64(report.Total)
	}
	return report, nil
}

// Recent returns the n newest summaries of month.
func (e *Engine) Recent(ctx context.Context, month string, n int) ([]models.VerificationSummary, error) {
	idx, err := e.GetMonthlyIndex(ctx, month)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(idx.Verifications)
	sortNewestFirst(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (e *Engine) loadDaily(ctx context.Context, date string) (*models.DailySummary, error) {
	var d models.DailySummary
	if _, err := objectstore.GetJSON(ctx, e.store, models.DailySummaryKey(date), &d); err != nil {
		return nil, err
	}
	d.Normalize()
	return &d, nil
}

func (e *Engine) loadMonthly(ctx context.Context, month string) (*models.MonthlyIndex, error) {
	var m models.MonthlyIndex
	if _, err := objectstore.GetJSON(ctx, e.store, models.MonthlyIndexKey(month), &m); err != nil {
		return nil, err
	}
	if m.Verifications == nil {
		m.Verifications = []models.VerificationSummary{}
	}
	return &m, nil
}

func sortNewestFirst(s []models.VerificationSummary) {
	slices.SortStableFunc(s, func(a, b models.VerificationSummary) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
}

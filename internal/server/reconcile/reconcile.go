// Package reconcile rebuilds the derived aggregates from the records they
// are derived from. It repairs drift left by best-effort index updates:
// writes that failed after the record was stored, lost updates from writers
// running without conditional puts, double counts from retried requests.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/indexer"
	"github.com/dmitrijs2005/kycvault/internal/server/metrics"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
	"github.com/dmitrijs2005/kycvault/internal/timex"
)

// SettleWindow is how long an aggregate must have been left alone before
// the reconciler touches it. Anything younger may belong to a save that is
// still in flight.
const SettleWindow = time.Minute

type Options struct {
	// Month limits the run to one yyyy-mm month. Empty means every record.
	Month  string
	DryRun bool
}

// Report summarizes a run. Rewritten lists the aggregate keys that drifted
// (and were rewritten unless DryRun); Skipped lists drifted keys left alone
// because another writer touched them during the run.
type Report struct {
	RecordsScanned  int      `json:"records_scanned"`
	Unreadable      int      `json:"unreadable"`
	MonthsChecked   int      `json:"months_checked"`
	DaysChecked     int      `json:"days_checked"`
	Rewritten       []string `json:"rewritten"`
	Skipped         []string `json:"skipped"`
	LookupsRestored int      `json:"lookups_restored"`
	DryRun          bool     `json:"dry_run"`
}

type Reconciler struct {
	store       objectstore.Store
	log         logging.Logger
	metrics     *metrics.Metrics
	concurrency int64
	now         func() time.Time
}

func New(store objectstore.Store, log logging.Logger, m *metrics.Metrics, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		store:       store,
		log:         log.With("module", "reconcile"),
		metrics:     m,
		concurrency: int64(concurrency),
		now:         time.Now,
	}
}

// Run scans the records in scope, recomputes their monthly indexes and daily
// summaries and compares them with what is stored. Drifted aggregates are
// replaced by a conditional put against the version compared, and missing
// id lookups are restored.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Report, error) {
	prefix := models.RecordsPrefix
	if opts.Month != "" {
		if _, err := timex.ParseMonth(opts.Month); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
		}
		prefix = models.RecordsMonthPrefix(opts.Month)
	}
	cutoff := r.now().Add(-SettleWindow)
	report := &Report{DryRun: opts.DryRun, Rewritten: []string{}, Skipped: []string{}}

	recs, err := r.loadRecords(ctx, prefix, report)
	if err != nil {
		return nil, err
	}

	monthly, daily := rebuild(recs)
	// Aggregates whose records are all gone still need clearing.
	if err := r.addOrphans(ctx, opts.Month, monthly, daily); err != nil {
		return nil, err
	}
	report.MonthsChecked = len(monthly)
	report.DaysChecked = len(daily)

	for _, month := range slices.Sorted(maps.Keys(monthly)) {
		err := fixAggregate(ctx, r, models.MonthlyIndexKey(month), indexer.AggregateMonthly, monthly[month], sameIndex, cutoff, opts.DryRun, report)
		if err != nil {
			return nil, err
		}
	}
	for _, date := range slices.Sorted(maps.Keys(daily)) {
		err := fixAggregate(ctx, r, models.DailySummaryKey(date), indexer.AggregateDaily, daily[date], sameDaily, cutoff, opts.DryRun, report)
		if err != nil {
			return nil, err
		}
	}

	if err := r.restoreLookups(ctx, recs, opts.DryRun, report); err != nil {
		return nil, err
	}

	r.log.Info(ctx, "reconciliation finished",
		"month", opts.Month,
		"dry_run", opts.DryRun,
		"records", report.RecordsScanned,
		"rewritten", len(report.Rewritten),
		"skipped", len(report.Skipped),
		"lookups_restored", report.LookupsRestored)
	return report, nil
}

type scanned struct {
	key string
	rec models.VerificationRecord
}

func (r *Reconciler) loadRecords(ctx context.Context, prefix string, report *Report) ([]scanned, error) {
	var keys []string
	for key, err := range r.store.List(ctx, prefix) {
		if err != nil {
			return nil, err
		}
		if models.IsMetadataKey(key) {
			keys = append(keys, key)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		out      = make([]scanned, 0, len(keys))
		firstErr error
	)
	sem := semaphore.NewWeighted(r.concurrency)
	for _, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			var rec models.VerificationRecord
			_, err := objectstore.GetJSON(ctx, r.store, key, &rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out = append(out, scanned{key: key, rec: rec})
			case errors.Is(err, common.ErrMalformed):
				report.Unreadable++
				r.log.Warn(ctx, "unreadable record", "key", key, "error", err)
			case errors.Is(err, common.ErrorNotFound):
			default:
				if firstErr == nil {
					firstErr = err
				}
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	report.RecordsScanned = len(out)
	slices.SortFunc(out, func(a, b scanned) int {
		if c := a.rec.Timestamp.Compare(b.rec.Timestamp.Time); c != 0 {
			return c
		}
		return strings.Compare(a.rec.ID, b.rec.ID)
	})
	return out, nil
}

// rebuild derives the aggregates of recs, which must be in chronological
// order so monthly entries come out in append order.
func rebuild(recs []scanned) (map[string]*models.MonthlyIndex, map[string]*models.DailySummary) {
	monthly := make(map[string]*models.MonthlyIndex)
	daily := make(map[string]*models.DailySummary)
	for _, s := range recs {
		sum := s.rec.Summary()
		month, date := sum.MonthKey(), sum.DateKey()

		if monthly[month] == nil {
			monthly[month] = models.NewMonthlyIndex(month)
		}
		monthly[month].Append(sum)

		if daily[date] == nil {
			daily[date] = models.NewDailySummary(date)
		}
		daily[date].Add(sum.Status, sum.Subject)
	}
	return monthly, daily
}

// addOrphans adds an empty expected aggregate for every stored monthly index
// and daily summary in scope that no scanned record contributes to.
func (r *Reconciler) addOrphans(ctx context.Context, month string, monthly map[string]*models.MonthlyIndex, daily map[string]*models.DailySummary) error {
	for key, err := range r.store.List(ctx, models.MonthlyIndexPrefix) {
		if err != nil {
			return err
		}
		m, ok := models.MonthFromIndexKey(key)
		if !ok || (month != "" && m != month) || monthly[m] != nil {
			continue
		}
		monthly[m] = models.NewMonthlyIndex(m)
	}
	for key, err := range r.store.List(ctx, models.DailySummaryPrefix) {
		if err != nil {
			return err
		}
		d, ok := models.DateFromSummaryKey(key)
		if !ok || (month != "" && !strings.HasPrefix(d, month+"-")) || daily[d] != nil {
			continue
		}
		daily[d] = models.NewDailySummary(d)
	}
	return nil
}

// fixAggregate compares the stored document at key with want and replaces
// it when they differ. The replacement is conditional on the ETag of the
// version compared, so a concurrent update turns the rewrite into a skip.
func fixAggregate[T any](
	ctx context.Context,
	r *Reconciler,
	key, aggregate string,
	want *T,
	same func(stored, want *T) bool,
	cutoff time.Time,
	dryRun bool,
	report *Report,
) error {
	var put objectstore.PutOptions

	info, err := r.store.Stat(ctx, key)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		put.IfNoneMatch = true
	case err != nil:
		return err
	case info.LastModified.After(cutoff):
		r.log.Info(ctx, "aggregate recently modified, leaving it for the next run", "key", key)
		report.Skipped = append(report.Skipped, key)
		return nil
	default:
		stored := new(T)
		etag, err := objectstore.GetJSON(ctx, r.store, key, stored)
		switch {
		case errors.Is(err, common.ErrMalformed):
			put.IfMatch = info.ETag
		case errors.Is(err, common.ErrorNotFound):
			put.IfNoneMatch = true
		case err != nil:
			return err
		case etag != info.ETag:
			report.Skipped = append(report.Skipped, key)
			return nil
		case same(stored, want):
			return nil
		default:
			put.IfMatch = etag
		}
	}

	if dryRun {
		report.Rewritten = append(report.Rewritten, key)
		return nil
	}
	_, err = objectstore.PutJSON(ctx, r.store, key, want, put)
	switch {
	case errors.Is(err, common.ErrVersionConflict):
		report.Skipped = append(report.Skipped, key)
		return nil
	case err != nil:
		return err
	}
	report.Rewritten = append(report.Rewritten, key)
	r.metrics.IncReconciled(aggregate)
	r.log.Info(ctx, "aggregate rewritten", "key", key)
	return nil
}

func sameIndex(stored, want *models.MonthlyIndex) bool {
	if stored.Month != want.Month || len(stored.Verifications) != len(want.Verifications) {
		return false
	}
	ids := func(m *models.MonthlyIndex) []string {
		out := make([]string, len(m.Verifications))
		for i, v := range m.Verifications {
			out[i] = v.RecordID
		}
		slices.Sort(out)
		return out
	}
	return slices.Equal(ids(stored), ids(want))
}

func sameDaily(stored, want *models.DailySummary) bool {
	subjects := slices.Sorted(slices.Values(stored.Subjects))
	return stored.Date == want.Date &&
		stored.Total == want.Total &&
		stored.Passed == want.Passed &&
		stored.Failed == want.Failed &&
		stored.UniqueCount == want.UniqueCount &&
		slices.Equal(subjects, want.Subjects)
}

func (r *Reconciler) restoreLookups(ctx context.Context, recs []scanned, dryRun bool, report *Report) error {
	for _, s := range recs {
		key := models.LookupKey(s.rec.ID)
		_, err := r.store.Stat(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		report.LookupsRestored++
		if dryRun {
			continue
		}
		entry := models.LookupEntry{
			RecordID:    s.rec.ID,
			Subject:     s.rec.Subject,
			Timestamp:   s.rec.Timestamp,
			MetadataKey: s.key,
		}
		_, err = objectstore.PutJSON(ctx, r.store, key, entry, objectstore.PutOptions{IfNoneMatch: true})
		if err != nil && !errors.Is(err, common.ErrVersionConflict) {
			return err
		}
	}
	return nil
}

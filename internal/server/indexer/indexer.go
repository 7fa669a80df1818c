// Package indexer keeps the derived documents under index/ in step with the
// records written under records/: the monthly listings, the daily counters
// and the id lookup table.
//
// The store has no transactions, so each aggregate update is a
// read-modify-write cycle. Two layers keep concurrent cycles from losing
// updates. Within a process, cycles on the same key are serialized by a
// keyed mutex. Across processes, every write is conditional on the ETag read
// in the same cycle, and a rejected write restarts the cycle after a jittered
// backoff.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/metrics"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
)

// Aggregate names used in logs and metrics.
const (
	AggregateMonthly = "monthly"
	AggregateDaily   = "daily"
	AggregateLookup  = "lookup"
)

// Options tune the update cycle.
type Options struct {
	// Conditional guards writes with If-Match / If-None-Match. With it off,
	// concurrent writers from different processes can lose updates and the
	// reconciler becomes the only repair path.
	Conditional bool
	// MaxRetries bounds how often a conflicting cycle is restarted.
	MaxRetries int
	RetryBase  time.Duration
}

func DefaultOptions() Options {
	return Options{Conditional: true, MaxRetries: 5, RetryBase: 50 * time.Millisecond}
}

type Maintainer struct {
	store   objectstore.Store
	log     logging.Logger
	metrics *metrics.Metrics
	opts    Options
	locks   *keyLock
}

func New(store objectstore.Store, log logging.Logger, m *metrics.Metrics, opts Options) *Maintainer {
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultOptions().RetryBase
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Maintainer{
		store:   store,
		log:     log.With("module", "indexer"),
		metrics: m,
		opts:    opts,
		locks:   newKeyLock(),
	}
}

// AppendToMonthlyIndex files s under the month of its timestamp, creating
// the month document on first use. Appending a record that is already
// listed changes nothing.
func (m *Maintainer) AppendToMonthlyIndex(ctx context.Context, s models.VerificationSummary) error {
	month := s.MonthKey()
	return update(ctx, m, AggregateMonthly, models.MonthlyIndexKey(month),
		func() *models.MonthlyIndex { return models.NewMonthlyIndex(month) },
		func(idx *models.MonthlyIndex) bool {
			if idx.Verifications == nil {
				idx.Verifications = []models.VerificationSummary{}
			}
			return idx.Append(s)
		})
}

// UpdateDailySummary counts one verification of subject with status on date
// (yyyy-mm-dd).
func (m *Maintainer) UpdateDailySummary(ctx context.Context, date string, status models.Status, subject string) error {
	return update(ctx, m, AggregateDaily, models.DailySummaryKey(date),
		func() *models.DailySummary { return models.NewDailySummary(date) },
		func(d *models.DailySummary) bool {
			d.Normalize()
			d.Add(status, subject)
			return true
		})
}

// PutLookup writes the id lookup entry of a record. Entries are write-once:
// finding one already in place counts as success.
func (m *Maintainer) PutLookup(ctx context.Context, e models.LookupEntry) error {
	_, err := objectstore.PutJSON(ctx, m.store, models.LookupKey(e.RecordID), e, objectstore.PutOptions{
		IfNoneMatch: m.opts.Conditional,
	})
	if errors.Is(err, common.ErrVersionConflict) {
		err = nil
	}
	m.metrics.ObserveIndexUpdate(AggregateLookup, err)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", common.ErrIndexUpdate, AggregateLookup, e.RecordID, err)
	}
	return nil
}

// Record applies s to both aggregates. Failures are logged and reported
// through the return value only; the record itself is already stored and a
// later reconciliation restores what is missing.
func (m *Maintainer) Record(ctx context.Context, s models.VerificationSummary) bool {
	var errs []error
	if err := m.AppendToMonthlyIndex(ctx, s); err != nil {
		errs = append(errs, err)
	}
	if err := m.UpdateDailySummary(ctx, s.DateKey(), s.Status, s.Subject); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		m.log.Warn(ctx, "index update failed", "verification_id", s.RecordID, "error", err)
		return false
	}
	return true
}

// update runs one guarded read-modify-write cycle on the document at key.
// mutate reports whether the document changed; unchanged documents are not
// written back.
func update[T any](ctx context.Context, m *Maintainer, aggregate, key string, init func() *T, mutate func(*T) bool) error {
	unlock := m.locks.Lock(key)
	defer unlock()

	backoff := retry.WithMaxRetries(uint64(m.opts.MaxRetries),
		retry.WithJitterPercent(20, retry.NewExponential(m.opts.RetryBase)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		doc := init()
		var opts objectstore.PutOptions

		etag, err := objectstore.GetJSON(ctx, m.store, key, doc)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			doc = init()
			opts.IfNoneMatch = m.opts.Conditional
		case err != nil:
			return err
		case m.opts.Conditional:
			opts.IfMatch = etag
		}

		if !mutate(doc) {
			return nil
		}

		_, err = objectstore.PutJSON(ctx, m.store, key, doc, opts)
		// S3 answers If-Match on a vanished key with 404; treat it as a lost race.
		if errors.Is(err, common.ErrVersionConflict) || (opts.IfMatch != "" && errors.Is(err, common.ErrorNotFound)) {
			m.metrics.IncConflict(aggregate)
			m.log.Debug(ctx, "index write conflict, retrying", "key", key)
			return retry.RetryableError(err)
		}
		return err
	})

	m.metrics.ObserveIndexUpdate(aggregate, err)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", common.ErrIndexUpdate, aggregate, key, err)
	}
	return nil
}

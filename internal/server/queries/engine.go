// Package queries answers read requests against the vault. Lookups by id
// and by subject go to the records themselves; date-based queries read the
// monthly and daily aggregates. Reads never write: a missing aggregate is
// reported as common.ErrorNotFound, not created.
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
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/metrics"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
)

// DefaultSubjectLimit caps GetBySubject when the caller passes no limit.
const DefaultSubjectLimit = 100

type Engine struct {
	store       objectstore.Store
	log         logging.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// New returns an Engine fetching at most concurrency documents at a time.
func New(store objectstore.Store, log logging.Logger, m *metrics.Metrics, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		store:       store,
		log:         log.With("module", "queries"),
		metrics:     m,
		concurrency: concurrency,
	}
}

// GetByID resolves a record through its lookup entry and falls back to a
// scan of records/ for records written before lookups existed or whose
// lookup write failed.
func (e *Engine) GetByID(ctx context.Context, id string) (*models.VerificationRecord, error) {
	defer e.metrics.ObserveQuery("get_by_id", time.Now())

	if id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("%w: invalid record id %q", common.ErrorValidation, id)
	}

	var entry models.LookupEntry
	_, err := objectstore.GetJSON(ctx, e.store, models.LookupKey(id), &entry)
	switch {
	case err == nil:
		rec, err := e.loadRecord(ctx, entry.MetadataKey)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		e.log.Warn(ctx, "stale id lookup", "verification_id", id, "metadata_key", entry.MetadataKey)
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrMalformed):
	default:
		return nil, err
	}

	for key, err := range e.store.List(ctx, models.RecordsPrefix) {
		if err != nil {
			return nil, err
		}
		if models.IsMetadataKey(key) && models.RecordIDFromKey(key) == id {
			return e.loadRecord(ctx, key)
		}
	}
	return nil, fmt.Errorf("record %s: %w", id, common.ErrorNotFound)
}

// GetBySubject returns the newest records of subject, at most limit of them
// (DefaultSubjectLimit when limit <= 0). It scans every record key, so its
// cost grows with the size of the vault.
func (e *Engine) GetBySubject(ctx context.Context, subject string, limit int) ([]models.VerificationRecord, error) {
	defer e.metrics.ObserveQuery("get_by_subject", time.Now())

	if subject == "" || strings.Contains(subject, "/") {
		return nil, fmt.Errorf("%w: invalid subject %q", common.ErrorValidation, subject)
	}
	if limit <= 0 {
		limit = DefaultSubjectLimit
	}

	segment := "/" + subject + "/"
	var keys []string
	for key, err := range e.store.List(ctx, models.RecordsPrefix) {
		if err != nil {
			return nil, err
		}
		if models.IsMetadataKey(key) && strings.Contains(key, segment) {
			keys = append(keys, key)
		}
	}

	recs, err := e.loadRecords(ctx, keys)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, func(a, b models.VerificationRecord) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (e *Engine) loadRecord(ctx context.Context, key string) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	if _, err := objectstore.GetJSON(ctx, e.store, key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// loadRecords fetches the documents at keys concurrently. Keys that vanished
// or hold undecodable JSON are skipped; any other failure aborts the load.
func (e *Engine) loadRecords(ctx context.Context, keys []string) ([]models.VerificationRecord, error) {
	slots := make([]*models.VerificationRecord, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			rec, err := e.loadRecord(gctx, key)
			switch {
			case err == nil:
				slots[i] = rec
			case errors.Is(err, common.ErrorNotFound):
			case errors.Is(err, common.ErrMalformed):
				e.log.Warn(gctx, "skipping unreadable record", "key", key, "error", err)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recs := make([]models.VerificationRecord, 0, len(keys))
	for _, r := range slots {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	return recs, nil
}

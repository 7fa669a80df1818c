package queries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/indexer"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
)

type fixture struct {
	store  *objectstore.MemoryStore
	index  *indexer.Maintainer
	engine *Engine
}

func newFixture() *fixture {
	store := objectstore.NewMemoryStore()
	return &fixture{
		store:  store,
		index:  indexer.New(store, logging.Nop(), nil, indexer.Options{Conditional: true, MaxRetries: 5, RetryBase: time.Millisecond}),
		engine: New(store, logging.Nop(), nil, 4),
	}
}

// seed stores a record the way the writer does. withLookup=false mimics
// records written before lookups existed.
func (f *fixture) seed(t *testing.T, id, subject string, status models.Status, ts time.Time, withLookup bool) models.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	stamp := models.NewTimestamp(ts)
	keys := models.ArtifactKeysFor(models.RecordPrefix(stamp, subject, id), "v.mp4")
	rec := models.VerificationRecord{
		ID:              id,
		Subject:         subject,
		Timestamp:       stamp,
		Status:          status,
		ConfidenceScore: 0.8,
		Files:           keys,
		ProcessingInfo:  models.NewProcessingInfo(stamp),
	}
	_, err := objectstore.PutJSON(ctx, f.store, keys.Metadata, rec, objectstore.PutOptions{})
	require.NoError(t, err)
	if withLookup {
		require.NoError(t, f.index.PutLookup(ctx, models.LookupEntry{RecordID: id, Subject: subject, Timestamp: stamp, MetadataKey: keys.Metadata}))
	}
	require.True(t, f.index.Record(ctx, rec.Summary()))
	return rec
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(t, "with-lookup", "alice@example.com", models.StatusPass, day(2024, 6, 30).Add(9*time.Hour), true)
	f.seed(t, "legacy", "bob@example.com", models.StatusFail, day(2024, 5, 2), false)
	f.seed(t, "legacy-2", "bob@example.com", models.StatusPass, day(2024, 5, 3), false)

	rec, err := f.engine.GetByID(ctx, "with-lookup")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", rec.Subject)

	// scan fallback matches the id segment exactly, not as a substring
	rec, err = f.engine.GetByID(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", rec.ID)

	_, err = f.engine.GetByID(ctx, "leg")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID_NotFoundWritesNothing(t *testing.T) {
	f := newFixture()
	_, err := f.engine.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, f.store.Keys())
}

func TestGetByID_StaleLookupFallsBackToScan(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(t, "r1", "a@example.com", models.StatusPass, day(2024, 6, 1), false)
	_, err := objectstore.PutJSON(ctx, f.store, models.LookupKey("r1"), models.LookupEntry{RecordID: "r1", MetadataKey: "records/gone/metadata.json"}, objectstore.PutOptions{})
	require.NoError(t, err)

	rec, err := f.engine.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
}

func TestGetByID_Validation(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"", "a/b"} {
		_, err := f.engine.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, common.ErrorValidation)
	}
}

func TestGetBySubject_NewestFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	base := day(2024, 6, 1)
	for i := range 5 {
		f.seed(t, fmt.Sprintf("a%d", i), "alice@example.com", models.StatusPass, base.AddDate(0, 0, i), true)
	}
	f.seed(t, "other", "malice@example.com", models.StatusPass, base, true)

	recs, err := f.engine.GetBySubject(ctx, "alice@example.com", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"a4", "a3", "a2"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})

	all, err := f.engine.GetBySubject(ctx, "alice@example.com", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := f.engine.GetBySubject(ctx, "nobody@example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetBySubject_SkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seed(t, "good", "alice@example.com", models.StatusPass, day(2024, 6, 1), true)
	_, err := f.store.Put(ctx, "records/2024/06/02/alice@example.com/bad/metadata.json", []byte("{not json"), objectstore.PutOptions{})
	require.NoError(t, err)

	recs, err := f.engine.GetBySubject(ctx, "alice@example.com", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "good", recs[0].ID)
}

func TestGetBySubject_StoreFailure(t *testing.T) {
	f := newFixture()
	f.seed(t, "good", "alice@example.com", models.StatusPass, day(2024, 6, 1), true)
	f.store.GetHook = func(string) error { return common.ErrTransport }

	_, err := f.engine.GetBySubject(context.Background(), "alice@example.com", 10)
	assert.ErrorIs(t, err, common.ErrTransport)
}

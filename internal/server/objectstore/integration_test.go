//go:build integration

package objectstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/netx"
	"github.com/dmitrijs2005/kycvault/internal/server/config"
	"github.com/dmitrijs2005/kycvault/internal/server/indexer"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
)

// newMinioStore starts a MinIO container and returns a store on a fresh
// bucket in it.
func newMinioStore(t *testing.T) *objectstore.S3Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2025-04-22T22-12-26Z",
		tcminio.WithUsername("kycvault"),
		tcminio.WithPassword("kycvault-secret"),
	)
	if err != nil {
		t.Fatalf("failed to start minio container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	addr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get minio address: %v", err)
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.S3BaseEndpoint = "http://" + addr
	cfg.S3RootUser = container.Username
	cfg.S3RootPassword = container.Password
	cfg.S3Bucket = "kyc-it"

	store, err := objectstore.NewS3Store(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.EnsureBucket(ctx), "second call must see the existing bucket")
	return store
}

func TestMinio_ObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMinioStore(t)

	_, err := store.Get(ctx, "missing.json")
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = store.Stat(ctx, "missing.json")
	require.ErrorIs(t, err, common.ErrorNotFound)

	etag, err := store.Put(ctx, "a/doc.json", []byte(`{"n":1}`), objectstore.PutOptions{
		ContentType: common.ContentTypeJSON,
		Attributes:  map[string]string{"verification-id": "v1"},
		IfNoneMatch: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	_, err = store.Put(ctx, "a/doc.json", []byte(`{"n":2}`), objectstore.PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, common.ErrVersionConflict)

	_, err = store.Put(ctx, "a/doc.json", []byte(`{"n":2}`), objectstore.PutOptions{IfMatch: `"stale"`})
	require.ErrorIs(t, err, common.ErrVersionConflict)

	obj, err := store.Get(ctx, "a/doc.json")
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(obj.Body))
	assert.Equal(t, "v1", obj.Attributes["verification-id"])
	assert.Equal(t, common.ContentTypeJSON, obj.ContentType)

	_, err = store.Put(ctx, "a/doc.json", []byte(`{"n":3}`), objectstore.PutOptions{IfMatch: obj.ETag})
	require.NoError(t, err)

	url, err := store.Presign(ctx, "a/doc.json", time.Minute)
	require.NoError(t, err)
	body, err := netx.DownloadPresigned(ctx, nil, url)
	require.NoError(t, err)
	assert.Equal(t, `{"n":3}`, string(body))
}

func TestMinio_ListPaginates(t *testing.T) {
	ctx := context.Background()
	store := newMinioStore(t)

	for i := range 1005 {
		_, err := store.Put(ctx, fmt.Sprintf("p/%04d", i), []byte("x"), objectstore.PutOptions{})
		require.NoError(t, err)
	}
	keys, err := objectstore.Collect(store.List(ctx, "p/"))
	require.NoError(t, err)
	assert.Len(t, keys, 1005)
}

func TestMinio_ConcurrentDailyUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := newMinioStore(t)

	const writers, perWriter = 4, 10
	var wg sync.WaitGroup
	for w := range writers {
		// separate maintainers do not share a lock, so only the ETag
		// preconditions keep the counts right
		m := indexer.New(store, logging.Nop(), nil, indexer.Options{Conditional: true, MaxRetries: 50, RetryBase: 5 * time.Millisecond})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				subject := fmt.Sprintf("user-%d-%d@example.com", w, i)
				assert.NoError(t, m.UpdateDailySummary(ctx, "2024-06-30", models.StatusPass, subject))
			}
		}()
	}
	wg.Wait()

	var daily models.DailySummary
	_, err := objectstore.GetJSON(ctx, store, models.DailySummaryKey("2024-06-30"), &daily)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, daily.Total)
	assert.Equal(t, writers*perWriter, daily.UniqueCount)
}

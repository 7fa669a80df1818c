package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kycvault/internal/common"
)

func TestMemoryStore_PutGetStat(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	etag, err := s.Put(ctx, "records/a/metadata.json", []byte(`{"x":1}`), PutOptions{
		ContentType: common.ContentTypeJSON,
		Attributes:  map[string]string{"status": "pass"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	obj, err := s.Get(ctx, "records/a/metadata.json")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(obj.Body))
	assert.Equal(t, etag, obj.ETag)
	assert.Equal(t, common.ContentTypeJSON, obj.ContentType)
	assert.Equal(t, "pass", obj.Attributes["status"])

	info, err := s.Stat(ctx, "records/a/metadata.json")
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Size)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = s.Stat(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryStore_ConditionalPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.Put(ctx, "k", []byte("1"), PutOptions{IfNoneMatch: true})
	require.NoError(t, err)

	_, err = s.Put(ctx, "k", []byte("2"), PutOptions{IfNoneMatch: true})
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	second, err := s.Put(ctx, "k", []byte("2"), PutOptions{IfMatch: first})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// first is stale now
	_, err = s.Put(ctx, "k", []byte("3"), PutOptions{IfMatch: first})
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	_, err = s.Put(ctx, "absent", []byte("x"), PutOptions{IfMatch: first})
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	obj, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", string(obj.Body))
}

func TestMemoryStore_ListIsSortedAndRestartable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"records/b", "index/x", "records/a", "records/c"} {
		_, err := s.Put(ctx, k, nil, PutOptions{})
		require.NoError(t, err)
	}

	seq := s.List(ctx, "records/")
	first, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"records/a", "records/b", "records/c"}, first)

	again, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	var early []string
	for k, err := range seq {
		require.NoError(t, err)
		early = append(early, k)
		break
	}
	assert.Equal(t, []string{"records/a"}, early)
}

func TestMemoryStore_Hooks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.PutHook = func(key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	}
	_, err := s.Put(ctx, "bad", nil, PutOptions{})
	assert.ErrorIs(t, err, boom)
	_, err = s.Put(ctx, "good", nil, PutOptions{})
	assert.NoError(t, err)

	s.GetHook = func(string) error { return common.ErrTransport }
	_, err = s.Get(ctx, "good")
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestMemoryStore_PutFileDetectsContentType(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "card.jpg")
	require.NoError(t, os.WriteFile(p, []byte("jpeg"), 0o600))

	s := NewMemoryStore()
	_, err := s.PutFile(context.Background(), "k", p, PutOptions{})
	require.NoError(t, err)

	obj, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	_, err = s.PutFile(context.Background(), "k2", filepath.Join(dir, "nope"), PutOptions{})
	assert.Error(t, err)
}

func TestMemoryStore_PresignServe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	srv := httptest.NewServer(s)
	defer srv.Close()
	s.SetBaseURL(srv.URL)

	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	key := "records/2024/06/30/alice@example.com/r1/id_card.jpg"
	_, err := s.Put(ctx, key, []byte("img"), PutOptions{ContentType: common.ContentTypeJPEG})
	require.NoError(t, err)

	u, err := s.Presign(ctx, key, time.Hour)
	require.NoError(t, err)

	get := func(u string) (int, string) {
		resp, err := http.Get(u)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	code, body := get(u)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "img", body)

	code, _ = get(u + "0")
	assert.Equal(t, http.StatusForbidden, code)

	now = now.Add(2 * time.Hour)
	code, _ = get(u)
	assert.Equal(t, http.StatusForbidden, code)

	now = now.Add(-2 * time.Hour)
	s.RotateSecret()
	code, _ = get(u)
	assert.Equal(t, http.StatusForbidden, code)

	u, err = s.Presign(ctx, "records/missing", time.Hour)
	require.NoError(t, err)
	code, _ = get(u)
	assert.Equal(t, http.StatusNotFound, code)
}

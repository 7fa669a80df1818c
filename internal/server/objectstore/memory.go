package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"maps"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/kycvault/internal/common"
)

// MemoryStore is an in-process Store with S3 semantics: every write gets a
// fresh ETag, conditional puts are enforced, and presigned URLs are HMAC
// signed and served by ServeHTTP. It backs tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	version uint64
	secret  []byte
	baseURL string
	now     func() time.Time

	// PutHook and GetHook, when set, run before every write or read; a non-nil
	// result fails the call with that error.
	PutHook func(key string) error
	GetHook func(key string) error
}

type memObject struct {
	body        []byte
	etag        string
	contentType string
	attrs       map[string]string
	modified    time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		objects: make(map[string]memObject),
		baseURL: "http://memory.invalid",
		now:     time.Now,
	}
	s.secret = newSecret()
	return s
}

func newSecret() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}

// SetBaseURL sets the origin presigned URLs point at, e.g. an httptest
// server wrapping this store.
func (s *MemoryStore) SetBaseURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimRight(u, "/")
}

func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// RotateSecret revokes every presigned URL issued so far.
func (s *MemoryStore) RotateSecret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = newSecret()
}

// Delete removes key. It exists for tests that simulate lost blobs.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

// Keys returns every stored key in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.objects))
}

func (s *MemoryStore) EnsureBucket(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: put %q: %w", common.ErrTransport, key, err)
	}
	if s.PutHook != nil {
		if err := s.PutHook(key); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.objects[key]
	if opts.IfNoneMatch && exists {
		return "", fmt.Errorf("put %q: %w", key, common.ErrVersionConflict)
	}
	if opts.IfMatch != "" && (!exists || cur.etag != opts.IfMatch) {
		return "", fmt.Errorf("put %q: %w", key, common.ErrVersionConflict)
	}

	s.version++
	obj := memObject{
		body:        slices.Clone(body),
		etag:        `"` + strconv.FormatUint(s.version, 16) + `"`,
		contentType: opts.ContentType,
		attrs:       maps.Clone(opts.Attributes),
		modified:    s.now(),
	}
	s.objects[key] = obj
	return obj.etag, nil
}

func (s *MemoryStore) PutFile(ctx context.Context, key, path string, opts PutOptions) (string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	if opts.ContentType == "" {
		opts.ContentType = contentTypeOf(path)
	}
	return s.Put(ctx, key, body, opts)
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: get %q: %w", common.ErrTransport, key, err)
	}
	if s.GetHook != nil {
		if err := s.GetHook(key); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, common.ErrorNotFound)
	}
	return &Object{
		Key:         key,
		Body:        slices.Clone(obj.body),
		ETag:        obj.etag,
		ContentType: obj.contentType,
		Attributes:  maps.Clone(obj.attrs),
	}, nil
}

func (s *MemoryStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: stat %q: %w", common.ErrTransport, key, err)
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stat %q: %w", key, common.ErrorNotFound)
	}
	return &ObjectInfo{Key: key, Size: int64(len(obj.body)), ETag: obj.etag, LastModified: obj.modified}, nil
}

// List snapshots the matching keys when iteration starts.
func (s *MemoryStore) List(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", fmt.Errorf("%w: list %q: %w", common.ErrTransport, prefix, err))
			return
		}
		s.mu.RLock()
		var keys []string
		for k := range s.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
		slices.Sort(keys)

		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("X-Expires", expires)
	q.Set("X-Signature", s.sign(key, expires))
	u := (&url.URL{Path: "/" + key}).EscapedPath()
	return s.baseURL + u + "?" + q.Encode(), nil
}

func (s *MemoryStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// ServeHTTP answers GET requests for presigned URLs: 403 for an expired or
// forged signature, 404 for a missing object.
func (s *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/")
	expires := r.URL.Query().Get("X-Expires")
	sig := r.URL.Query().Get("X-Signature")

	s.mu.RLock()
	want := s.sign(key, expires)
	now := s.now()
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || !hmac.Equal([]byte(sig), []byte(want)) || now.Unix() > exp {
		http.Error(w, "request has expired or signature does not match", http.StatusForbidden)
		return
	}
	if !ok {
		http.Error(w, "no such key", http.StatusNotFound)
		return
	}
	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	}
	w.Header().Set("ETag", obj.etag)
	_, _ = w.Write(obj.body)
}

// Package objectstore is the facade over the flat key/value blob store the
// vault runs on. It offers put/get/stat/list/presign against a single bucket
// and nothing else: no transactions, no indexes. The only concurrency primitive
// is a conditional put guarded by the ETag of the version last read.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/dmitrijs2005/kycvault/internal/common"
)

// Store is implemented by S3Store and MemoryStore.
//
// Errors match common.ErrorNotFound for absent keys, common.ErrVersionConflict
// for a failed precondition and common.ErrTransport for everything else.
type Store interface {
	// EnsureBucket creates the bucket unless it exists. Losing a creation
	// race to another process is not an error.
	EnsureBucket(ctx context.Context) error

	// Ping checks that the bucket is reachable without creating anything.
	// A missing bucket matches common.ErrorNotFound.
	Ping(ctx context.Context) error

	// Put writes body under key and returns the new ETag.
	Put(ctx context.Context, key string, body []byte, opts PutOptions) (string, error)

	// PutFile streams the local file at path to key.
	PutFile(ctx context.Context, key, path string, opts PutOptions) (string, error)

	Get(ctx context.Context, key string) (*Object, error)

	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// List yields every key under prefix in lexical order. The sequence is
	// lazy and finite; ranging over it again restarts the listing.
	List(ctx context.Context, prefix string) iter.Seq2[string, error]

	// Presign returns a URL granting GET access to key for ttl.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PutOptions carry content type, user attributes and an optional precondition.
type PutOptions struct {
	ContentType string
	Attributes  map[string]string

	// IfMatch makes the write fail with ErrVersionConflict unless the stored
	// object still has this ETag.
	IfMatch string
	// IfNoneMatch makes the write fail with ErrVersionConflict if the key
	// already exists.
	IfNoneMatch bool
}

type Object struct {
	Key         string
	Body        []byte
	ETag        string
	ContentType string
	Attributes  map[string]string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// GetJSON fetches key and decodes it into v, returning the ETag of the
// version read. Undecodable documents yield common.ErrMalformed.
func GetJSON(ctx context.Context, s Store, key string, v any) (string, error) {
	obj, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(obj.Body, v); err != nil {
		return "", fmt.Errorf("%w: %s: %w", common.ErrMalformed, key, err)
	}
	return obj.ETag, nil
}

// PutJSON encodes v and writes it under key with the JSON content type.
func PutJSON(ctx context.Context, s Store, key string, v any, opts PutOptions) (string, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	opts.ContentType = common.ContentTypeJSON
	return s.Put(ctx, key, body, opts)
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var keys []string
	for key, err := range seq {
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

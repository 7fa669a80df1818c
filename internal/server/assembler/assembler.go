// Package assembler turns a verification record into the bundle handed to
// the admin UI: the record plus a time-limited download URL per artifact.
package assembler

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
)

const (
	DefaultTTL = time.Hour
	// MaxTTL is the longest lifetime S3 accepts for a SigV4 presigned URL.
	MaxTTL = 7 * 24 * time.Hour
)

type Assembler struct {
	store objectstore.Store
	log   logging.Logger
	ttl   time.Duration
	now   func() time.Time
}

// New returns an Assembler issuing URLs valid for ttl, clamped to (0, MaxTTL].
func New(store objectstore.Store, log logging.Logger, ttl time.Duration) *Assembler {
	return &Assembler{
		store: store,
		log:   log.With("module", "assembler"),
		ttl:   ClampTTL(ttl),
		now:   time.Now,
	}
}

// ClampTTL maps non-positive values to DefaultTTL and caps at MaxTTL.
func ClampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return DefaultTTL
	case ttl > MaxTTL:
		return MaxTTL
	}
	return ttl
}

// Assemble checks each artifact of rec and presigns the ones present. A blob
// missing from the store is reported as unavailable, not as an error.
func (a *Assembler) Assemble(ctx context.Context, rec *models.VerificationRecord) (*models.RecordBundle, error) {
	expires := a.now().Add(a.ttl).UTC()

	metaKey := rec.Files.Metadata
	if metaKey == "" && rec.Files.IDCard != "" {
		// legacy records do not list their own metadata key
		metaKey = path.Join(path.Dir(rec.Files.IDCard), models.MetadataName)
	}

	artifacts := []struct{ name, key string }{
		{common.ArtifactIDCard, rec.Files.IDCard},
		{common.ArtifactVideo, rec.Files.SelfieVideo},
		{common.ArtifactMetadata, metaKey},
	}

	bundle := &models.RecordBundle{
		Record:    *rec,
		Downloads: make(map[string]models.DownloadLink, len(artifacts)),
		ExpiresAt: expires,
	}
	for _, art := range artifacts {
		link, err := a.link(ctx, art.key)
		if err != nil {
			return nil, err
		}
		if !link.Available {
			a.log.Info(ctx, "artifact unavailable", "verification_id", rec.ID, "artifact", art.name, "key", art.key)
		}
		bundle.Downloads[art.name] = link
	}
	return bundle, nil
}

func (a *Assembler) link(ctx context.Context, key string) (models.DownloadLink, error) {
	link := models.DownloadLink{Key: key}
	if key == "" {
		return link, nil
	}
	if _, err := a.store.Stat(ctx, key); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return link, nil
		}
		return link, err
	}
	url, err := a.store.Presign(ctx, key, a.ttl)
	if err != nil {
		return link, err
	}
	link.Available = true
	link.URL = url
	return link, nil
}

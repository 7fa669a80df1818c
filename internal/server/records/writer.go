// Package records writes verification records: the id-card image, the
// selfie video and the metadata document, followed by the index updates
// derived from them.
package records

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/logging"
	"github.com/dmitrijs2005/kycvault/internal/server/metrics"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/objectstore"
)

// Index is the part of the index maintainer the writer drives.
type Index interface {
	PutLookup(ctx context.Context, e models.LookupEntry) error
	Record(ctx context.Context, s models.VerificationSummary) bool
}

// SaveRequest describes one finished verification. RecordID may be empty,
// in which case a UUID is assigned.
type SaveRequest struct {
	RecordID        string
	Subject         string
	IDImagePath     string
	VideoPath       string
	Status          models.Status
	ConfidenceScore float64
	IDDetails       models.IDDetails
	ErrorMessage    string
}

// Values of the file-type upload attribute.
var fileTypes = map[string]string{
	common.ArtifactIDCard:   "id-card",
	common.ArtifactVideo:    "selfie-video",
	common.ArtifactMetadata: "metadata",
}

type Writer struct {
	store   objectstore.Store
	index   Index
	log     logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewWriter(store objectstore.Store, index Index, log logging.Logger, m *metrics.Metrics) *Writer {
	return &Writer{
		store:   store,
		index:   index,
		log:     log.With("module", "records"),
		metrics: m,
		now:     time.Now,
	}
}

// Save stores the three artifacts of a verification concurrently, then
// writes the id lookup and updates the aggregates.
//
// Artifacts succeed or fail independently and nothing is rolled back. When
// any of them failed the result is returned together with a
// *common.PartialWriteError. Index failures never fail the call; they show
// up as SaveResult.Indexed == false.
func (w *Writer) Save(ctx context.Context, req SaveRequest) (*models.SaveResult, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}
	if req.RecordID == "" {
		req.RecordID = uuid.NewString()
	}

	ts := models.NewTimestamp(w.now())
	prefix := models.RecordPrefix(ts, req.Subject, req.RecordID)
	keys := models.ArtifactKeysFor(prefix, req.VideoPath)

	record := models.VerificationRecord{
		ID:              req.RecordID,
		Subject:         req.Subject,
		Timestamp:       ts,
		Status:          req.Status,
		ConfidenceScore: req.ConfidenceScore,
		Files:           keys,
		IDDetails:       req.IDDetails,
		ProcessingInfo:  models.NewProcessingInfo(ts),
	}
	if req.ErrorMessage != "" {
		msg := req.ErrorMessage
		record.ErrorMessage = &msg
	}

	attrs := func(artifact string) map[string]string {
		return map[string]string{
			"verification-id": record.ID,
			"email":           record.Subject,
			"file-type":       fileTypes[artifact],
			"timestamp":       ts.Format(time.RFC3339Nano),
			"status":          string(record.Status),
		}
	}

	uploads := []struct {
		name string
		key  string
		put  func() error
	}{
		{common.ArtifactIDCard, keys.IDCard, func() error {
			_, err := w.store.PutFile(ctx, keys.IDCard, req.IDImagePath, objectstore.PutOptions{
				ContentType: common.ContentTypeJPEG,
				Attributes:  attrs(common.ArtifactIDCard),
			})
			return err
		}},
		{common.ArtifactVideo, keys.SelfieVideo, func() error {
			_, err := w.store.PutFile(ctx, keys.SelfieVideo, req.VideoPath, objectstore.PutOptions{
				Attributes: attrs(common.ArtifactVideo),
			})
			return err
		}},
		{common.ArtifactMetadata, keys.Metadata, func() error {
			_, err := objectstore.PutJSON(ctx, w.store, keys.Metadata, record, objectstore.PutOptions{
				Attributes: attrs(common.ArtifactMetadata),
			})
			return err
		}},
	}

	// Each upload owns one slot, and no upload cancels another.
	errs := make([]error, len(uploads))
	var g errgroup.Group
	for i, u := range uploads {
		g.Go(func() error {
			errs[i] = u.put()
			w.metrics.ObserveUpload(u.name, errs[i])
			return nil
		})
	}
	_ = g.Wait()

	result := &models.SaveResult{
		RecordID: record.ID,
		BasePath: prefix,
		Files:    make(map[string]models.ArtifactResult, len(uploads)),
		Record:   record,
	}
	failed := make(map[string]error)
	for i, u := range uploads {
		ar := models.ArtifactResult{Key: u.key, Saved: errs[i] == nil}
		if errs[i] != nil {
			ar.Error = errs[i].Error()
			failed[u.name] = errs[i]
			w.log.Error(ctx, "artifact upload failed", "verification_id", record.ID, "artifact", u.name, "key", u.key, "error", errs[i])
		}
		result.Files[u.name] = ar
	}
	result.Success = len(failed) == 0

	// A lookup must never point at a metadata document that was not written.
	if _, bad := failed[common.ArtifactMetadata]; !bad {
		err := w.index.PutLookup(ctx, models.LookupEntry{
			RecordID:    record.ID,
			Subject:     record.Subject,
			Timestamp:   record.Timestamp,
			MetadataKey: keys.Metadata,
		})
		if err != nil {
			w.log.Warn(ctx, "id lookup not written", "verification_id", record.ID, "error", err)
		}
	}

	result.Indexed = w.index.Record(ctx, record.Summary())

	if !result.Success {
		return result, &common.PartialWriteError{RecordID: record.ID, Failed: failed}
	}
	w.log.Info(ctx, "verification saved", "verification_id", record.ID, "subject", record.Subject, "status", record.Status, "indexed", result.Indexed)
	return result, nil
}

func validate(req *SaveRequest) error {
	req.Subject = strings.TrimSpace(req.Subject)
	switch {
	case req.Subject == "":
		return fmt.Errorf("%w: subject is required", common.ErrorValidation)
	case strings.Contains(req.Subject, "/"):
		return fmt.Errorf("%w: subject %q contains '/'", common.ErrorValidation, req.Subject)
	case isDotSegment(req.Subject):
		return fmt.Errorf("%w: subject %q is a path segment", common.ErrorValidation, req.Subject)
	case strings.Contains(req.RecordID, "/"):
		return fmt.Errorf("%w: record id %q contains '/'", common.ErrorValidation, req.RecordID)
	case isDotSegment(req.RecordID):
		return fmt.Errorf("%w: record id %q is a path segment", common.ErrorValidation, req.RecordID)
	case !req.Status.Valid():
		return fmt.Errorf("%w: status must be pass or fail, got %q", common.ErrorValidation, req.Status)
	case math.IsNaN(req.ConfidenceScore) || req.ConfidenceScore < 0 || req.ConfidenceScore > 1:
		return fmt.Errorf("%w: confidence score %v outside [0,1]", common.ErrorValidation, req.ConfidenceScore)
	case req.ErrorMessage != "" && req.Status != models.StatusFail:
		return fmt.Errorf("%w: error message is only allowed with status fail", common.ErrorValidation)
	case req.IDImagePath == "" || req.VideoPath == "":
		return fmt.Errorf("%w: id image and video paths are required", common.ErrorValidation)
	}
	return nil
}

// isDotSegment reports whether s would collapse a key prefix when the key
// is treated as a path.
func isDotSegment(s string) bool {
	return s == "." || s == ".."
}

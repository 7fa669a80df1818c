package models

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/kycvault/internal/timex"
)

// Key prefixes of the two logical areas of the bucket.
const (
	RecordsPrefix = "records/"
	IndexPrefix   = "index/"

	MonthlyIndexPrefix = IndexPrefix + "monthly/"
	DailySummaryPrefix = IndexPrefix + "daily/"
	lookupPrefix       = IndexPrefix + "ids/"

	idCardName   = "id_card.jpg"
	videoName    = "selfie_video"
	MetadataName = "metadata.json"
)

// RecordPrefix is records/{yyyy}/{mm}/{dd}/{subject}/{recordId}. Distinct
// record ids always give distinct prefixes.
func RecordPrefix(ts Timestamp, subject, recordID string) string {
	return RecordsPrefix + ts.Format("2006/01/02") + "/" + subject + "/" + recordID
}

// RecordsMonthPrefix is the listing prefix of every record of one month.
func RecordsMonthPrefix(month string) string {
	return RecordsPrefix + strings.Replace(month, "-", "/", 1) + "/"
}

// ArtifactKeysFor computes the blob keys of a record. The video keeps the
// extension of its source file.
func ArtifactKeysFor(prefix, videoSourcePath string) ArtifactKeys {
	return ArtifactKeys{
		IDCard:      prefix + "/" + idCardName,
		SelfieVideo: prefix + "/" + videoName + filepath.Ext(videoSourcePath),
		Metadata:    prefix + "/" + MetadataName,
	}
}

func MonthlyIndexKey(month string) string {
	return MonthlyIndexPrefix + month + ".json"
}

// MonthFromIndexKey is the inverse of MonthlyIndexKey. It reports false for
// keys that are not a well-formed monthly index key.
func MonthFromIndexKey(key string) (string, bool) {
	return aggregateName(key, MonthlyIndexPrefix, timex.ParseMonth)
}

func DailySummaryKey(date string) string {
	return DailySummaryPrefix + date + ".json"
}

// DateFromSummaryKey is the inverse of DailySummaryKey.
func DateFromSummaryKey(key string) (string, bool) {
	return aggregateName(key, DailySummaryPrefix, timex.ParseDate)
}

func aggregateName(key, prefix string, parse func(string) (time.Time, error)) (string, bool) {
	name, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return "", false
	}
	name, ok = strings.CutSuffix(name, ".json")
	if !ok {
		return "", false
	}
	if _, err := parse(name); err != nil {
		return "", false
	}
	return name, true
}

func LookupKey(recordID string) string {
	return lookupPrefix + recordID + ".json"
}

// IsMetadataKey reports whether key names a record's metadata document.
func IsMetadataKey(key string) bool {
	return strings.HasPrefix(key, RecordsPrefix) && path.Base(key) == MetadataName
}

// RecordIDFromKey returns the record-id segment of a records/ key, i.e. the
// directory that holds the artifact.
func RecordIDFromKey(key string) string {
	return path.Base(path.Dir(key))
}

// MonthOf returns the yyyy-mm key of ts.
func MonthOf(ts Timestamp) string {
	return ts.Format(timex.MonthLayout)
}

// DateOf returns the yyyy-mm-dd key of ts.
func DateOf(ts Timestamp) string {
	return ts.Format(timex.DateLayout)
}

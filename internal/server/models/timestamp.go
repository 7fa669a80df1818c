package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyLayout is the zone-less ISO-8601 form found in documents written by
// the first generation of the vault.
const legacyLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a UTC instant serialized as RFC 3339 with nanoseconds.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.ParseInLocation(legacyLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q is not ISO-8601", s)
	}
	t.Time = parsed
	return nil
}

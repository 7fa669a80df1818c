package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailySummary_AddKeepsInvariants(t *testing.T) {
	d := NewDailySummary("2024-06-30")

	d.Add(StatusPass, "alice@example.com")
	d.Add(StatusFail, "bob@example.com")
	d.Add(StatusPass, "alice@example.com")

	assert.Equal(t, 3, d.Total)
	assert.Equal(t, 2, d.Passed)
	assert.Equal(t, 1, d.Failed)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, d.Subjects)
	assert.Equal(t, 2, d.UniqueCount)
	assert.True(t, d.Consistent())
}

func TestDailySummary_NormalizeRepairsLegacyDocument(t *testing.T) {
	var d DailySummary
	raw := `{"date":"2024-06-30","total_verifications":7,"passed":2,"failed":1,
		"unique_emails":["b@x","a@x","b@x"],"unique_users_count":5}`
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.False(t, d.Consistent())

	d.Normalize()

	assert.True(t, d.Consistent())
	assert.Equal(t, 3, d.Total)
	assert.Equal(t, []string{"a@x", "b@x"}, d.Subjects)
}

func TestMonthlyIndex_AppendIsIdempotentPerRecord(t *testing.T) {
	m := NewMonthlyIndex("2024-06")
	s := VerificationSummary{RecordID: "r1", Subject: "a@x", Status: StatusPass}

	assert.True(t, m.Append(s))
	assert.False(t, m.Append(s))
	assert.True(t, m.Append(VerificationSummary{RecordID: "r2"}))
	assert.Len(t, m.Verifications, 2)
}

func TestTimestamp_JSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 6, 30, 12, 30, 45, 123000000, time.FixedZone("X", 3600)))

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-06-30T11:30:45.123Z"`, string(b))

	var back Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(ts.Time))
}

func TestTimestamp_AcceptsLegacyZonelessISO(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-06-30T10:11:12.654321"`), &ts))
	assert.Equal(t, time.Date(2024, 6, 30, 10, 11, 12, 654321000, time.UTC), ts.Time)

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestKeys(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC))
	prefix := RecordPrefix(ts, "alice@example.com", "rec-1")

	assert.Equal(t, "records/2024/06/30/alice@example.com/rec-1", prefix)

	keys := ArtifactKeysFor(prefix, "/tmp/upload/clip.webm")
	assert.Equal(t, prefix+"/id_card.jpg", keys.IDCard)
	assert.Equal(t, prefix+"/selfie_video.webm", keys.SelfieVideo)
	assert.Equal(t, prefix+"/metadata.json", keys.Metadata)

	assert.True(t, IsMetadataKey(keys.Metadata))
	assert.False(t, IsMetadataKey(keys.IDCard))
	assert.False(t, IsMetadataKey("index/monthly/metadata.json"))
	assert.Equal(t, "rec-1", RecordIDFromKey(keys.Metadata))

	assert.Equal(t, "index/monthly/2024-06.json", MonthlyIndexKey(MonthOf(ts)))
	assert.Equal(t, "index/daily/2024-06-30.json", DailySummaryKey(DateOf(ts)))
	assert.Equal(t, "index/ids/rec-1.json", LookupKey("rec-1"))
	assert.Equal(t, "records/2024/06/", RecordsMonthPrefix("2024-06"))
}

func TestKeys_DistinctRecordsNeverCollide(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC))
	seen := map[string]bool{}
	for _, id := range []string{"a", "b", "c", "ab", "a-b"} {
		k := ArtifactKeysFor(RecordPrefix(ts, "same@example.com", id), "v.mp4")
		for _, key := range []string{k.IDCard, k.SelfieVideo, k.Metadata} {
			assert.False(t, seen[key], "duplicate key %s", key)
			seen[key] = true
		}
	}
}

func TestVerificationRecord_DecodesLegacyDocument(t *testing.T) {
	raw := `{
		"verification_id": "v-1",
		"email": "alice@example.com",
		"timestamp": "2024-06-30T10:00:00.000001",
		"status": "fail",
		"confidence_score": 0.42,
		"files": {"id_card": "2024/06/30/alice@example.com/v-1/id_card.jpg",
		          "selfie_video": "2024/06/30/alice@example.com/v-1/selfie_video.mp4"},
		"id_details": {"name": "Alice", "type_of_id": "passport"},
		"error_message": "Face verification failed",
		"processing_info": {"date": "2024-06-30", "time": "10:00:00", "month": "2024-06", "year": "2024"}
	}`

	var r VerificationRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.Equal(t, StatusFail, r.Status)
	require.NotNil(t, r.ErrorMessage)
	assert.Equal(t, "Face verification failed", *r.ErrorMessage)
	assert.Empty(t, r.Files.Metadata)

	s := r.Summary()
	assert.Equal(t, "Alice", s.Name)
	assert.Equal(t, "2024-06", s.MonthKey())
	assert.Equal(t, "2024-06-30", s.DateKey())
}

func TestAggregateKeysRoundTrip(t *testing.T) {
	month, ok := MonthFromIndexKey(MonthlyIndexKey("2024-05"))
	assert.True(t, ok)
	assert.Equal(t, "2024-05", month)

	date, ok := DateFromSummaryKey(DailySummaryKey("2024-05-10"))
	assert.True(t, ok)
	assert.Equal(t, "2024-05-10", date)

	for _, key := range []string{
		"index/monthly/2024-13.json",
		"index/monthly/2024-05.txt",
		"index/daily/2024-05.json",
		DailySummaryKey("2024-05-10"),
	} {
		_, ok := MonthFromIndexKey(key)
		assert.False(t, ok, key)
	}
	_, ok = DateFromSummaryKey(MonthlyIndexKey("2024-05"))
	assert.False(t, ok)
}

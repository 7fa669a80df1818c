package models

import (
	"slices"

	"github.com/dmitrijs2005/kycvault/internal/timex"
)

// VerificationSummary is one entry of a monthly index.
type VerificationSummary struct {
	RecordID        string    `json:"verification_id"`
	Subject         string    `json:"email"`
	Status          Status    `json:"status"`
	Timestamp       Timestamp `json:"timestamp"`
	ConfidenceScore float64   `json:"confidence_score"`
	Name            string    `json:"id_name,omitempty"`
}

// MonthlyIndex lists the summaries of one calendar month in append order.
type MonthlyIndex struct {
	Month         string                `json:"month"`
	Verifications []VerificationSummary `json:"verifications"`
}

func NewMonthlyIndex(month string) *MonthlyIndex {
	return &MonthlyIndex{Month: month, Verifications: []VerificationSummary{}}
}

func (m *MonthlyIndex) Contains(recordID string) bool {
	return slices.ContainsFunc(m.Verifications, func(s VerificationSummary) bool {
		return s.RecordID == recordID
	})
}

// Append adds s unless its record is already listed. It reports whether the
// index changed.
func (m *MonthlyIndex) Append(s VerificationSummary) bool {
	if m.Contains(s.RecordID) {
		return false
	}
	m.Verifications = append(m.Verifications, s)
	return true
}

// MonthKey returns the yyyy-mm key a summary is filed under.
func (s VerificationSummary) MonthKey() string {
	return s.Timestamp.Format(timex.MonthLayout)
}

// DateKey returns the yyyy-mm-dd key of the summary's day.
func (s VerificationSummary) DateKey() string {
	return s.Timestamp.Format(timex.DateLayout)
}

// DailySummary holds the counters of one calendar day.
//
// Total always equals Passed+Failed and UniqueCount always equals
// len(Subjects): Add is the only mutator and Normalize repairs documents read
// from the store.
type DailySummary struct {
	Date        string   `json:"date"`
	Total       int      `json:"total_verifications"`
	Passed      int      `json:"passed"`
	Failed      int      `json:"failed"`
	Subjects    []string `json:"unique_emails"`
	UniqueCount int      `json:"unique_users_count"`
}

func NewDailySummary(date string) *DailySummary {
	return &DailySummary{Date: date, Subjects: []string{}}
}

// Add counts one verification.
func (d *DailySummary) Add(status Status, subject string) {
	if status == StatusPass {
		d.Passed++
	} else {
		d.Failed++
	}
	if i, found := slices.BinarySearch(d.Subjects, subject); !found {
		d.Subjects = slices.Insert(d.Subjects, i, subject)
	}
	d.recompute()
}

// Normalize sorts and dedupes the subject set and recomputes derived counts.
func (d *DailySummary) Normalize() {
	if d.Subjects == nil {
		d.Subjects = []string{}
	}
	slices.Sort(d.Subjects)
	d.Subjects = slices.Compact(d.Subjects)
	d.recompute()
}

func (d *DailySummary) recompute() {
	d.Total = d.Passed + d.Failed
	d.UniqueCount = len(d.Subjects)
}

// Consistent reports whether the derived counters match the raw ones.
func (d *DailySummary) Consistent() bool {
	return d.Total == d.Passed+d.Failed && d.UniqueCount == len(d.Subjects)
}

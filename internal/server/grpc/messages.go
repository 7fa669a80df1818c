package grpc

import "github.com/dmitrijs2005/kycvault/internal/server/models"

type GetVerificationRequest struct {
	ID string `json:"verification_id"`
}

type ListBySubjectRequest struct {
	Subject string `json:"email"`
	Limit   int    `json:"limit,omitempty"`
}

type ListBySubjectResponse struct {
	Records []models.VerificationRecord `json:"records"`
}

type GetDailySummaryRequest struct {
	Date string `json:"date"`
}

type GetMonthlyIndexRequest struct {
	Month string `json:"month"`
}

// SearchRequest takes yyyy-mm-dd dates, both inclusive.
type SearchRequest struct {
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date"`
	Status          models.Status `json:"status,omitempty"`
	SubjectContains string        `json:"email_filter,omitempty"`
}

type SearchResponse struct {
	Results []models.VerificationSummary `json:"results"`
}

type DailyStatsRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type RecentRequest struct {
	Month string `json:"month"`
	Limit int    `json:"limit,omitempty"`
}

type ReconcileRequest struct {
	Month  string `json:"month,omitempty"`
	DryRun bool   `json:"dry_run"`
}

package queue

import "encoding/json"

// Job type tags.
const (
	TypeScan          = "scan"
	TypeAnalyze       = "analyze"
	TypeNotify        = "notify"
	TypeScheduledScan = "scheduled-scan"
)

// ScanJob asks a worker to query one engine for one keyword.
type ScanJob struct {
	KeywordID   string   `json:"keyword_id"`
	Engine      string   `json:"engine"`
	ProjectID   string   `json:"project_id"`
	Query       string   `json:"query"`
	Brand       string   `json:"brand"`
	Competitors []string `json:"competitors,omitempty"`
}

// AnalysisJob asks a worker to analyse a raw engine response.
type AnalysisJob struct {
	ScanJobID   string   `json:"scan_job_id"`
	RawResponse string   `json:"raw_response"`
	Brand       string   `json:"brand"`
	Competitors []string `json:"competitors,omitempty"`
}

// NotificationJob delivers a user notification.
type NotificationJob struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	ProjectID string          `json:"project_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ScheduledJob is the payload of a keyword's repeating job.
type ScheduledJob struct {
	KeywordID string   `json:"keyword_id"`
	Engines   []string `json:"engines"`
}

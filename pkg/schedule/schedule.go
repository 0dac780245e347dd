package schedule

import (
	"strings"
	"time"
)

const idPrefix = "recurring-"

// ScheduleID returns the deterministic repeating-job id of a keyword.
func ScheduleID(keywordID string) string {
	return idPrefix + keywordID
}

// keywordOf reverses ScheduleID. ok is false for ids it did not produce.
func keywordOf(jobID string) (string, bool) {
	id, ok := strings.CutPrefix(jobID, idPrefix)
	return id, ok && id != ""
}

// Schedule is the repeating job installed for a keyword. It is derived from the
// queue state and never stored on its own.
type Schedule struct {
	Next      time.Time     `json:"next_run"`
	KeywordID string        `json:"keyword_id"`
	JobID     string        `json:"job_id"`
	Key       string        `json:"key"`
	Frequency Frequency     `json:"frequency,omitempty"`
	Pattern   string        `json:"pattern"`
	Engines   []string      `json:"engines,omitempty"`
	Offset    time.Duration `json:"offset"`
}

// Stats summarizes the installed schedules.
type Stats struct {
	NextRun        *time.Time `json:"next_run,omitempty"`
	ScheduledCount int64      `json:"scheduled_count"`
}

package schedule

import (
	"errors"
	"fmt"
	"sync"
)

// Skip is a keyword ResyncAll did not schedule on purpose.
type Skip struct {
	KeywordID string `json:"keyword_id"`
	Reason    string `json:"reason"`
}

// Failure is a keyword ResyncAll could not schedule.
type Failure struct {
	Err       error  `json:"-"`
	KeywordID string `json:"keyword_id"`
	Message   string `json:"error"`
}

// Report collects the per-keyword outcome of a resync.
type Report struct {
	Scheduled []string  `json:"scheduled"`
	Skipped   []Skip    `json:"skipped"`
	Failed    []Failure `json:"failed"`

	mu sync.Mutex
}

// Total is the number of keywords the resync looked at.
func (r *Report) Total() int {
	return len(r.Scheduled) + len(r.Skipped) + len(r.Failed)
}

// Err joins every failure, or returns nil when all keywords were handled.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("keyword %s: %w", f.KeywordID, f.Err))
	}
	return errors.Join(errs...)
}

func (r *Report) scheduled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scheduled = append(r.Scheduled, id)
}

func (r *Report) skipped(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, Skip{KeywordID: id, Reason: reason})
}

func (r *Report) failed(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, Failure{KeywordID: id, Err: err, Message: err.Error()})
}

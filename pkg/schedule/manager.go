package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/beenruuu/mentha/pkg/logger"
	"github.com/beenruuu/mentha/pkg/metrics"
	"github.com/beenruuu/mentha/pkg/queue"
)

// Repeater is the part of a queue the manager installs repeating jobs through.
// *queue.Queue satisfies it.
type Repeater interface {
	AddRepeatable(ctx context.Context, jobType string, payload any, repeat queue.Repeat, opts ...queue.EnqueueOption) (*queue.RepeatableJob, error)
	RepeatableJobs(ctx context.Context) ([]queue.RepeatableJob, error)
	RepeatableKey(ctx context.Context, jobID string) (string, bool, error)
	RemoveRepeatableByKey(ctx context.Context, key string) (bool, error)
	NextRepeat(ctx context.Context) (time.Time, int64, error)
}

// Manager keeps at most one repeating scan job per keyword.
type Manager struct {
	queue   Repeater
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    *options
}

// NewManager creates a manager installing schedules through q, normally the
// scheduled queue of the registry.
func NewManager(q Repeater, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		queue:   q,
		logger:  o.logger,
		metrics: o.metrics,
		opts:    o,
	}
}

// ScheduleRecurring installs the repeating scan of a keyword, replacing any schedule
// the keyword already has. Calling it again with the same or different arguments
// never leaves two schedules behind.
func (m *Manager) ScheduleRecurring(ctx context.Context, keywordID string, frequency Frequency, engines []string) (*Schedule, error) {
	if keywordID == "" {
		return nil, ErrEmptyKeywordID
	}
	pattern, err := frequency.Pattern()
	if err != nil {
		return nil, err
	}

	if engines == nil {
		engines = []string{}
	}

	ctx = logger.WithKeywordID(ctx, keywordID)
	jobID := ScheduleID(keywordID)
	offset := m.opts.jitter(m.opts.maxJitter)

	if _, err := m.remove(ctx, jobID); err != nil {
		m.logger.WarnContext(ctx, "failed to remove previous schedule", slog.Any("error", err))
	}

	rj, err := m.queue.AddRepeatable(ctx, queue.TypeScheduledScan,
		queue.ScheduledJob{KeywordID: keywordID, Engines: engines},
		queue.Repeat{Pattern: pattern, Offset: offset},
		queue.JobID(jobID),
	)
	if err != nil {
		m.metrics.ScheduleOp("schedule", "error")
		return nil, fmt.Errorf("schedule: install %s: %w", jobID, err)
	}

	m.metrics.ScheduleOp("schedule", "ok")
	m.logger.InfoContext(ctx, "recurring scan scheduled",
		slog.String("frequency", string(frequency)),
		slog.Duration("jitter", offset),
		slog.Time("next_run", rj.Next),
	)

	return &Schedule{
		KeywordID: keywordID,
		JobID:     jobID,
		Key:       rj.Key,
		Frequency: frequency,
		Pattern:   pattern,
		Offset:    offset,
		Engines:   engines,
		Next:      rj.Next,
	}, nil
}

// RemoveSchedule removes the repeating scan of a keyword. The current storage key is
// resolved from the queue's live id index, never rebuilt. A keyword without a
// schedule is a no-op.
func (m *Manager) RemoveSchedule(ctx context.Context, keywordID string) error {
	if keywordID == "" {
		return ErrEmptyKeywordID
	}
	ctx = logger.WithKeywordID(ctx, keywordID)

	removed, err := m.remove(ctx, ScheduleID(keywordID))
	if err != nil {
		m.metrics.ScheduleOp("remove", "error")
		return err
	}
	if removed == 0 {
		m.metrics.ScheduleOp("remove", "noop")
		m.logger.WarnContext(ctx, "no schedule to remove")
		return nil
	}

	m.metrics.ScheduleOp("remove", "ok")
	m.logger.InfoContext(ctx, "recurring scan removed")
	return nil
}

// remove resolves the current storage key of jobID from the queue's live id index
// and removes that entry. It costs the same whatever the number of schedules.
func (m *Manager) remove(ctx context.Context, jobID string) (int, error) {
	key, ok, err := m.queue.RepeatableKey(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("schedule: resolve %s: %w", jobID, err)
	}
	if !ok {
		return 0, nil
	}

	removed, err := m.queue.RemoveRepeatableByKey(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("schedule: remove %s: %w", jobID, err)
	}
	if !removed {
		return 0, nil
	}
	return 1, nil
}

// ResyncAll schedules every active keyword of src. Keywords with a missing or
// unsupported frequency are skipped; per-keyword failures are collected in the report.
// Only a failed source read, or a cancelled context, is returned as an error.
func (m *Manager) ResyncAll(ctx context.Context, src Source) (*Report, error) {
	start := time.Now()

	keywords, err := src.ActiveKeywords(ctx)
	if err != nil {
		m.metrics.ScheduleOp("resync", "error")
		return nil, errors.Join(ErrSourceUnavailable, err)
	}

	var limiter *rate.Limiter
	if m.opts.resyncRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.opts.resyncRate), max(1, m.opts.concurrency))
	}

	report := &Report{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.concurrency)

	for _, kw := range keywords {
		if kw.ID == "" {
			report.skipped("", "missing id")
			continue
		}
		freq, err := ParseFrequency(kw.Frequency)
		if err != nil {
			report.skipped(kw.ID, err.Error())
			m.logger.WarnContext(logger.WithKeywordID(ctx, kw.ID), "skipping keyword",
				slog.String("frequency", kw.Frequency),
			)
			continue
		}

		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					report.failed(kw.ID, err)
					return nil
				}
			}
			if _, err := m.ScheduleRecurring(gctx, kw.ID, freq, kw.Engines); err != nil {
				report.failed(kw.ID, err)
				return nil
			}
			report.scheduled(kw.ID)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Scheduled)

	result := "ok"
	if len(report.Failed) > 0 {
		result = "partial"
	}
	m.metrics.ScheduleOp("resync", result)
	m.logger.InfoContext(ctx, "schedules resynced",
		slog.Int("total", report.Total()),
		slog.Int("scheduled", len(report.Scheduled)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("took", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Stats returns the number of installed repeating jobs and the earliest next run.
// NextRun is nil when nothing is scheduled.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	next, count, err := m.queue.NextRepeat(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("schedule: stats: %w", err)
	}

	m.metrics.SetSchedulesActive(int(count))

	st := Stats{ScheduledCount: count}
	if count > 0 && !next.IsZero() {
		st.NextRun = &next
	}
	return st, nil
}

// Schedules lists the installed keyword schedules ordered by next run.
func (m *Manager) Schedules(ctx context.Context) ([]Schedule, error) {
	jobs, err := m.queue.RepeatableJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: list repeating jobs: %w", err)
	}

	out := make([]Schedule, 0, len(jobs))
	for _, j := range jobs {
		kwID, ok := keywordOf(j.JobID)
		if !ok {
			continue
		}
		out = append(out, Schedule{
			KeywordID: kwID,
			JobID:     j.JobID,
			Key:       j.Key,
			Frequency: frequencyOf(j.Pattern),
			Pattern:   j.Pattern,
			Offset:    j.Offset,
			Next:      j.Next,
		})
	}
	return out, nil
}

package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beenruuu/mentha/pkg/metrics"
	"github.com/beenruuu/mentha/pkg/queue"
)

// testNow is a Monday.
var testNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

func fixedJitter(d time.Duration) func(time.Duration) time.Duration {
	return func(time.Duration) time.Duration { return d }
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	reg := queue.NewRegistry(client, queue.WithClock(func() time.Time { return testNow }))
	q, err := reg.Queue(queue.Scheduled)
	require.NoError(t, err)

	opts = append([]Option{WithResyncRate(0)}, opts...)
	return NewManager(q, opts...), mr
}

type failingSource struct{ err error }

func (s failingSource) ActiveKeywords(context.Context) ([]Keyword, error) {
	return nil, s.err
}

func TestManager_ScheduleRecurring(t *testing.T) {
	t.Parallel()

	t.Run("frequency change keeps one schedule", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		s, err := m.ScheduleRecurring(ctx, "kw-1", Daily, []string{"openai"})
		require.NoError(t, err)
		assert.Equal(t, "recurring-kw-1", s.JobID)
		assert.Equal(t, "0 0 * * *", s.Pattern)
		assert.GreaterOrEqual(t, s.Offset, time.Duration(0))
		assert.Less(t, s.Offset, DefaultMaxJitter)

		st, err := m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.ScheduledCount)
		require.NotNil(t, st.NextRun)
		assert.True(t, st.NextRun.After(testNow))
		assert.False(t, st.NextRun.After(testNow.Add(24*time.Hour+DefaultMaxJitter)))

		_, err = m.ScheduleRecurring(ctx, "kw-1", Weekly, []string{"openai"})
		require.NoError(t, err)

		st, err = m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.ScheduledCount)

		schedules, err := m.Schedules(ctx)
		require.NoError(t, err)
		require.Len(t, schedules, 1)
		assert.Equal(t, "kw-1", schedules[0].KeywordID)
		assert.Equal(t, Weekly, schedules[0].Frequency)
	})

	t.Run("jitter shifts next run", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t, WithJitterFunc(fixedJitter(17*time.Minute+250*time.Millisecond)))

		s, err := m.ScheduleRecurring(context.Background(), "kw-1", Daily, nil)
		require.NoError(t, err)

		want := time.Date(2026, time.October, 20, 0, 17, 0, 250_000_000, time.UTC)
		assert.True(t, want.Equal(s.Next), "next %s", s.Next)
		assert.Equal(t, 17*time.Minute+250*time.Millisecond, s.Offset)
	})

	t.Run("max jitter is passed to the jitter source", func(t *testing.T) {
		t.Parallel()

		var got time.Duration
		m, _ := newTestManager(t,
			WithMaxJitter(5*time.Minute),
			WithJitterFunc(func(d time.Duration) time.Duration { got = d; return 0 }),
		)

		_, err := m.ScheduleRecurring(context.Background(), "kw-1", Daily, nil)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, got)
	})

	t.Run("concurrent calls leave one schedule", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 20 {
			freq := Daily
			if i%2 == 0 {
				freq = Weekly
			}
			wg.Go(func() {
				_, err := m.ScheduleRecurring(ctx, "kw-1", freq, []string{"openai"})
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		st, err := m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.ScheduledCount)
	})

	t.Run("different keywords are independent", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		_, err := m.ScheduleRecurring(ctx, "kw-1", Daily, nil)
		require.NoError(t, err)
		_, err = m.ScheduleRecurring(ctx, "kw-2", Daily, nil)
		require.NoError(t, err)

		st, err := m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.ScheduledCount)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		_, err := m.ScheduleRecurring(ctx, "", Daily, nil)
		assert.ErrorIs(t, err, ErrEmptyKeywordID)

		_, err = m.ScheduleRecurring(ctx, "kw-1", Frequency("monthly"), nil)
		assert.ErrorIs(t, err, ErrUnsupportedFrequency)
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()

		m, mr := newTestManager(t)
		mr.Close()

		_, err := m.ScheduleRecurring(context.Background(), "kw-1", Daily, nil)
		require.Error(t, err)
	})
}

func TestManager_ScheduleRecurring_Cost(t *testing.T) {
	t.Parallel()

	m, mr := newTestManager(t, WithJitterFunc(fixedJitter(time.Minute)))
	ctx := context.Background()

	for i := range 300 {
		_, err := m.ScheduleRecurring(ctx, fmt.Sprintf("kw-%03d", i), Daily, nil)
		require.NoError(t, err)
	}

	for _, kw := range []string{"kw-150", "kw-new"} {
		before := mr.CommandCount()
		_, err := m.ScheduleRecurring(ctx, kw, Weekly, []string{"openai"})
		require.NoError(t, err)
		assert.LessOrEqual(t, mr.CommandCount()-before, 8, "commands for %s", kw)
	}

	before := mr.CommandCount()
	require.NoError(t, m.RemoveSchedule(ctx, "kw-042"))
	assert.LessOrEqual(t, mr.CommandCount()-before, 6)

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 300, st.ScheduledCount)
}

func TestManager_ScheduleRecurring_NilEngines(t *testing.T) {
	t.Parallel()

	m, mr := newTestManager(t)

	s, err := m.ScheduleRecurring(context.Background(), "kw-1", Daily, nil)
	require.NoError(t, err)

	data := mr.HGet("mentha:{scheduled}:repeat:"+s.Key, "data")
	assert.JSONEq(t, `{"keyword_id":"kw-1","engines":[]}`, data)
}

func TestManager_RemoveSchedule(t *testing.T) {
	t.Parallel()

	t.Run("removes and is idempotent", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		_, err := m.ScheduleRecurring(ctx, "kw-1", Weekly, nil)
		require.NoError(t, err)
		_, err = m.ScheduleRecurring(ctx, "kw-2", Daily, nil)
		require.NoError(t, err)

		require.NoError(t, m.RemoveSchedule(ctx, "kw-1"))
		require.NoError(t, m.RemoveSchedule(ctx, "kw-1"))

		schedules, err := m.Schedules(ctx)
		require.NoError(t, err)
		require.Len(t, schedules, 1)
		assert.Equal(t, "kw-2", schedules[0].KeywordID)
	})

	t.Run("missing schedule is a no-op", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)

		require.NoError(t, m.RemoveSchedule(context.Background(), "never-scheduled"))

		st, err := m.Stats(context.Background())
		require.NoError(t, err)
		assert.Zero(t, st.ScheduledCount)
		assert.Nil(t, st.NextRun)
	})

	t.Run("empty keyword id", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		assert.ErrorIs(t, m.RemoveSchedule(context.Background(), ""), ErrEmptyKeywordID)
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()

		m, mr := newTestManager(t)
		mr.Close()

		assert.Error(t, m.RemoveSchedule(context.Background(), "kw-1"))
	})
}

func TestManager_ResyncAll(t *testing.T) {
	t.Parallel()

	t.Run("schedules every supported keyword", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		met := metrics.New(reg)
		m, _ := newTestManager(t, WithMetrics(met), WithResyncConcurrency(3))
		ctx := context.Background()

		src := StaticSource{
			{ID: "d1", Frequency: "daily", Engines: []string{"openai"}},
			{ID: "d2", Frequency: "daily"},
			{ID: "d3", Frequency: "daily"},
			{ID: "w1", Frequency: "weekly"},
			{ID: "w2", Frequency: "weekly", Engines: []string{"perplexity"}},
			{ID: "m1", Frequency: "monthly"},
			{ID: "n1"},
		}

		report, err := m.ResyncAll(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1", "d2", "d3", "w1", "w2"}, report.Scheduled)
		assert.Len(t, report.Skipped, 2)
		assert.Empty(t, report.Failed)
		assert.Equal(t, 7, report.Total())
		require.NoError(t, report.Err())

		st, err := m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), st.ScheduledCount)
		assert.InDelta(t, 5, testutil.ToFloat64(met.SchedulesActive), 0)
		assert.InDelta(t, 5, testutil.ToFloat64(met.ScheduleOps.WithLabelValues("schedule", "ok")), 0)
	})

	t.Run("running twice does not duplicate", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		src := StaticSource{{ID: "d1", Frequency: "daily"}, {ID: "w1", Frequency: "weekly"}}

		for range 2 {
			_, err := m.ResyncAll(ctx, src)
			require.NoError(t, err)
		}

		st, err := m.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.ScheduledCount)
	})

	t.Run("paced resync", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t, WithResyncRate(1000))

		report, err := m.ResyncAll(context.Background(), StaticSource{{ID: "d1", Frequency: "daily"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"d1"}, report.Scheduled)
	})

	t.Run("source failure", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		boom := errors.New("connection refused")

		report, err := m.ResyncAll(context.Background(), failingSource{err: boom})
		assert.Nil(t, report)
		require.ErrorIs(t, err, ErrSourceUnavailable)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("store failures are collected", func(t *testing.T) {
		t.Parallel()

		m, mr := newTestManager(t)
		mr.Close()

		report, err := m.ResyncAll(context.Background(), StaticSource{{ID: "d1", Frequency: "daily"}})
		require.NoError(t, err)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, "d1", report.Failed[0].KeywordID)
		assert.Error(t, report.Err())
	})
}

package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beenruuu/mentha/pkg/metrics"
)

func TestQueue_Add(t *testing.T) {
	t.Parallel()

	t.Run("stores job with defaults", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Analysis)

		job, err := q.Add(context.Background(), TypeAnalyze, AnalysisJob{ScanJobID: "scan-1", Brand: "mentha"})
		require.NoError(t, err)

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, Analysis, job.Queue)
		assert.Equal(t, TypeAnalyze, job.Type)
		assert.Equal(t, testNow, job.CreatedAt)
		assert.Equal(t, 3, job.Options.Attempts)

		key := "mentha:{analysis}:job:" + job.ID
		assert.Equal(t, TypeAnalyze, mr.HGet(key, "name"))
		assert.Equal(t, itoa(testNow.UnixMilli()), mr.HGet(key, "timestamp"))
		assert.Equal(t, "0", mr.HGet(key, "attemptsMade"))

		var data AnalysisJob
		require.NoError(t, json.Unmarshal([]byte(mr.HGet(key, "data")), &data))
		assert.Equal(t, "scan-1", data.ScanJobID)

		var opts map[string]any
		require.NoError(t, json.Unmarshal([]byte(mr.HGet(key, "opts")), &opts))
		assert.EqualValues(t, 3, opts["attempts"])

		wait, err := mr.List("mentha:{analysis}:wait")
		require.NoError(t, err)
		assert.Equal(t, []string{job.ID}, wait)
	})

	t.Run("scan jobs default to normal priority", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)

		job, err := r.Enqueue(context.Background(), Scrapers, TypeScan, ScanJob{KeywordID: "kw-1", Engine: "openai"})
		require.NoError(t, err)
		assert.Equal(t, PriorityNormal, job.Options.Priority)

		assert.False(t, mr.Exists("mentha:{scrapers}:wait"))
		score, err := mr.ZScore("mentha:{scrapers}:prioritized", job.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(PriorityNormal)*4294967296+1, score)
	})

	t.Run("notifications default to low priority", func(t *testing.T) {
		t.Parallel()

		r, _, _ := newTestRegistry(t)

		job, err := r.Enqueue(context.Background(), Notifications, TypeNotify, NotificationJob{UserID: "u-1"})
		require.NoError(t, err)
		assert.Equal(t, PriorityLow, job.Options.Priority)
	})

	t.Run("per job priority overrides queue default", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		ctx := context.Background()

		low, err := r.Enqueue(ctx, Notifications, TypeNotify, nil)
		require.NoError(t, err)
		high, err := r.Enqueue(ctx, Notifications, TypeNotify, nil, Priority(PriorityHigh))
		require.NoError(t, err)

		members, err := mr.ZMembers("mentha:{notifications}:prioritized")
		require.NoError(t, err)
		assert.Equal(t, []string{high.ID, low.ID}, members)
	})

	t.Run("delayed job", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)

		job, err := r.Enqueue(context.Background(), Analysis, TypeAnalyze, nil, ScheduledIn(time.Minute))
		require.NoError(t, err)

		score, err := mr.ZScore("mentha:{analysis}:delayed", job.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(testNow.Add(time.Minute).UnixMilli()), score)
		assert.False(t, mr.Exists("mentha:{analysis}:wait"))
	})

	t.Run("same job id is not duplicated", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		ctx := context.Background()

		for range 3 {
			job, err := r.Enqueue(ctx, Analysis, TypeAnalyze, nil, JobID("analyze-res-1"))
			require.NoError(t, err)
			assert.Equal(t, "analyze-res-1", job.ID)
		}

		wait, err := mr.List("mentha:{analysis}:wait")
		require.NoError(t, err)
		assert.Equal(t, []string{"analyze-res-1"}, wait)
	})

	t.Run("raw payload is stored as is", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)

		job, err := r.Enqueue(context.Background(), Analysis, TypeAnalyze, json.RawMessage(`{"a":1}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, mr.HGet("mentha:{analysis}:job:"+job.ID, "data"))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		r, _, _ := newTestRegistry(t)
		q := mustQueue(t, r, Analysis)
		ctx := context.Background()

		_, err := q.Add(ctx, "", nil)
		assert.ErrorIs(t, err, ErrEmptyJobType)

		_, err = q.Add(ctx, TypeAnalyze, nil, Priority(MaxPriority+1))
		assert.ErrorIs(t, err, ErrInvalidPriority)

		_, err = q.Add(ctx, TypeAnalyze, make(chan int))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		r, mr, _ := newTestRegistry(t, WithMetrics(m))
		mr.Close()

		_, err := r.Enqueue(context.Background(), Scrapers, TypeScan, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queue: add scan to scrapers")
		assert.InDelta(t, 1, testutil.ToFloat64(m.EnqueueErrors.WithLabelValues("scrapers")), 0)
	})

	t.Run("counts enqueued jobs", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		r, _, _ := newTestRegistry(t, WithMetrics(m))

		_, err := r.Enqueue(context.Background(), Scrapers, TypeScan, nil)
		require.NoError(t, err)

		assert.InDelta(t, 1, testutil.ToFloat64(m.JobsEnqueued.WithLabelValues("scrapers", TypeScan)), 0)
	})
}

func TestQueue_Close(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry(t)
	q := mustQueue(t, r, Analysis)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err := q.Add(context.Background(), TypeAnalyze, nil)
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.AddRepeatable(context.Background(), TypeAnalyze, nil, Repeat{Pattern: "0 0 * * *"}, JobID("x"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_CloseWaitsForInflightAdds(t *testing.T) {
	t.Parallel()

	r, mr, _ := newTestRegistry(t)
	q := mustQueue(t, r, Analysis)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 20 {
		wg.Go(func() {
			if _, err := q.Add(ctx, TypeAnalyze, nil); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		})
	}
	require.NoError(t, q.Close())
	wg.Wait()

	wait, err := mr.List("mentha:{analysis}:wait")
	if accepted == 0 {
		assert.Empty(t, wait)
		return
	}
	require.NoError(t, err)
	assert.Len(t, wait, accepted)
}

func TestQueue_PromoteDelayed(t *testing.T) {
	t.Parallel()

	r, mr, _ := newTestRegistry(t)
	ctx := context.Background()

	plain, err := r.Enqueue(ctx, Analysis, TypeAnalyze, nil, ScheduledIn(time.Minute))
	require.NoError(t, err)
	prio, err := r.Enqueue(ctx, Scrapers, TypeScan, nil, ScheduledIn(2*time.Minute))
	require.NoError(t, err)

	n, err := r.PromoteDue(ctx, testNow.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.PromoteDue(ctx, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	wait, err := mr.List("mentha:{analysis}:wait")
	require.NoError(t, err)
	assert.Equal(t, []string{plain.ID}, wait)

	n, err = r.PromoteDue(ctx, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	members, err := mr.ZMembers("mentha:{scrapers}:prioritized")
	require.NoError(t, err)
	assert.Equal(t, []string{prio.ID}, members)
	assert.False(t, mr.Exists("mentha:{scrapers}:delayed"))
}

func TestQueue_Counts(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	q := mustQueue(t, r, Scrapers)

	_, err := q.Add(ctx, TypeScan, nil)
	require.NoError(t, err)
	_, err = q.Add(ctx, TypeScan, nil, Priority(0))
	require.NoError(t, err)
	_, err = q.Add(ctx, TypeScan, nil, ScheduledIn(time.Hour))
	require.NoError(t, err)
	_, err = q.AddRepeatable(ctx, TypeScan, nil, Repeat{Pattern: "0 0 * * *"}, JobID("r1"))
	require.NoError(t, err)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Waiting: 1, Prioritized: 1, Delayed: 1, Repeating: 1}, counts)
}

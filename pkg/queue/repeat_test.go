package queue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	daily  = "0 0 * * *"
	weekly = "0 0 * * 0"
)

func TestQueue_AddRepeatable(t *testing.T) {
	t.Parallel()

	t.Run("installs entry", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		rj, err := q.AddRepeatable(ctx, TypeScheduledScan, ScheduledJob{KeywordID: "kw1", Engines: []string{"openai"}},
			Repeat{Pattern: daily, Offset: 30 * time.Minute}, JobID("recurring-kw1"))
		require.NoError(t, err)

		assert.Equal(t, "scheduled-scan:recurring-kw1:::0 0 * * *", rj.Key)
		assert.Equal(t, time.Date(2026, time.October, 20, 0, 30, 0, 0, time.UTC), rj.Next)

		jobs, err := q.RepeatableJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "recurring-kw1", jobs[0].JobID)
		assert.Equal(t, TypeScheduledScan, jobs[0].Type)
		assert.Equal(t, daily, jobs[0].Pattern)
		assert.Equal(t, 30*time.Minute, jobs[0].Offset)
		assert.True(t, rj.Next.Equal(jobs[0].Next))

		assert.Equal(t, rj.Key, mr.HGet("mentha:{scheduled}:repeat-ids", "recurring-kw1"))
	})

	t.Run("same job id with new pattern replaces entry", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		_, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily}, JobID("recurring-kw1"))
		require.NoError(t, err)
		_, err = q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: weekly}, JobID("recurring-kw1"))
		require.NoError(t, err)

		jobs, err := q.RepeatableJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, weekly, jobs[0].Pattern)
		assert.Equal(t, time.Date(2026, time.October, 25, 0, 0, 0, 0, time.UTC), jobs[0].Next.UTC())

		assert.False(t, mr.Exists("mentha:{scheduled}:repeat:scheduled-scan:recurring-kw1:::0 0 * * *"))
	})

	t.Run("concurrent installs leave one entry", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 20 {
			pattern := daily
			if i%2 == 1 {
				pattern = weekly
			}
			wg.Go(func() {
				_, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: pattern}, JobID("recurring-kw1"))
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		jobs, err := q.RepeatableJobs(ctx)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)

		metas := 0
		for _, k := range mr.Keys() {
			if strings.HasPrefix(k, "mentha:{scheduled}:repeat:") {
				metas++
			}
		}
		assert.Equal(t, 1, metas)
	})

	t.Run("rejects invalid repeat", func(t *testing.T) {
		t.Parallel()

		r, _, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		_, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily})
		assert.ErrorIs(t, err, ErrJobIDRequired)

		_, err = q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: "every day"}, JobID("x"))
		assert.ErrorIs(t, err, ErrInvalidPattern)

		_, err = q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily, Offset: -time.Second}, JobID("x"))
		assert.ErrorIs(t, err, ErrInvalidOffset)

		_, err = q.AddRepeatable(ctx, "", nil, Repeat{Pattern: daily}, JobID("x"))
		assert.ErrorIs(t, err, ErrEmptyJobType)
	})
}

func TestQueue_RemoveRepeatableByKey(t *testing.T) {
	t.Parallel()

	r, mr, _ := newTestRegistry(t)
	q := mustQueue(t, r, Scheduled)
	ctx := context.Background()

	rj, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily}, JobID("recurring-kw1"))
	require.NoError(t, err)

	removed, err := q.RemoveRepeatableByKey(ctx, rj.Key)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.RemoveRepeatableByKey(ctx, rj.Key)
	require.NoError(t, err)
	assert.False(t, removed)

	jobs, err := q.RepeatableJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.False(t, mr.Exists("mentha:{scheduled}:repeat-ids"))
}

func TestQueue_RepeatableKey(t *testing.T) {
	t.Parallel()

	t.Run("follows pattern changes", func(t *testing.T) {
		t.Parallel()

		r, _, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		_, ok, err := q.RepeatableKey(ctx, "recurring-kw1")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily}, JobID("recurring-kw1"))
		require.NoError(t, err)
		weekly, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: "0 0 * * 0"}, JobID("recurring-kw1"))
		require.NoError(t, err)

		key, ok, err := q.RepeatableKey(ctx, "recurring-kw1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, weekly.Key, key)
	})

	t.Run("removal without entry hash clears the index", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		rj, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily}, JobID("recurring-kw1"))
		require.NoError(t, err)
		mr.Del("mentha:{scheduled}:repeat:" + rj.Key)

		removed, err := q.RemoveRepeatableByKey(ctx, rj.Key)
		require.NoError(t, err)
		assert.True(t, removed)

		_, ok, err := q.RepeatableKey(ctx, "recurring-kw1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		mr.Close()

		_, _, err := q.RepeatableKey(context.Background(), "recurring-kw1")
		assert.Error(t, err)
	})
}

func TestQueue_NextRepeat(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry(t)
	q := mustQueue(t, r, Scheduled)
	ctx := context.Background()

	next, count, err := q.NextRepeat(ctx)
	require.NoError(t, err)
	assert.True(t, next.IsZero())
	assert.Zero(t, count)

	_, err = q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: weekly}, JobID("recurring-a"))
	require.NoError(t, err)
	_, err = q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily, Offset: time.Minute}, JobID("recurring-b"))
	require.NoError(t, err)

	next, count, err = q.NextRepeat(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.True(t, next.Equal(time.Date(2026, time.October, 20, 0, 1, 0, 0, time.UTC)))
}

func TestQueue_PromoteDueRepeats(t *testing.T) {
	t.Parallel()

	t.Run("fires once per occurrence", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		rj, err := q.AddRepeatable(ctx, TypeScheduledScan, ScheduledJob{KeywordID: "kw1"}, Repeat{Pattern: daily}, JobID("recurring-kw1"))
		require.NoError(t, err)

		n, err := q.PromoteDue(ctx, rj.Next.Add(-time.Second))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = q.PromoteDue(ctx, rj.Next)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = q.PromoteDue(ctx, rj.Next)
		require.NoError(t, err)
		assert.Zero(t, n)

		instanceID := "repeat:recurring-kw1:" + itoa(rj.Next.UnixMilli())
		wait, err := mr.List("mentha:{scheduled}:wait")
		require.NoError(t, err)
		assert.Equal(t, []string{instanceID}, wait)

		jobKey := "mentha:{scheduled}:job:" + instanceID
		assert.Equal(t, TypeScheduledScan, mr.HGet(jobKey, "name"))
		assert.JSONEq(t, `{"keyword_id":"kw1","engines":null}`, mr.HGet(jobKey, "data"))
		assert.Equal(t, rj.Key, mr.HGet(jobKey, "repeatJobKey"))

		jobs, err := q.RepeatableJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.True(t, jobs[0].Next.Equal(rj.Next.Add(24*time.Hour)))
	})

	t.Run("concurrent promoters fire once", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		rj, err := q.AddRepeatable(ctx, TypeScheduledScan, nil, Repeat{Pattern: daily}, JobID("recurring-kw1"))
		require.NoError(t, err)

		var (
			wg    sync.WaitGroup
			total atomic.Int64
		)
		for range 10 {
			wg.Go(func() {
				n, err := q.PromoteDue(ctx, rj.Next.Add(time.Minute))
				assert.NoError(t, err)
				total.Add(int64(n))
			})
		}
		wg.Wait()

		assert.Equal(t, int64(1), total.Load())
		wait, err := mr.List("mentha:{scheduled}:wait")
		require.NoError(t, err)
		assert.Len(t, wait, 1)
	})

	t.Run("drops entry with bad pattern", func(t *testing.T) {
		t.Parallel()

		r, mr, _ := newTestRegistry(t)
		q := mustQueue(t, r, Scheduled)
		ctx := context.Background()

		key := "scheduled-scan:broken:::nope"
		_, err := mr.ZAdd("mentha:{scheduled}:repeat", float64(testNow.UnixMilli()), key)
		require.NoError(t, err)
		mr.HSet("mentha:{scheduled}:repeat:"+key, "jobId", "broken", "pattern", "nope", "name", TypeScheduledScan)

		n, err := q.PromoteDue(ctx, testNow)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.False(t, mr.Exists("mentha:{scheduled}:repeat"))
	})
}

func TestNextFire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		offset  time.Duration
		now     time.Time
		want    time.Time
	}{
		{
			name:    "daily later today",
			pattern: daily,
			offset:  30 * time.Minute,
			now:     time.Date(2026, time.October, 19, 0, 10, 0, 0, time.UTC),
			want:    time.Date(2026, time.October, 19, 0, 30, 0, 0, time.UTC),
		},
		{
			name:    "daily tomorrow",
			pattern: daily,
			offset:  30 * time.Minute,
			now:     testNow,
			want:    time.Date(2026, time.October, 20, 0, 30, 0, 0, time.UTC),
		},
		{
			name:    "strictly after now",
			pattern: daily,
			offset:  30 * time.Minute,
			now:     time.Date(2026, time.October, 19, 0, 30, 0, 0, time.UTC),
			want:    time.Date(2026, time.October, 20, 0, 30, 0, 0, time.UTC),
		},
		{
			name:    "weekly next sunday",
			pattern: weekly,
			now:     testNow,
			want:    time.Date(2026, time.October, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "millisecond offset",
			pattern: daily,
			offset:  1234 * time.Millisecond,
			now:     testNow,
			want:    time.Date(2026, time.October, 20, 0, 0, 1, 234_000_000, time.UTC),
		},
		{
			name:    "non utc input",
			pattern: daily,
			now:     time.Date(2026, time.October, 19, 23, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			want:    time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sched, err := ParsePattern(tt.pattern)
			require.NoError(t, err)

			got := NextFire(sched, tt.offset, tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParsePattern(t *testing.T) {
	t.Parallel()

	_, err := ParsePattern(daily)
	require.NoError(t, err)

	for _, p := range []string{"", "   ", "0 0 * *", "0 0 0 * * *", "@every 1h"} {
		_, err := ParsePattern(p)
		assert.ErrorIs(t, err, ErrInvalidPattern, "pattern %q", p)
	}
}

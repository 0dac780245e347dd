package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beenruuu/mentha/pkg/ratelimit"
	"github.com/beenruuu/mentha/pkg/schedule"
)

// Commands read their configuration from the process environment, so these tests
// do not run in parallel.

func setupEnv(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")
	t.Setenv("REDIS_RETRY_ATTEMPTS", "1")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCHEDULER_KEYWORDS_FILE", "")
	t.Setenv("SCHEDULER_RESYNC_RATE", "0")
	return mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScheduleCommands(t *testing.T) {
	mr := setupEnv(t)

	out, err := run(t, "schedule", "kw-1", "--frequency", "daily", "-e", "openai")
	require.NoError(t, err)
	assert.Contains(t, out, "scheduled kw-1 daily")

	out, err = run(t, "schedule", "kw-1", "--frequency", "weekly")
	require.NoError(t, err)
	assert.Contains(t, out, "scheduled kw-1 weekly")

	members, err := mr.ZMembers("mentha:{scheduled}:repeat")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, strings.HasSuffix(members[0], ":::0 0 * * 0"))

	out, err = run(t, "schedules", "-o", "json")
	require.NoError(t, err)
	var list []schedule.Schedule
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "kw-1", list[0].KeywordID)
	assert.Equal(t, schedule.Weekly, list[0].Frequency)

	out, err = run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Schedules: 1")

	_, err = run(t, "unschedule", "kw-1")
	require.NoError(t, err)
	assert.False(t, mr.Exists("mentha:{scheduled}:repeat"))

	_, err = run(t, "unschedule", "kw-1")
	require.NoError(t, err)

	_, err = run(t, "schedule", "kw-2", "--frequency", "hourly")
	assert.ErrorIs(t, err, schedule.ErrUnsupportedFrequency)
}

func TestResyncCommand(t *testing.T) {
	setupEnv(t)

	file := t.TempDir() + "/keywords.yaml"
	require.NoError(t, os.WriteFile(file, []byte(`keywords:
  - id: kw-1
    frequency: daily
  - id: kw-2
    frequency: weekly
  - id: kw-3
    frequency: monthly
`), 0o600))
	t.Setenv("SCHEDULER_KEYWORDS_FILE", file)

	out, err := run(t, "resync", "-o", "json")
	require.NoError(t, err)

	var report schedule.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.ElementsMatch(t, []string{"kw-1", "kw-2"}, report.Scheduled)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "kw-3", report.Skipped[0].KeywordID)
}

func TestQuotaCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "quota", "get", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "user-1: 100 scans")

	_, err = run(t, "quota", "set", "user-1", "250")
	require.NoError(t, err)

	out, err = run(t, "quota", "get", "user-1", "-o", "json")
	require.NoError(t, err)
	var got struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 250, got.Limit)

	_, err = run(t, "quota", "reset", "user-1")
	require.NoError(t, err)

	out, err = run(t, "quota", "get", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "user-1: 100 scans")

	_, err = run(t, "quota", "set", "user-1", "lots")
	assert.ErrorIs(t, err, ratelimit.ErrInvalidQuota)
}

func TestUsageCommand(t *testing.T) {
	mr := setupEnv(t)
	require.NoError(t, mr.Set("quota:scans:user-1", "7"))

	out, err := run(t, "usage", "user-1", "-o", "json")
	require.NoError(t, err)
	var usage ratelimit.Usage
	require.NoError(t, json.Unmarshal([]byte(out), &usage))
	assert.Equal(t, 7, usage.Current)
	assert.Equal(t, 100, usage.Limit)
	assert.Equal(t, 93, usage.Remaining)

	_, err = run(t, "usage", "user-1", "--reset")
	require.NoError(t, err)
	assert.False(t, mr.Exists("quota:scans:user-1"))

	_, err = run(t, "usage", "user-1", "--class", "storage")
	assert.ErrorIs(t, err, ratelimit.ErrUnknownClass)
}

// Package schedule keeps one recurring scan per tracked keyword.
//
// Each keyword's frequency resolves to a fixed cron pattern from a closed table
// (daily at midnight, weekly at midnight on Sunday). A random jitter offset in
// [0, 59m) is added to every schedule so keywords that share a frequency do not
// all fire at the same instant.
//
// Schedules are repeating jobs on the scheduled queue, identified by
// [ScheduleID] ("recurring-<keywordID>"). Scheduling is an upsert: whatever the
// keyword had before is replaced, so a keyword never has more than one schedule,
// even when two callers race.
//
//	m := schedule.NewManager(scheduledQueue, schedule.WithLogger(log))
//
//	s, err := m.ScheduleRecurring(ctx, "kw-1", schedule.Daily, []string{"openai"})
//	err = m.RemoveSchedule(ctx, "kw-1")
//
// At startup [Manager.ResyncAll] reapplies the schedule of every active keyword
// read from a [Source] ([PostgresSource], [FileSource] or [StaticSource]) and
// returns a [Report] of scheduled, skipped and failed keywords.
package schedule

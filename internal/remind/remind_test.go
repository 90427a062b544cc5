package remind

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwidget/internal/model"
)

type captured struct {
	title, clock string
}

func newTestScheduler(t *testing.T) (*Scheduler, chan captured) {
	t.Helper()
	fired := make(chan captured, 16)
	s := New(func(title, clock string) {
		fired <- captured{title, clock}
	}, time.UTC)
	t.Cleanup(s.Stop)
	return s, fired
}

func dateKeyFor(t time.Time) model.DateKey {
	return model.DateKey(t.Format("2006-01-02"))
}

func TestRearmArmsExpectedTimers(t *testing.T) {
	s, _ := newTestScheduler(t)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Rearm(map[model.DateKey][]model.Event{
		"2024-06-01": {
			{Title: "soon", StartTime: "09:00"},          // 1h away: one-shot + poll
			{Title: "passed", StartTime: "07:00"},        // already past: poll only
			{Title: "untimed"},                           // no clock: nothing
			{Title: "unparseable", StartTime: "sometime"}, // bad clock: nothing
		},
		"2024-06-05": {
			{Title: "far", StartTime: "09:00"}, // >24h away: poll only
		},
	})

	assert.Len(t, s.oneshots, 1)
	assert.Contains(t, s.oneshots, "2024-06-01/0/09:00")
	assert.Len(t, s.polls, 3)
}

func TestPollScheduleMatchesSecondZeroDaily(t *testing.T) {
	s, _ := newTestScheduler(t)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Rearm(map[model.DateKey][]model.Event{
		"2024-06-01": {{Title: "m", StartTime: "10:30"}},
	})

	id, ok := s.polls["2024-06-01/0/10:30"]
	require.True(t, ok)
	sched := s.cron.Entry(id).Schedule

	// Fires at the next 10:30:00 ...
	next := sched.Next(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), next)

	// ... and again the next day: the poll ignores the event's date.
	next = sched.Next(time.Date(2024, 6, 1, 10, 30, 0, 1, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 2, 10, 30, 0, 0, time.UTC), next)
}

func TestRearmCancelsPreviousSet(t *testing.T) {
	s, _ := newTestScheduler(t)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Rearm(map[model.DateKey][]model.Event{
		"2024-06-01": {{Title: "old", StartTime: "09:00"}},
	})
	require.Len(t, s.oneshots, 1)
	require.Len(t, s.polls, 1)

	s.Rearm(map[model.DateKey][]model.Event{
		"2024-06-02": {{Title: "new", StartTime: "09:00"}},
	})
	assert.NotContains(t, s.polls, "2024-06-01/0/09:00")
	assert.Contains(t, s.polls, "2024-06-02/0/09:00")
	assert.Len(t, s.polls, 1)
	assert.Empty(t, s.oneshots)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestOneShotFires(t *testing.T) {
	s, fired := newTestScheduler(t)

	// Pin "now" just before the event instant so the armed duration is
	// short enough to observe in real time.
	at := time.Now().In(time.UTC).Add(30 * time.Minute).Truncate(time.Minute)
	clock := at.Format("15:04")
	s.now = func() time.Time { return at.Add(-150 * time.Millisecond) }

	s.Rearm(map[model.DateKey][]model.Event{
		dateKeyFor(at): {{Title: "ping", StartTime: clock}},
	})

	select {
	case got := <-fired:
		assert.Equal(t, captured{"ping", clock}, got)
	case <-time.After(3 * time.Second):
		t.Fatal("one-shot never fired")
	}
}

func TestNoStaleFireAfterRearm(t *testing.T) {
	s, fired := newTestScheduler(t)

	at := time.Now().In(time.UTC).Add(30 * time.Minute).Truncate(time.Minute)
	clock := at.Format("15:04")
	s.now = func() time.Time { return at.Add(-200 * time.Millisecond) }

	s.Rearm(map[model.DateKey][]model.Event{
		dateKeyFor(at): {{Title: "deleted", StartTime: clock}},
	})
	// Deleting the event rearms with an empty snapshot before the
	// one-shot's deadline.
	s.Rearm(nil)

	select {
	case got := <-fired:
		t.Fatalf("stale notification fired: %+v", got)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestStopCancelsEverything(t *testing.T) {
	fired := make(chan captured, 1)
	s := New(func(title, clock string) { fired <- captured{title, clock} }, time.UTC)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Rearm(map[model.DateKey][]model.Event{
		"2024-06-01": {{Title: "x", StartTime: "09:00"}},
	})
	s.Stop()

	assert.Empty(t, s.polls)
	assert.Empty(t, s.oneshots)
	assert.Empty(t, s.cron.Entries())
}

func TestEventKeySeparatesDuplicateTitles(t *testing.T) {
	s, _ := newTestScheduler(t)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Rearm(map[model.DateKey][]model.Event{
		"2024-06-01": {
			{Title: "twin", StartTime: "09:00"},
			{Title: "twin", StartTime: "09:00"},
		},
	})

	assert.Len(t, s.polls, 2)
	for i := 0; i < 2; i++ {
		assert.Contains(t, s.polls, fmt.Sprintf("2024-06-01/%d/09:00", i))
	}
}

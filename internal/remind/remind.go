// Package remind watches wall-clock time and invokes a notification
// callback when an event's start time arrives.
package remind

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
	"calwidget/internal/timeutil"
)

// NotifyFunc receives the firing event's title and "HH:MM" start clock.
type NotifyFunc func(title, clock string)

// Scheduler arms two timers per upcoming event:
//
//   - a one-shot firing exactly at date+start, armed only when that
//     instant is less than 24h away, and
//   - a second-zero poll (a cron entry "0 M H * * *") that fires
//     whenever the wall clock reads H:M:00, on ANY date. The poll
//     deliberately ignores the event's date, so it re-fires daily and
//     can double-fire alongside the one-shot in the same minute. That
//     duplication is intentional and there is no suppression window.
//
// Rearm replaces the entire timer set atomically from a store snapshot;
// both maps are keyed by event identity so cancellation is precise.
type Scheduler struct {
	mu       sync.Mutex
	notify   NotifyFunc
	loc      *time.Location
	now      func() time.Time
	cron     *cron.Cron
	polls    map[string]cron.EntryID
	oneshots map[string]*time.Timer
}

// New builds a Scheduler firing notify in loc's wall-clock time. The
// underlying cron runner starts immediately; Stop shuts it down.
func New(notify NotifyFunc, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		notify:   notify,
		loc:      loc,
		now:      time.Now,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		polls:    map[string]cron.EntryID{},
		oneshots: map[string]*time.Timer{},
	}
	s.cron.Start()
	return s
}

// Rearm cancels every previously armed timer and arms a fresh set for
// the given snapshot. Call it after every store content change.
func (s *Scheduler) Rearm(snapshot map[model.DateKey][]model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelAllLocked()

	now := s.now().In(s.loc)
	armed := 0
	for date, list := range snapshot {
		for i, ev := range list {
			clock := ev.Clock()
			if clock == "" {
				continue
			}
			minutes, err := timeutil.ToMinutes(clock)
			if err != nil {
				appLog.Debug("skipping event with unparseable start", "date", string(date), "title", ev.Title)
				continue
			}
			key := fmt.Sprintf("%s/%d/%s", date, i, clock)
			title := ev.Title

			if at, err := date.StartAt(clock, s.loc); err == nil {
				if diff := at.Sub(now); diff > 0 && diff < 24*time.Hour {
					s.oneshots[key] = time.AfterFunc(diff, func() {
						s.notify(title, clock)
					})
					armed++
				}
			}

			spec := fmt.Sprintf("0 %d %d * * *", minutes%60, minutes/60)
			id, err := s.cron.AddFunc(spec, func() {
				s.notify(title, clock)
			})
			if err != nil {
				appLog.Error("failed to arm poll", err, "date", string(date), "title", ev.Title)
				continue
			}
			s.polls[key] = id
			armed++
		}
	}
	appLog.Debug("reminder timers rearmed", "timers", armed)
}

// Stop cancels all timers and halts the cron runner. The scheduler must
// not be reused afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancelAllLocked()
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) cancelAllLocked() {
	for key, id := range s.polls {
		s.cron.Remove(id)
		delete(s.polls, key)
	}
	for key, tm := range s.oneshots {
		tm.Stop()
		delete(s.oneshots, key)
	}
}

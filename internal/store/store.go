// Package store keeps the calendar's events keyed by date, persists
// them to a local key-value file after every mutation, and notifies
// subscribers so the reminder scheduler can re-arm.
package store

import (
	"encoding/json"
	"errors"
	"sync"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

const (
	eventsKey  = "events"
	welcomeKey = "seenWelcome"
)

// ErrIndexRange is returned when a removal names an index (or date) that
// does not exist. The UI only offers valid indices, so hitting this
// means a caller bug.
var ErrIndexRange = errors.New("event index out of range")

// Store is the in-memory event mapping plus its persistence.
//
// Invariant: no date key ever maps to an empty list; removing the last
// event of a day removes the key. Within a day, events keep insertion
// order and are not sorted by time.
type Store struct {
	mu     sync.Mutex
	kv     *KV
	events map[model.DateKey][]model.Event
	subs   []func()
}

// Open builds a Store over kv, loading any previously persisted events.
// Corrupt or missing state degrades to an empty mapping.
func Open(kv *KV) *Store {
	s := &Store{kv: kv, events: map[model.DateKey][]model.Event{}}
	s.mu.Lock()
	s.loadLocked()
	s.mu.Unlock()
	return s
}

func (s *Store) loadLocked() {
	raw, ok := s.kv.Get(eventsKey)
	if !ok {
		return
	}
	var events map[model.DateKey][]model.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		appLog.Error("persisted events unreadable, starting empty", err)
		return
	}
	// Drop any empty lists a hand-edited file may carry.
	for k, list := range events {
		if len(list) == 0 {
			delete(events, k)
		}
	}
	if events != nil {
		s.events = events
	}
}

// OnChange registers fn to run after every content change (add, remove,
// seed merge, external reload). Registration order is call order.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of the full mapping. Mutating the copy does
// not affect the store.
func (s *Store) Snapshot() map[model.DateKey][]model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.DateKey][]model.Event, len(s.events))
	for k, list := range s.events {
		cp := make([]model.Event, len(list))
		copy(cp, list)
		out[k] = cp
	}
	return out
}

// Day returns a copy of one day's events; nil when the day has none.
func (s *Store) Day(date model.DateKey) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.events[date]
	if !ok {
		return nil
	}
	cp := make([]model.Event, len(list))
	copy(cp, list)
	return cp
}

// Add appends event to date's list, creating the day bucket if absent,
// then persists and notifies.
func (s *Store) Add(date model.DateKey, ev model.Event) {
	s.mu.Lock()
	s.events[date] = append(s.events[date], ev.Normalized())
	s.persistLocked()
	s.mu.Unlock()
	s.changed()
}

// Remove deletes the event at index in date's list. When the list
// becomes empty the date key is removed entirely. Persists and notifies
// on success.
func (s *Store) Remove(date model.DateKey, index int) error {
	s.mu.Lock()
	list, ok := s.events[date]
	if !ok || index < 0 || index >= len(list) {
		s.mu.Unlock()
		return ErrIndexRange
	}
	list = append(list[:index], list[index+1:]...)
	if len(list) == 0 {
		delete(s.events, date)
	} else {
		s.events[date] = list
	}
	s.persistLocked()
	s.mu.Unlock()
	s.changed()
	return nil
}

// MergeSeed overlays seed entries onto the store. Entries are grouped by
// date preserving input order, and each seeded date REPLACES any locally
// saved list for that key: last writer wins at date-key granularity,
// never event granularity. Days absent from the seed are untouched.
func (s *Store) MergeSeed(entries []model.SeedEntry) {
	if len(entries) == 0 {
		return
	}
	grouped := map[model.DateKey][]model.Event{}
	for _, e := range entries {
		if e.Date == "" {
			continue
		}
		grouped[e.Date] = append(grouped[e.Date], e.Event.Normalized())
	}
	s.mu.Lock()
	for date, list := range grouped {
		s.events[date] = list
	}
	s.persistLocked()
	s.mu.Unlock()
	s.changed()
}

// SeenWelcome reports whether the onboarding banner was dismissed.
func (s *Store) SeenWelcome() bool {
	_, ok := s.kv.Get(welcomeKey)
	return ok
}

// MarkWelcomeSeen records the onboarding dismissal.
func (s *Store) MarkWelcomeSeen() {
	if err := s.kv.Set(welcomeKey, json.RawMessage(`"true"`)); err != nil {
		appLog.Error("failed to persist welcome flag", err)
	}
}

// persistLocked serializes the full mapping under the events key. A
// write failure is logged and swallowed: the in-memory state stays
// authoritative for the rest of the session.
func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.events)
	if err != nil {
		appLog.Error("failed to serialize events", err)
		return
	}
	if err := s.kv.Set(eventsKey, raw); err != nil {
		appLog.Error("failed to persist events", err, "path", s.kv.Path())
	}
}

// changed runs subscribers outside the store lock.
func (s *Store) changed() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

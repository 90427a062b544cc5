// Package notify presents reminder popups: it records the active
// message for the view to render, triggers the notification sound, and
// auto-dismisses after a fixed interval or on explicit dismissal.
package notify

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	appLog "calwidget/internal/log"
)

// DefaultTTL is how long a popup stays up without user dismissal.
const DefaultTTL = 5 * time.Second

// SoundFunc plays the notification sound. It is fire-and-forget: any
// error is logged by the presenter and never propagated.
type SoundFunc func() error

// Notification is the active popup payload.
type Notification struct {
	Title string    `json:"title"`
	Time  string    `json:"time"`
	At    time.Time `json:"at"`
}

// Presenter holds at most one active notification. A new Notify
// replaces the current popup and restarts its auto-dismiss timer.
type Presenter struct {
	mu     sync.Mutex
	sound  SoundFunc
	ttl    time.Duration
	active *Notification
	clear  *time.Timer
}

// New builds a Presenter with the given sound hook; ttl <= 0 selects
// DefaultTTL, a nil sound is a no-op.
func New(sound SoundFunc, ttl time.Duration) *Presenter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sound == nil {
		sound = func() error { return nil }
	}
	return &Presenter{sound: sound, ttl: ttl}
}

// Notify displays title/clock as the active popup and plays the sound.
func (p *Presenter) Notify(title, clock string) {
	p.mu.Lock()
	p.active = &Notification{Title: title, Time: clock, At: time.Now()}
	if p.clear != nil {
		p.clear.Stop()
	}
	p.clear = time.AfterFunc(p.ttl, p.Dismiss)
	p.mu.Unlock()

	appLog.Info("reminder", "title", title, "time", clock)
	if err := p.sound(); err != nil {
		appLog.Error("notification sound failed", err)
	}
}

// Active returns a copy of the current popup, or nil when none is up.
func (p *Presenter) Active() *Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	n := *p.active
	return &n
}

// Dismiss clears the active popup immediately.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = nil
	if p.clear != nil {
		p.clear.Stop()
		p.clear = nil
	}
}

// FileSound returns a SoundFunc standing in for audio playback of the
// asset at path: it verifies the asset is present so a missing file
// surfaces in the log, and leaves actual playback to the view layer.
func FileSound(path string) SoundFunc {
	return func() error {
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errors.New("sound asset missing: " + path)
			}
			return err
		}
		appLog.Debug("notification sound triggered", "path", path)
		return nil
	}
}

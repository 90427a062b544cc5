package web

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

// handleExportICS serializes the whole store as an iCalendar file so
// the events can be imported into a regular calendar client. Events
// whose times fail to parse are skipped.
func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()

	dates := make([]string, 0, len(snap))
	for date := range snap {
		dates = append(dates, string(date))
	}
	sort.Strings(dates)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)

	now := time.Now().In(s.loc)
	count := 0
	for _, dateStr := range dates {
		date := model.DateKey(dateStr)
		for i, ev := range snap[date] {
			start, err := date.StartAt(ev.Clock(), s.loc)
			if err != nil {
				appLog.Error("skipping event in export", err, "date", dateStr, "title", ev.Title)
				continue
			}

			ve := cal.AddEvent(fmt.Sprintf("%s-%d@calwidget", dateStr, i))
			ve.SetDtStampTime(now)
			ve.SetSummary(ev.Title)
			ve.SetStartAt(start)
			if ev.EndTime != "" {
				if end, err := date.StartAt(ev.EndTime, s.loc); err == nil {
					ve.SetEndAt(end)
				}
			}
			if ev.Color != "" {
				ve.SetProperty(ics.ComponentProperty("COLOR"), ev.Color)
			}
			count++
		}
	}

	appLog.Info("ics export", "events", count)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calwidget.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}

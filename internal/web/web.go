// Package web exposes the calendar store, conflict detection and the
// active reminder popup over a small localhost HTTP API consumed by the
// browser view.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"calwidget/internal/conflict"
	appLog "calwidget/internal/log"
	"calwidget/internal/model"
	"calwidget/internal/notify"
	"calwidget/internal/store"
)

// Server wires the store and presenter into HTTP handlers.
type Server struct {
	store     *store.Store
	presenter *notify.Presenter
	loc       *time.Location
	mux       *http.ServeMux
}

// NewServer constructs a Server. loc is the wall-clock zone used for
// the ICS export; nil means the local clock.
func NewServer(st *store.Store, presenter *notify.Presenter, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		store:     st,
		presenter: presenter,
		loc:       loc,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleAllEvents)
	s.mux.HandleFunc("GET /api/events/{date}", s.handleDay)
	s.mux.HandleFunc("POST /api/events/{date}", s.handleAdd)
	s.mux.HandleFunc("DELETE /api/events/{date}/{index}", s.handleRemove)
	s.mux.HandleFunc("GET /api/notifications", s.handleActiveNotification)
	s.mux.HandleFunc("DELETE /api/notifications", s.handleDismiss)
	s.mux.HandleFunc("GET /api/welcome", s.handleWelcomeGet)
	s.mux.HandleFunc("POST /api/welcome", s.handleWelcomeSeen)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExportICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is the JSON view of one event plus its derived conflict
// flag: true when it overlaps at least one other event that day.
type eventDTO struct {
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime,omitempty"`
	Color     string `json:"color"`
	Conflict  bool   `json:"conflict"`
}

func dayDTOs(events []model.Event) []eventDTO {
	flags := conflict.Flags(events)
	out := make([]eventDTO, len(events))
	for i, ev := range events {
		out[i] = eventDTO{
			Title:     ev.Title,
			StartTime: ev.Clock(),
			EndTime:   ev.EndTime,
			Color:     ev.Color,
			Conflict:  flags[i],
		}
	}
	return out
}

func (s *Server) handleAllEvents(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	resp := make(map[model.DateKey][]eventDTO, len(snap))
	for date, list := range snap {
		resp[date] = dayDTOs(list)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": resp})
}

type dayResponse struct {
	Date   model.DateKey `json:"date"`
	Events []eventDTO    `json:"events"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := model.DateKey(r.PathValue("date"))
	if err := date.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dayResponse{
		Date:   date,
		Events: dayDTOs(s.store.Day(date)),
	})
}

// handleAdd validates the posted event and appends it to the date's
// list. An overlap with an existing event is advisory: the request is
// rejected with 409 and conflict:true so the view can confirm, and
// retried with ?force=true to insert anyway.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	date := model.DateKey(r.PathValue("date"))
	if err := date.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ev model.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if !force {
		iv, err := ev.Interval()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if conflict.HasConflict(s.store.Day(date), iv) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "event overlaps with an existing event",
				"conflict": true,
			})
			return
		}
	}

	s.store.Add(date, ev)
	appLog.Info("event added", "date", string(date), "title", ev.Title, "forced", force)
	writeJSON(w, http.StatusCreated, dayResponse{
		Date:   date,
		Events: dayDTOs(s.store.Day(date)),
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	date := model.DateKey(r.PathValue("date"))
	if err := date.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event index")
		return
	}

	if err := s.store.Remove(date, index); err != nil {
		if errors.Is(err, store.ErrIndexRange) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	appLog.Info("event removed", "date", string(date), "index", index)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActiveNotification(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notification": s.presenter.Active(),
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, _ *http.Request) {
	s.presenter.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWelcomeGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"seen": s.store.SeenWelcome()})
}

func (s *Server) handleWelcomeSeen(w http.ResponseWriter, _ *http.Request) {
	s.store.MarkWelcomeSeen()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

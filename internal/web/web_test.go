package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwidget/internal/model"
	"calwidget/internal/notify"
	"calwidget/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *notify.Presenter) {
	t.Helper()
	st := store.Open(store.OpenKV(filepath.Join(t.TempDir(), "state.json")))
	p := notify.New(nil, time.Minute)
	return NewServer(st, p, time.UTC), st, p
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAddAndListDay(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/events/2024-06-01",
		`{"title":"Standup","startTime":"09:00","endTime":"09:15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/events/2024-06-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var day dayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day.Events, 1)
	assert.Equal(t, "Standup", day.Events[0].Title)
	assert.Equal(t, model.DefaultColor, day.Events[0].Color)
	assert.False(t, day.Events[0].Conflict)
}

func TestAddValidation(t *testing.T) {
	s, st, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"startTime":"09:00"}`},
		{"missing start", `{"title":"x"}`},
		{"bad start", `{"title":"x","startTime":"late"}`},
		{"end before start", `{"title":"x","startTime":"10:00","endTime":"09:00"}`},
		{"end equals start", `{"title":"x","startTime":"10:00","endTime":"10:00"}`},
		{"not json", `nope`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/events/2024-06-01", c.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	// Nothing was stored.
	assert.Empty(t, st.Snapshot())
}

func TestAddBadDateKey(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/events/june-first", `{"title":"x","startTime":"09:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConflictIsAdvisory(t *testing.T) {
	s, st, _ := newTestServer(t)
	st.Add("2024-06-01", model.Event{Title: "Review", StartTime: "14:30", EndTime: "14:45"})

	// Overlapping insert is refused with conflict:true ...
	rec := do(t, s, http.MethodPost, "/api/events/2024-06-01",
		`{"title":"Planning","startTime":"14:00","endTime":"15:00"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Conflict bool `json:"conflict"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Conflict)
	assert.Len(t, st.Day("2024-06-01"), 1)

	// ... but the caller may force it through.
	rec = do(t, s, http.MethodPost, "/api/events/2024-06-01?force=true",
		`{"title":"Planning","startTime":"14:00","endTime":"15:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, st.Day("2024-06-01"), 2)

	// Both events now carry the conflict flag in reads.
	rec = do(t, s, http.MethodGet, "/api/events/2024-06-01", "")
	var day dayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.True(t, day.Events[0].Conflict)
	assert.True(t, day.Events[1].Conflict)
}

func TestRemove(t *testing.T) {
	s, st, _ := newTestServer(t)
	st.Add("2024-06-01", model.Event{Title: "x", StartTime: "09:00"})

	rec := do(t, s, http.MethodDelete, "/api/events/2024-06-01/0", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, st.Snapshot())

	rec = do(t, s, http.MethodDelete, "/api/events/2024-06-01/0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/events/2024-06-01/zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAllEvents(t *testing.T) {
	s, st, _ := newTestServer(t)
	st.Add("2024-06-01", model.Event{Title: "a", StartTime: "09:00"})
	st.Add("2024-06-02", model.Event{Title: "b", LegacyTime: "12:00"})

	rec := do(t, s, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events map[string][]eventDTO `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "12:00", resp.Events["2024-06-02"][0].StartTime)
}

func TestNotificationLifecycle(t *testing.T) {
	s, _, p := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/notifications", "")
	assert.JSONEq(t, `{"notification":null}`, rec.Body.String())

	p.Notify("Standup", "09:00")
	rec = do(t, s, http.MethodGet, "/api/notifications", "")
	var resp struct {
		Notification *notify.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Notification)
	assert.Equal(t, "Standup", resp.Notification.Title)
	assert.Equal(t, "09:00", resp.Notification.Time)

	rec = do(t, s, http.MethodDelete, "/api/notifications", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, p.Active())
}

func TestWelcomeFlag(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/welcome", "")
	assert.JSONEq(t, `{"seen":false}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/welcome", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/welcome", "")
	assert.JSONEq(t, `{"seen":true}`, rec.Body.String())
}

func TestExportICS(t *testing.T) {
	s, st, _ := newTestServer(t)
	st.Add("2024-06-01", model.Event{Title: "Standup", StartTime: "09:00", EndTime: "09:15"})
	st.Add("2024-06-02", model.Event{Title: "Lunch", LegacyTime: "12:00"})

	rec := do(t, s, http.MethodGet, "/api/export.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")

	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Standup")
	assert.Contains(t, body, "SUMMARY:Lunch")
	assert.Contains(t, body, "UID:2024-06-01-0@calwidget")
	assert.Contains(t, body, "DTSTART:20240601T090000Z")
}

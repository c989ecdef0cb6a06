package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/store"
)

// stores

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request, _ domain.User) {
	stores, err := s.app.ListStores()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, stores)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request, _ domain.User) {
	st, err := s.app.GetStore(r.PathValue("code"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSaveStore(w http.ResponseWriter, r *http.Request, user domain.User) {
	var st domain.Store
	if !decodeJSON(w, r, &st) {
		return
	}
	status := http.StatusCreated
	if code := r.PathValue("code"); code != "" {
		st.Code = code
		status = http.StatusOK
	}
	saved, err := s.app.SaveStore(st)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "store.save", "success", "user_id", user.ID, "store_code", saved.Code)
	writeJSON(w, status, saved)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request, user domain.User) {
	code := r.PathValue("code")
	if err := s.app.DeleteStore(code); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "store.delete", "success", "user_id", user.ID, "store_code", code)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// watchlists

func activeOnly(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("active"), "true")
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request, _ domain.User) {
	persons, err := s.app.ListWatchlistPersons(activeOnly(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, persons)
}

func (s *Server) handleSavePerson(w http.ResponseWriter, r *http.Request, user domain.User) {
	var p domain.WatchlistPerson
	if !decodeJSON(w, r, &p) {
		return
	}
	status := http.StatusCreated
	p.ID = r.PathValue("id")
	if p.ID != "" {
		status = http.StatusOK
	}
	saved, err := s.app.SaveWatchlistPerson(user, p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "watchlist.person.save", "success", "user_id", user.ID, "entry_id", saved.ID)
	writeJSON(w, status, saved)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := r.PathValue("id")
	if err := s.app.DeleteWatchlistPerson(id); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "watchlist.person.delete", "success", "user_id", user.ID, "entry_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, _ domain.User) {
	items, err := s.app.ListWatchlistItems(activeOnly(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, items)
}

func (s *Server) handleSaveItem(w http.ResponseWriter, r *http.Request, user domain.User) {
	var it domain.WatchlistItem
	if !decodeJSON(w, r, &it) {
		return
	}
	status := http.StatusCreated
	it.ID = r.PathValue("id")
	if it.ID != "" {
		status = http.StatusOK
	}
	saved, err := s.app.SaveWatchlistItem(user, it)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "watchlist.item.save", "success", "user_id", user.ID, "entry_id", saved.ID)
	writeJSON(w, status, saved)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := r.PathValue("id")
	if err := s.app.DeleteWatchlistItem(id); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "watchlist.item.delete", "success", "user_id", user.ID, "entry_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// alerts

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request, _ domain.User) {
	q := r.URL.Query()
	f := store.AlertFilter{
		Status:    domain.AlertStatus(strings.TrimSpace(q.Get("status"))),
		Kind:      domain.AlertKind(strings.TrimSpace(q.Get("type"))),
		MatchType: domain.MatchType(strings.TrimSpace(q.Get("matchType"))),
		Limit:     queryInt(r, "limit", 100),
	}
	var ok bool
	if f.From, ok = queryDate(q.Get("from")); !ok {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	if f.To, ok = queryDate(q.Get("to")); !ok {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if !f.To.IsZero() {
		// inclusive day
		f.To = f.To.AddDate(0, 0, 1)
	}
	alerts, err := s.app.ListAlerts(f)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, alerts)
}

func queryDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	return t, err == nil
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request, _ domain.User) {
	alert, err := s.app.GetAlert(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

type reviewRequest struct {
	Status domain.AlertStatus `json:"status"`
	Notes  string             `json:"notes"`
}

func (s *Server) handleReviewAlert(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	alert, err := s.app.ReviewAlert(user, r.PathValue("id"), req.Status, req.Notes)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "alert.review", "success", "user_id", user.ID, "alert_id", alert.ID, "status", alert.Status)
	writeJSON(w, http.StatusOK, alert)
}

// file watching and system config

func (s *Server) handleWatchingStatus(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if s.watcher == nil {
		writeError(w, http.StatusServiceUnavailable, "file watching not configured")
		return
	}
	active, err := s.watcher.ShouldRun()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active": active,
		"status": s.watcher.Status(),
	})
}

type toggleRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleToggleWatching(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.watcher == nil {
		writeError(w, http.StatusServiceUnavailable, "file watching not configured")
		return
	}
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var err error
	if req.Active {
		err = s.watcher.Enable(r.Context())
	} else {
		err = s.watcher.Disable()
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "file_watching.toggle", "success", "user_id", user.ID, "active", req.Active)
	writeJSON(w, http.StatusOK, map[string]any{
		"active": req.Active,
		"status": s.watcher.Status(),
	})
}

func (s *Server) handleListConfig(w http.ResponseWriter, r *http.Request, _ domain.User) {
	entries, err := s.app.ListConfig()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, entries)
}

type setConfigRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req setConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := r.PathValue("key")
	if err := s.app.SetConfig(key, req.Value, req.Description); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "config.set", "success", "user_id", user.ID, "key", key)
	writeJSON(w, http.StatusOK, domain.SystemConfig{Key: key, Value: req.Value, Description: req.Description})
}

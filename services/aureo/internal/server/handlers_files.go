package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/store"
	"github.com/miquiestampas/Aureo/services/aureo/internal/app"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	activity, err := s.app.Upload(r.Context(), app.UploadRequest{
		Filename:  header.Filename,
		Body:      file,
		StoreCode: r.FormValue("storeCode"),
		ActorID:   user.ID,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request, _ domain.User) {
	q := r.URL.Query()
	activities, err := s.app.ListActivities(store.ActivityFilter{
		StoreCode: strings.TrimSpace(q.Get("storeCode")),
		Status:    domain.ActivityStatus(strings.TrimSpace(q.Get("status"))),
		FileType:  domain.FileType(strings.TrimSpace(q.Get("fileType"))),
		Limit:     queryInt(r, "limit", 50),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, activities)
}

func (s *Server) handlePendingAssignment(w http.ResponseWriter, r *http.Request, _ domain.User) {
	activities, err := s.app.ListActivities(store.ActivityFilter{
		Status: domain.StatusPendingStoreAssignment,
		Limit:  queryInt(r, "limit", 100),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, activities)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request, _ domain.User) {
	activity, err := s.app.GetActivity(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleDownloadActivity(w http.ResponseWriter, r *http.Request, _ domain.User) {
	dl, err := s.app.ActivityFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if dl.URL != "" {
		writeJSON(w, http.StatusOK, map[string]string{"url": dl.URL, "filename": dl.Filename})
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(dl.Filename, `"`, "")+`"`)
	http.ServeFile(w, r, dl.Path)
}

func (s *Server) handleActivityPdfDocument(w http.ResponseWriter, r *http.Request, _ domain.User) {
	doc, err := s.app.GetPdfDocumentByActivity(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type assignRequest struct {
	StoreCode string `json:"storeCode"`
}

func (s *Server) handleAssignStore(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	activity, err := s.app.AssignStore(r.Context(), r.PathValue("id"), req.StoreCode, user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request, user domain.User) {
	activity, err := s.app.Reprocess(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, activity)
}

type searchRequest struct {
	Predicates []store.Predicate `json:"predicates"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

func (s *Server) handleSearchOrders(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	recs, err := s.app.SearchOrders(store.OrderQuery{Predicates: req.Predicates, Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, recs)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, _ domain.User) {
	order, err := s.app.GetOrder(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleOrderAlerts(w http.ResponseWriter, r *http.Request, _ domain.User) {
	alerts, err := s.app.ListAlertsByOrder(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, alerts)
}

func (s *Server) handleListPdfDocuments(w http.ResponseWriter, r *http.Request, _ domain.User) {
	code := strings.TrimSpace(r.URL.Query().Get("storeCode"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "storeCode is required")
		return
	}
	docs, err := s.app.ListPdfDocuments(code, queryInt(r, "limit", 100))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, docs)
}

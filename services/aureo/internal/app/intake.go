package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/ingest"
	"github.com/miquiestampas/Aureo/pkg/queue"
	"github.com/miquiestampas/Aureo/pkg/storage"
)

var fileExtensions = map[string]domain.FileType{
	".xlsx": domain.FileTypeExcel,
	".xls":  domain.FileTypeExcel,
	".xlsm": domain.FileTypeExcel,
	".pdf":  domain.FileTypePDF,
}

// FileTypeForName maps a filename extension to the file type it is ingested as.
func FileTypeForName(name string) (domain.FileType, bool) {
	ft, ok := fileExtensions[strings.ToLower(filepath.Ext(name))]
	return ft, ok
}

// HandleDetectedFile ingests a file that appeared in a watched directory.
// Failures are logged and never returned; on copy or database failure no
// activity is recorded.
func (a *App) HandleDetectedFile(ctx context.Context, path string, fileType domain.FileType) {
	logger := slog.With("path", path, "file_type", fileType)
	if !sleepCtx(ctx, a.settleDelay) {
		logger.Info("intake_cancelled")
		return
	}

	name := filepath.Base(path)
	detected, _ := ingest.ExtractStoreCode(name)
	st, resolved, err := a.resolveStore(detected, fileType)
	if err != nil {
		logger.Error("intake_store_lookup_failed", "store_code", detected, "err", err)
		return
	}

	saved, err := a.files.CopyIn(fileType, path)
	if err != nil {
		logger.Error("intake_copy_failed", "err", err)
		return
	}
	a.mirror(ctx, fileType, saved)

	now := a.now().UTC()
	activity := domain.FileActivity{
		ID:                util.NewID(),
		Filename:          name,
		OriginalPath:      path,
		SavedPath:         saved.Path,
		FileSize:          saved.Size,
		DetectedStoreCode: detected,
		FileType:          fileType,
		Status:            domain.StatusPendingStoreAssignment,
		UploadedAt:        now,
		UpdatedAt:         now,
	}
	if resolved {
		activity.StoreCode = st.Code
		activity.Status = domain.StatusPending
	}
	if err := a.store.CreateActivity(activity); err != nil {
		logger.Error("intake_activity_create_failed", "err", err)
		return
	}
	logger.Info("file_detected",
		"activity_id", activity.ID,
		"detected_store_code", detected,
		"store_code", activity.StoreCode,
		"status", activity.Status,
	)
	if resolved {
		a.submit(ctx, activity)
	}
}

// resolveStore finds the active store for code, falling back to the first
// active store of the type when automatic store detection is enabled.
func (a *App) resolveStore(code string, fileType domain.FileType) (domain.Store, bool, error) {
	if code != "" {
		st, ok, err := a.store.FindActiveStore(code, fileType)
		if err != nil || ok {
			return st, ok, err
		}
	}
	auto, err := a.configBool(domain.ConfigAutoStoreDetection)
	if err != nil || !auto {
		return domain.Store{}, false, err
	}
	return a.store.FirstActiveStore(fileType)
}

// UpdateActivityStatus moves an activity to status, attaching errMsg when set.
func (a *App) UpdateActivityStatus(id string, status domain.ActivityStatus, errMsg string) bool {
	switch status {
	case domain.StatusPending, domain.StatusProcessing, domain.StatusProcessed, domain.StatusFailed:
	default:
		slog.Error("activity_status_invalid", "activity_id", id, "status", status)
		return false
	}
	if err := a.store.SetActivityStatus(id, status, errMsg); err != nil {
		slog.Error("activity_status_update_failed", "activity_id", id, "status", status, "err", err)
		return false
	}
	return true
}

// UploadRequest is a file received through the HTTP API.
type UploadRequest struct {
	Filename  string
	Body      io.Reader
	StoreCode string
	ActorID   string
}

// Upload saves an uploaded file for a known store and queues it.
func (a *App) Upload(ctx context.Context, req UploadRequest) (domain.FileActivity, error) {
	name := filepath.Base(strings.TrimSpace(req.Filename))
	fileType, ok := FileTypeForName(name)
	if !ok {
		return domain.FileActivity{}, ErrUnsupportedFile
	}
	st, err := a.storeForType(strings.TrimSpace(req.StoreCode), fileType)
	if err != nil {
		return domain.FileActivity{}, err
	}
	saved, err := a.files.Save(fileType, name, req.Body)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("save upload: %w", err)
	}
	a.mirror(ctx, fileType, saved)

	detected, _ := ingest.ExtractStoreCode(name)
	now := a.now().UTC()
	activity := domain.FileActivity{
		ID:                util.NewID(),
		Filename:          name,
		SavedPath:         saved.Path,
		FileSize:          saved.Size,
		DetectedStoreCode: detected,
		StoreCode:         st.Code,
		FileType:          fileType,
		Status:            domain.StatusPending,
		UploadedAt:        now,
		ProcessedBy:       req.ActorID,
		UpdatedAt:         now,
	}
	if err := a.store.CreateActivity(activity); err != nil {
		return domain.FileActivity{}, fmt.Errorf("create activity: %w", err)
	}
	util.LoggerFromContext(ctx).Info("file_uploaded", "activity_id", activity.ID, "store_code", st.Code, "user_id", req.ActorID)
	a.submit(ctx, activity)
	return activity, nil
}

// AssignStore attaches a store to an activity waiting for one (or one that
// failed) and queues it again.
func (a *App) AssignStore(ctx context.Context, activityID, storeCode, actorID string) (domain.FileActivity, error) {
	activity, ok, err := a.store.GetActivity(activityID)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("get activity: %w", err)
	}
	if !ok {
		return domain.FileActivity{}, ErrNotFound
	}
	st, err := a.storeForType(strings.TrimSpace(storeCode), activity.FileType)
	if err != nil {
		return domain.FileActivity{}, err
	}
	assigned, err := a.store.AssignActivityStore(activityID, st.Code, actorID,
		domain.StatusPendingStoreAssignment, domain.StatusFailed)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("assign store: %w", err)
	}
	if !assigned {
		return domain.FileActivity{}, ErrInvalidState
	}
	return a.requeue(ctx, activityID)
}

// Reprocess resets an activity that already has a store to Pending and
// queues it. Records from earlier runs are kept.
func (a *App) Reprocess(ctx context.Context, activityID, actorID string) (domain.FileActivity, error) {
	activity, ok, err := a.store.GetActivity(activityID)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("get activity: %w", err)
	}
	if !ok {
		return domain.FileActivity{}, ErrNotFound
	}
	if activity.StoreCode == "" {
		return domain.FileActivity{}, ErrInvalidState
	}
	reset, err := a.store.AssignActivityStore(activityID, activity.StoreCode, actorID,
		domain.StatusPending, domain.StatusProcessed, domain.StatusFailed)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("reset activity: %w", err)
	}
	if !reset {
		return domain.FileActivity{}, ErrInvalidState
	}
	return a.requeue(ctx, activityID)
}

func (a *App) requeue(ctx context.Context, activityID string) (domain.FileActivity, error) {
	activity, ok, err := a.store.GetActivity(activityID)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("get activity: %w", err)
	}
	if !ok {
		return domain.FileActivity{}, ErrNotFound
	}
	a.submit(ctx, activity)
	return activity, nil
}

func (a *App) storeForType(code string, fileType domain.FileType) (domain.Store, error) {
	if code == "" {
		return domain.Store{}, ErrStoreNotFound
	}
	st, ok, err := a.store.GetStoreByCode(code)
	if err != nil {
		return domain.Store{}, fmt.Errorf("get store: %w", err)
	}
	if !ok {
		return domain.Store{}, ErrStoreNotFound
	}
	if st.Type != fileType {
		return domain.Store{}, ErrStoreTypeMismatch
	}
	return st, nil
}

// submit hands the activity to the queue. A rejected submission leaves the
// activity Pending for the recovery sweep.
func (a *App) submit(ctx context.Context, activity domain.FileActivity) bool {
	err := a.queue.Submit(ctx, queue.Task{ActivityID: activity.ID, FileType: activity.FileType})
	switch {
	case err == nil:
		return true
	case errors.Is(err, queue.ErrQueueFull):
		slog.Warn("queue_full", "activity_id", activity.ID)
	default:
		slog.Error("queue_submit_failed", "activity_id", activity.ID, "err", err)
	}
	return false
}

func (a *App) mirror(ctx context.Context, fileType domain.FileType, saved storage.SavedFile) {
	if a.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := storage.Mirror(ctx, a.archive, fileType, saved); err != nil {
		slog.Warn("archive_mirror_failed", "path", saved.Path, "err", err)
	}
}

func (a *App) configBool(key string) (bool, error) {
	v, ok, err := a.store.GetConfig(key)
	if err != nil || !ok {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

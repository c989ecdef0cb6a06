package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/storage"
	"github.com/miquiestampas/Aureo/pkg/store"
)

// stores

func (a *App) ListStores() ([]domain.Store, error) {
	return a.store.ListStores()
}

func (a *App) GetStore(code string) (domain.Store, error) {
	st, ok, err := a.store.GetStoreByCode(strings.TrimSpace(code))
	if err != nil {
		return domain.Store{}, fmt.Errorf("get store: %w", err)
	}
	if !ok {
		return domain.Store{}, ErrStoreNotFound
	}
	return st, nil
}

// SaveStore creates or updates a store keyed by its code.
func (a *App) SaveStore(st domain.Store) (domain.Store, error) {
	st.Code = strings.ToUpper(strings.TrimSpace(st.Code))
	st.Name = strings.TrimSpace(st.Name)
	if st.Code == "" || st.Name == "" {
		return domain.Store{}, fmt.Errorf("%w: code and name required", ErrInvalidInput)
	}
	if !st.Type.Valid() {
		return domain.Store{}, fmt.Errorf("%w: type must be Excel or PDF", ErrInvalidInput)
	}
	existing, ok, err := a.store.GetStoreByCode(st.Code)
	if err != nil {
		return domain.Store{}, fmt.Errorf("get store: %w", err)
	}
	if ok {
		st.ID = existing.ID
		st.CreatedAt = existing.CreatedAt
	} else {
		st.ID = util.NewID()
		st.CreatedAt = a.now().UTC()
	}
	if err := a.store.SaveStore(st); err != nil {
		return domain.Store{}, fmt.Errorf("save store: %w", err)
	}
	return st, nil
}

func (a *App) DeleteStore(code string) error {
	if _, err := a.GetStore(code); err != nil {
		return err
	}
	return a.store.DeleteStore(strings.TrimSpace(code))
}

// system config

func (a *App) ListConfig() ([]domain.SystemConfig, error) {
	return a.store.ListConfig()
}

func (a *App) SetConfig(key, value, description string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key required", ErrInvalidInput)
	}
	return a.store.SetConfig(key, value, description)
}

// file activities

func (a *App) ListActivities(f store.ActivityFilter) ([]domain.FileActivity, error) {
	return a.store.ListActivities(f)
}

func (a *App) GetActivity(id string) (domain.FileActivity, error) {
	activity, ok, err := a.store.GetActivity(id)
	if err != nil {
		return domain.FileActivity{}, fmt.Errorf("get activity: %w", err)
	}
	if !ok {
		return domain.FileActivity{}, ErrNotFound
	}
	return activity, nil
}

// FileDownload tells the HTTP layer where to fetch a saved file from: a
// pre-signed URL when the archive is configured, a local path otherwise.
type FileDownload struct {
	URL      string
	Path     string
	Filename string
}

func (a *App) ActivityFile(ctx context.Context, id string) (FileDownload, error) {
	activity, err := a.GetActivity(id)
	if err != nil {
		return FileDownload{}, err
	}
	out := FileDownload{Path: activity.SavedPath, Filename: activity.Filename}
	if a.archive == nil {
		return out, nil
	}
	key := storage.ArchiveKey(activity.FileType, filepath.Base(activity.SavedPath))
	url, err := a.archive.PresignGet(ctx, key, a.presignExpiry)
	if err != nil {
		return FileDownload{}, fmt.Errorf("presign download: %w", err)
	}
	out.URL = url
	return out, nil
}

// orders

// OrderDetail is an order record with the alerts it raised.
type OrderDetail struct {
	domain.OrderRecord
	Alerts []domain.Alert `json:"alerts"`
}

func (a *App) GetOrder(id string) (OrderDetail, error) {
	rec, ok, err := a.store.GetOrderRecord(id)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("get order: %w", err)
	}
	if !ok {
		return OrderDetail{}, ErrNotFound
	}
	alerts, err := a.store.ListAlertsByOrder(id)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("list alerts: %w", err)
	}
	return OrderDetail{OrderRecord: rec, Alerts: alerts}, nil
}

func (a *App) SearchOrders(q store.OrderQuery) ([]domain.OrderRecord, error) {
	recs, err := a.store.SearchOrderRecords(q)
	if errors.Is(err, store.ErrInvalidQuery) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return recs, err
}

// pdf documents

func (a *App) ListPdfDocuments(storeCode string, limit int) ([]domain.PdfDocument, error) {
	return a.store.ListPdfDocumentsByStore(strings.TrimSpace(storeCode), limit)
}

func (a *App) GetPdfDocumentByActivity(activityID string) (domain.PdfDocument, error) {
	doc, ok, err := a.store.GetPdfDocumentByActivity(activityID)
	if err != nil {
		return domain.PdfDocument{}, fmt.Errorf("get pdf document: %w", err)
	}
	if !ok {
		return domain.PdfDocument{}, ErrNotFound
	}
	return doc, nil
}

// watchlists

func (a *App) ListWatchlistPersons(activeOnly bool) ([]domain.WatchlistPerson, error) {
	return a.store.ListWatchlistPersons(activeOnly)
}

// SaveWatchlistPerson creates a person when p.ID is empty and updates the
// existing one otherwise.
func (a *App) SaveWatchlistPerson(actor domain.User, p domain.WatchlistPerson) (domain.WatchlistPerson, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.IDNumber = strings.TrimSpace(p.IDNumber)
	if p.Name == "" {
		return domain.WatchlistPerson{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = util.NewID()
		p.CreatedBy = actor.ID
		p.CreatedAt = a.now().UTC()
	} else {
		existing, ok, err := a.store.GetWatchlistPerson(p.ID)
		if err != nil {
			return domain.WatchlistPerson{}, fmt.Errorf("get watchlist person: %w", err)
		}
		if !ok {
			return domain.WatchlistPerson{}, ErrNotFound
		}
		p.CreatedBy = existing.CreatedBy
		p.CreatedAt = existing.CreatedAt
	}
	if err := a.store.SaveWatchlistPerson(p); err != nil {
		return domain.WatchlistPerson{}, fmt.Errorf("save watchlist person: %w", err)
	}
	return p, nil
}

func (a *App) DeleteWatchlistPerson(id string) error {
	if _, ok, err := a.store.GetWatchlistPerson(id); err != nil {
		return fmt.Errorf("get watchlist person: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	return a.store.DeleteWatchlistPerson(id)
}

func (a *App) ListWatchlistItems(activeOnly bool) ([]domain.WatchlistItem, error) {
	return a.store.ListWatchlistItems(activeOnly)
}

// SaveWatchlistItem creates an item when it.ID is empty and updates the
// existing one otherwise.
func (a *App) SaveWatchlistItem(actor domain.User, it domain.WatchlistItem) (domain.WatchlistItem, error) {
	it.Description = strings.TrimSpace(it.Description)
	it.SerialNumber = strings.TrimSpace(it.SerialNumber)
	it.ItemType = strings.TrimSpace(it.ItemType)
	if it.Description == "" {
		return domain.WatchlistItem{}, fmt.Errorf("%w: description required", ErrInvalidInput)
	}
	if it.ID == "" {
		it.ID = util.NewID()
		it.CreatedBy = actor.ID
		it.CreatedAt = a.now().UTC()
	} else {
		existing, ok, err := a.store.GetWatchlistItem(it.ID)
		if err != nil {
			return domain.WatchlistItem{}, fmt.Errorf("get watchlist item: %w", err)
		}
		if !ok {
			return domain.WatchlistItem{}, ErrNotFound
		}
		it.CreatedBy = existing.CreatedBy
		it.CreatedAt = existing.CreatedAt
	}
	if err := a.store.SaveWatchlistItem(it); err != nil {
		return domain.WatchlistItem{}, fmt.Errorf("save watchlist item: %w", err)
	}
	return it, nil
}

func (a *App) DeleteWatchlistItem(id string) error {
	if _, ok, err := a.store.GetWatchlistItem(id); err != nil {
		return fmt.Errorf("get watchlist item: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	return a.store.DeleteWatchlistItem(id)
}

// alerts

func (a *App) ListAlerts(f store.AlertFilter) ([]domain.Alert, error) {
	return a.store.ListAlerts(f)
}

func (a *App) GetAlert(id string) (domain.Alert, error) {
	alert, ok, err := a.store.GetAlert(id)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	if !ok {
		return domain.Alert{}, ErrNotFound
	}
	return alert, nil
}

func (a *App) ListAlertsByOrder(orderID string) ([]domain.Alert, error) {
	return a.store.ListAlertsByOrder(orderID)
}

// ReviewAlert closes an alert as Reviewed or Dismissed.
func (a *App) ReviewAlert(actor domain.User, id string, status domain.AlertStatus, notes string) (domain.Alert, error) {
	if status != domain.AlertReviewed && status != domain.AlertDismissed {
		return domain.Alert{}, fmt.Errorf("%w: status must be Reviewed or Dismissed", ErrInvalidInput)
	}
	ok, err := a.store.ReviewAlert(id, status, actor.ID, strings.TrimSpace(notes))
	if err != nil {
		return domain.Alert{}, fmt.Errorf("review alert: %w", err)
	}
	if !ok {
		return domain.Alert{}, ErrNotFound
	}
	return a.GetAlert(id)
}

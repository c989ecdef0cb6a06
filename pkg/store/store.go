package store

import (
	"errors"
	"time"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

// ErrInvalidQuery reports a search predicate that names an unknown field,
// an unsupported operator or a value of the wrong kind.
var ErrInvalidQuery = errors.New("invalid query")

// Store defines persistence operations for the intake pipeline and the API.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)
	DeleteUser(id string) error

	// stores
	SaveStore(domain.Store) error
	GetStoreByCode(code string) (domain.Store, bool, error)
	FindActiveStore(code string, fileType domain.FileType) (domain.Store, bool, error)
	FirstActiveStore(fileType domain.FileType) (domain.Store, bool, error)
	ListStores() ([]domain.Store, error)
	DeleteStore(code string) error

	// system config
	GetConfig(key string) (string, bool, error)
	SetConfig(key, value, description string) error
	ListConfig() ([]domain.SystemConfig, error)

	// file activities
	CreateActivity(domain.FileActivity) error
	GetActivity(id string) (domain.FileActivity, bool, error)
	SetActivityStatus(id string, status domain.ActivityStatus, errMsg string) error
	ClaimActivity(id string) (bool, error)
	AssignActivityStore(id, storeCode, actorID string, from ...domain.ActivityStatus) (bool, error)
	ListActivities(ActivityFilter) ([]domain.FileActivity, error)
	ListStalePending(before time.Time, limit int) ([]domain.FileActivity, error)

	// order records
	CreateOrderRecord(rec domain.OrderRecord, alerts []domain.Alert) error
	DeleteOrderRecordsByActivity(activityID string) (int, error)
	GetOrderRecord(id string) (domain.OrderRecord, bool, error)
	SearchOrderRecords(OrderQuery) ([]domain.OrderRecord, error)

	// pdf documents
	SavePdfDocument(domain.PdfDocument) error
	GetPdfDocumentByActivity(activityID string) (domain.PdfDocument, bool, error)
	ListPdfDocumentsByStore(storeCode string, limit int) ([]domain.PdfDocument, error)

	// watchlists
	SaveWatchlistPerson(domain.WatchlistPerson) error
	GetWatchlistPerson(id string) (domain.WatchlistPerson, bool, error)
	ListWatchlistPersons(activeOnly bool) ([]domain.WatchlistPerson, error)
	DeleteWatchlistPerson(id string) error
	SaveWatchlistItem(domain.WatchlistItem) error
	GetWatchlistItem(id string) (domain.WatchlistItem, bool, error)
	ListWatchlistItems(activeOnly bool) ([]domain.WatchlistItem, error)
	DeleteWatchlistItem(id string) error

	// alerts
	ListAlerts(AlertFilter) ([]domain.Alert, error)
	GetAlert(id string) (domain.Alert, bool, error)
	ListAlertsByOrder(orderRecordID string) ([]domain.Alert, error)
	ReviewAlert(id string, status domain.AlertStatus, reviewerID, notes string) (bool, error)
}

// ActivityFilter narrows ListActivities. Zero fields are ignored.
type ActivityFilter struct {
	StoreCode string
	Status    domain.ActivityStatus
	FileType  domain.FileType
	Limit     int
}

// AlertFilter narrows ListAlerts. Zero fields are ignored.
type AlertFilter struct {
	Status    domain.AlertStatus
	Kind      domain.AlertKind
	MatchType domain.MatchType
	From      time.Time
	To        time.Time
	Limit     int
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

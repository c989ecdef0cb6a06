package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type StoreModel struct {
	ID        string `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;not null"`
	Name      string `gorm:"not null"`
	Type      string `gorm:"not null;index"`
	Active    bool   `gorm:"not null"`
	District  string
	Locality  string
	Address   string
	Phone     string
	Email     string
	CreatedAt time.Time `gorm:"not null"`
}

type SystemConfigModel struct {
	Key         string `gorm:"primaryKey;column:config_key"`
	Value       string `gorm:"not null"`
	Description string
	UpdatedAt   time.Time
}

type FileActivityModel struct {
	ID                string `gorm:"primaryKey"`
	Filename          string `gorm:"not null"`
	OriginalPath      string
	SavedPath         string `gorm:"not null"`
	FileSize          int64  `gorm:"not null"`
	DetectedStoreCode string
	StoreCode         string    `gorm:"index"`
	FileType          string    `gorm:"not null"`
	Status            string    `gorm:"not null;index"`
	UploadedAt        time.Time `gorm:"not null;index"`
	ProcessedAt       *time.Time
	ProcessedBy       string
	ErrorMessage      string
	UpdatedAt         time.Time `gorm:"not null"`
}

type OrderRecordModel struct {
	ID               string    `gorm:"primaryKey"`
	StoreCode        string    `gorm:"not null;index"`
	FileActivityID   string    `gorm:"not null;index"`
	OrderNumber      string    `gorm:"not null;index"`
	OrderDate        time.Time `gorm:"not null;index"`
	CustomerName     string    `gorm:"not null"`
	CustomerContact  string
	CustomerAddress  string
	CustomerLocation string
	ItemDetails      string `gorm:"type:text"`
	Carats           string
	Metals           string
	Engravings       string
	Stones           string
	Price            string
	PriceAmount      decimal.NullDecimal `gorm:"type:numeric(14,2);index"`
	PawnTicket       string
	SaleDate         *time.Time
	CreatedAt        time.Time `gorm:"not null"`

	// Lowercased copies of the free-text fields, matched by contains searches.
	CustomerNameFold     string
	CustomerContactFold  string
	CustomerAddressFold  string
	CustomerLocationFold string
	ItemDetailsFold      string `gorm:"type:text"`
	MetalsFold           string
	EngravingsFold       string
	StonesFold           string
}

type PdfDocumentModel struct {
	ID             string `gorm:"primaryKey"`
	StoreCode      string `gorm:"not null;index"`
	FileActivityID string `gorm:"uniqueIndex;not null"`
	DocumentType   string `gorm:"not null"`
	Title          string
	Path           string `gorm:"not null"`
	FileSize       int64
	PageCount      int
	Metadata       datatypes.JSON
	CreatedAt      time.Time `gorm:"not null;index"`
}

type WatchlistPersonModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	IDNumber    string `gorm:"column:id_number"`
	Description string
	Active      bool   `gorm:"not null;index"`
	CreatedBy   string `gorm:"not null"`
	CreatedAt   time.Time
}

type WatchlistItemModel struct {
	ID           string `gorm:"primaryKey"`
	ItemType     string
	Description  string `gorm:"not null"`
	SerialNumber string
	Active       bool   `gorm:"not null;index"`
	CreatedBy    string `gorm:"not null"`
	CreatedAt    time.Time
}

type AlertModel struct {
	ID                string `gorm:"primaryKey"`
	OrderRecordID     string `gorm:"not null;uniqueIndex:idx_alert_entry,priority:1"`
	EntryKey          string `gorm:"not null;uniqueIndex:idx_alert_entry,priority:2"`
	MatchType         string `gorm:"not null;uniqueIndex:idx_alert_entry,priority:3"`
	WatchlistPersonID *string
	WatchlistItemID   *string
	Kind              string `gorm:"not null"`
	MatchValue        string
	Status            string `gorm:"not null;index"`
	ReviewedBy        string
	ReviewNotes       string
	CreatedAt         time.Time `gorm:"not null;index"`
}

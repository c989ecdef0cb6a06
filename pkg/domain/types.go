package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FileType string

const (
	FileTypeExcel FileType = "Excel"
	FileTypePDF   FileType = "PDF"
)

// Valid reports whether t is one of the known file types.
func (t FileType) Valid() bool {
	return t == FileTypeExcel || t == FileTypePDF
}

// Dir returns the upload subdirectory used for files of this type.
func (t FileType) Dir() string {
	if t == FileTypePDF {
		return "pdf"
	}
	return "excel"
}

type ActivityStatus string

const (
	StatusPending                ActivityStatus = "Pending"
	StatusPendingStoreAssignment ActivityStatus = "PendingStoreAssignment"
	StatusProcessing             ActivityStatus = "Processing"
	StatusProcessed              ActivityStatus = "Processed"
	StatusFailed                 ActivityStatus = "Failed"
)

type UserRole string

const (
	RoleSuperAdmin UserRole = "SuperAdmin"
	RoleAdmin      UserRole = "Admin"
	RoleUser       UserRole = "User"
)

// IsAdmin reports whether the role carries administrative rights.
func (r UserRole) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

type AlertKind string

const (
	AlertKindPerson AlertKind = "Person"
	AlertKindItem   AlertKind = "Item"
)

type MatchType string

const (
	MatchName        MatchType = "Name"
	MatchIDNumber    MatchType = "IDNumber"
	MatchDescription MatchType = "Description"
	MatchSerial      MatchType = "Serial"
)

type AlertStatus string

const (
	AlertPending   AlertStatus = "Pending"
	AlertReviewed  AlertStatus = "Reviewed"
	AlertDismissed AlertStatus = "Dismissed"
)

// System configuration keys read by the pipeline.
const (
	ConfigFileWatchingActive = "FILE_WATCHING_ACTIVE"
	ConfigAutoStoreDetection = "AUTO_STORE_DETECTION"
	ConfigExcelWatchDir      = "EXCEL_WATCH_DIR"
	ConfigPDFWatchDir        = "PDF_WATCH_DIR"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Store struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Type      FileType  `json:"type"`
	Active    bool      `json:"active"`
	District  string    `json:"district,omitempty"`
	Locality  string    `json:"locality,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type SystemConfig struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// FileActivity tracks the lifecycle of one ingested file.
type FileActivity struct {
	ID                string         `json:"id"`
	Filename          string         `json:"filename"`
	OriginalPath      string         `json:"originalPath,omitempty"`
	SavedPath         string         `json:"-"`
	FileSize          int64          `json:"fileSize"`
	DetectedStoreCode string         `json:"detectedStoreCode,omitempty"`
	StoreCode         string         `json:"storeCode,omitempty"`
	FileType          FileType       `json:"fileType"`
	Status            ActivityStatus `json:"status"`
	UploadedAt        time.Time      `json:"uploadDate"`
	ProcessedAt       *time.Time     `json:"processingDate,omitempty"`
	ProcessedBy       string         `json:"processedBy,omitempty"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// OrderRecord is one parsed spreadsheet row.
type OrderRecord struct {
	ID               string           `json:"id"`
	StoreCode        string           `json:"storeCode"`
	FileActivityID   string           `json:"fileActivityId"`
	OrderNumber      string           `json:"orderNumber"`
	OrderDate        time.Time        `json:"orderDate"`
	CustomerName     string           `json:"customerName"`
	CustomerContact  string           `json:"customerContact,omitempty"`
	CustomerAddress  string           `json:"customerAddress,omitempty"`
	CustomerLocation string           `json:"customerLocation,omitempty"`
	ItemDetails      string           `json:"itemDetails,omitempty"`
	Carats           string           `json:"carats,omitempty"`
	Metals           string           `json:"metals,omitempty"`
	Engravings       string           `json:"engravings,omitempty"`
	Stones           string           `json:"stones,omitempty"`
	Price            string           `json:"price,omitempty"`
	PriceAmount      *decimal.Decimal `json:"priceAmount,omitempty"`
	PawnTicket       string           `json:"pawnTicket,omitempty"`
	SaleDate         *time.Time       `json:"saleDate,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

type PdfDocument struct {
	ID             string            `json:"id"`
	StoreCode      string            `json:"storeCode"`
	FileActivityID string            `json:"fileActivityId"`
	DocumentType   string            `json:"documentType"`
	Title          string            `json:"title"`
	Path           string            `json:"-"`
	FileSize       int64             `json:"fileSize"`
	PageCount      int               `json:"pageCount,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

type WatchlistPerson struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IDNumber    string    `json:"idNumber,omitempty"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdDate"`
}

type WatchlistItem struct {
	ID           string    `json:"id"`
	ItemType     string    `json:"itemType"`
	Description  string    `json:"description"`
	SerialNumber string    `json:"serialNumber,omitempty"`
	Active       bool      `json:"active"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdDate"`
}

// Alert records that an OrderRecord matched one watchlist entry.
// Exactly one of WatchlistPersonID and WatchlistItemID is set.
type Alert struct {
	ID                string      `json:"id"`
	OrderRecordID     string      `json:"orderRecordId"`
	WatchlistPersonID string      `json:"watchlistPersonId,omitempty"`
	WatchlistItemID   string      `json:"watchlistItemId,omitempty"`
	Kind              AlertKind   `json:"type"`
	MatchType         MatchType   `json:"matchType"`
	MatchValue        string      `json:"matchValue"`
	Status            AlertStatus `json:"status"`
	ReviewedBy        string      `json:"reviewedBy,omitempty"`
	ReviewNotes       string      `json:"reviewNotes,omitempty"`
	CreatedAt         time.Time   `json:"alertDate"`
}

// EntryKey identifies the watchlist entry an alert points to.
func (a Alert) EntryKey() string {
	if a.WatchlistPersonID != "" {
		return "person:" + a.WatchlistPersonID
	}
	return "item:" + a.WatchlistItemID
}

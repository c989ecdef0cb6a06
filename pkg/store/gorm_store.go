package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/domain"
)

const migrateLockID int64 = 28731405

type GormStoreOptions struct {
	LogLevel gormlogger.LogLevel
}

type GormStoreOption func(*GormStoreOptions)

// WithLogLevel sets the GORM logger level (default Warn).
func WithLogLevel(level gormlogger.LogLevel) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.LogLevel = level
	}
}

// ParseLogLevel maps silent, error, warn or info onto a GORM log level.
// Unknown values fall back to Warn.
func ParseLogLevel(raw string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// GormStore implements Store using GORM on Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. DSNs starting with
// postgres:// or postgresql:// (or carrying host=) use Postgres; anything
// else is a SQLite path or URI.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{LogLevel: gormlogger.Warn}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	isPostgres := isPostgresDSN(dsn)
	dialector := sqlite.Open(dsn)
	if isPostgres {
		dialector = postgres.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if !isPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{}, &StoreModel{}, &SystemConfigModel{}, &FileActivityModel{},
			&OrderRecordModel{}, &PdfDocumentModel{}, &WatchlistPersonModel{},
			&WatchlistItemModel{}, &AlertModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if isPostgres {
		err = withMigrationLock(db, func(tx *gorm.DB) error {
			if err := migrate(tx); err != nil {
				return err
			}
			return ensurePostgresForeignKeys(tx)
		})
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	if err := backfillOrderFolds(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// backfillOrderFolds fills the folded search columns of records stored
// before those columns existed.
func backfillOrderFolds(db *gorm.DB) error {
	var models []OrderRecordModel
	res := db.Where("customer_name <> '' AND (customer_name_fold IS NULL OR customer_name_fold = '')").
		FindInBatches(&models, 500, func(_ *gorm.DB, _ int) error {
			for _, m := range models {
				folded := orderToModel(orderFromModel(m))
				if err := db.Model(&OrderRecordModel{}).Where("id = ?", m.ID).Updates(map[string]any{
					"customer_name_fold":     folded.CustomerNameFold,
					"customer_contact_fold":  folded.CustomerContactFold,
					"customer_address_fold":  folded.CustomerAddressFold,
					"customer_location_fold": folded.CustomerLocationFold,
					"item_details_fold":      folded.ItemDetailsFold,
					"metals_fold":            folded.MetalsFold,
					"engravings_fold":        folded.EngravingsFold,
					"stones_fold":            folded.StonesFold,
				}).Error; err != nil {
					return err
				}
			}
			return nil
		})
	if res.Error != nil {
		return fmt.Errorf("backfill search folds: %w", res.Error)
	}
	return nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

func ensurePostgresForeignKeys(tx *gorm.DB) error {
	if err := tx.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'order_record_models'
				AND constraint_name = 'order_record_models_file_activity_id_fkey'
			) THEN
				ALTER TABLE order_record_models
				ADD CONSTRAINT order_record_models_file_activity_id_fkey
				FOREIGN KEY (file_activity_id) REFERENCES file_activity_models(id);
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'alert_models'
				AND constraint_name = 'alert_models_order_record_id_fkey'
			) THEN
				ALTER TABLE alert_models
				ADD CONSTRAINT alert_models_order_record_id_fkey
				FOREIGN KEY (order_record_id) REFERENCES order_record_models(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure foreign keys: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// first loads one row into dst, mapping "not found" to ok=false.
func (s *GormStore) first(dst any, query string, args ...any) (bool, error) {
	if err := s.db.Where(query, args...).First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByUsername looks up a user by login name.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	ok, err := s.first(&model, "username = ?", username)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	ok, err := s.first(&model, "id = ?", id)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *GormStore) DeleteUser(id string) error {
	return s.db.Delete(&UserModel{}, "id = ?", id).Error
}

// SaveStore creates or updates a store keyed by code.
func (s *GormStore) SaveStore(st domain.Store) error {
	model := storeToModel(st)
	if model.ID == "" {
		model.ID = util.NewID()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type", "active", "district", "locality", "address", "phone", "email"}),
	}).Create(&model).Error
}

func (s *GormStore) GetStoreByCode(code string) (domain.Store, bool, error) {
	var model StoreModel
	ok, err := s.first(&model, "code = ?", code)
	if !ok || err != nil {
		return domain.Store{}, false, err
	}
	return storeFromModel(model), true, nil
}

// FindActiveStore returns the active store with the given code that accepts
// files of the given type.
func (s *GormStore) FindActiveStore(code string, fileType domain.FileType) (domain.Store, bool, error) {
	var model StoreModel
	ok, err := s.first(&model, "code = ? AND type = ? AND active = ?", code, string(fileType), true)
	if !ok || err != nil {
		return domain.Store{}, false, err
	}
	return storeFromModel(model), true, nil
}

// FirstActiveStore returns the oldest active store of the given type.
func (s *GormStore) FirstActiveStore(fileType domain.FileType) (domain.Store, bool, error) {
	var model StoreModel
	err := s.db.Where("type = ? AND active = ?", string(fileType), true).
		Order("created_at ASC").Order("code ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Store{}, false, nil
		}
		return domain.Store{}, false, err
	}
	return storeFromModel(model), true, nil
}

func (s *GormStore) ListStores() ([]domain.Store, error) {
	var models []StoreModel
	if err := s.db.Order("code ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Store, 0, len(models))
	for _, m := range models {
		res = append(res, storeFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteStore(code string) error {
	return s.db.Delete(&StoreModel{}, "code = ?", code).Error
}

// GetConfig reads one system configuration value.
func (s *GormStore) GetConfig(key string) (string, bool, error) {
	var model SystemConfigModel
	ok, err := s.first(&model, "config_key = ?", key)
	if !ok || err != nil {
		return "", false, err
	}
	return model.Value, true, nil
}

// SetConfig upserts a configuration value. An empty description keeps the
// stored one.
func (s *GormStore) SetConfig(key, value, description string) error {
	model := SystemConfigModel{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	}
	columns := []string{"value", "updated_at"}
	if description != "" {
		columns = append(columns, "description")
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&model).Error
}

func (s *GormStore) ListConfig() ([]domain.SystemConfig, error) {
	var models []SystemConfigModel
	if err := s.db.Order("config_key ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SystemConfig, 0, len(models))
	for _, m := range models {
		res = append(res, domain.SystemConfig{Key: m.Key, Value: m.Value, Description: m.Description})
	}
	return res, nil
}

// CreateActivity inserts a new file activity.
func (s *GormStore) CreateActivity(a domain.FileActivity) error {
	model := activityToModel(a)
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = time.Now().UTC()
	}
	return s.db.Create(&model).Error
}

func (s *GormStore) GetActivity(id string) (domain.FileActivity, bool, error) {
	var model FileActivityModel
	ok, err := s.first(&model, "id = ?", id)
	if !ok || err != nil {
		return domain.FileActivity{}, false, err
	}
	return activityFromModel(model), true, nil
}

// SetActivityStatus updates an activity's status. Moving to Processing
// stamps processed_at; a non-empty errMsg replaces the stored message.
func (s *GormStore) SetActivityStatus(id string, status domain.ActivityStatus, errMsg string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     string(status),
		"updated_at": now,
	}
	if status == domain.StatusProcessing {
		updates["processed_at"] = now
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	res := s.db.Model(&FileActivityModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("activity %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ClaimActivity moves a Pending activity to Processing. It reports false
// when the activity is not Pending, so only one worker wins a given file.
func (s *GormStore) ClaimActivity(id string) (bool, error) {
	now := time.Now().UTC()
	res := s.db.Model(&FileActivityModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":        string(domain.StatusProcessing),
			"processed_at":  now,
			"error_message": "",
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AssignActivityStore sets the store of an activity currently in one of the
// given statuses and moves it back to Pending.
func (s *GormStore) AssignActivityStore(id, storeCode, actorID string, from ...domain.ActivityStatus) (bool, error) {
	statuses := make([]string, 0, len(from))
	for _, st := range from {
		statuses = append(statuses, string(st))
	}
	tx := s.db.Model(&FileActivityModel{}).Where("id = ?", id)
	if len(statuses) > 0 {
		tx = tx.Where("status IN ?", statuses)
	}
	res := tx.Updates(map[string]any{
		"store_code":    storeCode,
		"status":        string(domain.StatusPending),
		"processed_by":  actorID,
		"error_message": "",
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListActivities returns activities newest first.
func (s *GormStore) ListActivities(f ActivityFilter) ([]domain.FileActivity, error) {
	tx := s.db.Order("uploaded_at DESC")
	if f.StoreCode != "" {
		tx = tx.Where("store_code = ?", f.StoreCode)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", string(f.Status))
	}
	if f.FileType != "" {
		tx = tx.Where("file_type = ?", string(f.FileType))
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	var models []FileActivityModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.FileActivity, 0, len(models))
	for _, m := range models {
		res = append(res, activityFromModel(m))
	}
	return res, nil
}

// ListStalePending returns Pending activities with a store whose last
// update is older than before, oldest first.
func (s *GormStore) ListStalePending(before time.Time, limit int) ([]domain.FileActivity, error) {
	tx := s.db.Where("status = ? AND store_code <> '' AND updated_at < ?", string(domain.StatusPending), before.UTC()).
		Order("updated_at ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var models []FileActivityModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.FileActivity, 0, len(models))
	for _, m := range models {
		res = append(res, activityFromModel(m))
	}
	return res, nil
}

// CreateOrderRecord persists a record and its alerts in one transaction.
// Alerts that already exist for the same record, entry and match type are
// skipped.
func (s *GormStore) CreateOrderRecord(rec domain.OrderRecord, alerts []domain.Alert) error {
	if rec.ID == "" {
		rec.ID = util.NewID()
	}
	model := orderToModel(rec)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert order record: %w", err)
		}
		if len(alerts) == 0 {
			return nil
		}
		models := make([]AlertModel, 0, len(alerts))
		for _, a := range alerts {
			a.OrderRecordID = rec.ID
			if a.ID == "" {
				a.ID = util.NewID()
			}
			models = append(models, alertToModel(a))
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error; err != nil {
			return fmt.Errorf("insert alerts: %w", err)
		}
		return nil
	})
}

// DeleteOrderRecordsByActivity removes the records an activity produced,
// with their alerts, and reports how many records went.
func (s *GormStore) DeleteOrderRecordsByActivity(activityID string) (int, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&OrderRecordModel{}).Select("id").Where("file_activity_id = ?", activityID)
		if err := tx.Where("order_record_id IN (?)", ids).Delete(&AlertModel{}).Error; err != nil {
			return fmt.Errorf("delete alerts: %w", err)
		}
		res := tx.Where("file_activity_id = ?", activityID).Delete(&OrderRecordModel{})
		if res.Error != nil {
			return fmt.Errorf("delete order records: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return int(deleted), err
}

func (s *GormStore) GetOrderRecord(id string) (domain.OrderRecord, bool, error) {
	var model OrderRecordModel
	ok, err := s.first(&model, "id = ?", id)
	if !ok || err != nil {
		return domain.OrderRecord{}, false, err
	}
	return orderFromModel(model), true, nil
}

// SearchOrderRecords runs a parameterized search, newest orders first.
func (s *GormStore) SearchOrderRecords(q OrderQuery) ([]domain.OrderRecord, error) {
	tx, err := q.apply(s.db.Model(&OrderRecordModel{}))
	if err != nil {
		return nil, err
	}
	var models []OrderRecordModel
	if err := tx.Order("order_date DESC").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.OrderRecord, 0, len(models))
	for _, m := range models {
		res = append(res, orderFromModel(m))
	}
	return res, nil
}

// SavePdfDocument upserts the document of a file activity.
func (s *GormStore) SavePdfDocument(d domain.PdfDocument) error {
	if d.ID == "" {
		d.ID = util.NewID()
	}
	model := pdfToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"store_code", "document_type", "title", "path", "file_size", "page_count", "metadata"}),
	}).Create(&model).Error
}

func (s *GormStore) GetPdfDocumentByActivity(activityID string) (domain.PdfDocument, bool, error) {
	var model PdfDocumentModel
	ok, err := s.first(&model, "file_activity_id = ?", activityID)
	if !ok || err != nil {
		return domain.PdfDocument{}, false, err
	}
	return pdfFromModel(model), true, nil
}

func (s *GormStore) ListPdfDocumentsByStore(storeCode string, limit int) ([]domain.PdfDocument, error) {
	tx := s.db.Where("store_code = ?", storeCode).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var models []PdfDocumentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.PdfDocument, 0, len(models))
	for _, m := range models {
		res = append(res, pdfFromModel(m))
	}
	return res, nil
}

// SaveWatchlistPerson creates or updates a watched person.
func (s *GormStore) SaveWatchlistPerson(p domain.WatchlistPerson) error {
	if p.ID == "" {
		p.ID = util.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	model := WatchlistPersonModel{
		ID:          p.ID,
		Name:        p.Name,
		IDNumber:    p.IDNumber,
		Description: p.Description,
		Active:      p.Active,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "id_number", "description", "active"}),
	}).Create(&model).Error
}

func (s *GormStore) GetWatchlistPerson(id string) (domain.WatchlistPerson, bool, error) {
	var model WatchlistPersonModel
	ok, err := s.first(&model, "id = ?", id)
	if !ok || err != nil {
		return domain.WatchlistPerson{}, false, err
	}
	return personFromModel(model), true, nil
}

func (s *GormStore) ListWatchlistPersons(activeOnly bool) ([]domain.WatchlistPerson, error) {
	tx := s.db.Order("created_at ASC")
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var models []WatchlistPersonModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.WatchlistPerson, 0, len(models))
	for _, m := range models {
		res = append(res, personFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteWatchlistPerson(id string) error {
	return s.db.Delete(&WatchlistPersonModel{}, "id = ?", id).Error
}

// SaveWatchlistItem creates or updates a watched item.
func (s *GormStore) SaveWatchlistItem(it domain.WatchlistItem) error {
	if it.ID == "" {
		it.ID = util.NewID()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	model := WatchlistItemModel{
		ID:           it.ID,
		ItemType:     it.ItemType,
		Description:  it.Description,
		SerialNumber: it.SerialNumber,
		Active:       it.Active,
		CreatedBy:    it.CreatedBy,
		CreatedAt:    it.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_type", "description", "serial_number", "active"}),
	}).Create(&model).Error
}

func (s *GormStore) GetWatchlistItem(id string) (domain.WatchlistItem, bool, error) {
	var model WatchlistItemModel
	ok, err := s.first(&model, "id = ?", id)
	if !ok || err != nil {
		return domain.WatchlistItem{}, false, err
	}
	return itemFromModel(model), true, nil
}

func (s *GormStore) ListWatchlistItems(activeOnly bool) ([]domain.WatchlistItem, error) {
	tx := s.db.Order("created_at ASC")
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var models []WatchlistItemModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.WatchlistItem, 0, len(models))
	for _, m := range models {
		res = append(res, itemFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteWatchlistItem(id string) error {
	return s.db.Delete(&WatchlistItemModel{}, "id = ?", id).Error
}

// ListAlerts returns alerts newest first.
func (s *GormStore) ListAlerts(f AlertFilter) ([]domain.Alert, error) {
	tx := s.db.Order("created_at DESC")
	if f.Status != "" {
		tx = tx.Where("status = ?", string(f.Status))
	}
	if f.Kind != "" {
		tx = tx.Where("kind = ?", string(f.Kind))
	}
	if f.MatchType != "" {
		tx = tx.Where("match_type = ?", string(f.MatchType))
	}
	if !f.From.IsZero() {
		tx = tx.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		tx = tx.Where("created_at < ?", f.To.UTC())
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	var models []AlertModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	return alertsFromModels(models), nil
}

func (s *GormStore) GetAlert(id string) (domain.Alert, bool, error) {
	var model AlertModel
	ok, err := s.first(&model, "id = ?", id)
	if !ok || err != nil {
		return domain.Alert{}, false, err
	}
	return alertFromModel(model), true, nil
}

func (s *GormStore) ListAlertsByOrder(orderRecordID string) ([]domain.Alert, error) {
	var models []AlertModel
	if err := s.db.Where("order_record_id = ?", orderRecordID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return alertsFromModels(models), nil
}

// ReviewAlert records a reviewer's decision. It reports false when the alert
// does not exist.
func (s *GormStore) ReviewAlert(id string, status domain.AlertStatus, reviewerID, notes string) (bool, error) {
	res := s.db.Model(&AlertModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":       string(status),
		"reviewed_by":  reviewerID,
		"review_notes": notes,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func storeToModel(st domain.Store) StoreModel {
	return StoreModel{
		ID:        st.ID,
		Code:      st.Code,
		Name:      st.Name,
		Type:      string(st.Type),
		Active:    st.Active,
		District:  st.District,
		Locality:  st.Locality,
		Address:   st.Address,
		Phone:     st.Phone,
		Email:     st.Email,
		CreatedAt: st.CreatedAt,
	}
}

func storeFromModel(m StoreModel) domain.Store {
	return domain.Store{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Type:      domain.FileType(m.Type),
		Active:    m.Active,
		District:  m.District,
		Locality:  m.Locality,
		Address:   m.Address,
		Phone:     m.Phone,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
	}
}

func activityToModel(a domain.FileActivity) FileActivityModel {
	return FileActivityModel{
		ID:                a.ID,
		Filename:          a.Filename,
		OriginalPath:      a.OriginalPath,
		SavedPath:         a.SavedPath,
		FileSize:          a.FileSize,
		DetectedStoreCode: a.DetectedStoreCode,
		StoreCode:         a.StoreCode,
		FileType:          string(a.FileType),
		Status:            string(a.Status),
		UploadedAt:        a.UploadedAt.UTC(),
		ProcessedAt:       a.ProcessedAt,
		ProcessedBy:       a.ProcessedBy,
		ErrorMessage:      a.ErrorMessage,
		UpdatedAt:         a.UpdatedAt.UTC(),
	}
}

func activityFromModel(m FileActivityModel) domain.FileActivity {
	return domain.FileActivity{
		ID:                m.ID,
		Filename:          m.Filename,
		OriginalPath:      m.OriginalPath,
		SavedPath:         m.SavedPath,
		FileSize:          m.FileSize,
		DetectedStoreCode: m.DetectedStoreCode,
		StoreCode:         m.StoreCode,
		FileType:          domain.FileType(m.FileType),
		Status:            domain.ActivityStatus(m.Status),
		UploadedAt:        m.UploadedAt,
		ProcessedAt:       m.ProcessedAt,
		ProcessedBy:       m.ProcessedBy,
		ErrorMessage:      m.ErrorMessage,
		UpdatedAt:         m.UpdatedAt,
	}
}

func orderToModel(r domain.OrderRecord) OrderRecordModel {
	var amount decimal.NullDecimal
	if r.PriceAmount != nil {
		amount = decimal.NewNullDecimal(*r.PriceAmount)
	}
	var saleDate *time.Time
	if r.SaleDate != nil {
		t := r.SaleDate.UTC()
		saleDate = &t
	}
	return OrderRecordModel{
		ID:               r.ID,
		StoreCode:        r.StoreCode,
		FileActivityID:   r.FileActivityID,
		OrderNumber:      r.OrderNumber,
		OrderDate:        r.OrderDate.UTC(),
		CustomerName:     r.CustomerName,
		CustomerContact:  r.CustomerContact,
		CustomerAddress:  r.CustomerAddress,
		CustomerLocation: r.CustomerLocation,
		ItemDetails:      r.ItemDetails,
		Carats:           r.Carats,
		Metals:           r.Metals,
		Engravings:       r.Engravings,
		Stones:           r.Stones,
		Price:            r.Price,
		PriceAmount:      amount,
		PawnTicket:       r.PawnTicket,
		SaleDate:         saleDate,
		CreatedAt:        r.CreatedAt.UTC(),

		CustomerNameFold:     strings.ToLower(r.CustomerName),
		CustomerContactFold:  strings.ToLower(r.CustomerContact),
		CustomerAddressFold:  strings.ToLower(r.CustomerAddress),
		CustomerLocationFold: strings.ToLower(r.CustomerLocation),
		ItemDetailsFold:      strings.ToLower(r.ItemDetails),
		MetalsFold:           strings.ToLower(r.Metals),
		EngravingsFold:       strings.ToLower(r.Engravings),
		StonesFold:           strings.ToLower(r.Stones),
	}
}

func orderFromModel(m OrderRecordModel) domain.OrderRecord {
	var amount *decimal.Decimal
	if m.PriceAmount.Valid {
		d := m.PriceAmount.Decimal
		amount = &d
	}
	return domain.OrderRecord{
		ID:               m.ID,
		StoreCode:        m.StoreCode,
		FileActivityID:   m.FileActivityID,
		OrderNumber:      m.OrderNumber,
		OrderDate:        m.OrderDate,
		CustomerName:     m.CustomerName,
		CustomerContact:  m.CustomerContact,
		CustomerAddress:  m.CustomerAddress,
		CustomerLocation: m.CustomerLocation,
		ItemDetails:      m.ItemDetails,
		Carats:           m.Carats,
		Metals:           m.Metals,
		Engravings:       m.Engravings,
		Stones:           m.Stones,
		Price:            m.Price,
		PriceAmount:      amount,
		PawnTicket:       m.PawnTicket,
		SaleDate:         m.SaleDate,
		CreatedAt:        m.CreatedAt,
	}
}

func pdfToModel(d domain.PdfDocument) PdfDocumentModel {
	meta, _ := json.Marshal(d.Metadata)
	return PdfDocumentModel{
		ID:             d.ID,
		StoreCode:      d.StoreCode,
		FileActivityID: d.FileActivityID,
		DocumentType:   d.DocumentType,
		Title:          d.Title,
		Path:           d.Path,
		FileSize:       d.FileSize,
		PageCount:      d.PageCount,
		Metadata:       meta,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

func pdfFromModel(m PdfDocumentModel) domain.PdfDocument {
	var meta map[string]string
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.PdfDocument{
		ID:             m.ID,
		StoreCode:      m.StoreCode,
		FileActivityID: m.FileActivityID,
		DocumentType:   m.DocumentType,
		Title:          m.Title,
		Path:           m.Path,
		FileSize:       m.FileSize,
		PageCount:      m.PageCount,
		Metadata:       meta,
		CreatedAt:      m.CreatedAt,
	}
}

func personFromModel(m WatchlistPersonModel) domain.WatchlistPerson {
	return domain.WatchlistPerson{
		ID:          m.ID,
		Name:        m.Name,
		IDNumber:    m.IDNumber,
		Description: m.Description,
		Active:      m.Active,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
	}
}

func itemFromModel(m WatchlistItemModel) domain.WatchlistItem {
	return domain.WatchlistItem{
		ID:           m.ID,
		ItemType:     m.ItemType,
		Description:  m.Description,
		SerialNumber: m.SerialNumber,
		Active:       m.Active,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}

func alertToModel(a domain.Alert) AlertModel {
	model := AlertModel{
		ID:            a.ID,
		OrderRecordID: a.OrderRecordID,
		EntryKey:      a.EntryKey(),
		MatchType:     string(a.MatchType),
		Kind:          string(a.Kind),
		MatchValue:    a.MatchValue,
		Status:        string(a.Status),
		ReviewedBy:    a.ReviewedBy,
		ReviewNotes:   a.ReviewNotes,
		CreatedAt:     a.CreatedAt.UTC(),
	}
	if a.WatchlistPersonID != "" {
		id := a.WatchlistPersonID
		model.WatchlistPersonID = &id
	}
	if a.WatchlistItemID != "" {
		id := a.WatchlistItemID
		model.WatchlistItemID = &id
	}
	if model.Status == "" {
		model.Status = string(domain.AlertPending)
	}
	return model
}

func alertFromModel(m AlertModel) domain.Alert {
	a := domain.Alert{
		ID:            m.ID,
		OrderRecordID: m.OrderRecordID,
		Kind:          domain.AlertKind(m.Kind),
		MatchType:     domain.MatchType(m.MatchType),
		MatchValue:    m.MatchValue,
		Status:        domain.AlertStatus(m.Status),
		ReviewedBy:    m.ReviewedBy,
		ReviewNotes:   m.ReviewNotes,
		CreatedAt:     m.CreatedAt,
	}
	if m.WatchlistPersonID != nil {
		a.WatchlistPersonID = *m.WatchlistPersonID
	}
	if m.WatchlistItemID != nil {
		a.WatchlistItemID = *m.WatchlistItemID
	}
	return a
}

func alertsFromModels(models []AlertModel) []domain.Alert {
	res := make([]domain.Alert, 0, len(models))
	for _, m := range models {
		res = append(res, alertFromModel(m))
	}
	return res
}

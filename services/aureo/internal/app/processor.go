package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/ingest"
	"github.com/miquiestampas/Aureo/pkg/queue"
)

// ProcessActivity is the queue handler. It claims the activity, runs the
// processor for its file type and records the outcome. Only a failed claim
// is returned as an error; processing failures end up in the activity's
// Failed status instead.
func (a *App) ProcessActivity(ctx context.Context, task queue.Task) error {
	claimed, err := a.store.ClaimActivity(task.ActivityID)
	if err != nil {
		return fmt.Errorf("claim activity: %w", err)
	}
	logger := slog.With("activity_id", task.ActivityID)
	if !claimed {
		logger.Info("activity_claim_skipped")
		return nil
	}
	activity, ok, err := a.store.GetActivity(task.ActivityID)
	if err != nil || !ok {
		a.UpdateActivityStatus(task.ActivityID, domain.StatusFailed, "activity could not be loaded")
		return nil
	}
	logger = logger.With("store_code", activity.StoreCode, "file_type", activity.FileType)

	start := time.Now()
	switch activity.FileType {
	case domain.FileTypeExcel:
		err = a.processExcel(ctx, activity, logger)
	case domain.FileTypePDF:
		err = a.processPDF(ctx, activity, logger)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFile, activity.FileType)
	}
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// shutdown interrupted the file; the recovery sweep retries it
		logger.Info("activity_interrupted", "duration_ms", time.Since(start).Milliseconds())
		a.UpdateActivityStatus(activity.ID, domain.StatusPending, "")
		return nil
	}
	if err != nil {
		logger.Warn("activity_failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		a.UpdateActivityStatus(activity.ID, domain.StatusFailed, err.Error())
		return nil
	}
	a.UpdateActivityStatus(activity.ID, domain.StatusProcessed, "")
	logger.Info("activity_processed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// processExcel parses each data row into an OrderRecord, matches it against
// the active watchlists and stores it with its alerts. The first error stops
// the file; rows stored before it are kept until the activity is processed
// again.
func (a *App) processExcel(ctx context.Context, activity domain.FileActivity, logger *slog.Logger) error {
	cleared, err := a.store.DeleteOrderRecordsByActivity(activity.ID)
	if err != nil {
		return fmt.Errorf("clear previous records: %w", err)
	}
	if cleared > 0 {
		logger.Info("excel_previous_records_cleared", "records", cleared)
	}
	persons, err := a.store.ListWatchlistPersons(true)
	if err != nil {
		return fmt.Errorf("load watchlist persons: %w", err)
	}
	items, err := a.store.ListWatchlistItems(true)
	if err != nil {
		return fmt.Errorf("load watchlist items: %w", err)
	}

	var records, skipped, alerts int
	rows, err := ingest.ReadWorkbook(activity.SavedPath, func(row int, values []any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := ingest.ParseOrderRow(values, activity.StoreCode, activity.ID, a.now().UTC())
		if !ok {
			skipped++
			return nil
		}
		rec.ID = util.NewID()
		matched := a.matcher.Match(rec, persons, items)
		if err := a.store.CreateOrderRecord(rec, matched); err != nil {
			return fmt.Errorf("save row %d: %w", row, err)
		}
		records++
		alerts += len(matched)
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("excel_processed", "rows", rows, "records", records, "skipped", skipped, "alerts", alerts)
	return nil
}

// processPDF extracts the text of a PDF, classifies it and upserts its
// PdfDocument.
func (a *App) processPDF(ctx context.Context, activity domain.FileActivity, logger *slog.Logger) error {
	text, err := a.pdf.Extract(ctx, activity.SavedPath)
	if err != nil {
		return fmt.Errorf("extract pdf text: %w", err)
	}
	docType := ingest.ClassifyDocument(text.Text)
	title, ok := ingest.ExtractTitle(text.Text)
	if !ok {
		title = filepath.Base(activity.SavedPath)
	}
	pages, err := ingest.PageCount(activity.SavedPath)
	if err != nil {
		logger.Debug("pdf_page_count_failed", "err", err)
		pages = text.Pages
	}

	doc := domain.PdfDocument{
		ID:             util.NewID(),
		StoreCode:      activity.StoreCode,
		FileActivityID: activity.ID,
		DocumentType:   docType,
		Title:          title,
		Path:           activity.SavedPath,
		FileSize:       activity.FileSize,
		PageCount:      pages,
		Metadata: map[string]string{
			"extract_method":    text.Method,
			"original_filename": activity.Filename,
			"text_length":       strconv.Itoa(len([]rune(text.Text))),
		},
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.SavePdfDocument(doc); err != nil {
		return fmt.Errorf("save pdf document: %w", err)
	}
	logger.Info("pdf_processed", "document_type", docType, "pages", pages, "method", text.Method)
	return nil
}

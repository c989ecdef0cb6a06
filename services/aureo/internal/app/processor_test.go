package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/ingest"
	"github.com/miquiestampas/Aureo/pkg/ingest/xlstest"
	"github.com/miquiestampas/Aureo/pkg/queue"
	"github.com/miquiestampas/Aureo/pkg/store"
)

func TestProcessExcelStoresRecordsAndAlerts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	flagged, err := e.app.SaveWatchlistPerson(domain.User{ID: "admin"}, domain.WatchlistPerson{Name: "Juan Pérez", IDNumber: "12345678Z", Active: true})
	require.NoError(t, err)
	_, err = e.app.SaveWatchlistItem(domain.User{ID: "admin"}, domain.WatchlistItem{Description: "Rolex", SerialNumber: "SN-001", Active: true})
	require.NoError(t, err)

	src := writeOrdersWorkbook(t, "MAD01_pedidos.xlsx", [][]any{
		{"1", "P-001", "15/01/2024", "JUAN PÉREZ GARCÍA", "DNI 12345678Z", "C/ Mayor 1", "Madrid",
			"Reloj ROLEX Submariner", "", "Acero", "SN-001", "", "1.234,56", "T-9", ""},
		{"2", "P-002", "16/01/2024", "Ana López", "", "", "", "Anillo", "", "Oro", "", "", "no price", "", ""},
		{"3", "", "17/01/2024", "Sin pedido"},
	})
	e.app.HandleDetectedFile(ctx, src, domain.FileTypeExcel)
	tasks := e.queue.submitted()
	require.Len(t, tasks, 1)

	require.NoError(t, e.app.ProcessActivity(ctx, tasks[0]))

	a, err := e.app.GetActivity(tasks[0].ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, a.Status)
	assert.NotNil(t, a.ProcessedAt)

	recs, err := e.app.SearchOrders(store.OrderQuery{Predicates: []store.Predicate{{Field: "storeCode", Op: store.OpEq, Value: "MAD01"}}})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	var first domain.OrderRecord
	for _, r := range recs {
		if r.OrderNumber == "P-001" {
			first = r
		}
	}
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "1.234,56", first.Price)
	require.NotNil(t, first.PriceAmount)
	assert.True(t, first.PriceAmount.Equal(decimal.RequireFromString("1234.56")))

	detail, err := e.app.GetOrder(first.ID)
	require.NoError(t, err)
	kinds := map[domain.MatchType]bool{}
	for _, al := range detail.Alerts {
		kinds[al.MatchType] = true
		assert.Equal(t, domain.AlertPending, al.Status)
		if al.Kind == domain.AlertKindPerson {
			assert.Equal(t, flagged.ID, al.WatchlistPersonID)
		}
	}
	assert.Equal(t, map[domain.MatchType]bool{
		domain.MatchName:        true,
		domain.MatchIDNumber:    true,
		domain.MatchDescription: true,
		domain.MatchSerial:      true,
	}, kinds)

	// a duplicate dispatch is a no-op
	require.NoError(t, e.app.ProcessActivity(ctx, tasks[0]))
	recs, err = e.app.SearchOrders(store.OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestProcessExcelInvalidWorkbookFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	e.app.HandleDetectedFile(ctx, writeSource(t, "MAD01_broken.xlsx", "not a zip"), domain.FileTypeExcel)
	task := e.queue.submitted()[0]

	require.NoError(t, e.app.ProcessActivity(ctx, task))

	a, err := e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, a.Status)
	assert.Contains(t, a.ErrorMessage, "open workbook")
}

func TestProcessLegacyXLSStoresRecords(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	src := filepath.Join(t.TempDir(), "MAD01_antiguo.xls")
	require.NoError(t, xlstest.Write(src, [][]any{
		{"Código", "Pedido", "Fecha", "Cliente", "DNI", "Dirección", "Localidad", "Artículo"},
		{"1", "P-100", 45306, "Ángel Muñoz", "", "", "", "Cadena oro"},
		{"2", "P-101", "16/01/2024", "Ana López", "", "", "", "Anillo"},
	}))
	e.app.HandleDetectedFile(ctx, src, domain.FileTypeExcel)
	task := e.queue.submitted()[0]

	require.NoError(t, e.app.ProcessActivity(ctx, task))

	a, err := e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, a.Status, a.ErrorMessage)

	recs, err := e.app.SearchOrders(store.OrderQuery{Predicates: []store.Predicate{{Field: "customerName", Op: store.OpContains, Value: "ángel"}}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "P-100", recs[0].OrderNumber)
	assert.True(t, recs[0].OrderDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
}

func TestProcessActivityRequeuesOnShutdown(t *testing.T) {
	e := newTestEnv(t)
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	src := writeOrdersWorkbook(t, "MAD01_pedidos.xlsx", [][]any{
		{"1", "P-001", "15/01/2024", "Jane Doe"},
	})
	e.app.HandleDetectedFile(context.Background(), src, domain.FileTypeExcel)
	task := e.queue.submitted()[0]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.app.ProcessActivity(ctx, task))

	a, err := e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Empty(t, a.ErrorMessage)

	*e.clock = e.clock.Add(10 * time.Minute)
	n, err := e.app.RecoverStalePending(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	tasks := e.queue.submitted()
	require.Len(t, tasks, 2)
	assert.Equal(t, task.ActivityID, tasks[1].ActivityID)

	require.NoError(t, e.app.ProcessActivity(context.Background(), tasks[1]))
	a, err = e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, a.Status)
	recs, err := e.app.SearchOrders(store.OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// failingOrderStore fails CreateOrderRecord on its failOn-th call.
type failingOrderStore struct {
	*store.GormStore
	failOn int
	calls  int
}

func (s *failingOrderStore) CreateOrderRecord(rec domain.OrderRecord, alerts []domain.Alert) error {
	s.calls++
	if s.calls == s.failOn {
		return errors.New("disk full")
	}
	return s.GormStore.CreateOrderRecord(rec, alerts)
}

func TestProcessExcelKeepsRowsBeforeFailure(t *testing.T) {
	e := newTestEnvWithStore(t, func(st *store.GormStore) store.Store {
		return &failingOrderStore{GormStore: st, failOn: 2}
	})
	ctx := context.Background()
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	_, err := e.app.SaveWatchlistPerson(domain.User{ID: "admin"}, domain.WatchlistPerson{Name: "Jane Doe", Active: true})
	require.NoError(t, err)

	src := writeOrdersWorkbook(t, "MAD01_pedidos.xlsx", [][]any{
		{"1", "P-001", "15/01/2024", "Jane Doe"},
		{"2", "P-002", "16/01/2024", "Jane Doe"},
		{"3", "P-003", "17/01/2024", "Jane Doe"},
	})
	e.app.HandleDetectedFile(ctx, src, domain.FileTypeExcel)
	task := e.queue.submitted()[0]

	require.NoError(t, e.app.ProcessActivity(ctx, task))

	a, err := e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, a.Status)
	assert.Contains(t, a.ErrorMessage, "save row 3")
	assert.Contains(t, a.ErrorMessage, "disk full")

	recs, err := e.app.SearchOrders(store.OrderQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "P-001", recs[0].OrderNumber)

	detail, err := e.app.GetOrder(recs[0].ID)
	require.NoError(t, err)
	require.Len(t, detail.Alerts, 1)
	assert.Equal(t, domain.MatchName, detail.Alerts[0].MatchType)
}

func TestProcessPDFStoresDocument(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedStore(t, "DOC01", domain.FileTypePDF)
	src := filepath.Join(t.TempDir(), "DOC01_factura.pdf")
	require.NoError(t, os.WriteFile(src, minimalPDF("Factura de venta 2024", "Cliente Jane Doe"), 0o600))
	e.app.HandleDetectedFile(ctx, src, domain.FileTypePDF)
	task := e.queue.submitted()[0]

	require.NoError(t, e.app.ProcessActivity(ctx, task))

	a, err := e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessed, a.Status, a.ErrorMessage)

	doc, err := e.app.GetPdfDocumentByActivity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, ingest.DocInvoice, doc.DocumentType)
	assert.Equal(t, "Factura de venta 2024", doc.Title)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, "DOC01", doc.StoreCode)
	assert.Equal(t, "DOC01_factura.pdf", doc.Metadata["original_filename"])
	assert.Equal(t, ingest.MethodGoPDF, doc.Metadata["extract_method"])
	assert.NotEmpty(t, doc.Metadata["text_length"])
}

// minimalPDF renders one page with a line of Helvetica text per entry.
func minimalPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n")
	for i, line := range lines {
		fmt.Fprintf(&content, "1 0 0 1 72 %d Tm\n(%s) Tj\n", 720-20*i, line)
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestProcessPDFInvalidFileFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedStore(t, "DOC01", domain.FileTypePDF)
	e.app.HandleDetectedFile(ctx, writeSource(t, "DOC01_factura.pdf", "garbage"), domain.FileTypePDF)
	task := e.queue.submitted()[0]

	require.NoError(t, e.app.ProcessActivity(ctx, task))

	a, err := e.app.GetActivity(task.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, a.Status)
	assert.Contains(t, a.ErrorMessage, "extract pdf text")
	_, err = e.app.GetPdfDocumentByActivity(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessActivitySkipsUnclaimable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.app.HandleDetectedFile(ctx, writeSource(t, "orphan.xlsx", "x"), domain.FileTypeExcel)
	a := onlyActivity(t, e)

	require.NoError(t, e.app.ProcessActivity(ctx, queue.Task{ActivityID: a.ID, FileType: a.FileType}))

	got, err := e.app.GetActivity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingStoreAssignment, got.Status)
}

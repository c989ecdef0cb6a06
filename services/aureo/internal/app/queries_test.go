package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/pkg/store"
)

func TestSaveStoreKeepsIdentity(t *testing.T) {
	e := newTestEnv(t)
	created, err := e.app.SaveStore(domain.Store{Code: " mad01 ", Name: "Madrid", Type: domain.FileTypeExcel, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "MAD01", created.Code)

	updated, err := e.app.SaveStore(domain.Store{Code: "MAD01", Name: "Madrid Centro", Type: domain.FileTypeExcel})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	got, err := e.app.GetStore("MAD01")
	require.NoError(t, err)
	assert.Equal(t, "Madrid Centro", got.Name)
	assert.False(t, got.Active)

	_, err = e.app.SaveStore(domain.Store{Code: "X", Name: "x", Type: "Word"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, e.app.DeleteStore("MAD01"))
	assert.ErrorIs(t, e.app.DeleteStore("MAD01"), ErrStoreNotFound)
}

func TestWatchlistUpdateKeepsAuthor(t *testing.T) {
	e := newTestEnv(t)
	p, err := e.app.SaveWatchlistPerson(domain.User{ID: "a1"}, domain.WatchlistPerson{Name: "Pedro", Active: true})
	require.NoError(t, err)

	p.Active = false
	updated, err := e.app.SaveWatchlistPerson(domain.User{ID: "a2"}, p)
	require.NoError(t, err)
	assert.Equal(t, "a1", updated.CreatedBy)

	active, err := e.app.ListWatchlistPersons(true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = e.app.SaveWatchlistPerson(domain.User{ID: "a1"}, domain.WatchlistPerson{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.app.SaveWatchlistItem(domain.User{ID: "a1"}, domain.WatchlistItem{ItemType: "Reloj"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, e.app.DeleteWatchlistPerson(p.ID))
	assert.ErrorIs(t, e.app.DeleteWatchlistPerson(p.ID), ErrNotFound)
}

func TestReviewAlert(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedStore(t, "MAD01", domain.FileTypeExcel)
	_, err := e.app.SaveWatchlistPerson(domain.User{ID: "a1"}, domain.WatchlistPerson{Name: "Pedro", Active: true})
	require.NoError(t, err)
	src := writeOrdersWorkbook(t, "MAD01_x.xlsx", [][]any{{"1", "P-1", "01/02/2024", "Pedro Ruiz"}})
	e.app.HandleDetectedFile(ctx, src, domain.FileTypeExcel)
	require.NoError(t, e.app.ProcessActivity(ctx, e.queue.submitted()[0]))

	alerts, err := e.app.ListAlerts(store.AlertFilter{Status: domain.AlertPending})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	_, err = e.app.ReviewAlert(domain.User{ID: "a1"}, alerts[0].ID, domain.AlertPending, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.app.ReviewAlert(domain.User{ID: "a1"}, "missing", domain.AlertReviewed, "")
	assert.ErrorIs(t, err, ErrNotFound)

	reviewed, err := e.app.ReviewAlert(domain.User{ID: "a1"}, alerts[0].ID, domain.AlertDismissed, " homonym ")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertDismissed, reviewed.Status)
	assert.Equal(t, "a1", reviewed.ReviewedBy)
	assert.Equal(t, "homonym", reviewed.ReviewNotes)
}

func TestSearchOrdersInvalidQuery(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.app.SearchOrders(store.OrderQuery{Predicates: []store.Predicate{{Field: "password", Value: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestActivityFileLocal(t *testing.T) {
	e := newTestEnv(t)
	e.app.HandleDetectedFile(context.Background(), writeSource(t, "a.pdf", "%PDF"), domain.FileTypePDF)
	a := onlyActivity(t, e)

	dl, err := e.app.ActivityFile(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, dl.URL)
	assert.Equal(t, a.SavedPath, dl.Path)
	assert.Equal(t, "a.pdf", dl.Filename)
}

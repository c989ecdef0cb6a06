package ingest

import (
	"strings"
	"time"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

// Matcher checks order records against the watchlists.
type Matcher struct {
	Now func() time.Time
}

// NewMatcher returns a Matcher stamping alerts with the wall clock.
func NewMatcher() Matcher {
	return Matcher{Now: time.Now}
}

// Match returns one pending alert per rule that fires for each active entry:
//
//	person name in customer name (case-insensitive)   -> Name
//	person ID number in customer contact (exact case) -> IDNumber
//	item description in item details (case-insensitive) -> Description
//	item serial number in engravings (exact case)     -> Serial
//
// Empty watchlist fields never match. Alerts carry no ID or OrderRecordID;
// the caller fills those in when persisting.
func (m Matcher) Match(rec domain.OrderRecord, persons []domain.WatchlistPerson, items []domain.WatchlistItem) []domain.Alert {
	now := m.now()
	var alerts []domain.Alert

	customer := strings.ToLower(rec.CustomerName)
	for _, p := range persons {
		if !p.Active {
			continue
		}
		if p.Name != "" && strings.Contains(customer, strings.ToLower(p.Name)) {
			alerts = append(alerts, personAlert(p, domain.MatchName, rec.CustomerName, now))
		}
		if p.IDNumber != "" && strings.Contains(rec.CustomerContact, p.IDNumber) {
			alerts = append(alerts, personAlert(p, domain.MatchIDNumber, rec.CustomerContact, now))
		}
	}

	details := strings.ToLower(rec.ItemDetails)
	for _, it := range items {
		if !it.Active {
			continue
		}
		if it.Description != "" && strings.Contains(details, strings.ToLower(it.Description)) {
			alerts = append(alerts, itemAlert(it, domain.MatchDescription, rec.ItemDetails, now))
		}
		if it.SerialNumber != "" && strings.Contains(rec.Engravings, it.SerialNumber) {
			alerts = append(alerts, itemAlert(it, domain.MatchSerial, rec.Engravings, now))
		}
	}
	return alerts
}

func (m Matcher) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func personAlert(p domain.WatchlistPerson, mt domain.MatchType, value string, now time.Time) domain.Alert {
	return domain.Alert{
		WatchlistPersonID: p.ID,
		Kind:              domain.AlertKindPerson,
		MatchType:         mt,
		MatchValue:        value,
		Status:            domain.AlertPending,
		CreatedAt:         now,
	}
}

func itemAlert(it domain.WatchlistItem, mt domain.MatchType, value string, now time.Time) domain.Alert {
	return domain.Alert{
		WatchlistItemID: it.ID,
		Kind:            domain.AlertKindItem,
		MatchType:       mt,
		MatchValue:      value,
		Status:          domain.AlertPending,
		CreatedAt:       now,
	}
}

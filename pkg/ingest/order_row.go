package ingest

import (
	"time"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

// Spreadsheet column positions (A=0). Column A carries the store's own row
// code and is not mapped.
const (
	colOrderNumber = iota + 1
	colOrderDate
	colCustomerName
	colCustomerContact
	colCustomerAddress
	colCustomerLocation
	colItemDetails
	colCarats
	colMetals
	colEngravings
	colStones
	colPrice
	colPawnTicket
	colSaleDate
)

// ParseOrderRow maps one spreadsheet row onto an OrderRecord. Rows without an
// order number, order date or customer name yield false. The returned record
// has no ID; callers assign one before persisting.
func ParseOrderRow(values []any, storeCode, activityID string, now time.Time) (domain.OrderRecord, bool) {
	orderNumber, ok := cellAt(values, colOrderNumber)
	if !ok {
		return domain.OrderRecord{}, false
	}
	if _, ok := cellAt(values, colOrderDate); !ok {
		return domain.OrderRecord{}, false
	}
	customerName, ok := cellAt(values, colCustomerName)
	if !ok {
		return domain.OrderRecord{}, false
	}

	orderDate, ok := ParseDate(values[colOrderDate])
	if !ok {
		orderDate = now
	}

	rec := domain.OrderRecord{
		StoreCode:      storeCode,
		FileActivityID: activityID,
		OrderNumber:    orderNumber,
		OrderDate:      orderDate,
		CustomerName:   customerName,
		CreatedAt:      now,
	}
	rec.CustomerContact, _ = cellAt(values, colCustomerContact)
	rec.CustomerAddress, _ = cellAt(values, colCustomerAddress)
	rec.CustomerLocation, _ = cellAt(values, colCustomerLocation)
	rec.ItemDetails, _ = cellAt(values, colItemDetails)
	rec.Carats, _ = cellAt(values, colCarats)
	rec.Metals, _ = cellAt(values, colMetals)
	rec.Engravings, _ = cellAt(values, colEngravings)
	rec.Stones, _ = cellAt(values, colStones)
	rec.PawnTicket, _ = cellAt(values, colPawnTicket)
	if price, ok := cellAt(values, colPrice); ok {
		rec.Price = price
		if amount, ok := ParsePrice(price); ok {
			rec.PriceAmount = &amount
		}
	}
	if colSaleDate < len(values) {
		if sale, ok := ParseDate(values[colSaleDate]); ok {
			rec.SaleDate = &sale
		}
	}
	return rec, true
}

func cellAt(values []any, idx int) (string, bool) {
	if idx < 0 || idx >= len(values) {
		return "", false
	}
	return CellText(values[idx])
}

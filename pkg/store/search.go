package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Op is a comparison operator usable in a search predicate.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindDate
	kindNumber
)

type searchField struct {
	column string
	// folded names a lowercased copy of column written at insert time;
	// contains searches use it so case folding covers non-ASCII letters
	// on SQLite too.
	folded string
	kind   fieldKind
}

// Searchable order record fields, keyed by their API names.
var orderSearchFields = map[string]searchField{
	"orderNumber":      {column: "order_number", kind: kindText},
	"storeCode":        {column: "store_code", kind: kindText},
	"customerName":     {column: "customer_name", folded: "customer_name_fold", kind: kindText},
	"customerContact":  {column: "customer_contact", folded: "customer_contact_fold", kind: kindText},
	"customerAddress":  {column: "customer_address", folded: "customer_address_fold", kind: kindText},
	"customerLocation": {column: "customer_location", folded: "customer_location_fold", kind: kindText},
	"itemDetails":      {column: "item_details", folded: "item_details_fold", kind: kindText},
	"carats":           {column: "carats", kind: kindText},
	"metals":           {column: "metals", folded: "metals_fold", kind: kindText},
	"engravings":       {column: "engravings", folded: "engravings_fold", kind: kindText},
	"stones":           {column: "stones", folded: "stones_fold", kind: kindText},
	"pawnTicket":       {column: "pawn_ticket", kind: kindText},
	"orderDate":        {column: "order_date", kind: kindDate},
	"saleDate":         {column: "sale_date", kind: kindDate},
	"price":            {column: "price_amount", kind: kindNumber},
}

// Predicate is one typed condition on an order record field.
type Predicate struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value string `json:"value"`
}

// OrderQuery is a parameterized order record search. All predicates must hold.
type OrderQuery struct {
	Predicates []Predicate
	Limit      int
	Offset     int
}

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
	searchDateLayout   = "2006-01-02"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (q OrderQuery) apply(db *gorm.DB) (*gorm.DB, error) {
	for _, p := range q.Predicates {
		field, ok := orderSearchFields[p.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, p.Field)
		}
		var err error
		switch field.kind {
		case kindText:
			db, err = applyText(db, field, p)
		case kindDate:
			db, err = applyDate(db, field.column, p)
		case kindNumber:
			db, err = applyNumber(db, field.column, p)
		}
		if err != nil {
			return nil, err
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	db = db.Limit(limit)
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	return db, nil
}

func applyText(db *gorm.DB, field searchField, p Predicate) (*gorm.DB, error) {
	value := strings.TrimSpace(p.Value)
	switch p.Op {
	case OpEq:
		return db.Where(field.column+" = ?", value), nil
	case OpContains, "":
		pattern := "%" + likeEscaper.Replace(strings.ToLower(value)) + "%"
		if field.folded != "" {
			return db.Where(field.folded+` LIKE ? ESCAPE '\'`, pattern), nil
		}
		return db.Where("LOWER("+field.column+`) LIKE ? ESCAPE '\'`, pattern), nil
	default:
		return nil, fmt.Errorf("%w: operator %q not valid for %s", ErrInvalidQuery, p.Op, p.Field)
	}
}

func applyDate(db *gorm.DB, column string, p Predicate) (*gorm.DB, error) {
	day, err := time.ParseInLocation(searchDateLayout, strings.TrimSpace(p.Value), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %s wants a YYYY-MM-DD date", ErrInvalidQuery, p.Field)
	}
	next := day.AddDate(0, 0, 1)
	switch p.Op {
	case OpEq, "":
		return db.Where(column+" >= ? AND "+column+" < ?", day, next), nil
	case OpGt:
		return db.Where(column+" >= ?", next), nil
	case OpGte:
		return db.Where(column+" >= ?", day), nil
	case OpLt:
		return db.Where(column+" < ?", day), nil
	case OpLte:
		return db.Where(column+" < ?", next), nil
	default:
		return nil, fmt.Errorf("%w: operator %q not valid for %s", ErrInvalidQuery, p.Op, p.Field)
	}
}

var numberOps = map[Op]string{
	OpEq:  "=",
	"":    "=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

func applyNumber(db *gorm.DB, column string, p Predicate) (*gorm.DB, error) {
	sqlOp, ok := numberOps[p.Op]
	if !ok {
		return nil, fmt.Errorf("%w: operator %q not valid for %s", ErrInvalidQuery, p.Op, p.Field)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(p.Value))
	if err != nil {
		return nil, fmt.Errorf("%w: %s wants a number", ErrInvalidQuery, p.Field)
	}
	return db.Where(column+" IS NOT NULL AND "+column+" "+sqlOp+" ?", amount), nil
}

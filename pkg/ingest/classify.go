package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Document types inferred from PDF text.
const (
	DocInvoice      = "Invoice"
	DocDeliveryNote = "DeliveryNote"
	DocQuote        = "Quote"
	DocContract     = "Contract"
	DocCertificate  = "Certificate"
	DocPurchase     = "Purchase"
	DocSale         = "Sale"
	DocGeneric      = "Document"
)

type docRule struct {
	docType string
	anyOf   []string
	// when set, one of these must also appear
	andAnyOf []string
}

// Evaluated top to bottom; the first rule that matches wins.
var docRules = []docRule{
	{docType: DocInvoice, anyOf: []string{"factura", "invoice"}},
	{docType: DocDeliveryNote, anyOf: []string{"albarán", "albaran"}},
	{docType: DocQuote, anyOf: []string{"presupuesto"}},
	{docType: DocContract, anyOf: []string{"contrato"}},
	{docType: DocCertificate, anyOf: []string{"certificado"}},
	{docType: DocPurchase, anyOf: []string{"compra"}, andAnyOf: []string{"oro", "plata"}},
	{docType: DocSale, anyOf: []string{"venta"}},
}

// ClassifyDocument infers a document type from keywords in its text.
func ClassifyDocument(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range docRules {
		if !containsAny(lower, rule.anyOf) {
			continue
		}
		if len(rule.andAnyOf) > 0 && !containsAny(lower, rule.andAnyOf) {
			continue
		}
		return rule.docType
	}
	return DocGeneric
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

var (
	numberedLine = regexp.MustCompile(`^\d+[.,/-]`)
	webLine      = regexp.MustCompile(`@|www|http`)
	datedLine    = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`)
)

// ExtractTitle picks the first line that looks like a heading: between 6 and
// 99 characters, not numbered, not a date and not an email or URL.
func ExtractTitle(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n <= 5 || n >= 100 {
			continue
		}
		if numberedLine.MatchString(line) || webLine.MatchString(line) || datedLine.MatchString(line) {
			continue
		}
		return line, true
	}
	return "", false
}

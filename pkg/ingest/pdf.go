package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	MethodPdftotext = "pdftotext"
	MethodGoPDF     = "ledongthuc_pdf"
)

// PDFText is the extracted text of a document, pages joined by newlines.
type PDFText struct {
	Text   string
	Pages  int
	Method string
}

// PDFExtractor pulls plain text out of PDF files.
type PDFExtractor struct {
	// UsePdftotext prefers the poppler pdftotext binary when it is installed.
	UsePdftotext bool
}

// Extract returns the document text page by page. pdftotext is tried first
// when enabled because it copes better with complex layouts; the pure Go
// reader is the fallback.
func (e PDFExtractor) Extract(ctx context.Context, path string) (PDFText, error) {
	if e.UsePdftotext {
		if out, err := extractWithPdftotext(ctx, path); err == nil && strings.TrimSpace(out.Text) != "" {
			return out, nil
		}
	}
	return extractWithGoLib(path)
}

func extractWithPdftotext(ctx context.Context, path string) (PDFText, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return PDFText{}, fmt.Errorf("pdftotext not found: %w", err)
	}
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return PDFText{}, fmt.Errorf("pdftotext failed: %w", err)
	}
	// pdftotext separates pages with form feeds.
	pages := bytes.Split(bytes.TrimRight(output, "\f"), []byte("\f"))
	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		texts = append(texts, normalizeTextPreserveNewlines(string(page)))
	}
	return PDFText{
		Text:   strings.Join(texts, "\n"),
		Pages:  len(pages),
		Method: MethodPdftotext,
	}, nil
}

func extractWithGoLib(path string) (PDFText, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return PDFText{}, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	texts := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts = append(texts, normalizeTextPreserveNewlines(pageText(page)))
	}
	if total == 0 {
		return PDFText{}, errors.New("pdf has no pages")
	}
	return PDFText{
		Text:   strings.Join(texts, "\n"),
		Pages:  total,
		Method: MethodGoPDF,
	}, nil
}

// pageText rebuilds the page's lines from positioned text runs, falling back
// to the reader's plain text when rows cannot be computed.
func pageText(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		text, err := page.GetPlainText(nil)
		if err != nil {
			return ""
		}
		return text
	}
	var b strings.Builder
	for _, row := range rows {
		for _, word := range row.Content {
			b.WriteString(word.S)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PageCount reads the page count from the document catalog.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// normalizeTextPreserveNewlines strips invisible and control characters,
// collapses runs of blanks inside each line and trims every line, keeping the
// line structure intact.
func normalizeTextPreserveNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ToValidUTF8(text, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		var b strings.Builder
		for _, r := range line {
			switch {
			case r == '\uFEFF' || r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\u2060' || r == '\u00AD':
				continue
			case r == ' ' || r == '\t':
				b.WriteRune(' ')
			case unicode.IsControl(r):
				continue
			default:
				b.WriteRune(r)
			}
		}
		lines[i] = strings.Join(strings.Fields(b.String()), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

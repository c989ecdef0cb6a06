package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Patterns are tried in order; the first one that matches wins.
var storeCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([A-Z0-9]+)[_\s-]`),
	regexp.MustCompile(`^([A-Z0-9]{3,6})`),
}

// ExtractStoreCode returns the store code encoded at the start of a filename,
// e.g. "MAD01_pedidos.xlsx" or "MAD01 - marzo.pdf".
func ExtractStoreCode(filename string) (string, bool) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, re := range storeCodePatterns {
		if m := re.FindStringSubmatch(base); m != nil {
			return m[1], true
		}
	}
	return "", false
}

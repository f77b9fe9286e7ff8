package loader

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.BritishEnglish)

// SplitLabel splits a combined area label such as "Abbey Road - Westminster"
// or "Abbey Road, Westminster" into the area name and its district. Labels
// without a separator come back with an empty district.
func SplitLabel(label string) (name, district string) {
	for _, sep := range []string{" - ", ","} {
		if idx := strings.Index(label, sep); idx >= 0 {
			return strings.TrimSpace(label[:idx]), strings.TrimSpace(label[idx+len(sep):])
		}
	}
	return strings.TrimSpace(label), ""
}

// NormalizeName trims and title-cases an area name so the shapefile and
// spreadsheet spellings of the same ward compare equal.
func NormalizeName(s string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

package storage

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameBytes leaves room for the temp file affixes within the common
// 255-byte limit
const MaxNameBytes = 255 - len(PartPrefix) - len(PartSuffix)

const fallbackName = "unnamed"

// SanitizeFilename turns a service-supplied name into a single safe path
// element. Reserved characters and control characters are dropped, trailing
// dots and spaces are trimmed, and long names are shortened keeping their
// extension. A name shaped like a temp file gets its leading dot replaced
// with "_". Distinct inputs may map to the same output.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == utf8.RuneError:
		case unicode.IsControl(r):
		case strings.ContainsRune(`<>:"/\|?*`, r):
		default:
			b.WriteRune(r)
		}
	}

	clean := strings.TrimRight(strings.TrimSpace(b.String()), ". ")
	if clean == "" || clean == "." || clean == ".." {
		return fallbackName
	}
	clean = truncateName(clean, MaxNameBytes)
	if IsPartName(clean) {
		clean = "_" + clean[1:]
	}
	return clean
}

// truncateName cuts name to at most max bytes on a rune boundary,
// preserving a short extension when there is one.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}

	ext := filepath.Ext(name)
	if len(ext) > 16 || len(ext) >= max {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)

	limit := max - len(ext)
	for limit > 0 && !utf8.RuneStart(base[limit]) {
		limit--
	}
	base = strings.TrimRight(base[:limit], ". ")
	if base == "" {
		base = fallbackName
	}
	return base + ext
}

package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// maxSegmentLength caps a single path segment so deeply tagged files cannot
// overflow filesystem limits.
const maxSegmentLength = 200

var (
	forbiddenSegmentChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	segmentCollapse       = regexp.MustCompile(`[\s_]+`)
	diacriticFolder       = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SanitizePathSegment produces a single library path segment from tag text.
// Diacritics fold to their base letters, forbidden characters become
// underscores, runs of whitespace and underscores collapse to one space, and
// the result is trimmed and capped at 200 characters. Empty input (or input
// that sanitizes away entirely) yields "Unknown".
func SanitizePathSegment(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "Unknown"
	}
	if folded, _, err := transform.String(diacriticFolder, text); err == nil {
		text = folded
	}
	text = forbiddenSegmentChars.ReplaceAllString(text, "_")
	text = segmentCollapse.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if chars := []rune(text); len(chars) > maxSegmentLength {
		text = strings.TrimSpace(string(chars[:maxSegmentLength]))
	}
	if text == "" || text == "." || text == ".." {
		return "Unknown"
	}
	return text
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

package media

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dhowden/tag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Metadata holds the tags the organizer needs to place a track.
type Metadata struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Year        int
	Track       int
	Disc        int
}

var trackPrefix = regexp.MustCompile(`^(\d{1,3})[\s._-]+`)

// ReadMetadata extracts tags from an audio file. Files without readable
// tags fall back to filename parsing so callers always get a usable
// title; the error return covers I/O problems only.
func ReadMetadata(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer file.Close()

	parsed, err := tag.ReadFrom(file)
	if err != nil {
		return metadataFromFilename(path), nil
	}

	meta := Metadata{
		Title:       strings.TrimSpace(parsed.Title()),
		Artist:      strings.TrimSpace(parsed.Artist()),
		AlbumArtist: strings.TrimSpace(parsed.AlbumArtist()),
		Album:       strings.TrimSpace(parsed.Album()),
		Genre:       strings.TrimSpace(parsed.Genre()),
		Year:        parsed.Year(),
	}
	meta.Track, _ = parsed.Track()
	meta.Disc, _ = parsed.Disc()

	if meta.Title == "" {
		fallback := metadataFromFilename(path)
		meta.Title = fallback.Title
		if meta.Track == 0 {
			meta.Track = fallback.Track
		}
		if meta.Artist == "" {
			meta.Artist = fallback.Artist
		}
	}
	if meta.AlbumArtist == "" {
		meta.AlbumArtist = meta.Artist
	}
	return meta, nil
}

// metadataFromFilename recovers what it can from the file name. A
// leading track number becomes Track, and an "Artist - Title" stem
// splits into both fields.
func metadataFromFilename(path string) Metadata {
	var meta Metadata

	stem := filepath.Base(path)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	if match := trackPrefix.FindStringSubmatch(stem); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			meta.Track = n
			stem = strings.TrimSpace(stem[len(match[0]):])
		}
	}

	if parts := strings.SplitN(stem, " - ", 2); len(parts) == 2 {
		artist := strings.TrimSpace(parts[0])
		title := strings.TrimSpace(parts[1])
		if artist != "" && title != "" {
			meta.Artist = artist
			meta.AlbumArtist = artist
			meta.Title = cleanTitle(title)
			return meta
		}
	}

	meta.Title = cleanTitle(stem)
	return meta
}

// DeriveTitle turns a file path into a display title: the extension is
// dropped, separator runs collapse to single spaces, and the result is
// title-cased.
func DeriveTitle(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return cleanTitle(base)
}

func cleanTitle(fragment string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range fragment {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Unknown Title"
	}
	return cases.Title(language.Und).String(title)
}

package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/textutil"
)

// ArtistSummary aggregates one artist's presence in the library.
type ArtistSummary struct {
	Name   string
	Albums int
	Tracks int
}

// AlbumSummary aggregates one album under an artist.
type AlbumSummary struct {
	Artist string
	Name   string
	Year   int
	Tracks int
}

// Stats summarizes the whole index.
type Stats struct {
	Artists    int
	Albums     int
	Tracks     int
	TotalBytes int64
}

const (
	defaultSearchLimit = 50
	searchScanCap      = 200
)

// Artists lists every artist with album and track counts, ordered by name.
func (x *Index) Artists(ctx context.Context) ([]ArtistSummary, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT artist, COUNT(DISTINCT album), COUNT(1)
         FROM tracks GROUP BY artist ORDER BY artist COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	var artists []ArtistSummary
	for rows.Next() {
		var summary ArtistSummary
		if err := rows.Scan(&summary.Name, &summary.Albums, &summary.Tracks); err != nil {
			return nil, err
		}
		artists = append(artists, summary)
	}
	return artists, rows.Err()
}

// Albums lists one artist's albums ordered by name.
func (x *Index) Albums(ctx context.Context, artist string) ([]AlbumSummary, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT album, MAX(year), COUNT(1)
         FROM tracks WHERE artist = ? GROUP BY album ORDER BY album COLLATE NOCASE`,
		artist)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	var albums []AlbumSummary
	for rows.Next() {
		summary := AlbumSummary{Artist: artist}
		if err := rows.Scan(&summary.Name, &summary.Year, &summary.Tracks); err != nil {
			return nil, err
		}
		albums = append(albums, summary)
	}
	return albums, rows.Err()
}

// Tracks lists one album's tracks in disc and track order.
func (x *Index) Tracks(ctx context.Context, artist, album string) ([]*Track, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
         WHERE artist = ? AND album = ?
         ORDER BY disc_num, track_num, title COLLATE NOCASE`,
		artist, album)
	if err != nil {
		return nil, fmt.Errorf("list album tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// Recent returns the most recently organized tracks, newest first.
func (x *Index) Recent(ctx context.Context, limit int) ([]*Track, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks ORDER BY organized_at DESC, id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list recent tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// Search matches each query token against artist, album, and title, then
// ranks the candidates by fingerprint similarity so multi-word queries
// surface the closest tracks first. A query whose tokens are all too short
// to index falls back to one literal substring match.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]*Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	tokens := textutil.Tokenize(query)
	if len(tokens) == 0 {
		tokens = []string{strings.ToLower(query)}
	}

	clauses := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*3+1)
	for _, token := range tokens {
		pattern := "%" + escapeLike(token) + "%"
		clauses = append(clauses, `(artist LIKE ? ESCAPE '\' OR album LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	args = append(args, searchScanCap)

	rows, err := x.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
         WHERE `+strings.Join(clauses, " OR ")+`
         ORDER BY artist COLLATE NOCASE, album COLLATE NOCASE, disc_num, track_num
         LIMIT ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	defer rows.Close()

	candidates, err := collectTracks(rows)
	if err != nil {
		return nil, err
	}
	rankBySimilarity(query, candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Stats aggregates index-wide counts and the total organized size.
func (x *Index) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := x.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT artist),
                COUNT(DISTINCT artist || '/' || album),
                COUNT(1),
                COALESCE(SUM(size_bytes), 0)
         FROM tracks`)
	if err := row.Scan(&stats.Artists, &stats.Albums, &stats.Tracks, &stats.TotalBytes); err != nil {
		return Stats{}, fmt.Errorf("index stats: %w", err)
	}
	return stats, nil
}

func collectTracks(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
},
) ([]*Track, error) {
	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// rankBySimilarity reorders candidates by cosine similarity against the query.
// The sort is stable so SQL order breaks ties, and queries whose tokens are
// all too short to fingerprint leave the order untouched.
func rankBySimilarity(query string, candidates []*Track) {
	queryPrint := textutil.NewFingerprint(query)
	if queryPrint == nil || len(candidates) < 2 {
		return
	}
	scores := make(map[*Track]float64, len(candidates))
	for _, track := range candidates {
		combined := track.Artist + " " + track.Album + " " + track.Title
		scores[track] = textutil.CosineSimilarity(queryPrint, textutil.NewFingerprint(combined))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[candidates[i]] > scores[candidates[j]]
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

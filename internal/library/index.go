package library

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; the index is derived state, so users delete the database and let
// the organizer repopulate it.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Track is one organized file in the library tree.
type Track struct {
	ID          int64
	Path        string
	Artist      string
	Album       string
	Title       string
	TrackNum    int
	DiscNum     int
	Genre       string
	Year        int
	SourcePath  string
	JobID       string
	SizeBytes   int64
	OrganizedAt time.Time
}

// Index manages the SQLite-backed track index.
type Index struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the library index database.
func Open(cfg *config.Config) (*Index, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.LibraryIndexFile()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	index := &Index{db: db, path: dbPath}
	if err := index.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return index, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	if x == nil || x.db == nil {
		return nil
	}
	return x.db.Close()
}

// Path returns the location of the index database.
func (x *Index) Path() string {
	if x == nil {
		return ""
	}
	return x.path
}

func (x *Index) initSchema(ctx context.Context) error {
	var tableExists int
	err := x.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return x.createSchema(ctx)
	}

	var version int
	err = x.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, x.path)
	}
	return nil
}

func (x *Index) createSchema(ctx context.Context) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (x *Index) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = x.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// RecordTrack upserts a track keyed by its library path. Re-organizing a file
// to the same target replaces the previous row.
func (x *Index) RecordTrack(ctx context.Context, track *Track) error {
	if track == nil {
		return errors.New("track is nil")
	}
	if strings.TrimSpace(track.Path) == "" {
		return errors.New("track path is empty")
	}
	if track.OrganizedAt.IsZero() {
		track.OrganizedAt = time.Now().UTC()
	}

	_, err := x.execWithRetry(
		ctx,
		`INSERT INTO tracks (
            path, artist, album, title, track_num, disc_num,
            genre, year, source_path, job_id, size_bytes, organized_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            artist = excluded.artist,
            album = excluded.album,
            title = excluded.title,
            track_num = excluded.track_num,
            disc_num = excluded.disc_num,
            genre = excluded.genre,
            year = excluded.year,
            source_path = excluded.source_path,
            job_id = excluded.job_id,
            size_bytes = excluded.size_bytes,
            organized_at = excluded.organized_at`,
		track.Path,
		track.Artist,
		track.Album,
		track.Title,
		track.TrackNum,
		track.DiscNum,
		track.Genre,
		track.Year,
		track.SourcePath,
		track.JobID,
		track.SizeBytes,
		track.OrganizedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record track: %w", err)
	}

	row := x.db.QueryRowContext(ctx, `SELECT id FROM tracks WHERE path = ?`, track.Path)
	if err := row.Scan(&track.ID); err != nil {
		return fmt.Errorf("read track id: %w", err)
	}
	return nil
}

// TrackByPath fetches a track by its library path. Returns nil when absent.
func (x *Index) TrackByPath(ctx context.Context, path string) (*Track, error) {
	row := x.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE path = ?`, path)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// RemoveTrack deletes the row for a library path, reporting whether one existed.
func (x *Index) RemoveTrack(ctx context.Context, path string) (bool, error) {
	res, err := x.execWithRetry(ctx, `DELETE FROM tracks WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("remove track: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const trackColumns = "id, path, artist, album, title, track_num, disc_num, genre, year, source_path, job_id, size_bytes, organized_at"

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		track        Track
		organizedRaw string
	)
	if err := scanner.Scan(
		&track.ID,
		&track.Path,
		&track.Artist,
		&track.Album,
		&track.Title,
		&track.TrackNum,
		&track.DiscNum,
		&track.Genre,
		&track.Year,
		&track.SourcePath,
		&track.JobID,
		&track.SizeBytes,
		&organizedRaw,
	); err != nil {
		return nil, err
	}
	if organized, err := time.Parse(time.RFC3339Nano, organizedRaw); err == nil {
		track.OrganizedAt = organized
	}
	return &track, nil
}

package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/fileutil"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/library"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/media"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/textutil"
)

// Organizer moves produced files into the Artist/Album library layout and
// keeps the search index in step with the tree.
type Organizer struct {
	cfg    *config.Config
	index  *library.Index
	logger *slog.Logger
}

// New builds an organizer. index may be nil when no search index is wanted.
func New(cfg *config.Config, index *library.Index, logger *slog.Logger) *Organizer {
	return &Organizer{
		cfg:    cfg,
		index:  index,
		logger: logging.NewComponentLogger(logger, "organizer"),
	}
}

// Request carries one produced file into the library. SourcePath is the
// original inbox file the audio came from; its tags and folder art fill gaps
// the splitter's output leaves. JobID is recorded in the index.
type Request struct {
	ProducedPath string
	SourcePath   string
	JobID        string
}

// Placement reports where a produced file landed.
type Placement struct {
	FinalPath string
	Artist    string
	Album     string
	Title     string
	TrackNum  int
}

// Organize moves the produced file into library/Artist/Album/NN - Title.ext,
// preserves cover art and the artist info file, and records the track in the
// index. Name collisions get " (n)" suffixes instead of overwriting.
func (o *Organizer) Organize(ctx context.Context, req Request) (*Placement, error) {
	logger := logging.WithContext(ctx, o.logger)
	startedAt := time.Now()

	produced := strings.TrimSpace(req.ProducedPath)
	if produced == "" {
		return nil, services.Wrap(services.ErrValidation, "organizing", "resolve input", "No produced file to organize", nil)
	}
	info, err := os.Stat(produced)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "organizing", "stat input", fmt.Sprintf("Produced file %q is not readable", produced), err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "organizing", "stat input", fmt.Sprintf("Produced path %q is a directory", produced), nil)
	}

	libraryDir := strings.TrimSpace(o.cfg.Paths.LibraryDir)
	if libraryDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "organizing", "resolve library dir", "Library directory not configured; set paths.library_dir", nil)
	}

	meta := o.readTags(logger, produced, req.SourcePath)
	placement := placementFor(meta, produced)

	albumDir := filepath.Join(libraryDir, placement.Artist, placement.Album)
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "organizing", "ensure album dir", "Failed to create library album directory", err)
	}

	name := placement.Title
	if placement.TrackNum > 0 {
		name = fmt.Sprintf("%02d - %s", placement.TrackNum, placement.Title)
	}
	target, err := nextAvailablePath(albumDir, name, filepath.Ext(produced))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "organizing", "allocate target", "Unable to allocate a free library filename", err)
	}
	if err := moveFile(logger, produced, target); err != nil {
		return nil, err
	}
	placement.FinalPath = target

	if o.cfg.Processing.PreserveCoverArt {
		o.preserveCoverArt(logger, strings.TrimSpace(req.SourcePath), albumDir)
	}
	o.writeArtistInfo(logger, filepath.Dir(albumDir))

	if o.index != nil {
		track := &library.Track{
			Path:       target,
			Artist:     placement.Artist,
			Album:      placement.Album,
			Title:      placement.Title,
			TrackNum:   meta.Track,
			DiscNum:    meta.Disc,
			Genre:      meta.Genre,
			Year:       meta.Year,
			SourcePath: strings.TrimSpace(req.SourcePath),
			JobID:      strings.TrimSpace(req.JobID),
			SizeBytes:  info.Size(),
		}
		if err := o.index.RecordTrack(ctx, track); err != nil {
			logger.Warn("failed to record track in library index",
				logging.Error(err),
				logging.String(logging.FieldEventType, "library_index_record_failed"),
				logging.String(logging.FieldErrorHint, "check the library index database"),
				logging.String(logging.FieldImpact, "browse and search omit this track until it is re-organized"),
			)
		}
	}

	logger.Info("organized into library",
		logging.String("final_file", target),
		logging.String("artist", placement.Artist),
		logging.String("album", placement.Album),
		logging.Duration("elapsed", time.Since(startedAt)),
	)
	return &placement, nil
}

// readTags reads the produced file's tags and fills empty fields from the
// original source, which usually carries richer tags than splitter output.
func (o *Organizer) readTags(logger *slog.Logger, producedPath, sourcePath string) media.Metadata {
	meta, err := media.ReadMetadata(producedPath)
	if err != nil {
		logger.Debug("produced file tags unreadable", logging.String("path", producedPath), logging.Error(err))
	}

	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" || sourcePath == producedPath {
		return meta
	}
	source, err := media.ReadMetadata(sourcePath)
	if err != nil {
		return meta
	}
	if meta.Artist == "" {
		meta.Artist = source.Artist
	}
	if meta.AlbumArtist == "" {
		meta.AlbumArtist = source.AlbumArtist
	}
	if meta.Album == "" {
		meta.Album = source.Album
	}
	if meta.Genre == "" {
		meta.Genre = source.Genre
	}
	if meta.Year == 0 {
		meta.Year = source.Year
	}
	if meta.Track == 0 {
		meta.Track = source.Track
	}
	if meta.Disc == 0 {
		meta.Disc = source.Disc
	}
	return meta
}

// placementFor derives sanitized library path segments from tags. The album
// artist wins over the track artist so collaborations stay under one tree.
func placementFor(meta media.Metadata, producedPath string) Placement {
	artist := strings.TrimSpace(meta.AlbumArtist)
	if artist == "" {
		artist = strings.TrimSpace(meta.Artist)
	}
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := strings.TrimSpace(meta.Album)
	if album == "" {
		album = "Unknown Album"
	}
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = media.DeriveTitle(producedPath)
	}
	return Placement{
		Artist:   textutil.SanitizePathSegment(artist),
		Album:    textutil.SanitizePathSegment(album),
		Title:    textutil.SanitizePathSegment(title),
		TrackNum: meta.Track,
	}
}

// nextAvailablePath returns dir/name+ext, appending " (n)" counters until the
// name is free.
func nextAvailablePath(dir, name, ext string) (string, error) {
	const maxAttempts = 10000
	candidate := filepath.Join(dir, name+ext)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", name, attempt, ext))
	}
	return "", fmt.Errorf("exhausted filename slots for %s in %s", name, dir)
}

// moveFile renames source to target, falling back to a verified copy plus
// delete for cross-device moves.
func moveFile(logger *slog.Logger, source, target string) error {
	renameErr := os.Rename(source, target)
	if renameErr == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if copyErr := fileutil.CopyFileVerified(source, target); copyErr != nil {
			return services.Wrap(services.ErrTransient, "organizing", "copy file", "Failed to copy file across filesystems", copyErr)
		}
		if err := os.Remove(source); err != nil {
			logger.Warn("failed to remove source after cross-device copy; duplicate remains",
				logging.Error(err),
				logging.String(logging.FieldEventType, "organize_source_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "delete the leftover file manually"),
				logging.String(logging.FieldImpact, "duplicate file consumes disk space"),
			)
		}
		return nil
	}

	return services.Wrap(services.ErrTransient, "organizing", "move file", "Failed to move file", renameErr)
}

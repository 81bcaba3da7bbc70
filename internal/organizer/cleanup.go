package organizer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

// CleanupSource disposes of the original inbox file after successful
// processing. Archive mode moves it under the archive directory mirroring
// its inbox-relative layout, delete removes it, none leaves it in place. A
// source that already vanished counts as cleaned.
func (o *Organizer) CleanupSource(ctx context.Context, sourcePath string) error {
	logger := logging.WithContext(ctx, o.logger)
	source := strings.TrimSpace(sourcePath)
	if source == "" {
		return nil
	}
	mode := o.cfg.Processing.CleanupMode
	if mode == config.CleanupNone {
		return nil
	}

	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrTransient, "organizing", "stat source", "Failed to inspect source file for cleanup", err)
	}

	switch mode {
	case config.CleanupDelete:
		if err := os.Remove(source); err != nil {
			return services.Wrap(services.ErrTransient, "organizing", "delete source", "Failed to delete processed source", err)
		}
		logger.Info("deleted processed source", logging.String("source", source))
	case config.CleanupArchive:
		target, err := o.archiveTarget(source)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "organizing", "ensure archive dir", "Failed to create archive directory", err)
		}
		if err := moveFile(logger, source, target); err != nil {
			return err
		}
		logger.Info("archived processed source",
			logging.String("source", source),
			logging.String("archive", target),
		)
	}

	if o.cfg.Processing.CleanupEmptyDirs {
		o.pruneEmptyParents(logger, filepath.Dir(source))
	}
	return nil
}

// archiveTarget picks a free destination under the archive directory,
// keeping the source's inbox-relative path so album folders survive the
// move.
func (o *Organizer) archiveTarget(source string) (string, error) {
	archiveDir := strings.TrimSpace(o.cfg.Paths.ArchiveDir)
	if archiveDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organizing", "resolve archive dir", "Archive directory not configured; set paths.archive_dir", nil)
	}

	name := filepath.Base(source)
	if rel, err := filepath.Rel(o.cfg.Paths.InboxDir, source); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		name = rel
	}

	target := filepath.Join(archiveDir, name)
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)
	allocated, err := nextAvailablePath(filepath.Dir(target), stem, ext)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "allocate archive name", "Unable to allocate a free archive filename", err)
	}
	return allocated, nil
}

// MoveToError routes a failed source into the error directory so operators
// can retry or discard it by hand. The file keeps its name, with " (n)"
// suffixes on collision; the failure reason lives in queue state and is only
// logged here. Returns the destination, or "" when the source was already
// gone.
func (o *Organizer) MoveToError(ctx context.Context, sourcePath, reason string) (string, error) {
	logger := logging.WithContext(ctx, o.logger)
	source := strings.TrimSpace(sourcePath)
	if source == "" {
		return "", services.Wrap(services.ErrValidation, "organizing", "move to error dir", "No source file to move", nil)
	}
	errorDir := strings.TrimSpace(o.cfg.Paths.ErrorDir)
	if errorDir == "" {
		return "", services.Wrap(services.ErrConfiguration, "organizing", "resolve error dir", "Error directory not configured; set paths.error_dir", nil)
	}

	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("failed source already gone", logging.String("source", source))
			return "", nil
		}
		return "", services.Wrap(services.ErrTransient, "organizing", "stat source", "Failed to inspect source file", err)
	}
	if err := os.MkdirAll(errorDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "organizing", "ensure error dir", "Failed to create error directory", err)
	}

	ext := filepath.Ext(source)
	stem := strings.TrimSuffix(filepath.Base(source), ext)
	target, err := nextAvailablePath(errorDir, stem, ext)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "organizing", "allocate error name", "Unable to allocate a free error filename", err)
	}
	if err := moveFile(logger, source, target); err != nil {
		return "", err
	}

	if o.cfg.Processing.CleanupEmptyDirs {
		o.pruneEmptyParents(logger, filepath.Dir(source))
	}

	logger.Info("moved failed source to error directory",
		logging.String("source", source),
		logging.String("target", target),
		logging.String("reason", strings.TrimSpace(reason)),
	)
	return target, nil
}

// pruneEmptyParents removes now-empty directories between dir and the inbox
// root after a source file leaves the tree. The root itself always stays.
func (o *Organizer) pruneEmptyParents(logger *slog.Logger, dir string) {
	root := filepath.Clean(strings.TrimSpace(o.cfg.Paths.InboxDir))
	if root == "" || root == "." {
		return
	}
	for {
		dir = filepath.Clean(dir)
		if dir == root {
			return
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			logger.Debug("could not remove empty inbox directory", logging.String("dir", dir), logging.Error(err))
			return
		}
		logger.Debug("removed empty inbox directory", logging.String("dir", dir))
		dir = filepath.Dir(dir)
	}
}

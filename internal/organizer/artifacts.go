package organizer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/fileutil"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/media"
)

// preserveCoverArt carries album art from the source location into the album
// directory. Embedded pictures win over folder images, and an album that
// already has a cover is left alone. Best effort: art never fails the move.
func (o *Organizer) preserveCoverArt(logger *slog.Logger, sourcePath, albumDir string) {
	if sourcePath == "" {
		return
	}
	if _, ok := media.FindFolderCover(albumDir); ok {
		return
	}

	if data, mimeType, ok := media.EmbeddedCover(sourcePath); ok {
		target := filepath.Join(albumDir, "cover"+coverExtension(mimeType))
		if err := os.WriteFile(target, data, 0o644); err != nil {
			logger.Warn("failed to write embedded cover art", logging.String("path", target), logging.Error(err))
			return
		}
		logger.Debug("extracted embedded cover art", logging.String("path", target))
		return
	}

	coverPath, ok := media.FindFolderCover(filepath.Dir(sourcePath))
	if !ok {
		return
	}
	target := filepath.Join(albumDir, "cover"+strings.ToLower(filepath.Ext(coverPath)))
	if err := fileutil.CopyFile(coverPath, target); err != nil {
		logger.Warn("failed to copy folder cover art", logging.String("path", coverPath), logging.Error(err))
		return
	}
	logger.Debug("copied folder cover art", logging.String("path", target))
}

func coverExtension(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "png"):
		return ".png"
	case strings.Contains(mimeType, "gif"):
		return ".gif"
	case strings.Contains(mimeType, "bmp"):
		return ".bmp"
	default:
		return ".jpg"
	}
}

const artistInfoName = "artist.nfo"

// writeArtistInfo drops the artist.nfo stub media servers expect beside the
// album directories. An existing file is never overwritten.
func (o *Organizer) writeArtistInfo(logger *slog.Logger, artistDir string) {
	path := filepath.Join(artistDir, artistInfoName)
	if _, err := os.Stat(path); err == nil {
		return
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(filepath.Base(artistDir))); err != nil {
		return
	}
	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<artist>
    <name>%s</name>
    <musicbrainzartistid></musicbrainzartistid>
    <biography></biography>
</artist>
`, escaped.String())

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logger.Warn("failed to write artist info file", logging.String("path", path), logging.Error(err))
	}
}

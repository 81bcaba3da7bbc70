package media

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"
)

var coverNames = []string{
	"cover", "folder", "album", "albumart", "albumartsmall",
	"front", "artwork", "art", "thumb", "thumbnail",
}

var coverExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// EmbeddedCover returns the picture embedded in an audio file's tags and
// its MIME type. ok is false when the file has no readable picture.
func EmbeddedCover(path string) (data []byte, mimeType string, ok bool) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", false
	}
	defer file.Close()

	parsed, err := tag.ReadFrom(file)
	if err != nil {
		return nil, "", false
	}
	picture := parsed.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return nil, "", false
	}
	return picture.Data, picture.MIMEType, true
}

// FindFolderCover locates a cover image in dir. Conventional names
// (cover.jpg, folder.png, ...) win over arbitrary images; among
// arbitrary images the lexically first is chosen.
func FindFolderCover(dir string) (string, bool) {
	for _, name := range coverNames {
		for _, ext := range coverExtensions {
			candidate := filepath.Join(dir, name+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range coverExtensions {
			if ext == allowed {
				images = append(images, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	if len(images) == 0 {
		return "", false
	}
	sort.Strings(images)
	return images[0], true
}

// FindCover resolves cover art for an audio file: embedded tags first,
// then images beside the file. The returned path is empty when the art
// came from tags.
func FindCover(audioPath string) (data []byte, sourcePath string, ok bool) {
	if data, _, ok := EmbeddedCover(audioPath); ok {
		return data, "", true
	}
	coverPath, found := FindFolderCover(filepath.Dir(audioPath))
	if !found {
		return nil, "", false
	}
	data, err := os.ReadFile(coverPath)
	if err != nil {
		return nil, "", false
	}
	return data, coverPath, true
}

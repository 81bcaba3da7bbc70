package media

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// IsAudioFile reports whether path carries one of the accepted dotted
// extensions. Matching is case-insensitive.
func IsAudioFile(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return slices.Contains(extensions, ext)
}

// ListAudioFiles walks root and returns every regular file with an
// accepted extension, in lexical path order. A missing root returns the
// walk error; an empty directory returns an empty slice.
func ListAudioFiles(root string, extensions []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if IsAudioFile(path, extensions) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

package watchfolder

import (
	"path/filepath"
	"strings"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/stability"
)

// Sink receives normalized inbox change reports. *stability.Tracker is
// the production implementation; tests substitute recorders.
type Sink interface {
	RecordChange(path string, isDir bool)
	Forget(path string)
}

var _ Sink = (*stability.Tracker)(nil)

// candidateFor maps an event path to the top-level inbox entry it
// belongs to. Activity anywhere inside an album directory refreshes the
// directory itself. Events on the root, outside it, or on hidden
// entries yield no candidate.
func candidateFor(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	top := rel
	if idx := strings.IndexByte(rel, filepath.Separator); idx >= 0 {
		top = rel[:idx]
	}
	if top == "" || strings.HasPrefix(top, ".") {
		return "", false
	}
	return filepath.Join(root, top), true
}

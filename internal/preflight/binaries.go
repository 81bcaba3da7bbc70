package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

// Binary reports the availability of one external tool.
type Binary struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves every external tool the configuration calls for.
// The splitter is always required; the organizer command is only checked
// when an external organizer is configured, since the built-in organizer
// needs no binary.
func CheckBinaries(cfg *config.Config) []Binary {
	if cfg == nil {
		return nil
	}

	requirements := []Binary{
		{
			Name:        "Splitter",
			Command:     cfg.SplitterBinary(),
			Description: "Required for stem separation",
		},
	}
	if strings.TrimSpace(cfg.Processing.OrganizerCommand) != "" {
		requirements = append(requirements, Binary{
			Name:        "Organizer",
			Command:     cfg.OrganizerBinary(),
			Description: "Required for the external organizer step",
		})
	}

	results := make([]Binary, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		if req.Command == "" {
			req.Detail = "command not configured"
			results = append(results, req)
			continue
		}
		if _, err := exec.LookPath(req.Command); err != nil {
			req.Detail = fmt.Sprintf("binary %q not found", req.Command)
			results = append(results, req)
			continue
		}
		req.Available = true
		results = append(results, req)
	}
	return results
}

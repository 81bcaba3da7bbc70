package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON emits v as two-space indented JSON on the command's stdout so
// --json output stays stable for scripts.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

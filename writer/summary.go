package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteSummary persists the run summary as indented JSON for the
// QC-reporting collaborator.
func WriteSummary(path string, summary any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

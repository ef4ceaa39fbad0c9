package transfer

import (
	"os"
	"path/filepath"

	"github.com/BioHazard786/peerbeam/internal/utils"
)

// WriteFile stores a reassembled file under outputDir, keeping the original
// name and appending (1), (2), ... on collision. Returns the path written.
func WriteFile(f *File, outputDir string) (string, error) {
	name := filepath.Base(f.Name)
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return "", NewFileError("create directory", outputDir, err)
		}
		name = filepath.Join(outputDir, name)
	}
	path := utils.GetUniqueFilename(name)

	if err := os.WriteFile(path, f.Data, 0644); err != nil {
		return "", NewFileError("write file", f.Name, err)
	}
	return path, nil
}

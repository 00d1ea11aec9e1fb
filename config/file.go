package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var fileExtensions = []string{".json", ".yaml", ".yml"}

// FileSource reads "<Dir>/<name>.json", ".yaml" or ".yml", in that order.
type FileSource struct {
	Dir string
}

func (f FileSource) Configuration(_ context.Context, name string) ([]byte, error) {
	for _, ext := range fileExtensions {
		file := filepath.Join(f.Dir, name+ext)
		data, err := os.ReadFile(file)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}
	return nil, fmt.Errorf("%s in %s: %w", name, f.Dir, ErrNotFound)
}

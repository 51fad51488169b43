package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/genusdiff/internal/utils"
)

// Loader reads one tabular file format.
type Loader interface {
	CanLoad(path string) bool
	Load(path string) (*Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported table format")

// Load selects a loader based on the file extension.
func Load(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path)
		}
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
}

// Save writes the table as TSV using an atomic temp-file rename.
func Save(t *Table, path string) error {
	return utils.SafeWriteFunc(path, t.WriteTSV)
}

func init() {
	Register(delimitedLoader{})
	Register(xlsxLoader{})
}

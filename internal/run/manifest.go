// Package run records what a pipeline run read, wrote and was configured with.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/genusdiff/internal/utils"
)

const manifestFileName = "run.json"

// File is one input or output of a run.
type File struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Rows  int    `json:"rows,omitempty"`
	Bytes int64  `json:"bytes"`
}

// Manifest is persisted as run.json next to the outputs.
type Manifest struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Inputs     []File            `json:"inputs"`
	Outputs    []File            `json:"outputs"`
	Settings   map[string]string `json:"settings"`
	Error      string            `json:"error,omitempty"`

	// Not serialized: directory run.json is written to.
	rootDir string `json:"-"`
}

// New starts a manifest for outputs written under dir.
func New(dir string) *Manifest {
	return &Manifest{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Settings:  map[string]string{},
		rootDir:   dir,
	}
}

// Load reads run.json from dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, manifestFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.rootDir = dir
	return &m, nil
}

// Path returns where Save writes the manifest.
func (m *Manifest) Path() string { return filepath.Join(m.rootDir, manifestFileName) }

// AddInput records a file that was read.
func (m *Manifest) AddInput(path string, rows int) {
	m.Inputs = append(m.Inputs, describe(path, rows))
}

// AddOutput records a file that was written. Writing the same path twice
// keeps only the latest entry.
func (m *Manifest) AddOutput(path string, rows int) {
	f := describe(path, rows)
	for i := range m.Outputs {
		if m.Outputs[i].Path == f.Path {
			m.Outputs[i] = f
			return
		}
	}
	m.Outputs = append(m.Outputs, f)
}

// SetAll copies settings into the manifest.
func (m *Manifest) SetAll(settings map[string]string) {
	for k, v := range settings {
		m.Settings[k] = v
	}
}

// OutputNames lists recorded output names in sorted order.
func (m *Manifest) OutputNames() []string {
	out := make([]string, 0, len(m.Outputs))
	for _, f := range m.Outputs {
		out = append(out, f.Name)
	}
	sort.Strings(out)
	return out
}

// Finish stamps the end time and the failure, if any.
func (m *Manifest) Finish(err error) {
	m.FinishedAt = time.Now()
	if err != nil {
		m.Error = err.Error()
	}
}

// Duration is the wall time between start and finish.
func (m *Manifest) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// Save writes run.json using atomic write.
func (m *Manifest) Save() error {
	if m.rootDir == "" {
		return errors.New("manifest directory not set")
	}
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(m.Path(), data)
}

func describe(path string, rows int) File {
	f := File{Name: filepath.Base(path), Path: path, Rows: rows}
	if info, err := os.Stat(path); err == nil {
		f.Bytes = info.Size()
	}
	return f
}

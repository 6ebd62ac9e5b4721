package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Drafts is the on-disk snapshot of a workspace's draft list, so that
// successive CLI invocations edit the same requests.
type Drafts struct {
	Requests        []Request `yaml:"requests"`
	ActiveRequestID string    `yaml:"activeRequestId,omitempty"`
	// Collections is the last known collection list, kept for offline use.
	Collections []Collection `yaml:"collections,omitempty"`
	// NextID is the counter behind request<N> ids; ids are never reused.
	NextID int `yaml:"nextId"`
}

// GetDraftsPath returns the snapshot file of a workspace.
func GetDraftsPath(baseDir, workspaceID string) string {
	return filepath.Join(baseDir, "workspaces", safeName(workspaceID), "drafts.yaml")
}

// SaveDrafts writes d to filePath, creating parent directories.
func SaveDrafts(d Drafts, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal drafts: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace drafts: %w", err)
	}
	return nil
}

// LoadDrafts reads a snapshot. A missing file yields an empty snapshot.
func LoadDrafts(filePath string) (Drafts, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return Drafts{}, nil
	}
	if err != nil {
		return Drafts{}, fmt.Errorf("failed to read file: %w", err)
	}

	var d Drafts
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Drafts{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i := range d.Requests {
		if err := d.Requests[i].Validate(); err != nil {
			return Drafts{}, fmt.Errorf("invalid draft in %s: %w", filePath, err)
		}
	}
	return d, nil
}

func safeName(id string) string {
	if id == "" {
		return "default"
	}
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '.', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}

package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"voxd/internal/common/fsutil"
)

const registryFile = "voices.json"

// entry is the persisted form of a custom voice in voices.json.
type entry struct {
	Path      string `json:"path"`
	Text      string `json:"text"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func (r *Resolver) registryPath() string {
	return filepath.Join(r.voicesDir, registryFile)
}

// loadCustom reads voices.json. A missing file is an empty registry.
func (r *Resolver) loadCustom() (map[string]entry, error) {
	b, err := os.ReadFile(r.registryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice registry: %w", err)
	}
	m := map[string]entry{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse voice registry: %w", err)
	}
	return m, nil
}

// saveCustom rewrites voices.json atomically. Caller holds r.mu.
func (r *Resolver) saveCustom(m map[string]entry) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(r.registryPath(), b, 0o644); err != nil {
		return fmt.Errorf("write voice registry: %w", err)
	}
	return nil
}

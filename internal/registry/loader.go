// Package registry discovers preset voices on disk.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voxd/internal/common/fsutil"
)

// Preset is a voice shipped with the server: a reference recording plus
// its transcript.
type Preset struct {
	ID         string
	Name       string
	Path       string
	Transcript string
}

// Scanner discovers presets in a directory.
type Scanner interface {
	Scan(dir string) ([]Preset, error)
}

// WAVScanner treats every *.wav file as a preset. The ID is the file name
// without extension, lowercased; the transcript is read from a sibling file
// with the same base name and a .txt extension, if present.
type WAVScanner struct{}

func NewWAVScanner() WAVScanner { return WAVScanner{} }

func (WAVScanner) Scan(dir string) ([]Preset, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var presets []Preset
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".wav") {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		p := Preset{
			ID:   strings.ToLower(stem),
			Name: stem,
			Path: filepath.Join(abs, name),
		}
		if b, err := os.ReadFile(filepath.Join(abs, stem+".txt")); err == nil {
			p.Transcript = strings.TrimSpace(string(b))
		}
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID })
	return presets, nil
}

// LoadDir scans dir with the default WAVScanner.
func LoadDir(dir string) ([]Preset, error) {
	return NewWAVScanner().Scan(dir)
}

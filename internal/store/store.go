// Package store implements a flat-file, content-addressed key/value store.
//
// Keys are MD5 digests of file content (identity, not security). Each key is
// one file under a namespace directory:
//
//	<root>/<namespace>/<key><ext>
//
// The store backs both the derived-artifact caches (transcriptions, audio
// metadata) and the identity of custom voices.
package store

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"voxd/internal/common/fsutil"
)

// Cache namespaces used by the service.
const (
	NamespaceTranscriptions = "transcriptions"
	NamespaceAudioMeta      = "audio-meta"
)

// blockSize bounds memory use while hashing arbitrarily large inputs.
const blockSize = 4096

// Key is a lowercase hex content digest.
type Key string

func (k Key) String() string { return string(k) }

// Short returns the first n hex characters of the key.
func (k Key) Short(n int) string {
	if n <= 0 || n >= len(k) {
		return string(k)
	}
	return string(k[:n])
}

// HashReader digests r in fixed-size blocks.
func HashReader(r io.Reader) (Key, error) {
	h := md5.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

// HashFile digests the full content of the file at path.
func HashFile(path string) (Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// HashBytes digests b.
func HashBytes(b []byte) Key {
	sum := md5.Sum(b)
	return Key(hex.EncodeToString(sum[:]))
}

// Store is a namespace-partitioned directory of content-keyed payload files.
// The zero value is not usable; construct with New.
type Store struct {
	root string
	exts map[string]string

	mu      sync.Mutex
	created map[string]bool
}

// New returns a Store rooted at dir. The directory is created lazily.
func New(dir string) (*Store, error) {
	d, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(d) == "" {
		return nil, errors.New("store: empty root directory")
	}
	return &Store{
		root: d,
		exts: map[string]string{
			NamespaceTranscriptions: ".txt",
			NamespaceAudioMeta:      ".json",
		},
		created: make(map[string]bool),
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Path returns the file path backing ns/key. It does not check existence.
func (s *Store) Path(ns string, key Key) (string, error) {
	if err := validName(ns); err != nil {
		return "", fmt.Errorf("namespace %q: %w", ns, err)
	}
	if err := validName(string(key)); err != nil {
		return "", fmt.Errorf("key %q: %w", key, err)
	}
	ext, ok := s.exts[ns]
	if !ok {
		ext = ".bin"
	}
	return filepath.Join(s.root, ns, string(key)+ext), nil
}

// Get returns the payload stored under ns/key. A missing key reports
// ok=false with a nil error.
func (s *Store) Get(ns string, key Key) ([]byte, bool, error) {
	p, err := s.Path(ns, key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store get %s/%s: %w", ns, key, err)
	}
	return b, true, nil
}

// Put stores payload under ns/key, creating the namespace directory on first
// use. Writes go through a temp file and rename; for content-derived keys
// concurrent writers write identical bytes.
func (s *Store) Put(ns string, key Key, payload []byte) error {
	p, err := s.Path(ns, key)
	if err != nil {
		return err
	}
	if err := s.ensureNamespace(ns); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(p, payload, 0o644); err != nil {
		return fmt.Errorf("store put %s/%s: %w", ns, key, err)
	}
	return nil
}

// GetJSON decodes the payload under ns/key into v.
func (s *Store) GetJSON(ns string, key Key, v any) (bool, error) {
	b, ok, err := s.Get(ns, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("store decode %s/%s: %w", ns, key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under ns/key.
func (s *Store) PutJSON(ns string, key Key, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store encode %s/%s: %w", ns, key, err)
	}
	return s.Put(ns, key, b)
}

// Delete removes ns/key. Deleting a missing key is not an error.
func (s *Store) Delete(ns string, key Key) error {
	p, err := s.Path(ns, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store delete %s/%s: %w", ns, key, err)
	}
	return nil
}

func (s *Store) ensureNamespace(ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created[ns] {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(s.root, ns), 0o755); err != nil {
		return fmt.Errorf("store mkdir %s: %w", ns, err)
	}
	s.created[ns] = true
	return nil
}

func validName(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return errors.New("invalid name")
	case strings.ContainsAny(s, `/\`):
		return errors.New("name must not contain path separators")
	}
	return nil
}

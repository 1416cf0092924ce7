// Package artifacts stores per-test diagnostics: screenshots, page HTML and
// captured requests, each run under its own id.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/formprobe/internal/storage"
)

const metaFile = "meta.json"

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var (
	ErrNotFound  = errors.New("artifact not found")
	ErrInvalidID = errors.New("invalid artifact id")
)

// Meta describes one stored artifact set.
type Meta struct {
	ID        string    `json:"id"`
	Test      string    `json:"test"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
	SizeBytes int       `json:"size_bytes"`
	Notes     string    `json:"notes,omitempty"`
}

// Store keeps artifact sets under dir, one directory per id with a
// metadata sidecar.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

func validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Save writes files and the metadata sidecar. ID and CreatedAt are filled
// in when empty; file names are reduced to safe path segments.
func (s *Store) Save(meta Meta, files map[string][]byte) (Meta, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if err := validateID(meta.ID); err != nil {
		return Meta{}, err
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	setDir := filepath.Join(s.dir, meta.ID)
	if err := os.MkdirAll(setDir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("artifact store: mkdir: %w", err)
	}

	meta.Files = meta.Files[:0:0]
	meta.SizeBytes = 0
	for name, data := range files {
		safe := storage.SafeSegment(name)
		if safe == metaFile {
			safe = "_" + safe
		}
		if err := os.WriteFile(filepath.Join(setDir, safe), data, 0o644); err != nil {
			_ = os.RemoveAll(setDir)
			return Meta{}, fmt.Errorf("artifact store: write %s: %w", safe, err)
		}
		meta.Files = append(meta.Files, safe)
		meta.SizeBytes += len(data)
	}
	sort.Strings(meta.Files)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.RemoveAll(setDir)
		return Meta{}, fmt.Errorf("artifact store: marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(setDir, metaFile), data, 0o644); err != nil {
		_ = os.RemoveAll(setDir)
		return Meta{}, fmt.Errorf("artifact store: write meta: %w", err)
	}
	return meta, nil
}

// Get reads artifact metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("artifact store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("artifact store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all artifact sets sorted by creation time (newest first).
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*", metaFile))
	if err != nil {
		return nil, fmt.Errorf("artifact store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		id := filepath.Base(filepath.Dir(path))
		if validateID(id) != nil {
			continue
		}
		meta, err := s.readMeta(id)
		if err != nil {
			slog.Debug("artifact meta skipped", "id", id, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadFile returns the bytes of one file of an artifact set. Only names
// listed in the metadata can be read.
func (s *Store) ReadFile(id, name string) ([]byte, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	listed := false
	for _, f := range meta.Files {
		if f == name {
			listed = true
			break
		}
	}
	if !listed {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, name)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, id, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, id, name)
		}
		return nil, fmt.Errorf("artifact store: read file: %w", err)
	}
	return data, nil
}

// Delete removes an artifact set.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
		slog.Debug("artifact cleanup failed", "id", id, "error", err)
		return fmt.Errorf("artifact store: delete: %w", err)
	}
	return nil
}

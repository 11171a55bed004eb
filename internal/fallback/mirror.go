// Package fallback keeps a local JSON snapshot of MMP files that is used when the
// database cannot be written to or read from.
package fallback

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mmp-tracker/internal/model"
)

// Key names the snapshot file inside the fallback directory.
const Key = "mock_mmp_files"

type Mirror struct {
	mu   sync.Mutex
	path string
}

func NewMirror(dir string) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	return &Mirror{path: filepath.Join(dir, Key+".json")}, nil
}

func (m *Mirror) Path() string {
	return m.path
}

// Upsert replaces the file with the same id, or appends it.
func (m *Mirror) Upsert(file model.MMPFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err := m.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range files {
		if files[i].ID == file.ID {
			files[i] = file
			replaced = true
			break
		}
	}
	if !replaced {
		files = append(files, file)
	}
	return m.save(files)
}

// Get returns the mirrored copy of one file.
func (m *Mirror) Get(id string) (model.MMPFile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err := m.load()
	if err != nil {
		return model.MMPFile{}, false, err
	}
	for _, f := range files {
		if f.ID == id {
			return f, true, nil
		}
	}
	return model.MMPFile{}, false, nil
}

// All returns every mirrored file, newest upload first.
func (m *Mirror) All() ([]model.MMPFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err := m.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	return files, nil
}

// Snapshot replaces the whole mirror, used after a successful warm-up from the database.
func (m *Mirror) Snapshot(files []model.MMPFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(files)
}

func (m *Mirror) load() ([]model.MMPFile, error) {
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.MMPFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fallback snapshot: %w", err)
	}
	if len(raw) == 0 {
		return []model.MMPFile{}, nil
	}

	var files []model.MMPFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("decode fallback snapshot: %w", err)
	}
	return files, nil
}

func (m *Mirror) save(files []model.MMPFile) error {
	if files == nil {
		files = []model.MMPFile{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode fallback snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), Key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create fallback temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write fallback snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync fallback snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close fallback snapshot: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("replace fallback snapshot: %w", err)
	}
	return nil
}

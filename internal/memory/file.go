package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps each conversation log in its own JSON file under a
// storage directory. Writes are atomic: temp file then rename.
type FileStore struct {
	mu      sync.Mutex
	storage string
	logs    map[Key][]Entry
}

// NewFileStore opens (or creates) a file-backed store rooted at dir and
// loads whatever logs already exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	s := &FileStore{storage: dir, logs: make(map[Key][]Entry)}
	s.loadAll()
	return s, nil
}

func (s *FileStore) Append(_ context.Context, key Key, entries ...Entry) error {
	s.mu.Lock()
	s.logs[key] = append(s.logs[key], entries...)
	snapshot := make([]Entry, len(s.logs[key]))
	copy(snapshot, s.logs[key])
	s.mu.Unlock()

	return s.save(key, snapshot)
}

func (s *FileStore) Recent(_ context.Context, key Key, n int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[key]
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	out := make([]Entry, len(log))
	copy(out, log)
	return out, nil
}

func (s *FileStore) Reset(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.logs, key)
	s.mu.Unlock()

	path := filepath.Join(s.storage, logFilename(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove log: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

type logFile struct {
	Key     Key     `json:"key"`
	Entries []Entry `json:"entries"`
}

func (s *FileStore) save(key Key, entries []Entry) error {
	data, err := json.MarshalIndent(logFile{Key: key, Entries: entries}, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: temp file then rename.
	tmpFile, err := os.CreateTemp(s.storage, "log-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, filepath.Join(s.storage, logFilename(key))); err != nil {
		return err
	}
	cleanup = false
	return nil
}

func (s *FileStore) loadAll() {
	files, err := os.ReadDir(s.storage)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.storage, f.Name()))
		if err != nil {
			continue
		}
		var lf logFile
		if err := json.Unmarshal(data, &lf); err != nil {
			continue
		}
		s.logs[lf.Key] = lf.Entries
	}
}

func logFilename(key Key) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key.String())
	return name + ".json"
}

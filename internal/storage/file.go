package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore keeps every value as JSON in a single file. It suits small
// deployments and one-shot tools.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]json.RawMessage
}

// OpenFileStore reads path, starting empty if the file doesn't exist.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, entries: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Put(key string, v interface{}) error {
	return s.PutAll(map[string]interface{}{key: v})
}

// PutAll stores every entry and rewrites the file once.
func (s *FileStore) PutAll(entries map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]json.RawMessage, len(s.entries)+len(entries))
	for k, v := range s.entries {
		next[k] = v
	}
	for key, v := range entries {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		next[key] = b
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

// write replaces the file through a rename so a crash never leaves it half written.
func (s *FileStore) write(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Get(key string, v interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/thewijay/intima-chat/internal/config"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

// FileStore persists keys in a single JSON file with values encrypted at
// rest. It stands in for the platform secure store the mobile client used:
// durable, private to the user (0600), and unreadable without the secret
// key.
type FileStore struct {
	mu     sync.Mutex
	path   string
	secret *config.SecretKey
}

// NewFileStore opens (or lazily creates) the store at path.
func NewFileStore(path string, secret *config.SecretKey) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{path: path, secret: secret}, nil
}

// Get implements ports.KeyValueStore.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", err
	}
	enc, ok := data[key]
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return s.secret.Decrypt(enc)
}

// Set implements ports.KeyValueStore.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	enc, err := s.secret.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt value: %w", err)
	}
	data[key] = enc
	return s.save(data)
}

// Delete implements ports.KeyValueStore.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.save(data)
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return data, nil
}

// save writes via a temp file and rename so a crash mid-write cannot leave
// a truncated state file behind.
func (s *FileStore) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

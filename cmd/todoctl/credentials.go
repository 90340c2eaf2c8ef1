package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const credFileName = "credentials.json"

// credentials is what login leaves behind for later commands
type credentials struct {
	Server   string    `json:"server"`
	Username string    `json:"username"`
	Access   string    `json:"access"`
	Refresh  string    `json:"refresh"`
	SavedAt  time.Time `json:"saved_at"`
}

// credStore keeps credentials in a single owner-only file under dir
type credStore struct {
	dir string
}

func defaultCredStore() (*credStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	return &credStore{dir: filepath.Join(home, ".todoctl")}, nil
}

func (s *credStore) path() string {
	return filepath.Join(s.dir, credFileName)
}

// load returns nil, nil when nobody is logged in
func (s *credStore) load() (*credentials, error) {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &c, nil
}

func (s *credStore) save(c *credentials) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	c.SavedAt = time.Now().UTC()
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(s.path(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *credStore) remove() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Package filestore persists CLI credentials in a YAML file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/invencare/go-auth"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout. Flags holds loose key/value state written by
// earlier tools, including the legacy demo flags.
type document struct {
	Tokens *auth.Tokens       `yaml:"tokens,omitempty"`
	Flags  map[string]string `yaml:"flags,omitempty"`
}

// Store implements auth.CredentialStore and auth.LegacyFlagPurger over a
// single file.
type Store struct {
	path string
	mu   sync.Mutex
}

var (
	_ auth.CredentialStore  = (*Store)(nil)
	_ auth.LegacyFlagPurger = (*Store)(nil)
)

func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is ~/.config/storeauth/credentials.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "storeauth", "credentials.yaml"), nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) (auth.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil || doc.Tokens == nil {
		return auth.Tokens{}, err
	}
	return *doc.Tokens, nil
}

func (s *Store) Save(_ context.Context, tokens auth.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if tokens.IsZero() {
		doc.Tokens = nil
	} else {
		doc.Tokens = &tokens
	}
	return s.write(doc)
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc.Tokens == nil {
		return nil
	}
	doc.Tokens = nil
	return s.write(doc)
}

// PurgeLegacyFlags removes the demo flags and returns the ones found.
func (s *Store) PurgeLegacyFlags(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	var purged []string
	for _, flag := range auth.LegacyDemoFlags {
		if _, ok := doc.Flags[flag]; ok {
			delete(doc.Flags, flag)
			purged = append(purged, flag)
		}
	}
	if len(purged) == 0 {
		return nil, nil
	}
	return purged, s.write(doc)
}

func (s *Store) read() (document, error) {
	var doc document

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read credentials: %w", err)
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("parse credentials %s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the file atomically, readable by the owner only.
func (s *Store) write(doc document) error {
	if doc.Tokens == nil && len(doc.Flags) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove credentials: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

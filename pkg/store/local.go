package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bsinger98/MHBench/pkg/topology"
)

const documentExt = ".topo.sz"

// LocalStore keeps documents as compressed files in one directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.dir, name+documentExt)
}

// Save implements Store.
func (s *LocalStore) Save(_ context.Context, name string, topo *topology.Topology) error {
	data, err := encode(topo)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write topology document: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *LocalStore) Load(_ context.Context, name string) (*topology.Topology, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read topology document: %w", err)
	}
	return decode(data)
}

// List implements Store.
func (s *LocalStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list topology documents: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), documentExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), documentExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	return err
}

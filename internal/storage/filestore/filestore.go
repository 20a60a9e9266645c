// Package filestore keeps user snapshots as msgpack files in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/storage"
	"github.com/andymarkow/qvasun/internal/storage/dbmodels"
	"github.com/vmihailenco/msgpack/v5"
)

var _ storage.Storage = (*Storage)(nil)

const fileExt = ".msgpack"

type Storage struct {
	dir string
	mu  sync.Mutex
}

// NewStorage creates dir if needed and returns a store rooted at it.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("os.MkdirAll: %w", err)
	}

	return &Storage{
		dir: dir,
	}, nil
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("os.Stat: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", s.dir, fs.ErrInvalid)
	}

	return nil
}

func (s *Storage) path(id string) (string, error) {
	if err := users.ValidateID(id); err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrUserInvalid, err)
	}

	if filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("%w: id %q is not a valid file name", storage.ErrUserInvalid, id)
	}

	return filepath.Join(s.dir, id+fileExt), nil
}

func (s *Storage) GetUser(_ context.Context, id string) (*users.User, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrUserNotFound
		}

		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	var m dbmodels.User
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: msgpack.Unmarshal: %w", storage.ErrUserInvalid, err)
	}

	usr, err := m.ToUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUserInvalid, err)
	}

	return usr, nil
}

// SaveUser writes the snapshot to a temporary file and renames it over the
// previous one, so readers never see a partial snapshot.
func (s *Storage) SaveUser(_ context.Context, usr *users.User) error {
	path, err := s.path(usr.ID())
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(dbmodels.FromUser(usr))
	if err != nil {
		return fmt.Errorf("msgpack.Marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, usr.ID()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec

		return fmt.Errorf("tmp.Write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec

		return fmt.Errorf("tmp.Sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tmp.Close: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}

	return nil
}

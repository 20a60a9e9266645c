package inmemory

import (
	"context"
	"sync"

	"github.com/andymarkow/qvasun/internal/domain/users"
	"github.com/andymarkow/qvasun/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	users map[string]users.State
	mu    sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]users.State),
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	usr, err := users.RestoreUser(st)
	if err != nil {
		return nil, storage.ErrUserInvalid
	}

	return usr, nil
}

func (s *Storage) SaveUser(_ context.Context, usr *users.User) error {
	if err := users.ValidateID(usr.ID()); err != nil {
		return storage.ErrUserInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// State is a deep copy, later changes to usr do not leak in.
	s.users[usr.ID()] = usr.State()

	return nil
}

package storage

import (
	"context"
	"errors"

	"github.com/andymarkow/qvasun/internal/domain/users"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserInvalid  = errors.New("user snapshot is invalid")
)

// UserStorage persists full user snapshots.
type UserStorage interface {
	GetUser(ctx context.Context, id string) (*users.User, error)
	SaveUser(ctx context.Context, usr *users.User) error
}

type Storage interface {
	UserStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}

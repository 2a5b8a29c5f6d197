//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const userPrefix = "user:"

type IUserRepository interface {
	CreateUser(username, hashedPassword string, profilePicture []byte) (User, error)
	GetUserByUsername(username string) (User, error)
	ListUsers() ([]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the stored account record.
type User struct {
	ID             string    `cbor:"1,keyasint"`
	Username       string    `cbor:"2,keyasint"`
	PasswordHash   string    `cbor:"3,keyasint"`
	ProfilePicture []byte    `cbor:"4,keyasint,omitempty"`
	Roles          []string  `cbor:"5,keyasint"`
	CreatedAt      time.Time `cbor:"6,keyasint"`
}

func UserKey(username string) []byte {
	return []byte(userPrefix + username)
}

// CreateUser persists a new account. The existence check and the write
// share one transaction, so two concurrent signups cannot both succeed.
func (u *UserRepository) CreateUser(username, hashedPassword string, profilePicture []byte) (User, error) {
	user := User{
		ID:             uuid.NewString(),
		Username:       username,
		PasswordHash:   hashedPassword,
		ProfilePicture: profilePicture,
		Roles:          []string{"user"},
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}

	data, err := marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := UserKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByUsername returns errors.ErrUserNotFound when no account matches.
func (u *UserRepository) GetUserByUsername(username string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(UserKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &user)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsers scans every account in key order.
func (u *UserRepository) ListUsers() ([]User, error) {
	var users []User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var user User
				if err := unmarshal(val, &user); err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

// DecodeUser reads a raw badger value, for offline inspection tools.
func DecodeUser(val []byte) (User, error) {
	var user User
	err := unmarshal(val, &user)
	return user, err
}

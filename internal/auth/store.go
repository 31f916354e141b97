package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
)

const CollectionUsers = "users"

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Hash  string `json:"pass_hash"`
	Role  string `json:"role"`
}

// Store keeps users in the document store, keyed by normalised email.
type Store struct {
	docs docstore.Store
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}

func (s *Store) Create(ctx context.Context, email, password, role, id string) (User, error) {
	email = normalizeEmail(email)
	password = normalizePassword(password)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	u := User{ID: id, Email: email, Hash: string(hash), Role: role}
	if err := s.docs.Create(ctx, CollectionUsers, email, u); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return User{}, ErrEmailExists
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) Verify(ctx context.Context, email, password string) (User, error) {
	u, err := s.get(ctx, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(normalizePassword(password))); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) get(ctx context.Context, email string) (User, error) {
	rec, err := s.docs.Get(ctx, CollectionUsers, normalizeEmail(email))
	if err != nil {
		return User{}, err
	}
	var u User
	if err := docstore.Decode(rec, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePassword(password string) string {
	return strings.TrimSpace(password)
}

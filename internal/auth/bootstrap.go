package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

// EnsureAdmin creates the admin account named by email unless it already
// exists. An existing account is left untouched.
func EnsureAdmin(ctx context.Context, s *Store, log *zap.Logger, email, password string) error {
	if normalizeEmail(email) == "" {
		return nil
	}
	if len(normalizePassword(password)) < minPasswordLen {
		return errors.New("bootstrap admin password too short")
	}

	u, err := s.Create(ctx, email, password, domain.RoleAdmin, "u_"+uuid.NewString())
	if errors.Is(err, ErrEmailExists) {
		log.Info("bootstrap admin already present", zap.String("email", normalizeEmail(email)))
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("bootstrap admin created", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return nil
}

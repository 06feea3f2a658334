package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

// CreateUser stores a staff or customer account. PasswordHash must already
// be hashed. Emails are unique, compared case-insensitively.
func (s *Service) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := normalizeUser(&user); err != nil {
		return domain.User{}, err
	}

	var created domain.User
	err := s.run(ctx, []string{store.Users}, func(sess *session) error {
		var err error
		created, err = s.insertUser(sess, user)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user created", zap.Int64("user_id", created.ID), zap.String("kind", string(created.Kind)))
	return created, nil
}

// RegisterCustomer is the self-service sign up path. The tax id is required
// and unique.
func (s *Service) RegisterCustomer(ctx context.Context, user domain.User) (domain.User, error) {
	user.Kind = domain.KindCustomer
	user.Protected = false
	user.Permissions = nil
	user.TaxID = NormalizeTaxID(user.TaxID)
	if user.TaxID == "" {
		return domain.User{}, fmt.Errorf("tax id is required: %w", store.ErrInvalidArgument)
	}
	return s.CreateUser(ctx, user)
}

func (s *Service) insertUser(sess *session, user domain.User) (domain.User, error) {
	users, err := load[domain.User](sess, store.Users)
	if err != nil {
		return domain.User{}, err
	}
	for _, existing := range users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.User{}, fmt.Errorf("email %s: %w", user.Email, store.ErrDuplicateName)
		}
		if user.TaxID != "" && existing.TaxID == user.TaxID {
			return domain.User{}, fmt.Errorf("tax id already registered: %w", store.ErrDuplicateName)
		}
	}

	user.ID = nextID(users, func(u domain.User) int64 { return u.ID })
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.Now()
	}
	put(sess, store.Users, append(slices.Clone(users), user))
	return user, nil
}

func normalizeUser(user *domain.User) error {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Phone = strings.TrimSpace(user.Phone)
	if user.Name == "" || user.Email == "" {
		return fmt.Errorf("name and email are required: %w", store.ErrInvalidArgument)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("password is required: %w", store.ErrInvalidArgument)
	}
	if !user.Kind.Valid() {
		return fmt.Errorf("user kind %q: %w", user.Kind, store.ErrInvalidArgument)
	}
	if len(user.Permissions) == 0 {
		user.Permissions = domain.PermissionsFor(user.Kind)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.run(ctx, []string{store.Users}, func(sess *session) error {
		users, err := load[domain.User](sess, store.Users)
		out = slices.Clone(users)
		return err
	})
	return out, err
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.findUser(ctx, func(u domain.User) bool { return strings.EqualFold(u.Email, email) }, "email "+email)
}

func (s *Service) FindUserByID(ctx context.Context, id int64) (domain.User, error) {
	return s.findUser(ctx, func(u domain.User) bool { return u.ID == id }, fmt.Sprintf("user %d", id))
}

func (s *Service) findUser(ctx context.Context, match func(domain.User) bool, label string) (domain.User, error) {
	var found domain.User
	err := s.run(ctx, []string{store.Users}, func(sess *session) error {
		users, err := load[domain.User](sess, store.Users)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(users, match)
		if idx < 0 {
			return fmt.Errorf("%s: %w", label, store.ErrNotFound)
		}
		found = users[idx]
		return nil
	})
	return found, err
}

// UpdateUserPassword replaces the stored password hash of a user.
func (s *Service) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	if passwordHash == "" {
		return fmt.Errorf("password hash is required: %w", store.ErrInvalidArgument)
	}
	return s.run(ctx, []string{store.Users}, func(sess *session) error {
		users, err := load[domain.User](sess, store.Users)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(users, func(u domain.User) bool { return u.ID == id })
		if idx < 0 {
			return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		users = slices.Clone(users)
		users[idx].PasswordHash = passwordHash
		put(sess, store.Users, users)
		return nil
	})
}

// DeleteUser removes a user. Requesters cannot delete themselves and
// protected admins cannot be deleted at all.
func (s *Service) DeleteUser(ctx context.Context, id int64, requesterID int64) error {
	if id == requesterID {
		return fmt.Errorf("cannot delete own account: %w", store.ErrInvalidArgument)
	}
	return s.run(ctx, []string{store.Users}, func(sess *session) error {
		users, err := load[domain.User](sess, store.Users)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(users, func(u domain.User) bool { return u.ID == id })
		if idx < 0 {
			return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		if users[idx].Protected {
			return fmt.Errorf("user %d is protected: %w", id, store.ErrConflict)
		}
		put(sess, store.Users, slices.Delete(slices.Clone(users), idx, idx+1))
		return nil
	})
}

package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MJ-02/BillSplitter/internal/models"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

// UserService manages the people orders are split between.
type UserService struct {
	store storage.Store
}

func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store}
}

// CreateUser validates and persists a new user.
func (s *UserService) CreateUser(ctx context.Context, user *models.User) error {
	if err := normalizeUser(user); err != nil {
		return err
	}
	user.ID = ""
	if err := s.store.CreateUser(ctx, user); err != nil {
		slog.Error("CreateUser failed", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID)
	return nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, userID)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// UpdateUser overwrites name, numbers and payment handle of an existing user.
func (s *UserService) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := normalizeUser(user); err != nil {
		return nil, err
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, notFound(err, ErrUserNotFound, user.ID)
	}
	return s.GetUser(ctx, user.ID)
}

// DeleteUser removes a user together with their splits. Orders they paid
// for are kept without a payer.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return notFound(err, ErrUserNotFound, userID)
	}
	slog.Info("User deleted", "user_id", userID)
	return nil
}

func normalizeUser(user *models.User) error {
	user.Name = strings.TrimSpace(user.Name)
	user.Phone = strings.TrimSpace(user.Phone)
	user.WhatsAppNumber = strings.TrimSpace(user.WhatsAppNumber)
	user.PaymentHandle = strings.TrimSpace(user.PaymentHandle)
	if user.Name == "" {
		return invalidf("name is required")
	}
	if user.Phone == "" {
		return invalidf("phone is required")
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
	"task-tracker/backend/internal/repositories"
)

type RegistrationRequest struct {
	Username  string      `json:"username" binding:"required,min=3,max=150"`
	Email     string      `json:"email" binding:"required,email"`
	Password  string      `json:"password" binding:"required,min=8"`
	FirstName string      `json:"first_name" binding:"max=150"`
	LastName  string      `json:"last_name" binding:"max=150"`
	Role      models.Role `json:"role,omitempty"`
}

type UserService interface {
	RegisterUser(ctx context.Context, req RegistrationRequest) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	ListUsers(ctx context.Context, role *models.Role) ([]models.User, error)
}

type UserServiceImpl struct {
	users repositories.UserStore
}

func NewUserService(users repositories.UserStore) *UserServiceImpl {
	return &UserServiceImpl{users: users}
}

func (s *UserServiceImpl) RegisterUser(ctx context.Context, req RegistrationRequest) (models.User, error) {
	role := req.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if !role.Valid() {
		return models.User{}, policy.Invalid("role", "must be manager or employee")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	unique := []struct{ column, value string }{
		{"username", req.Username},
		{"email", email},
	}
	for _, u := range unique {
		exists, err := s.users.Exists(ctx, u.column, u.value)
		if err != nil {
			return models.User{}, err
		}
		if exists {
			return models.User{}, policy.Invalid(u.column, "already exists")
		}
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Username:  req.Username,
		Email:     email,
		Password:  hashed,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, role *models.Role) ([]models.User, error) {
	if role != nil && !role.Valid() {
		return nil, policy.Invalid("role", "must be manager or employee")
	}
	return s.users.List(ctx, role)
}

package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"task-tracker/backend/internal/models"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetByLogin(ctx context.Context, login string) (models.User, error)
	Exists(ctx context.Context, column, value string) (bool, error)
	List(ctx context.Context, role *models.Role) ([]models.User, error)
}

type GormUserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) Create(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormUserStore) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	return user, translate(err)
}

// GetByLogin looks a user up by username or email. Emails are stored
// lowercased, so the email side ignores case; usernames are exact.
func (s *GormUserStore) GetByLogin(ctx context.Context, login string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error
	return user, translate(err)
}

// Exists checks a unique column. column must be "username" or "email".
func (s *GormUserStore) Exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where(column+" = ?", value).Count(&count).Error
	return count > 0, err
}

func (s *GormUserStore) List(ctx context.Context, role *models.Role) ([]models.User, error) {
	var users []models.User
	q := s.db.WithContext(ctx).Order("username ASC")
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	err := q.Find(&users).Error
	return users, translate(err)
}

type TokenStore interface {
	Create(ctx context.Context, token *models.Token) error
	// Consume deletes an unexpired token and reports whether it existed.
	Consume(ctx context.Context, userID, jti uuid.UUID) (bool, error)
	Revoke(ctx context.Context, jti uuid.UUID) error
}

type GormTokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *GormTokenStore {
	return &GormTokenStore{db: db}
}

func (s *GormTokenStore) Create(ctx context.Context, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.Must(uuid.NewV4())
	}
	return translate(s.db.WithContext(ctx).Create(token).Error)
}

func (s *GormTokenStore) Consume(ctx context.Context, userID, jti uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, time.Now().UTC()).
		Delete(&models.Token{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormTokenStore) Revoke(ctx context.Context, jti uuid.UUID) error {
	return s.db.WithContext(ctx).Where("jti = ?", jti).Delete(&models.Token{}).Error
}

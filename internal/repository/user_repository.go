package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskboard/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindAdminByType returns the admin holding the given seat.
func (r *UserRepository) FindAdminByType(ctx context.Context, adminType string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND admin_type = ?", model.RoleAdmin, adminType).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) ListAdmins(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("role = ?", model.RoleAdmin).
		Order("admin_type ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListByAdmin returns the users registered under adminID.
func (r *UserRepository) ListByAdmin(ctx context.Context, adminID uint) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("admin_id = ?", adminID).
		Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) ListTelegramLinked(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) SetTelegramLinkCode(ctx context.Context, userID uint, code string) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Update("telegram_link_code", code).Error
	if err != nil {
		return fmt.Errorf("set link code: %w", err)
	}
	return nil
}

// LinkTelegram consumes a link code and binds chatID to its owner.
func (r *UserRepository) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("telegram_link_code = ? AND telegram_link_code <> ''", code).First(&user).Error; err != nil {
			return notFound(err)
		}
		// A chat belongs to one account at a time.
		if err := tx.Model(&model.User{}).Where("telegram_chat_id = ? AND id <> ?", chatID, user.ID).
			Update("telegram_chat_id", nil).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"telegram_chat_id":   chatID,
			"telegram_link_code": "",
		}
		if err := tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}
		user.TelegramChatID = &chatID
		user.TelegramLinkCode = ""
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("link telegram: %w", err)
	}
	return &user, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

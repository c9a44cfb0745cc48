package repository

import (
	"context"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return &user, err
}

// FindByUsernames returns the users that exist among usernames; callers compare
// lengths to detect unknown names.
func (r *UserRepository) FindByUsernames(ctx context.Context, usernames []string) ([]model.User, error) {
	var users []model.User
	if len(usernames) == 0 {
		return users, nil
	}
	err := r.DB.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error
	return users, err
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

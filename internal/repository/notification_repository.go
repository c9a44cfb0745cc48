package repository

import (
	"context"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.DB.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]model.Notification, error) {
	var list []model.Notification
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flags the given notifications of userID as read; no ids means all.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	db := r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		db = db.Where("id IN ?", ids)
	}
	res := db.Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) Clear(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}

package repository

import (
	"context"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: tx}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*model.Message, error) {
	var msg model.Message
	err := r.DB.WithContext(ctx).First(&msg, id).Error
	return &msg, err
}

// ListRecent returns at most limit messages of the thread, newest first.
func (r *MessageRepository) ListRecent(ctx context.Context, threadID uint, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.DB.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) SetPinned(ctx context.Context, id uint, pinned bool) error {
	return r.DB.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", id).
		Update("is_pinned", pinned).Error
}

// MarkRead flags every unread message in the thread not sent by readerID.
func (r *MessageRepository) MarkRead(ctx context.Context, threadID, readerID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND is_read = ?", threadID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

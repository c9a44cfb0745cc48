package repository

import (
	"context"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
)

// ClubResourceRepository stores club events and posts.
type ClubResourceRepository struct {
	DB *gorm.DB
}

func NewClubResourceRepository(db *gorm.DB) *ClubResourceRepository {
	return &ClubResourceRepository{DB: db}
}

func (r *ClubResourceRepository) CreateEvent(ctx context.Context, e *model.ClubEvent) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *ClubResourceRepository) FindEvent(ctx context.Context, clubID, id uint) (*model.ClubEvent, error) {
	var e model.ClubEvent
	err := r.DB.WithContext(ctx).Where("club_id = ? AND id = ?", clubID, id).First(&e).Error
	return &e, err
}

func (r *ClubResourceRepository) UpdateEvent(ctx context.Context, e *model.ClubEvent) error {
	return r.DB.WithContext(ctx).Save(e).Error
}

func (r *ClubResourceRepository) DeleteEvent(ctx context.Context, clubID, id uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("club_id = ? AND id = ?", clubID, id).Delete(&model.ClubEvent{})
	return res.RowsAffected, res.Error
}

func (r *ClubResourceRepository) ListEvents(ctx context.Context, clubID uint) ([]model.ClubEvent, error) {
	var events []model.ClubEvent
	err := r.DB.WithContext(ctx).Where("club_id = ?", clubID).Order("starts_at").Find(&events).Error
	return events, err
}

func (r *ClubResourceRepository) CreatePost(ctx context.Context, p *model.ClubPost) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *ClubResourceRepository) DeletePost(ctx context.Context, clubID, id uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("club_id = ? AND id = ?", clubID, id).Delete(&model.ClubPost{})
	return res.RowsAffected, res.Error
}

func (r *ClubResourceRepository) ListPosts(ctx context.Context, clubID uint) ([]model.ClubPost, error) {
	var posts []model.ClubPost
	err := r.DB.WithContext(ctx).Where("club_id = ?", clubID).Order("created_at DESC, id DESC").Find(&posts).Error
	return posts, err
}

package repository

import (
	"context"
	"time"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
)

type FriendshipRepository struct {
	DB *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{DB: db}
}

func (r *FriendshipRepository) WithTx(tx *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{DB: tx}
}

func (r *FriendshipRepository) CreateRequest(ctx context.Context, req *model.FriendRequest) error {
	if req.Status == "" {
		req.Status = model.FriendRequestPending
	}
	key := model.PairKey(req.FromUserID, req.ToUserID)
	req.ActivePairKey = &key
	return r.DB.WithContext(ctx).Create(req).Error
}

// FindLive returns the pending or accepted request between a and b in either direction.
func (r *FriendshipRepository) FindLive(ctx context.Context, a, b uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).
		Where("active_pair_key = ?", model.PairKey(a, b)).
		First(&req).Error
	return &req, err
}

// FindPending returns the pending request sent by from to to.
func (r *FriendshipRepository) FindPending(ctx context.Context, from, to uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", from, to, model.FriendRequestPending).
		First(&req).Error
	return &req, err
}

// Resolve moves a pending request to accepted or rejected. The status guard makes
// the transition happen once; it returns false when the request was no longer pending.
func (r *FriendshipRepository) Resolve(ctx context.Context, id uint, accept bool, at time.Time) (bool, error) {
	updates := map[string]interface{}{"responded_at": at}
	if accept {
		updates["status"] = model.FriendRequestAccepted
	} else {
		updates["status"] = model.FriendRequestRejected
		updates["active_pair_key"] = nil
	}
	res := r.DB.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, model.FriendRequestPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// DeletePending removes a pending request; it returns the number of rows removed.
func (r *FriendshipRepository) DeletePending(ctx context.Context, id uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.FriendRequestPending).
		Delete(&model.FriendRequest{})
	return res.RowsAffected, res.Error
}

// DeleteAccepted drops the friendship between a and b.
func (r *FriendshipRepository) DeleteAccepted(ctx context.Context, a, b uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("status = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))",
			model.FriendRequestAccepted, a, b, b, a).
		Delete(&model.FriendRequest{})
	return res.RowsAffected, res.Error
}

func (r *FriendshipRepository) IsFriend(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("status = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))",
			model.FriendRequestAccepted, a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// FriendIDs returns the ids of every accepted friend of userID, ascending.
func (r *FriendshipRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var rows []model.FriendRequest
	err := r.DB.WithContext(ctx).
		Where("status = ? AND (from_user_id = ? OR to_user_id = ?)", model.FriendRequestAccepted, userID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Other(userID))
	}
	return model.UniqueUserIDs(ids), nil
}

func (r *FriendshipRepository) ListIncoming(ctx context.Context, userID uint) ([]model.FriendRequest, error) {
	var reqs []model.FriendRequest
	err := r.DB.WithContext(ctx).
		Preload("FromUser").
		Where("to_user_id = ? AND status = ?", userID, model.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

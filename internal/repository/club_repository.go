package repository

import (
	"context"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
)

// ClubRepository stores clubs, memberships and invites.
type ClubRepository struct {
	DB *gorm.DB
}

func NewClubRepository(db *gorm.DB) *ClubRepository {
	return &ClubRepository{DB: db}
}

func (r *ClubRepository) WithTx(tx *gorm.DB) *ClubRepository {
	return &ClubRepository{DB: tx}
}

func (r *ClubRepository) CreateClub(ctx context.Context, club *model.Club) error {
	return r.DB.WithContext(ctx).Create(club).Error
}

func (r *ClubRepository) FindClub(ctx context.Context, id uint) (*model.Club, error) {
	var club model.Club
	err := r.DB.WithContext(ctx).First(&club, id).Error
	return &club, err
}

type memberCount struct {
	ClubID uint
	Count  int64
}

func (r *ClubRepository) fillMemberCounts(ctx context.Context, clubs []model.Club) error {
	if len(clubs) == 0 {
		return nil
	}
	ids := make([]uint, len(clubs))
	for i := range clubs {
		ids[i] = clubs[i].ID
	}
	var counts []memberCount
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Select("club_id, COUNT(*) AS count").
		Where("club_id IN ?", ids).
		Group("club_id").
		Scan(&counts).Error
	if err != nil {
		return err
	}
	byClub := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byClub[c.ClubID] = c.Count
	}
	for i := range clubs {
		clubs[i].MemberCount = byClub[clubs[i].ID]
	}
	return nil
}

func (r *ClubRepository) ListClubs(ctx context.Context) ([]model.Club, error) {
	var clubs []model.Club
	if err := r.DB.WithContext(ctx).Order("name").Find(&clubs).Error; err != nil {
		return nil, err
	}
	return clubs, r.fillMemberCounts(ctx, clubs)
}

func (r *ClubRepository) ListClubsForUser(ctx context.Context, userID uint) ([]model.Club, error) {
	var clubs []model.Club
	err := r.DB.WithContext(ctx).
		Joins("JOIN club_memberships ON club_memberships.club_id = clubs.id").
		Where("club_memberships.user_id = ?", userID).
		Order("clubs.name").
		Find(&clubs).Error
	if err != nil {
		return nil, err
	}
	return clubs, r.fillMemberCounts(ctx, clubs)
}

func (r *ClubRepository) CreateMembership(ctx context.Context, m *model.Membership) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

// FindMembership returns gorm.ErrRecordNotFound when userID is not in the club.
func (r *ClubRepository) FindMembership(ctx context.Context, clubID, userID uint) (*model.Membership, error) {
	var m model.Membership
	err := r.DB.WithContext(ctx).
		Where("club_id = ? AND user_id = ?", clubID, userID).
		First(&m).Error
	return &m, err
}

func (r *ClubRepository) ListMembers(ctx context.Context, clubID uint) ([]model.Membership, error) {
	var members []model.Membership
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("club_id = ?", clubID).
		Order("joined_at, id").
		Find(&members).Error
	return members, err
}

func (r *ClubRepository) CountMembers(ctx context.Context, clubID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("club_id = ?", clubID).
		Count(&count).Error
	return count, err
}

func (r *ClubRepository) CountRole(ctx context.Context, clubID uint, role model.ClubRole) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("club_id = ? AND role = ?", clubID, role).
		Count(&count).Error
	return count, err
}

func (r *ClubRepository) UpdateRole(ctx context.Context, clubID, userID uint, role model.ClubRole) error {
	return r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("club_id = ? AND user_id = ?", clubID, userID).
		Update("role", role).Error
}

func (r *ClubRepository) DeleteMembership(ctx context.Context, clubID, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("club_id = ? AND user_id = ?", clubID, userID).
		Delete(&model.Membership{})
	return res.RowsAffected, res.Error
}

func (r *ClubRepository) CreateInvite(ctx context.Context, inv *model.ClubInvite) error {
	inv.Status = model.InvitePending
	key := model.InviteKey(inv.ClubID, inv.InviteeID)
	inv.ActiveKey = &key
	return r.DB.WithContext(ctx).Create(inv).Error
}

// FindPendingInvite returns the pending invite id addressed to inviteeID.
func (r *ClubRepository) FindPendingInvite(ctx context.Context, id, inviteeID uint) (*model.ClubInvite, error) {
	var inv model.ClubInvite
	err := r.DB.WithContext(ctx).
		Where("id = ? AND invitee_id = ? AND status = ?", id, inviteeID, model.InvitePending).
		First(&inv).Error
	return &inv, err
}

func (r *ClubRepository) HasPendingInvite(ctx context.Context, clubID, inviteeID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.ClubInvite{}).
		Where("active_key = ?", model.InviteKey(clubID, inviteeID)).
		Count(&count).Error
	return count > 0, err
}

// CloseInvite moves a pending invite to status and frees its active key. It
// reports false when the invite was no longer pending.
func (r *ClubRepository) CloseInvite(ctx context.Context, id uint, status model.InviteStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.ClubInvite{}).
		Where("id = ? AND status = ?", id, model.InvitePending).
		Updates(map[string]interface{}{"status": status, "active_key": nil})
	return res.RowsAffected == 1, res.Error
}

// ClosePendingInvites accepts any pending invite of userID to clubID; used when the
// user joins by other means.
func (r *ClubRepository) ClosePendingInvites(ctx context.Context, clubID, userID uint) error {
	return r.DB.WithContext(ctx).Model(&model.ClubInvite{}).
		Where("active_key = ?", model.InviteKey(clubID, userID)).
		Updates(map[string]interface{}{"status": model.InviteAccepted, "active_key": nil}).Error
}

func (r *ClubRepository) ListPendingInvites(ctx context.Context, inviteeID uint) ([]model.ClubInvite, error) {
	var invites []model.ClubInvite
	err := r.DB.WithContext(ctx).
		Preload("Club").
		Where("invitee_id = ? AND status = ?", inviteeID, model.InvitePending).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

// DeleteClub removes the club and everything it owns except its linked thread,
// which belongs to the thread registry.
func (r *ClubRepository) DeleteClub(ctx context.Context, clubID uint) error {
	db := r.DB.WithContext(ctx)
	for _, owned := range []interface{}{
		&model.ClubInvite{},
		&model.Membership{},
		&model.ClubEvent{},
		&model.ClubPost{},
	} {
		if err := db.Where("club_id = ?", clubID).Delete(owned).Error; err != nil {
			return err
		}
	}
	return db.Delete(&model.Club{}, clubID).Error
}

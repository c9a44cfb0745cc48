package model

import (
	"fmt"
	"time"
)

type ClubRole string

const (
	RoleMember    ClubRole = "member"
	RoleModerator ClubRole = "moderator"
	RoleAdmin     ClubRole = "admin"
)

// ParseClubRole validates a raw role value.
func ParseClubRole(s string) (ClubRole, bool) {
	switch r := ClubRole(s); r {
	case RoleMember, RoleModerator, RoleAdmin:
		return r, true
	}
	return "", false
}

// CanModerate reports moderator-or-admin.
func (r ClubRole) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type Club struct {
	BaseModel
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	OwnerID     uint   `gorm:"index" json:"ownerId"`
	IsPrivate   bool   `gorm:"default:false" json:"isPrivate"`
	MemberCount int64  `gorm:"-" json:"memberCount"`
}

func (Club) TableName() string {
	return "clubs"
}

type Membership struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint      `gorm:"uniqueIndex:idx_membership_user_club;not null" json:"userId"`
	User     User      `gorm:"foreignKey:UserID;constraint:false" json:"user,omitempty"`
	ClubID   uint      `gorm:"uniqueIndex:idx_membership_user_club;index;not null" json:"clubId"`
	Role     ClubRole  `gorm:"size:10;default:'member'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (Membership) TableName() string {
	return "club_memberships"
}

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRejected InviteStatus = "rejected"
)

// ClubInvite carries ActiveKey only while pending: one pending invite per (club, invitee).
type ClubInvite struct {
	ID        uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	ClubID    uint         `gorm:"index;not null" json:"clubId"`
	Club      Club         `gorm:"foreignKey:ClubID;constraint:false" json:"club,omitempty"`
	InviterID uint         `gorm:"not null" json:"inviterId"`
	InviteeID uint         `gorm:"index;not null" json:"inviteeId"`
	Status    InviteStatus `gorm:"size:10;default:'pending'" json:"status"`
	ActiveKey *string      `gorm:"size:40;uniqueIndex" json:"-"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"createdAt"`
}

func (ClubInvite) TableName() string {
	return "club_invites"
}

func InviteKey(clubID, inviteeID uint) string {
	return fmt.Sprintf("%d:%d", clubID, inviteeID)
}

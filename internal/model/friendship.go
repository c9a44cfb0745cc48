package model

import (
	"fmt"
	"time"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is one direction of a friendship handshake. Friendship is the symmetric closure of accepted rows.
//
// ActivePairKey is set while the request is pending or accepted and cleared on
// rejection, so the unique index allows at most one live request per unordered pair.
type FriendRequest struct {
	ID            uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	FromUserID    uint                `gorm:"index;not null" json:"fromUserId"`
	FromUser      User                `gorm:"foreignKey:FromUserID;constraint:false" json:"fromUser,omitempty"`
	ToUserID      uint                `gorm:"index;not null" json:"toUserId"`
	ToUser        User                `gorm:"foreignKey:ToUserID;constraint:false" json:"toUser,omitempty"`
	Status        FriendRequestStatus `gorm:"size:10;index;default:'pending'" json:"status"`
	ActivePairKey *string             `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"createdAt"`
	RespondedAt   *time.Time          `json:"respondedAt,omitempty"`
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}

// PairKey is the order-independent key of two users.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Other returns the party of the request that is not userID.
func (r *FriendRequest) Other(userID uint) uint {
	if r.FromUserID == userID {
		return r.ToUserID
	}
	return r.FromUserID
}

package model

import "time"

type NotificationType string

const (
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationClubInvite    NotificationType = "club_invite"
	NotificationMessage       NotificationType = "message"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint             `gorm:"index;not null" json:"userId"`
	Type      NotificationType `gorm:"size:30;not null" json:"type"`
	Message   string           `gorm:"size:255" json:"message"`
	RelatedID *uint            `json:"relatedId,omitempty"`
	IsRead    bool             `gorm:"default:false" json:"isRead"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

package model

import "time"

type ClubEvent struct {
	BaseModel
	ClubID      uint      `gorm:"index;not null" json:"clubId"`
	CreatorID   uint      `json:"creatorId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	StartsAt    time.Time `json:"startsAt"`
}

func (ClubEvent) TableName() string {
	return "club_events"
}

type ClubPost struct {
	BaseModel
	ClubID   uint   `gorm:"index;not null" json:"clubId"`
	AuthorID uint   `gorm:"index" json:"authorId"`
	Content  string `gorm:"type:text;not null" json:"content"`
}

func (ClubPost) TableName() string {
	return "club_posts"
}

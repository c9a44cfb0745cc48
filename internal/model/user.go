package model

// User is provisioned by the auth layer; the core only reads it.
type User struct {
	BaseModel
	Username    string `gorm:"size:60;uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"size:100" json:"displayName"`
	Email       string `gorm:"size:100" json:"email,omitempty"`
}

func (User) TableName() string {
	return "users"
}

package model

// Course is a class a linked thread can be bound to.
type Course struct {
	BaseModel
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

func (Course) TableName() string {
	return "courses"
}

package model

import (
	"time"
)

// BaseModel rows are hard-deleted: uniqueness constraints in this schema are the
// correctness mechanism and must not be shadowed by soft-deleted rows.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package model

import (
	"time"
)

// Rows are hard-deleted: cascades and get-or-create unique keys depend on it.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

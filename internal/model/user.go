package model

import (
	"time"
)

type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	LastLogin time.Time `json:"lastLogin"`

	Exercise *IntervalsExercise `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

func (User) TableName() string {
	return "users"
}

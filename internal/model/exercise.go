package model

import (
	"fmt"
)

type ExerciseSettings struct {
	BaseModel
	LowestOctave     int          `gorm:"not null" json:"lowestOctave"`
	HighestOctave    int          `gorm:"not null" json:"highestOctave"`
	IntervalType     IntervalType `gorm:"not null;default:0" json:"intervalType"`
	AllowedIntervals []Interval   `gorm:"-" json:"allowedIntervals"`
}

func (ExerciseSettings) TableName() string {
	return "intervals_exercise_settings"
}

// SettingsAllowedInterval is the settings <-> interval association row.
type SettingsAllowedInterval struct {
	SettingsID uint             `gorm:"primaryKey"`
	IntervalID uint             `gorm:"primaryKey"`
	Settings   ExerciseSettings `gorm:"constraint:OnDelete:CASCADE;"`
	Interval   Interval         `gorm:"constraint:OnDelete:CASCADE;"`
}

type ExerciseScore struct {
	BaseModel
	NumCorrect int `gorm:"not null;default:0" json:"numCorrect"`
	NumTotal   int `gorm:"not null;default:0" json:"numTotal"`
}

func (ExerciseScore) TableName() string {
	return "intervals_exercise_scores"
}

// Percentage is 100 when nothing has been answered yet.
func (s ExerciseScore) Percentage() float64 {
	if s.NumTotal == 0 {
		return 100
	}
	return 100 * float64(s.NumCorrect) / float64(s.NumTotal)
}

func (s ExerciseScore) PercentageString() string {
	return fmt.Sprintf("%.2f%%", s.Percentage())
}

// IntervalsExercise is the per-user exercise state.
type IntervalsExercise struct {
	BaseModel
	UserID     uint              `gorm:"not null;uniqueIndex" json:"userId"`
	QuestionID *uint             `json:"questionId"`
	Question   *IntervalInstance `gorm:"constraint:OnDelete:SET NULL;" json:"question,omitempty"`
	SettingsID *uint             `json:"settingsId"`
	Settings   *ExerciseSettings `gorm:"constraint:OnDelete:SET NULL;" json:"settings,omitempty"`
	ScoreID    *uint             `json:"scoreId"`
	Score      *ExerciseScore    `gorm:"constraint:OnDelete:SET NULL;" json:"score,omitempty"`
	IsAnswered bool              `gorm:"not null;default:false" json:"isAnswered"`
}

func (IntervalsExercise) TableName() string {
	return "intervals_exercises"
}

// ExerciseAnswer links an exercise to one of its answer instances.
type ExerciseAnswer struct {
	ExerciseID         uint              `gorm:"primaryKey" json:"exerciseId"`
	IntervalInstanceID uint              `gorm:"primaryKey" json:"intervalInstanceId"`
	Exercise           IntervalsExercise `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	IntervalInstance   IntervalInstance  `gorm:"constraint:OnDelete:CASCADE;" json:"intervalInstance"`
	IsCorrect          bool              `gorm:"not null;default:false" json:"isCorrect"`
}

func (ExerciseAnswer) TableName() string {
	return "intervals_exercise_answers"
}

package model

import (
	"fmt"
)

// IntervalType is how the two pitches of an interval are played back.
type IntervalType int

const (
	Harmonic IntervalType = iota
	MelodicAscending
	MelodicDescending
)

func (t IntervalType) Valid() bool {
	return t >= Harmonic && t <= MelodicDescending
}

// Interval is a lookup row identified by (num_semitones, interval_type).
// Name is only a label: enharmonic spellings share a row.
type Interval struct {
	BaseModel
	NumSemitones int          `gorm:"not null;uniqueIndex:idx_interval_semitones_type" json:"numSemitones"`
	IntervalType IntervalType `gorm:"not null;default:0;uniqueIndex:idx_interval_semitones_type" json:"intervalType"`
	Name         string       `gorm:"size:30;not null" json:"name"`
}

func (i Interval) String() string {
	return i.Name
}

// IntervalInstance is an interval built on a concrete start note.
type IntervalInstance struct {
	BaseModel
	StartNote  int      `gorm:"not null;uniqueIndex:idx_instance_start_interval" json:"startNote"`
	IntervalID uint     `gorm:"not null;uniqueIndex:idx_instance_start_interval" json:"intervalId"`
	Interval   Interval `gorm:"constraint:OnDelete:CASCADE;" json:"interval"`
	// storage key of the published mp3, empty until rendered
	Audio string `gorm:"size:255" json:"-"`
}

func (i IntervalInstance) String() string {
	return fmt.Sprintf("%s, start note: %d", i.Interval.Name, i.StartNote)
}

func (i IntervalInstance) HasAudio() bool {
	return i.Audio != ""
}

package audio

import (
	"earninja_backend/internal/model"
	"earninja_backend/internal/music"
	"fmt"
)

// Slot is a group of pitches sounding together for one note unit.
type Slot []int

// PitchPair returns the root and the pitch the interval lands on above it.
func PitchPair(startPitch int, intervalName string) (int, int, error) {
	if intervalName == "8" {
		return startPitch, startPitch + music.NumNotesInOctave, nil
	}
	n, err := music.NumSemitones(intervalName)
	if err != nil {
		return 0, 0, err
	}
	return startPitch, startPitch + n, nil
}

// Arrange lays the pitch pair out in time according to the playback type.
func Arrange(startPitch int, intervalName string, intervalType model.IntervalType) ([]Slot, error) {
	root, second, err := PitchPair(startPitch, intervalName)
	if err != nil {
		return nil, err
	}

	switch intervalType {
	case model.Harmonic:
		if root == second {
			return []Slot{{root}}, nil
		}
		return []Slot{{root, second}}, nil
	case model.MelodicAscending:
		return []Slot{{root}, {second}}, nil
	case model.MelodicDescending:
		return []Slot{{second}, {root}}, nil
	}
	return nil, fmt.Errorf("unknown interval type %d", intervalType)
}

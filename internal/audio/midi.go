package audio

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	midiChannel  = 0
	midiVelocity = 100
	midiTempo    = 120
	// pitch index 0 is C-0, which is MIDI key 12
	midiKeyOffset = 12
)

var ErrPitchOutOfRange = errors.New("pitch out of MIDI range")

var clock = smf.MetricTicks(480)

func midiKey(pitch int) (uint8, error) {
	key := pitch + midiKeyOffset
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("%w: %d", ErrPitchOutOfRange, pitch)
	}
	return uint8(key), nil
}

// WriteMIDI serializes the slots to a single-track Standard MIDI File.
func WriteMIDI(file string, slots []Slot, beatsPerNote int) error {
	if beatsPerNote <= 0 {
		beatsPerNote = 1
	}
	noteLength := clock.Ticks4th() * uint32(beatsPerNote)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(midiTempo))
	tr.Add(0, midi.ProgramChange(midiChannel, 0))

	for _, slot := range slots {
		keys := make([]uint8, 0, len(slot))
		for _, pitch := range slot {
			key, err := midiKey(pitch)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		for _, key := range keys {
			tr.Add(0, midi.NoteOn(midiChannel, key, midiVelocity))
		}
		for i, key := range keys {
			var delta uint32
			if i == 0 {
				delta = noteLength
			}
			tr.Add(delta, midi.NoteOff(midiChannel, key))
		}
	}
	// leave room for the release tail
	tr.Close(clock.Ticks4th())

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("add midi track: %w", err)
	}
	if err := s.WriteFile(file); err != nil {
		return fmt.Errorf("write midi file: %w", err)
	}
	return nil
}

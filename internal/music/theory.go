// Package music implements the small amount of interval arithmetic the
// exercises need: symbolic interval names, semitone distances and note names.
package music

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const NumNotesInOctave = 12

var ErrUnknownInterval = errors.New("unknown interval")

// IntervalNames lists the symbols offered to users, ordered by size.
var IntervalNames = []string{"1", "b2", "2", "b3", "3", "4", "#4", "5", "b6", "6", "b7", "7", "8"}

// IntervalTypes is indexed by model.IntervalType.
var IntervalTypes = []string{"harmonic", "melodic ascending", "melodic descending"}

// semitones above the reference C for scale degrees 1..7 of its major scale
var majorScale = [...]int{0, 2, 4, 5, 7, 9, 11}

var noteNames = [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var ordinals = map[int]string{
	2: "second",
	3: "third",
	4: "fourth",
	5: "fifth",
	6: "sixth",
	7: "seventh",
}

type parsedInterval struct {
	degree     int
	accidental int
}

func parse(symbol string) (parsedInterval, error) {
	s := symbol
	accidental := 0
	for len(s) > 0 && (s[0] == 'b' || s[0] == '#') {
		if s[0] == 'b' {
			accidental--
		} else {
			accidental++
		}
		s = s[1:]
	}
	degree, err := strconv.Atoi(s)
	if err != nil || degree < 1 || degree > 8 {
		return parsedInterval{}, fmt.Errorf("%w: %q", ErrUnknownInterval, symbol)
	}
	// unison and octave are only meaningful unaltered
	if (degree == 1 || degree == 8) && accidental != 0 {
		return parsedInterval{}, fmt.Errorf("%w: %q", ErrUnknownInterval, symbol)
	}
	return parsedInterval{degree: degree, accidental: accidental}, nil
}

// NumSemitones returns the size of the interval in semitones, 0 for "1" and 12 for "8".
func NumSemitones(symbol string) (int, error) {
	p, err := parse(symbol)
	if err != nil {
		return 0, err
	}
	switch p.degree {
	case 1:
		return 0, nil
	case 8:
		return NumNotesInOctave, nil
	}
	low := 0
	high := majorScale[p.degree-1] + p.accidental
	return abs(high - low), nil
}

// LongName returns the readable name, e.g. "perfect fifth" for "5".
func LongName(symbol string) (string, error) {
	p, err := parse(symbol)
	if err != nil {
		return "", err
	}
	switch p.degree {
	case 1:
		return "unison", nil
	case 8:
		return "octave", nil
	}
	return quality(p) + " " + ordinals[p.degree], nil
}

func quality(p parsedInterval) string {
	perfect := p.degree == 4 || p.degree == 5
	a := p.accidental
	if perfect {
		switch {
		case a == 0:
			return "perfect"
		case a > 0:
			return strings.Repeat("augmented ", a-1) + "augmented"
		default:
			return strings.Repeat("diminished ", -a-1) + "diminished"
		}
	}
	switch {
	case a == 0:
		return "major"
	case a == -1:
		return "minor"
	case a > 0:
		return strings.Repeat("augmented ", a-1) + "augmented"
	default:
		return strings.Repeat("diminished ", -a-2) + "diminished"
	}
}

// NoteName formats an absolute pitch index as letter and octave, e.g. 46 -> "A#-3".
// Chromatic notes are always spelled with sharps.
func NoteName(pitch int) string {
	octave := floorDiv(pitch, NumNotesInOctave)
	index := pitch - octave*NumNotesInOctave
	return fmt.Sprintf("%s-%d", noteNames[index], octave)
}

// IsValidInterval reports whether symbol can be used in settings.
func IsValidInterval(symbol string) bool {
	_, err := parse(symbol)
	return err == nil
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type TypeChoice struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// IntervalChoices pairs every offered symbol with a label like "minor third (b3)".
func IntervalChoices() []Choice {
	choices := make([]Choice, 0, len(IntervalNames))
	for _, name := range IntervalNames {
		long, _ := LongName(name)
		choices = append(choices, Choice{Value: name, Label: fmt.Sprintf("%s (%s)", long, name)})
	}
	return choices
}

func IntervalTypeChoices() []TypeChoice {
	choices := make([]TypeChoice, 0, len(IntervalTypes))
	for i, t := range IntervalTypes {
		choices = append(choices, TypeChoice{Value: i, Label: t})
	}
	return choices
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

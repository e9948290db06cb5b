package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrExerciseNotFound         = errors.New("intervals exercise not found")
	ErrSettingsNotFound         = errors.New("exercise settings not found")
	ErrAnswerNotFound           = errors.New("answer is not one of the current question's choices")
	ErrIntervalInstanceNotFound = errors.New("interval instance not found")
	ErrNoActiveQuestion         = errors.New("exercise has no active question")
	ErrQuestionAlreadyAnswered  = errors.New("question has already been answered")

	ErrInvalidOctaveRange  = errors.New("Lowest octave has to be less than or equal to highest octave")
	ErrOctaveOutOfRange    = errors.New("octave must be between 0 and 7")
	ErrInvalidIntervalType = errors.New("invalid interval type")
	ErrNoAllowedIntervals  = errors.New("at least one interval must be allowed")
)

package service

import (
	"context"
	"earninja_backend/internal/model"
	"time"
)

// IntervalStore is the persistence the audio and exercise services need
// for intervals and their instances.
type IntervalStore interface {
	GetOrCreateInterval(ctx context.Context, semitones int, intervalType model.IntervalType, name string) (*model.Interval, bool, error)
	GetOrCreateInstance(ctx context.Context, startNote int, intervalID uint) (*model.IntervalInstance, bool, error)
	FindInstanceByID(ctx context.Context, id uint) (*model.IntervalInstance, error)
	UpdateInstanceAudio(ctx context.Context, id uint, audio string) error
	ListInstancesWithoutAudio(ctx context.Context) ([]model.IntervalInstance, error)
}

type ExerciseStore interface {
	FindByUserID(ctx context.Context, userID uint) (*model.IntervalsExercise, error)
	Create(ctx context.Context, exercise *model.IntervalsExercise) error
	SetSettings(ctx context.Context, exerciseID uint, settingsID *uint) error
	SetScore(ctx context.Context, exerciseID uint, scoreID *uint) error
	SetQuestion(ctx context.Context, exerciseID uint, questionID uint) error
	AnswerQuestion(ctx context.Context, exerciseID uint, scoreID uint, correct bool) (bool, error)

	CreateSettings(ctx context.Context, settings *model.ExerciseSettings) error
	DeleteSettings(ctx context.Context, settingsID uint) error
	FindSettings(ctx context.Context, settingsID uint) (*model.ExerciseSettings, error)
	SetAllowedIntervals(ctx context.Context, settingsID uint, intervalIDs []uint) error

	ReplaceAnswers(ctx context.Context, exerciseID uint, instanceIDs []uint) error
	MarkCorrect(ctx context.Context, exerciseID uint, instanceID uint) error
	ListAnswers(ctx context.Context, exerciseID uint) ([]model.ExerciseAnswer, error)
	FindAnswer(ctx context.Context, exerciseID uint, instanceID uint) (*model.ExerciseAnswer, error)

	CreateScore(ctx context.Context, score *model.ExerciseScore) error
	FindScore(ctx context.Context, scoreID uint) (*model.ExerciseScore, error)
	IncrementScore(ctx context.Context, scoreID uint, correct bool) error
	ResetScore(ctx context.Context, scoreID uint) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

// FileStore is the subset of StorageService used for published assets.
type FileStore interface {
	UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetURL(key string) string
}

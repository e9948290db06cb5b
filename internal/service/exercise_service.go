package service

import (
	"context"
	"earninja_backend/internal/config"
	"earninja_backend/internal/model"
	"earninja_backend/internal/music"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/logger"
	"earninja_backend/pkg/monitoring"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rand is the randomness used to draw questions.
type Rand interface {
	IntN(n int) int
}

type defaultRand struct{}

func (defaultRand) IntN(n int) int { return rand.IntN(n) }

// ExerciseDefaults seed a fresh exercise's settings.
type ExerciseDefaults struct {
	LowestOctave     int
	HighestOctave    int
	AllowedIntervals []string
	IntervalType     model.IntervalType
}

func DefaultsFromConfig(cfg config.IntervalsConfig) ExerciseDefaults {
	return ExerciseDefaults{
		LowestOctave:     cfg.DefaultLowestOctave,
		HighestOctave:    cfg.DefaultHighestOctave,
		AllowedIntervals: append([]string(nil), cfg.DefaultAllowedIntervals...),
		IntervalType:     model.IntervalType(cfg.DefaultIntervalType),
	}
}

// SettingsInput is a user's requested exercise settings.
type SettingsInput struct {
	LowestOctave     int                `json:"lowestOctave"`
	HighestOctave    int                `json:"highestOctave"`
	IntervalType     model.IntervalType `json:"intervalType"`
	AllowedIntervals []string           `json:"allowedIntervals"`
}

func (in SettingsInput) Validate() error {
	if in.LowestOctave < util.MinOctave || in.LowestOctave > util.MaxOctave ||
		in.HighestOctave < util.MinOctave || in.HighestOctave > util.MaxOctave {
		return util.ErrOctaveOutOfRange
	}
	if in.LowestOctave > in.HighestOctave {
		return util.ErrInvalidOctaveRange
	}
	if !in.IntervalType.Valid() {
		return util.ErrInvalidIntervalType
	}
	return validateSymbols(in.AllowedIntervals)
}

func validateSymbols(symbols []string) error {
	if len(symbols) == 0 {
		return util.ErrNoAllowedIntervals
	}
	for _, symbol := range symbols {
		if !music.IsValidInterval(symbol) {
			return fmt.Errorf("%w: %q", music.ErrUnknownInterval, symbol)
		}
	}
	return nil
}

// AnswerResult is the outcome of one submitted answer.
type AnswerResult struct {
	Correct         bool                 `json:"correct"`
	CorrectAnswerID uint                 `json:"correctAnswerId"`
	Score           *model.ExerciseScore `json:"score"`
}

// ExerciseService generates interval questions and keeps the score.
type ExerciseService struct {
	Exercises ExerciseStore
	Intervals IntervalStore
	Renderer  Renderer
	Rand      Rand

	mu       sync.RWMutex
	defaults ExerciseDefaults
}

func NewExerciseService(exercises ExerciseStore, intervals IntervalStore, renderer Renderer, defaults ExerciseDefaults) *ExerciseService {
	return &ExerciseService{
		Exercises: exercises,
		Intervals: intervals,
		Renderer:  renderer,
		Rand:      defaultRand{},
		defaults:  defaults,
	}
}

func (s *ExerciseService) Defaults() ExerciseDefaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.defaults
	d.AllowedIntervals = append([]string(nil), s.defaults.AllowedIntervals...)
	return d
}

// SetDefaults replaces the defaults used by later SetDefaultSettings calls.
func (s *ExerciseService) SetDefaults(d ExerciseDefaults) {
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
}

// GetOrCreateExercise returns the user's exercise, creating it with default
// settings and a zeroed score on first use.
func (s *ExerciseService) GetOrCreateExercise(ctx context.Context, userID uint) (*model.IntervalsExercise, error) {
	exercise, err := s.Exercises.FindByUserID(ctx, userID)
	if err == nil {
		return exercise, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	exercise = &model.IntervalsExercise{UserID: userID}
	if createErr := s.Exercises.Create(ctx, exercise); createErr != nil {
		// concurrent first request for the same user
		if existing, err := s.Exercises.FindByUserID(ctx, userID); err == nil {
			return existing, nil
		}
		return nil, createErr
	}

	if err := s.SetDefaultSettings(ctx, exercise); err != nil {
		return nil, err
	}
	if _, err := s.ResetScore(ctx, exercise); err != nil {
		return nil, err
	}
	logger.Log.Info("Created intervals exercise", zap.Uint("user_id", userID), zap.Uint("exercise_id", exercise.ID))
	return exercise, nil
}

// FindExercise does not create anything.
func (s *ExerciseService) FindExercise(ctx context.Context, userID uint) (*model.IntervalsExercise, error) {
	exercise, err := s.Exercises.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExerciseNotFound
	}
	return exercise, err
}

// SetDefaultSettings always deletes the current settings and creates new
// ones from the defaults.
func (s *ExerciseService) SetDefaultSettings(ctx context.Context, exercise *model.IntervalsExercise) error {
	d := s.Defaults()
	_, err := s.replaceSettings(ctx, exercise, SettingsInput{
		LowestOctave:     d.LowestOctave,
		HighestOctave:    d.HighestOctave,
		IntervalType:     d.IntervalType,
		AllowedIntervals: d.AllowedIntervals,
	})
	return err
}

// UpdateSettings validates input before touching the database, then swaps
// the exercise's settings row for a new one.
func (s *ExerciseService) UpdateSettings(ctx context.Context, exercise *model.IntervalsExercise, input SettingsInput) (*model.ExerciseSettings, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.replaceSettings(ctx, exercise, input)
}

func (s *ExerciseService) replaceSettings(ctx context.Context, exercise *model.IntervalsExercise, input SettingsInput) (*model.ExerciseSettings, error) {
	if err := validateSymbols(input.AllowedIntervals); err != nil {
		return nil, err
	}

	settings := &model.ExerciseSettings{
		LowestOctave:  input.LowestOctave,
		HighestOctave: input.HighestOctave,
		IntervalType:  input.IntervalType,
	}
	if err := s.Exercises.CreateSettings(ctx, settings); err != nil {
		return nil, err
	}
	if err := s.SetAllowedIntervals(ctx, settings, input.AllowedIntervals, input.IntervalType); err != nil {
		return nil, err
	}

	old := exercise.SettingsID
	if err := s.Exercises.SetSettings(ctx, exercise.ID, &settings.ID); err != nil {
		return nil, err
	}
	if old != nil {
		if err := s.Exercises.DeleteSettings(ctx, *old); err != nil {
			return nil, err
		}
	}

	exercise.SettingsID = &settings.ID
	exercise.Settings = settings
	return settings, nil
}

// SetAllowedIntervals resolves each symbol to the Interval row with the same
// semitones and type, creating it if needed, and makes them the exact allowed
// set. Existing rows keep their original name.
func (s *ExerciseService) SetAllowedIntervals(ctx context.Context, settings *model.ExerciseSettings, symbols []string, intervalType model.IntervalType) error {
	if !intervalType.Valid() {
		return util.ErrInvalidIntervalType
	}

	ids := make([]uint, 0, len(symbols))
	for _, symbol := range symbols {
		semitones, err := music.NumSemitones(symbol)
		if err != nil {
			return err
		}
		interval, _, err := s.Intervals.GetOrCreateInterval(ctx, semitones, intervalType, symbol)
		if err != nil {
			return err
		}
		ids = append(ids, interval.ID)
	}

	if err := s.Exercises.SetAllowedIntervals(ctx, settings.ID, ids); err != nil {
		return err
	}

	loaded, err := s.Exercises.FindSettings(ctx, settings.ID)
	if err != nil {
		return err
	}
	settings.AllowedIntervals = loaded.AllowedIntervals
	return nil
}

// Settings loads the exercise settings with their allowed intervals.
func (s *ExerciseService) Settings(ctx context.Context, exercise *model.IntervalsExercise) (*model.ExerciseSettings, error) {
	if exercise.SettingsID == nil {
		return nil, util.ErrSettingsNotFound
	}
	settings, err := s.Exercises.FindSettings(ctx, *exercise.SettingsID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSettingsNotFound
	}
	return settings, err
}

// GenerateNewQuestion draws a start note and an allowed interval, builds one
// answer per allowed interval at that start note and flags the question's.
func (s *ExerciseService) GenerateNewQuestion(ctx context.Context, exercise *model.IntervalsExercise) (*model.IntervalInstance, error) {
	settings, err := s.Settings(ctx, exercise)
	if err != nil {
		return nil, err
	}
	if len(settings.AllowedIntervals) == 0 {
		return nil, util.ErrNoAllowedIntervals
	}

	lowest := settings.LowestOctave * music.NumNotesInOctave
	highest := (settings.HighestOctave+1)*music.NumNotesInOctave - 1
	startNote := lowest + s.Rand.IntN(highest-lowest+1)
	questionInterval := settings.AllowedIntervals[s.Rand.IntN(len(settings.AllowedIntervals))]

	var question *model.IntervalInstance
	answerIDs := make([]uint, 0, len(settings.AllowedIntervals))
	for _, interval := range settings.AllowedIntervals {
		instance, _, err := s.Intervals.GetOrCreateInstance(ctx, startNote, interval.ID)
		if err != nil {
			return nil, err
		}
		answerIDs = append(answerIDs, instance.ID)
		if interval.ID == questionInterval.ID {
			question = instance
		}
	}

	if err := s.Exercises.ReplaceAnswers(ctx, exercise.ID, answerIDs); err != nil {
		return nil, err
	}
	if err := s.Exercises.MarkCorrect(ctx, exercise.ID, question.ID); err != nil {
		return nil, err
	}
	if err := s.Exercises.SetQuestion(ctx, exercise.ID, question.ID); err != nil {
		return nil, err
	}

	exercise.QuestionID = &question.ID
	exercise.Question = question
	exercise.IsAnswered = false
	monitoring.QuestionsGenerated.Inc()

	logger.Log.Debug("Generated interval question",
		zap.Uint("exercise_id", exercise.ID),
		zap.String("question", question.String()),
		zap.Int("answers", len(answerIDs)))
	return question, nil
}

// Answers lists the current answers ordered by semitones.
func (s *ExerciseService) Answers(ctx context.Context, exercise *model.IntervalsExercise) ([]model.ExerciseAnswer, error) {
	return s.Exercises.ListAnswers(ctx, exercise.ID)
}

// SaveAudioFiles asks the renderer for every answer that has no audio yet.
func (s *ExerciseService) SaveAudioFiles(ctx context.Context, exercise *model.IntervalsExercise) error {
	answers, err := s.Exercises.ListAnswers(ctx, exercise.ID)
	if err != nil {
		return err
	}

	var errs []error
	for _, answer := range answers {
		if answer.IntervalInstance.HasAudio() {
			continue
		}
		if err := s.Renderer.Render(ctx, answer.IntervalInstanceID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubmitAnswer scores the answer once per question. Marking the question
// answered and counting the score commit together.
func (s *ExerciseService) SubmitAnswer(ctx context.Context, exercise *model.IntervalsExercise, answerID uint) (*AnswerResult, error) {
	if exercise.QuestionID == nil {
		return nil, util.ErrNoActiveQuestion
	}
	answer, err := s.Exercises.FindAnswer(ctx, exercise.ID, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAnswerNotFound
		}
		return nil, err
	}
	if exercise.IsAnswered {
		return nil, util.ErrQuestionAlreadyAnswered
	}

	scoreID, err := s.ensureScore(ctx, exercise)
	if err != nil {
		return nil, err
	}
	flipped, err := s.Exercises.AnswerQuestion(ctx, exercise.ID, scoreID, answer.IsCorrect)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, util.ErrQuestionAlreadyAnswered
	}
	exercise.IsAnswered = true
	recordAnswer(answer.IsCorrect)

	score, err := s.Score(ctx, exercise)
	if err != nil {
		return nil, err
	}

	return &AnswerResult{
		Correct:         answer.IsCorrect,
		CorrectAnswerID: *exercise.QuestionID,
		Score:           score,
	}, nil
}

// UpdateScore adds one to the total, and one to correct iff answerID is the
// answer currently flagged correct.
func (s *ExerciseService) UpdateScore(ctx context.Context, exercise *model.IntervalsExercise, answerID uint) (bool, error) {
	scoreID, err := s.ensureScore(ctx, exercise)
	if err != nil {
		return false, err
	}

	correct := false
	answer, err := s.Exercises.FindAnswer(ctx, exercise.ID, answerID)
	switch {
	case err == nil:
		correct = answer.IsCorrect
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	if err := s.Exercises.IncrementScore(ctx, scoreID, correct); err != nil {
		return false, err
	}
	recordAnswer(correct)
	return correct, nil
}

func recordAnswer(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	monitoring.AnswersSubmitted.WithLabelValues(result).Inc()
}

// ResetScore creates the score if missing and zeroes it.
func (s *ExerciseService) ResetScore(ctx context.Context, exercise *model.IntervalsExercise) (*model.ExerciseScore, error) {
	scoreID, err := s.ensureScore(ctx, exercise)
	if err != nil {
		return nil, err
	}
	if err := s.Exercises.ResetScore(ctx, scoreID); err != nil {
		return nil, err
	}
	return s.Score(ctx, exercise)
}

func (s *ExerciseService) Score(ctx context.Context, exercise *model.IntervalsExercise) (*model.ExerciseScore, error) {
	scoreID, err := s.ensureScore(ctx, exercise)
	if err != nil {
		return nil, err
	}
	score, err := s.Exercises.FindScore(ctx, scoreID)
	if err != nil {
		return nil, err
	}
	exercise.Score = score
	return score, nil
}

func (s *ExerciseService) ensureScore(ctx context.Context, exercise *model.IntervalsExercise) (uint, error) {
	if exercise.ScoreID != nil {
		return *exercise.ScoreID, nil
	}
	score := &model.ExerciseScore{}
	if err := s.Exercises.CreateScore(ctx, score); err != nil {
		return 0, err
	}
	if err := s.Exercises.SetScore(ctx, exercise.ID, &score.ID); err != nil {
		return 0, err
	}
	exercise.ScoreID = &score.ID
	exercise.Score = score
	return score.ID, nil
}

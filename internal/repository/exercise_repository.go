package repository

import (
	"context"
	"earninja_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExerciseRepository struct {
	DB *gorm.DB
}

func NewExerciseRepository(db *gorm.DB) *ExerciseRepository {
	return &ExerciseRepository{DB: db}
}

// FindByUserID loads the exercise with its settings, score and question.
// Allowed intervals are not loaded, see FindSettings.
func (r *ExerciseRepository) FindByUserID(ctx context.Context, userID uint) (*model.IntervalsExercise, error) {
	var exercise model.IntervalsExercise
	err := r.DB.WithContext(ctx).
		Preload("Settings").
		Preload("Score").
		Preload("Question.Interval").
		Where("user_id = ?", userID).
		First(&exercise).Error
	if err != nil {
		return nil, err
	}
	return &exercise, nil
}

func (r *ExerciseRepository) Create(ctx context.Context, exercise *model.IntervalsExercise) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(exercise).Error
}

func (r *ExerciseRepository) SetSettings(ctx context.Context, exerciseID uint, settingsID *uint) error {
	return r.updateExercise(ctx, exerciseID, map[string]interface{}{"settings_id": settingsID})
}

func (r *ExerciseRepository) SetScore(ctx context.Context, exerciseID uint, scoreID *uint) error {
	return r.updateExercise(ctx, exerciseID, map[string]interface{}{"score_id": scoreID})
}

// SetQuestion assigns a fresh, unanswered question.
func (r *ExerciseRepository) SetQuestion(ctx context.Context, exerciseID uint, questionID uint) error {
	return r.updateExercise(ctx, exerciseID, map[string]interface{}{
		"question_id": questionID,
		"is_answered": false,
	})
}

// AnswerQuestion flips is_answered and bumps the score in one transaction.
// It returns false without touching the score when the question was
// already answered, and rolls back the flip when the score is missing.
func (r *ExerciseRepository) AnswerQuestion(ctx context.Context, exerciseID uint, scoreID uint, correct bool) (bool, error) {
	flipped := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.IntervalsExercise{}).
			Where("id = ? AND is_answered = ?", exerciseID, false).
			Update("is_answered", true)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}

		res = incrementScore(tx, scoreID, correct)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		flipped = true
		return nil
	})
	return flipped, err
}

func (r *ExerciseRepository) updateExercise(ctx context.Context, exerciseID uint, fields map[string]interface{}) error {
	return r.DB.WithContext(ctx).
		Model(&model.IntervalsExercise{}).
		Where("id = ?", exerciseID).
		Updates(fields).Error
}

func (r *ExerciseRepository) CreateSettings(ctx context.Context, settings *model.ExerciseSettings) error {
	return r.DB.WithContext(ctx).Create(settings).Error
}

func (r *ExerciseRepository) DeleteSettings(ctx context.Context, settingsID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteSettings(tx, settingsID)
	})
}

// join rows are removed explicitly so sqlite without foreign keys behaves the same
func deleteSettings(tx *gorm.DB, settingsID uint) error {
	if err := tx.Where("settings_id = ?", settingsID).Delete(&model.SettingsAllowedInterval{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.IntervalsExercise{}).
		Where("settings_id = ?", settingsID).
		Update("settings_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&model.ExerciseSettings{}, settingsID).Error
}

// FindSettings loads settings with AllowedIntervals ordered by semitones.
func (r *ExerciseRepository) FindSettings(ctx context.Context, settingsID uint) (*model.ExerciseSettings, error) {
	var settings model.ExerciseSettings
	if err := r.DB.WithContext(ctx).First(&settings, settingsID).Error; err != nil {
		return nil, err
	}

	err := r.DB.WithContext(ctx).
		Model(&model.Interval{}).
		Joins("JOIN settings_allowed_intervals sai ON sai.interval_id = intervals.id").
		Where("sai.settings_id = ?", settingsID).
		Order("intervals.num_semitones, intervals.id").
		Find(&settings.AllowedIntervals).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetAllowedIntervals replaces the allowed set with exactly intervalIDs.
func (r *ExerciseRepository) SetAllowedIntervals(ctx context.Context, settingsID uint, intervalIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("settings_id = ?", settingsID).Delete(&model.SettingsAllowedInterval{}).Error; err != nil {
			return err
		}
		rows := joinRows(intervalIDs, func(id uint) model.SettingsAllowedInterval {
			return model.SettingsAllowedInterval{SettingsID: settingsID, IntervalID: id}
		})
		if len(rows) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
}

// ReplaceAnswers makes instanceIDs the exact answer set, all flagged incorrect.
func (r *ExerciseRepository) ReplaceAnswers(ctx context.Context, exerciseID uint, instanceIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exercise_id = ?", exerciseID).Delete(&model.ExerciseAnswer{}).Error; err != nil {
			return err
		}
		rows := joinRows(instanceIDs, func(id uint) model.ExerciseAnswer {
			return model.ExerciseAnswer{ExerciseID: exerciseID, IntervalInstanceID: id}
		})
		if len(rows) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
}

// MarkCorrect clears every is_correct flag of the exercise, then sets the
// flag of instanceID.
func (r *ExerciseRepository) MarkCorrect(ctx context.Context, exerciseID uint, instanceID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ExerciseAnswer{}).
			Where("exercise_id = ?", exerciseID).
			Update("is_correct", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.ExerciseAnswer{}).
			Where("exercise_id = ? AND interval_instance_id = ?", exerciseID, instanceID).
			Update("is_correct", true).Error
	})
}

// ListAnswers orders answers by the semitones of their interval.
func (r *ExerciseRepository) ListAnswers(ctx context.Context, exerciseID uint) ([]model.ExerciseAnswer, error) {
	var answers []model.ExerciseAnswer
	err := r.DB.WithContext(ctx).
		Preload("IntervalInstance.Interval").
		Joins("JOIN interval_instances ii ON ii.id = intervals_exercise_answers.interval_instance_id").
		Joins("JOIN intervals i ON i.id = ii.interval_id").
		Where("intervals_exercise_answers.exercise_id = ?", exerciseID).
		Order("i.num_semitones, ii.id").
		Find(&answers).Error
	return answers, err
}

func (r *ExerciseRepository) FindAnswer(ctx context.Context, exerciseID uint, instanceID uint) (*model.ExerciseAnswer, error) {
	var answer model.ExerciseAnswer
	err := r.DB.WithContext(ctx).
		Preload("IntervalInstance.Interval").
		Where("exercise_id = ? AND interval_instance_id = ?", exerciseID, instanceID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *ExerciseRepository) CreateScore(ctx context.Context, score *model.ExerciseScore) error {
	return r.DB.WithContext(ctx).Create(score).Error
}

func (r *ExerciseRepository) FindScore(ctx context.Context, scoreID uint) (*model.ExerciseScore, error) {
	var score model.ExerciseScore
	if err := r.DB.WithContext(ctx).First(&score, scoreID).Error; err != nil {
		return nil, err
	}
	return &score, nil
}

// IncrementScore bumps the counters in place so concurrent answers never lose an update.
func (r *ExerciseRepository) IncrementScore(ctx context.Context, scoreID uint, correct bool) error {
	return incrementScore(r.DB.WithContext(ctx), scoreID, correct).Error
}

func incrementScore(tx *gorm.DB, scoreID uint, correct bool) *gorm.DB {
	fields := map[string]interface{}{
		"num_total": gorm.Expr("num_total + ?", 1),
	}
	if correct {
		fields["num_correct"] = gorm.Expr("num_correct + ?", 1)
	}
	return tx.Model(&model.ExerciseScore{}).
		Where("id = ?", scoreID).
		Updates(fields)
}

func (r *ExerciseRepository) ResetScore(ctx context.Context, scoreID uint) error {
	return r.DB.WithContext(ctx).
		Model(&model.ExerciseScore{}).
		Where("id = ?", scoreID).
		Updates(map[string]interface{}{"num_correct": 0, "num_total": 0}).Error
}

// joinRows drops duplicate ids, keeping first-seen order.
func joinRows[T any](ids []uint, build func(uint) T) []T {
	seen := make(map[uint]struct{}, len(ids))
	rows := make([]T, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, build(id))
	}
	return rows
}

package repository

import (
	"context"
	"earninja_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Omit("Exercise").Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
}

// Delete removes the user together with the exercise state it owns.
// Settings and score rows are only referenced by the exercise, so they go too.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exercise model.IntervalsExercise
		err := tx.Where("user_id = ?", id).Limit(1).Find(&exercise).Error
		if err != nil {
			return err
		}

		if exercise.ID != 0 {
			if err := tx.Where("exercise_id = ?", exercise.ID).Delete(&model.ExerciseAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.IntervalsExercise{}, exercise.ID).Error; err != nil {
				return err
			}
			if exercise.SettingsID != nil {
				if err := deleteSettings(tx, *exercise.SettingsID); err != nil {
					return err
				}
			}
			if exercise.ScoreID != nil {
				if err := tx.Delete(&model.ExerciseScore{}, *exercise.ScoreID).Error; err != nil {
					return err
				}
			}
		}

		return tx.Delete(&model.User{}, id).Error
	})
}

package repository

import (
	"context"
	"earninja_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

type IntervalRepository struct {
	DB *gorm.DB
}

func NewIntervalRepository(db *gorm.DB) *IntervalRepository {
	return &IntervalRepository{DB: db}
}

// GetOrCreateInterval looks the row up by (semitones, type). name is only
// stored when the row is created, so an existing enharmonic spelling wins.
func (r *IntervalRepository) GetOrCreateInterval(ctx context.Context, semitones int, intervalType model.IntervalType, name string) (*model.Interval, bool, error) {
	find := func() (*model.Interval, error) {
		var interval model.Interval
		err := r.DB.WithContext(ctx).
			Where("num_semitones = ? AND interval_type = ?", semitones, intervalType).
			First(&interval).Error
		return &interval, err
	}

	interval, err := find()
	if err == nil {
		return interval, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	interval = &model.Interval{NumSemitones: semitones, IntervalType: intervalType, Name: name}
	if createErr := r.DB.WithContext(ctx).Create(interval).Error; createErr != nil {
		// lost a race against a concurrent insert of the same key
		if existing, err := find(); err == nil {
			return existing, false, nil
		}
		return nil, false, createErr
	}
	return interval, true, nil
}

// GetOrCreateInstance returns the instance with its Interval loaded.
func (r *IntervalRepository) GetOrCreateInstance(ctx context.Context, startNote int, intervalID uint) (*model.IntervalInstance, bool, error) {
	find := func() (*model.IntervalInstance, error) {
		var instance model.IntervalInstance
		err := r.DB.WithContext(ctx).
			Preload("Interval").
			Where("start_note = ? AND interval_id = ?", startNote, intervalID).
			First(&instance).Error
		return &instance, err
	}

	instance, err := find()
	if err == nil {
		return instance, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := &model.IntervalInstance{StartNote: startNote, IntervalID: intervalID}
	if createErr := r.DB.WithContext(ctx).Omit("Interval").Create(created).Error; createErr != nil {
		if existing, err := find(); err == nil {
			return existing, false, nil
		}
		return nil, false, createErr
	}

	// reload for the Interval association
	instance, err = find()
	if err != nil {
		return nil, false, err
	}
	return instance, true, nil
}

func (r *IntervalRepository) FindInstanceByID(ctx context.Context, id uint) (*model.IntervalInstance, error) {
	var instance model.IntervalInstance
	err := r.DB.WithContext(ctx).Preload("Interval").First(&instance, id).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *IntervalRepository) UpdateInstanceAudio(ctx context.Context, id uint, audio string) error {
	return r.DB.WithContext(ctx).
		Model(&model.IntervalInstance{}).
		Where("id = ?", id).
		Update("audio", audio).Error
}

func (r *IntervalRepository) ListInstancesWithoutAudio(ctx context.Context) ([]model.IntervalInstance, error) {
	var instances []model.IntervalInstance
	err := r.DB.WithContext(ctx).
		Preload("Interval").
		Where("audio = ? OR audio IS NULL", "").
		Order("id").
		Find(&instances).Error
	return instances, err
}

func (r *IntervalRepository) ListIntervals(ctx context.Context) ([]model.Interval, error) {
	var intervals []model.Interval
	err := r.DB.WithContext(ctx).
		Order("interval_type, num_semitones").
		Find(&intervals).Error
	return intervals, err
}

package service

import (
	"context"
	"earninja_backend/internal/model"
	"earninja_backend/internal/music"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/logger"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// PrepareReport summarises one pre-generation run.
type PrepareReport struct {
	Intervals        int
	InstancesCreated int
	Rendered         int64
	Failed           int64
}

// PrepareService pre-generates intervals, instances and their audio so the
// first questions in a range do not wait for renders.
type PrepareService struct {
	Intervals IntervalStore
	Renderer  Renderer
}

func NewPrepareService(intervals IntervalStore, renderer Renderer) *PrepareService {
	return &PrepareService{Intervals: intervals, Renderer: renderer}
}

// PrepareIntervals creates every interval of every type and each of its
// instances in the octave range, then renders instances that have no audio
// using workers goroutines.
func (s *PrepareService) PrepareIntervals(ctx context.Context, lowestOctave, highestOctave, workers int) (*PrepareReport, error) {
	if lowestOctave < util.MinOctave || highestOctave > util.MaxOctave {
		return nil, util.ErrOctaveOutOfRange
	}
	if lowestOctave > highestOctave {
		return nil, util.ErrInvalidOctaveRange
	}
	if workers <= 0 {
		workers = 1
	}

	report := &PrepareReport{}
	var pending []uint
	for t := range music.IntervalTypes {
		intervalType := model.IntervalType(t)
		for _, name := range music.IntervalNames {
			semitones, err := music.NumSemitones(name)
			if err != nil {
				return nil, err
			}
			interval, _, err := s.Intervals.GetOrCreateInterval(ctx, semitones, intervalType, name)
			if err != nil {
				return nil, err
			}
			report.Intervals++
			logger.Log.Info("Preparing interval",
				zap.String("interval", interval.Name),
				zap.String("type", music.IntervalTypes[t]))

			for start := lowestOctave * music.NumNotesInOctave; start < (highestOctave+1)*music.NumNotesInOctave; start++ {
				instance, created, err := s.Intervals.GetOrCreateInstance(ctx, start, interval.ID)
				if err != nil {
					return nil, err
				}
				if created {
					report.InstancesCreated++
				}
				if !instance.HasAudio() {
					pending = append(pending, instance.ID)
				}
			}
		}
	}

	jobs := make(chan uint)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := s.Renderer.Render(ctx, id); err != nil {
					atomic.AddInt64(&report.Failed, 1)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					continue
				}
				atomic.AddInt64(&report.Rendered, 1)
			}
		}()
	}

feed:
	for _, id := range pending {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}

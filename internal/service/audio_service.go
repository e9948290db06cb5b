package service

import (
	"context"
	"earninja_backend/internal/audio"
	"earninja_backend/internal/model"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/logger"
	"earninja_backend/pkg/monitoring"
	"earninja_backend/pkg/tracing"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AudioService renders interval instance audio and publishes it to the file store.
type AudioService struct {
	Intervals IntervalStore
	Storage   FileStore
	Tools     *audio.Toolchain
	// local directory for intermediate .mid/.wav/.mp3 files
	WorkDir string
}

func NewAudioService(intervals IntervalStore, storage FileStore, tools *audio.Toolchain, workDir string) *AudioService {
	return &AudioService{
		Intervals: intervals,
		Storage:   storage,
		Tools:     tools,
		WorkDir:   workDir,
	}
}

// AudioURL is where the instance audio is or will be served.
func (s *AudioService) AudioURL(instance *model.IntervalInstance) string {
	key := instance.Audio
	if key == "" {
		key = audio.InstanceAudioPath(instance.ID)
	}
	return s.Storage.GetURL(key)
}

// UpdateIntervalInstanceAudio renders the instance into intermediate files,
// drops the previously published asset and publishes the new mp3 under the
// canonical key unless a concurrent render already did. Intermediate files
// are always removed.
func (s *AudioService) UpdateIntervalInstanceAudio(ctx context.Context, instanceID uint) (err error) {
	ctx, span := tracing.StartRender(ctx, instanceID)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	log := logger.Log.With(zap.Uint("interval_instance_id", instanceID))

	instance, err := s.Intervals.FindInstanceByID(ctx, instanceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %d", util.ErrIntervalInstanceNotFound, instanceID)
	}
	if err != nil {
		return err
	}

	key := audio.InstanceAudioPath(instance.ID)
	base := filepath.Join(s.WorkDir, filepath.FromSlash(audio.IntermediateBasePath(key)))
	saver := s.Tools.NewSaver(base)
	defer func() {
		if cleanupErr := saver.DeleteFiles(); cleanupErr != nil {
			log.Warn("Failed to remove intermediate audio files", zap.Error(cleanupErr))
		}
	}()

	err = saver.SaveIntervalInstanceAudio(ctx, instance.StartNote, instance.Interval.Name, instance.Interval.IntervalType)
	if err != nil {
		monitoring.AudioRenders.WithLabelValues("failed").Inc()
		log.Error("Interval audio render failed", zap.Error(err))
		return fmt.Errorf("render interval instance %d: %w", instanceID, err)
	}
	if err = checkMP3(saver.MP3Path()); err != nil {
		monitoring.AudioRenders.WithLabelValues("failed").Inc()
		return fmt.Errorf("render interval instance %d: %w", instanceID, err)
	}
	if info, probeErr := util.GetAudioInfo(saver.MP3Path()); probeErr == nil {
		log.Debug("Encoded interval audio",
			zap.Float64("duration", info.Duration),
			zap.String("codec", info.Codec),
			zap.Int64("size", info.Size))
	}

	if instance.Audio != "" {
		if err = s.Storage.Delete(ctx, instance.Audio); err != nil {
			return fmt.Errorf("delete previous audio %s: %w", instance.Audio, err)
		}
		if err = s.Intervals.UpdateInstanceAudio(ctx, instance.ID, ""); err != nil {
			return err
		}
	}
	// a canonical file that is not assigned to the instance is stale
	if instance.Audio != key {
		if err = s.Storage.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete stray audio %s: %w", key, err)
		}
	}

	// another render of the same instance may have published in the meantime
	exists, err := s.Storage.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		monitoring.AudioRenders.WithLabelValues("cached").Inc()
		log.Info("Interval audio already published", zap.String("key", key))
		return s.Intervals.UpdateInstanceAudio(ctx, instance.ID, key)
	}

	if _, err = s.Storage.UploadFile(ctx, key, saver.MP3Path(), util.MimeMP3); err != nil {
		monitoring.AudioRenders.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if err = s.Intervals.UpdateInstanceAudio(ctx, instance.ID, key); err != nil {
		return err
	}

	elapsed := time.Since(start)
	monitoring.AudioRenders.WithLabelValues("rendered").Inc()
	monitoring.AudioRenderDuration.Observe(elapsed.Seconds())
	log.Info("Interval audio rendered",
		zap.String("instance", instance.String()),
		zap.String("key", key),
		zap.Duration("elapsed", elapsed))
	return nil
}

func checkMP3(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := util.ValidateMimeType(f, []string{util.MimeAudio}); err != nil {
		return fmt.Errorf("%w: %v", audio.ErrEncoderFailed, err)
	}
	return nil
}

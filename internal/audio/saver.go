// Package audio renders interval instances to mp3: the pitch pair is laid
// out in time, written as MIDI, synthesized to WAV and encoded to mp3. All
// artifacts of one render share a base path and differ only by extension.
package audio

import (
	"context"
	"earninja_backend/internal/config"
	"earninja_backend/internal/model"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var artifactSuffixes = []string{".mid", ".wav", ".mp3"}

// Toolchain bundles the external tools a Saver drives.
type Toolchain struct {
	Synth        Synthesizer
	Encoder      Encoder
	BeatsPerNote int
}

func NewToolchain(cfg *config.AudioConfig) *Toolchain {
	return &Toolchain{
		Synth: &Fluidsynth{
			Path:       cfg.FluidsynthPath,
			Soundfont:  cfg.SoundfontPath,
			Gain:       cfg.Gain,
			SampleRate: cfg.SampleRate,
			Timeout:    cfg.SynthTimeout,
		},
		Encoder: &FFmpegEncoder{
			Path:        cfg.FFmpegPath,
			NumDBLouder: cfg.NumDBLouder,
		},
		BeatsPerNote: cfg.BeatsPerNote,
	}
}

// Saver renders into files derived from one base path.
type Saver struct {
	basePath string
	tools    *Toolchain
}

func (t *Toolchain) NewSaver(basePath string) *Saver {
	return &Saver{basePath: basePath, tools: t}
}

func (s *Saver) path(suffix string) string {
	return s.basePath + suffix
}

func (s *Saver) MIDIPath() string { return s.path(".mid") }
func (s *Saver) WavPath() string  { return s.path(".wav") }
func (s *Saver) MP3Path() string  { return s.path(".mp3") }

// SaveIntervalInstanceAudio runs the whole pipeline. Tool errors are returned
// as is; the mp3 must not be assumed to exist when an error is returned.
func (s *Saver) SaveIntervalInstanceAudio(ctx context.Context, startNote int, intervalName string, intervalType model.IntervalType) error {
	if err := os.MkdirAll(filepath.Dir(s.basePath), 0755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	slots, err := Arrange(startNote, intervalName, intervalType)
	if err != nil {
		return err
	}
	if err := WriteMIDI(s.MIDIPath(), slots, s.tools.BeatsPerNote); err != nil {
		return err
	}
	if err := s.tools.Synth.RenderWav(ctx, s.MIDIPath(), s.WavPath()); err != nil {
		return err
	}
	return s.tools.Encoder.WavToMp3(ctx, s.WavPath(), s.MP3Path())
}

// DeleteFiles removes every artifact of the base path; missing files are ignored.
func (s *Saver) DeleteFiles() error {
	var errs []error
	for _, suffix := range artifactSuffixes {
		if err := os.Remove(s.path(suffix)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

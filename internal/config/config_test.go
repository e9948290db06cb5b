package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "media")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("storage:\n  local_path: "+media+"\n"), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Intervals.DefaultLowestOctave)
	assert.Equal(t, 5, cfg.Intervals.DefaultHighestOctave)
	assert.Equal(t, []string{"1", "b3", "3", "4", "5"}, cfg.Intervals.DefaultAllowedIntervals)
	assert.Equal(t, 0, cfg.Intervals.DefaultIntervalType)

	assert.InDelta(t, 0.2, cfg.Audio.Gain, 1e-9)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.InDelta(t, 20, cfg.Audio.NumDBLouder, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.Audio.SynthTimeout)
	assert.False(t, cfg.Audio.UseQueue)
	assert.Equal(t, media, cfg.Audio.WorkDir)

	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "earninja:tasks", cfg.Queue.Name)
	assert.Equal(t, "logs/earninja.log", cfg.Log.File)
	assert.Empty(t, cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
	assert.DirExists(t, media)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("USE_QUEUE", "true")
	t.Setenv("SOUNDFONT_PATH", "/usr/share/sounds/sf2/FluidR3_GM.sf2")
	t.Setenv("LOG_LEVEL", "warn")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("storage:\n  local_path: "+filepath.Join(dir, "media")+"\n"), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Audio.UseQueue)
	assert.Equal(t, "/usr/share/sounds/sf2/FluidR3_GM.sf2", cfg.Audio.SoundfontPath)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigRejectsInvertedOctaves(t *testing.T) {
	dir := t.TempDir()
	body := "storage:\n  local_path: " + filepath.Join(dir, "media") + "\n" +
		"intervals:\n  default_lowest_octave: 5\n  default_highest_octave: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "default_lowest_octave")
}

func TestReleaseModeRequiresLongSecret(t *testing.T) {
	dir := t.TempDir()
	body := "server:\n  mode: release\njwt:\n  secret: short\nstorage:\n  local_path: " + filepath.Join(dir, "media") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")
}

func TestIntervalsValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     IntervalsConfig
		wantErr bool
	}{
		{"defaults", IntervalsConfig{2, 5, []string{"1", "b3"}, 0}, false},
		{"single octave", IntervalsConfig{4, 4, []string{"5"}, 2}, false},
		{"inverted", IntervalsConfig{5, 2, []string{"5"}, 0}, true},
		{"empty list", IntervalsConfig{2, 5, nil, 0}, true},
		{"unknown symbol", IntervalsConfig{2, 5, []string{"h3"}, 0}, true},
		{"bad type", IntervalsConfig{2, 5, []string{"5"}, 3}, true},
		{"too high", IntervalsConfig{2, 8, []string{"5"}, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package configwatcher

import (
	"context"
	"earninja_backend/internal/config"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, dir string, lowest int) {
	t.Helper()
	body, err := yaml.Marshal(map[string]interface{}{
		"storage": map[string]interface{}{
			"local_path": filepath.Join(dir, "media"),
		},
		"intervals": map[string]interface{}{
			"default_lowest_octave":  lowest,
			"default_highest_octave": 5,
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0644))
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, filepath.Join(dir, "config.yaml"), 50*time.Millisecond, func(cfg *config.Config) {
			reloaded <- cfg
		})
	}()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, dir, 3)

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 3, cfg.Intervals.DefaultLowestOctave)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}

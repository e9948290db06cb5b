package service

import (
	"context"
	"earninja_backend/internal/audio"
	"earninja_backend/internal/config"
	"earninja_backend/internal/model"
	"earninja_backend/internal/repository"
	"earninja_backend/pkg/database"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared&_pragma=foreign_keys(1)",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// scriptedRand returns values in order and 0 once they run out.
type scriptedRand struct {
	mu     sync.Mutex
	values []int
}

func (r *scriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	if v >= n {
		panic("scripted value out of range")
	}
	return v
}

type recordingRenderer struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (r *recordingRenderer) Render(ctx context.Context, instanceID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, instanceID)
	return r.err
}

func (r *recordingRenderer) rendered() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.ids...)
}

type fakeSynth struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSynth) RenderWav(ctx context.Context, midPath, wavPath string) error {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(wavPath, []byte("RIFF....WAVEfmt "), 0644)
}

// fakeEncoder writes an ID3 tagged stub so the output sniffs as audio/mpeg.
type fakeEncoder struct{}

func (fakeEncoder) WavToMp3(ctx context.Context, wavPath, mp3Path string) error {
	if _, err := os.Stat(wavPath); err != nil {
		return err
	}
	return os.WriteFile(mp3Path, append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 600)...), 0644)
}

type testEnv struct {
	DB        *gorm.DB
	Intervals *repository.IntervalRepository
	Exercises *repository.ExerciseRepository
	Users     *repository.UserRepository
	Storage   *LocalStorageProvider
	Synth     *fakeSynth
	Audio     *AudioService
	Renderer  *recordingRenderer
	Service   *ExerciseService
}

func defaultTestDefaults() ExerciseDefaults {
	return ExerciseDefaults{
		LowestOctave:     2,
		HighestOctave:    5,
		AllowedIntervals: []string{"1", "b3", "3", "4", "5"},
		IntervalType:     model.Harmonic,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	media := t.TempDir()

	env := &testEnv{
		DB:        db,
		Intervals: repository.NewIntervalRepository(db),
		Exercises: repository.NewExerciseRepository(db),
		Users:     repository.NewUserRepository(db),
		Storage:   &LocalStorageProvider{Config: &config.StorageConfig{Type: "local", LocalPath: media}},
		Synth:     &fakeSynth{},
		Renderer:  &recordingRenderer{},
	}
	tools := &audio.Toolchain{Synth: env.Synth, Encoder: fakeEncoder{}, BeatsPerNote: 2}
	env.Audio = NewAudioService(env.Intervals, env.Storage, tools, media)
	env.Service = NewExerciseService(env.Exercises, env.Intervals, env.Renderer, defaultTestDefaults())
	return env
}

func (e *testEnv) newUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Name: "Test", Email: email, Password: "hash"}
	require.NoError(t, e.Users.Create(context.Background(), user))
	return user
}

func (e *testEnv) newExercise(t *testing.T) *model.IntervalsExercise {
	t.Helper()
	user := e.newUser(t, strings.ToLower(strings.ReplaceAll(t.Name(), "/", "."))+"@example.com")
	exercise, err := e.Service.GetOrCreateExercise(context.Background(), user.ID)
	require.NoError(t, err)
	return exercise
}

func intervalNames(intervals []model.Interval) []string {
	names := make([]string, 0, len(intervals))
	for _, i := range intervals {
		names = append(names, i.Name)
	}
	return names
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

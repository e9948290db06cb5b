package config

import (
	"earninja_backend/internal/music"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Intervals IntervalsConfig `mapstructure:"intervals"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Log       LogConfig       `mapstructure:"log"`

	// path of the loaded file, used by the config watcher
	File string `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// IntervalsConfig holds the defaults applied to a fresh intervals exercise.
type IntervalsConfig struct {
	DefaultLowestOctave     int      `mapstructure:"default_lowest_octave"`
	DefaultHighestOctave    int      `mapstructure:"default_highest_octave"`
	DefaultAllowedIntervals []string `mapstructure:"default_allowed_intervals"`
	DefaultIntervalType     int      `mapstructure:"default_interval_type"`
}

// AudioConfig controls the MIDI -> WAV -> MP3 rendering toolchain.
type AudioConfig struct {
	FluidsynthPath string        `mapstructure:"fluidsynth_path"`
	SoundfontPath  string        `mapstructure:"soundfont_path"`
	FFmpegPath     string        `mapstructure:"ffmpeg_path"`
	Gain           float64       `mapstructure:"gain"`
	SampleRate     int           `mapstructure:"sample_rate"`
	NumDBLouder    float64       `mapstructure:"num_db_louder"`
	BeatsPerNote   int           `mapstructure:"beats_per_note"`
	WorkDir        string        `mapstructure:"work_dir"`
	UseQueue       bool          `mapstructure:"use_queue"`
	SynthTimeout   time.Duration `mapstructure:"synth_timeout"`
}

type QueueConfig struct {
	Name        string        `mapstructure:"name"`
	Workers     int           `mapstructure:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

// LogConfig controls the zap cores. An empty Level follows server.mode and
// an empty File disables the rotated JSON log.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)

	v.SetDefault("jwt.expire_hours", 72)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "media")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("rate_limit.max_requests", 1000)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("intervals.default_lowest_octave", 2)
	v.SetDefault("intervals.default_highest_octave", 5)
	v.SetDefault("intervals.default_allowed_intervals", []string{"1", "b3", "3", "4", "5"})
	v.SetDefault("intervals.default_interval_type", 0)

	v.SetDefault("audio.fluidsynth_path", "fluidsynth")
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	// fluidsynth output is quiet; a higher gain distorts, so loudness is boosted in ffmpeg instead
	v.SetDefault("audio.gain", 0.2)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.num_db_louder", 20)
	v.SetDefault("audio.beats_per_note", 2)
	v.SetDefault("audio.use_queue", false)
	v.SetDefault("audio.synth_timeout", "60s")

	v.SetDefault("queue.name", "earninja:tasks")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.lock_ttl", "2m")

	v.SetDefault("log.file", "logs/earninja.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional, real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EARNINJA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("log.level", "LOG_LEVEL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Audio toolchain
	v.BindEnv("audio.fluidsynth_path", "FLUIDSYNTH_PATH")
	v.BindEnv("audio.soundfont_path", "SOUNDFONT_PATH")
	v.BindEnv("audio.use_queue", "USE_QUEUE")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.File = v.ConfigFileUsed()

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Intervals.Validate(); err != nil {
		return nil, err
	}

	if cfg.Audio.WorkDir == "" {
		cfg.Audio.WorkDir = cfg.Storage.LocalPath
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate rejects interval defaults that could never produce a question.
func (c IntervalsConfig) Validate() error {
	if c.DefaultLowestOctave > c.DefaultHighestOctave {
		return fmt.Errorf("intervals: default_lowest_octave (%d) is larger than default_highest_octave (%d)",
			c.DefaultLowestOctave, c.DefaultHighestOctave)
	}
	if c.DefaultLowestOctave < 0 || c.DefaultHighestOctave > 7 {
		return fmt.Errorf("intervals: default octaves must be within 0..7")
	}
	if len(c.DefaultAllowedIntervals) == 0 {
		return errors.New("intervals: default_allowed_intervals is empty")
	}
	for _, symbol := range c.DefaultAllowedIntervals {
		if !music.IsValidInterval(symbol) {
			return fmt.Errorf("intervals: unknown default interval %q", symbol)
		}
	}
	if c.DefaultIntervalType < 0 || c.DefaultIntervalType >= len(music.IntervalTypes) {
		return fmt.Errorf("intervals: unknown default_interval_type %d", c.DefaultIntervalType)
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named by
// key (as accepted by strconv.ParseBool), or fallback if unset or invalid.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable named
// by key (e.g. "10m", "90s"), or fallback if unset or invalid.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Config is the server configuration. Defaults apply when a key is unset.
type Config struct {
	Port        string
	Bind        string
	AudioDir    string
	PlaylistDir string
	LogDir      string
	LogLevel    string
	LogFormat   string

	OutputPlayer  string
	PlayerBin     string
	FFmpegBin     string
	FFprobeBin    string
	DecodeWorkers int

	MaxPause          time.Duration
	MaxToneDuration   time.Duration
	MaxFileCount      int
	RandomFileCount   int
	PlaylistFileCount int
}

// FromEnv builds a Config from the environment. Call Load first to pick up .env.
func FromEnv() Config {
	return Config{
		Port:        GetEnv("PORT", "5055"),
		Bind:        GetEnv("BIND", "0.0.0.0"),
		AudioDir:    GetEnv("AUDIO_DIR", "./audio"),
		PlaylistDir: GetEnv("PLAYLIST_DIR", "./playlists"),
		LogDir:      GetEnv("LOG_DIR", "./logs"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", "json"),

		OutputPlayer:  GetEnv("OUTPUT_PLAYER", "ffplay"),
		PlayerBin:     GetEnv("PLAYER_BIN", ""),
		FFmpegBin:     GetEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:    GetEnv("FFPROBE_BIN", "ffprobe"),
		DecodeWorkers: GetEnvInt("DECODE_WORKERS", 0),

		MaxPause:          GetEnvDuration("MAX_PAUSE", 10*time.Minute),
		MaxToneDuration:   GetEnvDuration("MAX_TONE_DURATION", 60*time.Second),
		MaxFileCount:      GetEnvInt("MAX_FILE_COUNT", 1000),
		RandomFileCount:   GetEnvInt("RANDOM_FILE_COUNT", 100),
		PlaylistFileCount: GetEnvInt("PLAYLIST_FILE_COUNT", 10),
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Bind + ":" + c.Port
}

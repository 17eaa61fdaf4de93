package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the workers need. It is built once at startup
// and passed down explicitly; nothing reads the environment after Load.
type Config struct {
	// Registry
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	// Analysis
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// External tools
	FFmpegPath   string
	FFprobePath  string
	WhisperBin   string
	WhisperModel string
	YtDlpPath    string

	// Storage
	StorageDir string
	TempDir    string
	S3Bucket   string
	S3Region   string

	// Security
	EncryptionKey string

	// Concurrency and timeouts
	MaxTranscriptions int
	MediaTimeout      time.Duration
	DownloadTimeout   time.Duration
	AnalysisTimeout   time.Duration
	PostTimeout       time.Duration
	DispatchInterval  time.Duration

	// Scheduling
	PostsPerAccountPerDay int
	SlotJitter            time.Duration

	// Ingestion
	AllowedDomains []string
}

func Load() Config {
	return Config{
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenv("POSTGRES_PORT", "5432"),
		PostgresUser:     getenv("POSTGRES_USER", "clipforge"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "clipforge"),
		PostgresDB:       getenv("POSTGRES_DB", "clipforge"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		FFmpegPath:   getenv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:  getenv("FFPROBE_PATH", "ffprobe"),
		WhisperBin:   getenv("WHISPER_BIN", ".cache/bin/whisper.cpp"),
		WhisperModel: getenv("WHISPER_MODEL", ".cache/models/ggml-large-v3.bin"),
		YtDlpPath:    getenv("YTDLP_PATH", "yt-dlp"),

		StorageDir: getenv("STORAGE_DIR", "storage"),
		TempDir:    getenv("TEMP_DIR", ""),
		S3Bucket:   os.Getenv("S3_BUCKET"),
		S3Region:   getenv("S3_REGION", "us-east-1"),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		MaxTranscriptions: getenvInt("MAX_CONCURRENT_TRANSCRIPTIONS", 2),
		MediaTimeout:      getenvDuration("MEDIA_TIMEOUT", 5*time.Minute),
		DownloadTimeout:   getenvDuration("DOWNLOAD_TIMEOUT", 30*time.Minute),
		AnalysisTimeout:   getenvDuration("ANALYSIS_TIMEOUT", 2*time.Minute),
		PostTimeout:       getenvDuration("POST_TIMEOUT", 5*time.Minute),
		DispatchInterval:  getenvDuration("DISPATCH_INTERVAL", time.Minute),

		PostsPerAccountPerDay: getenvInt("POSTS_PER_ACCOUNT_PER_DAY", 2),
		SlotJitter:            getenvDuration("SLOT_JITTER", 30*time.Minute),

		AllowedDomains: getenvList("ALLOWED_DOMAINS", []string{
			"youtube.com", "youtu.be", "tiktok.com", "instagram.com", "twitter.com", "x.com",
		}),
	}
}

func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required (set it in .env)")
	}
	if c.EncryptionKey == "" {
		return errors.New("ENCRYPTION_KEY is required (set it in .env)")
	}
	if c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	if c.MaxTranscriptions <= 0 {
		return fmt.Errorf("max concurrent transcriptions must be > 0")
	}
	if c.PostsPerAccountPerDay <= 0 {
		return fmt.Errorf("posts per account per day must be > 0")
	}
	if c.MediaTimeout <= 0 || c.DownloadTimeout <= 0 || c.AnalysisTimeout <= 0 || c.PostTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// OpenAI (script + hook generation)
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIFallbackModel string
	OpenAIBaseURL       string
	OpenAIMaxTokens     int
	OpenAITemperature   float64

	// ElevenLabs TTS (primary) and Google TTS (fallback)
	ElevenLabsAPIKey       string
	ElevenLabsModelID      string
	ElevenLabsDefaultVoice string
	GoogleTTSAPIKey        string

	// Pexels stock media
	PexelsAPIKey string

	// Artifact store (S3-compatible). Empty endpoint selects the local
	// filesystem store.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
	StoragePath string

	// FFmpeg
	FFmpegPath  string
	FFprobePath string

	// Platform OAuth apps (token refresh)
	YouTubeClientID     string
	YouTubeClientSecret string

	// Worker tuning
	TaskPollInterval time.Duration
	TaskMaxAttempts  int

	// Scheduler tuning
	ScheduleInterval time.Duration

	GenerationTimeout time.Duration
	RenderTimeout     time.Duration
	UploadTimeout     time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8090"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIFallbackModel: getEnv("OPENAI_FALLBACK_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIMaxTokens:     getEnvInt("OPENAI_MAX_TOKENS", 2000),
		OpenAITemperature:   getEnvFloat("OPENAI_TEMPERATURE", 0.7),

		ElevenLabsAPIKey:       os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsModelID:      getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsDefaultVoice: getEnv("ELEVENLABS_DEFAULT_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		GoogleTTSAPIKey:        os.Getenv("GOOGLE_TTS_API_KEY"),

		PexelsAPIKey: os.Getenv("PEXELS_API_KEY"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    getEnv("S3_BUCKET_NAME", "autoshorts-media"),
		S3Region:    getEnv("S3_REGION", "eu-central-1"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", true),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),

		TaskPollInterval: time.Second * time.Duration(getEnvInt("TASK_POLL_INTERVAL_SECONDS", 2)),
		TaskMaxAttempts:  getEnvInt("TASK_MAX_ATTEMPTS", 3),

		ScheduleInterval: time.Second * time.Duration(getEnvInt("SCHEDULE_INTERVAL_SECONDS", 60)),

		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 60)),
		RenderTimeout:     time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 300)),
		UploadTimeout:     time.Second * time.Duration(getEnvInt("UPLOAD_TIMEOUT_SECONDS", 300)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

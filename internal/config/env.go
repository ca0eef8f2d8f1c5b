package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	AwsAccessKey string `env:"AWS_ACCESS_KEY"`
	AwsSecretKey string `env:"AWS_SECRET_KEY"`
	AwsRegion    string `env:"AWS_REGION" envDefault:"us-east-2"`
	BucketName   string `env:"BUCKET_NAME" envDefault:"pdf-documents"`
	// S3Endpoint points the client at an S3-compatible store (MinIO etc).
	S3Endpoint string        `env:"S3_ENDPOINT"`
	PresignTTL time.Duration `env:"PRESIGN_TTL" envDefault:"1h"`

	AIBackendURL     string        `env:"AI_BACKEND_URL" envDefault:"http://localhost:3000/api"`
	AIBackendTimeout time.Duration `env:"AI_BACKEND_TIMEOUT" envDefault:"2m"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	Port           string        `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	MaxUploadBytes    int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"` // 50 MB
	IngestWorkers     int   `env:"INGEST_WORKERS" envDefault:"2"`
	IngestQueueSize   int   `env:"INGEST_QUEUE_SIZE" envDefault:"64"`
	QuizQuestionCount int   `env:"QUIZ_QUESTION_COUNT" envDefault:"10"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.IngestWorkers)
	}
	if c.IngestQueueSize < 1 {
		return fmt.Errorf("INGEST_QUEUE_SIZE must be at least 1, got %d", c.IngestQueueSize)
	}
	if c.QuizQuestionCount < 1 {
		return fmt.Errorf("QUIZ_QUESTION_COUNT must be at least 1, got %d", c.QuizQuestionCount)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting of the server.
type Config struct {
	Port      int    `validate:"min=1,max=65535"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	DBDriver    string `validate:"oneof=sqlite postgres"`
	DBPath      string `validate:"required_if=DBDriver sqlite"`
	DatabaseURL string `validate:"required_if=DBDriver postgres"`

	TwilioSID                 string
	TwilioAuthToken           string
	TwilioPhoneNumber         string
	TwilioMessagingServiceSID string
	SMSTimeout                time.Duration `validate:"gt=0"`
	SMSConcurrency            int           `validate:"min=1,max=64"`

	OCREngine string `validate:"oneof=text http"`
	OCRURL    string `validate:"required_if=OCREngine http,omitempty,url"`

	LLMAPIURL string `validate:"required,url"`
	LLMModel  string `validate:"required"`
	LLMAPIKey string

	ImageStore         string `validate:"oneof=none fs oss"`
	ImageDir           string `validate:"required_if=ImageStore fs"`
	ImageBaseURL       string `validate:"required_if=ImageStore fs"`
	OSSEndpoint        string `validate:"required_if=ImageStore oss"`
	OSSAccessKeyID     string `validate:"required_if=ImageStore oss"`
	OSSAccessKeySecret string `validate:"required_if=ImageStore oss"`
	OSSBucket          string `validate:"required_if=ImageStore oss"`
	OSSPublicBaseURL   string `validate:"omitempty,url"`
}

// Load reads .env from the working directory when present, then the
// process environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	smsTimeout, err := time.ParseDuration(get("SMS_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMS_TIMEOUT: %w", err)
	}
	smsConcurrency, err := strconv.Atoi(get("SMS_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMS_CONCURRENCY: %w", err)
	}

	cfg := &Config{
		Port:      port,
		LogLevel:  strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(get("LOG_FORMAT", "text")),

		DBDriver:    strings.ToLower(get("DB_DRIVER", "sqlite")),
		DBPath:      get("DB_PATH", "./data/bills.db"),
		DatabaseURL: get("DATABASE_URL", ""),

		TwilioSID:                 get("TWILIO_SID", ""),
		TwilioAuthToken:           get("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:         get("TWILIO_PHONE_NUMBER", ""),
		TwilioMessagingServiceSID: get("TWILIO_MESSAGING_SERVICE_SID", ""),
		SMSTimeout:                smsTimeout,
		SMSConcurrency:            smsConcurrency,

		OCREngine: strings.ToLower(get("OCR_ENGINE", "text")),
		OCRURL:    get("OCR_URL", ""),

		LLMAPIURL: get("LLM_API_URL", "http://localhost:1234/v1"),
		LLMModel:  get("LLM_MODEL", "liquid/lfm2.5-1.2b"),
		LLMAPIKey: get("LLM_API_KEY", ""),

		ImageStore:         strings.ToLower(get("IMAGE_STORE", "fs")),
		ImageDir:           get("IMAGE_DIR", "./data/receipts"),
		ImageBaseURL:       get("IMAGE_BASE_URL", "/files"),
		OSSEndpoint:        get("OSS_ENDPOINT", ""),
		OSSAccessKeyID:     get("OSS_ACCESS_KEY_ID", ""),
		OSSAccessKeySecret: get("OSS_ACCESS_KEY_SECRET", ""),
		OSSBucket:          get("OSS_BUCKET", ""),
		OSSPublicBaseURL:   get("OSS_PUBLIC_BASE_URL", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// TwilioConfigured reports whether credentials for sending SMS are present.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioSID != "" && c.TwilioAuthToken != ""
}

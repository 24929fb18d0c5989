package lms_archiver

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL         = "https://lms.sbu.ac.ir"
	DefaultOutputDir       = "extracted"
	DefaultDownloadsDir    = "downloads"
	DefaultPageLoadTimeout = 180 * time.Second
	DefaultDownloadTimeout = 3600 * time.Second
)

type Config struct {
	BaseURL     string
	Credentials Credentials
	// OutputDir is where extracted media ends up, one folder per course key.
	OutputDir string
	// DownloadsDir is where fetched archives are kept, one folder per course key.
	DownloadsDir    string
	PageLoadTimeout time.Duration
	DownloadTimeout time.Duration
	LogLevel        string
}

func NewConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		OutputDir:       DefaultOutputDir,
		DownloadsDir:    DefaultDownloadsDir,
		PageLoadTimeout: DefaultPageLoadTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		LogLevel:        "info",
	}
}

// ConfigFromEnv builds a Config from the environment, reading a .env file
// first if one exists. Timeouts are configured in milliseconds to stay
// compatible with existing .env files.
func ConfigFromEnv() (Config, error) {
	// A missing .env is fine; the environment itself still applies.
	_ = godotenv.Load()

	c := NewConfig()
	if v := os.Getenv("BASE_URL"); v != "" {
		c.BaseURL = v
	}
	c.Credentials.Username = os.Getenv("LMS_USERNAME")
	c.Credentials.Password = os.Getenv("LMS_PASSWORD")
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("DOWNLOADS_DIR"); v != "" {
		c.DownloadsDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	var err error
	if c.PageLoadTimeout, err = durationFromEnv("TIMEOUT_PAGE_LOAD", c.PageLoadTimeout); err != nil {
		return c, err
	}
	if c.DownloadTimeout, err = durationFromEnv("DOWNLOAD_TIMEOUT", c.DownloadTimeout); err != nil {
		return c, err
	}
	return c, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

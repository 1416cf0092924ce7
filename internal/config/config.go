package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Browser modes.
const (
	BrowserExec   = "exec"
	BrowserRemote = "remote"
)

// Config holds all configuration for a formprobe run.
type Config struct {
	// Site under test
	BaseURL     string
	ContactsURL string

	// Interception
	RunProdReal bool
	APIPattern  string

	// Timing
	PollIntervalMS   int
	SubmitTimeoutMS  int
	CaptureTimeoutMS int
	NavTimeoutMS     int
	NavAttempts      int
	NavBackoffMS     int

	// Browser
	BrowserMode    string
	Headless       bool
	CDPAddress     string
	CDPPort        int
	LaunchBrowser  bool
	BrowserProfile string

	// Diagnostics and journal
	ArtifactsDir      string
	JournalBufferSize int
	JournalMaxSizeMB  int
	JournalBodyBytes  int

	KeywordsFile string
	Seed         int64
	NotifyURL    string

	// Artifact API and logging
	BindAddr         string
	BindCandidates   []string
	BindAutoFallback bool
	LogLevel         string
	LogFile          string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BaseURL:           getEnvOrDefault("FORMPROBE_BASE_URL", "https://softpro.ua/uk"),
		ContactsURL:       getEnvOrDefault("FORMPROBE_CONTACTS_URL", "https://softpro.ua/contacts"),
		RunProdReal:       getEnvBoolOrDefault("RUN_PROD_REAL", false),
		APIPattern:        getEnvOrDefault("FORMPROBE_API_PATTERN", "**/api/**"),
		PollIntervalMS:    getEnvIntOrDefault("FORMPROBE_POLL_INTERVAL_MS", 120),
		SubmitTimeoutMS:   getEnvIntOrDefault("FORMPROBE_SUBMIT_TIMEOUT_MS", 1200),
		CaptureTimeoutMS:  getEnvIntOrDefault("FORMPROBE_CAPTURE_TIMEOUT_MS", 10000),
		NavTimeoutMS:      getEnvIntOrDefault("FORMPROBE_NAV_TIMEOUT_MS", 45000),
		NavAttempts:       getEnvIntOrDefault("FORMPROBE_NAV_ATTEMPTS", 3),
		NavBackoffMS:      getEnvIntOrDefault("FORMPROBE_NAV_BACKOFF_MS", 1000),
		BrowserMode:       strings.ToLower(getEnvOrDefault("FORMPROBE_BROWSER_MODE", BrowserExec)),
		Headless:          getEnvBoolOrDefault("FORMPROBE_HEADLESS", true),
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		LaunchBrowser:     getEnvBoolOrDefault("FORMPROBE_LAUNCH_BROWSER", false),
		BrowserProfile:    getEnvOrDefault("FORMPROBE_BROWSER_PROFILE", "./browser-profiles/formprobe"),
		ArtifactsDir:      getEnvOrDefault("FORMPROBE_ARTIFACTS_DIR", "./artifacts"),
		JournalBufferSize: getEnvIntOrDefault("FORMPROBE_JOURNAL_BUFFER_SIZE", 256),
		JournalMaxSizeMB:  getEnvIntOrDefault("FORMPROBE_JOURNAL_MAX_SIZE_MB", 25),
		JournalBodyBytes:  getEnvIntOrDefault("FORMPROBE_JOURNAL_BODY_BYTES", 64*1024),
		KeywordsFile:      getEnvOrDefault("FORMPROBE_KEYWORDS_FILE", ""),
		Seed:              int64(getEnvIntOrDefault("FORMPROBE_SEED", 12345)),
		NotifyURL:         getEnvOrDefault("FORMPROBE_NOTIFY_URL", ""),
		BindAddr:          getEnvOrDefault("FORMPROBE_BIND_ADDR", "127.0.0.1:8199"),
		BindCandidates:    getEnvListOrDefault("FORMPROBE_BIND_CANDIDATES", []string{"127.0.0.1:8200", "127.0.0.1:8201", "127.0.0.1:8202"}),
		BindAutoFallback:  getEnvBoolOrDefault("FORMPROBE_BIND_AUTO_FALLBACK", true),
		LogLevel:          strings.ToLower(getEnvOrDefault("FORMPROBE_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("FORMPROBE_LOG_FILE", "logs/formprobe.log"),
	}

	if cfg.PollIntervalMS < 10 {
		cfg.PollIntervalMS = 10
	}
	if cfg.NavAttempts < 1 {
		cfg.NavAttempts = 1
	}
	if cfg.NavBackoffMS < 0 {
		cfg.NavBackoffMS = 0
	}
	if cfg.BrowserMode != BrowserExec && cfg.BrowserMode != BrowserRemote {
		return nil, fmt.Errorf("FORMPROBE_BROWSER_MODE must be %q or %q, got %q", BrowserExec, BrowserRemote, cfg.BrowserMode)
	}

	return cfg, nil
}

// GetCDPURL returns the CDP HTTP endpoint used in remote mode.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c *Config) PollInterval() time.Duration { return ms(c.PollIntervalMS) }
func (c *Config) SubmitTimeout() time.Duration { return ms(c.SubmitTimeoutMS) }
func (c *Config) CaptureTimeout() time.Duration { return ms(c.CaptureTimeoutMS) }
func (c *Config) NavTimeout() time.Duration { return ms(c.NavTimeoutMS) }
func (c *Config) NavBackoff() time.Duration { return ms(c.NavBackoffMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

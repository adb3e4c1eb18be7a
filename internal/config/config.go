package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
)

type Config struct {
	Portal   PortalConfig
	Overtime OvertimeConfig
	App      AppConfig
	Export   ExportConfig
}

type PortalConfig struct {
	BaseURL        string
	LoginPath      string
	AttendancePath string
	CACertFile     string
	RequestTimeout time.Duration
	MaxPages       int
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// OvertimeConfig holds the overtime derivation parameters, minutes
// unless noted.
type OvertimeConfig struct {
	LunchBreakMinutes   int
	StandardWorkMinutes int
	RestMinutes         int
	StandardStart       string
	DailyCapMinutes     int
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

type ExportConfig struct {
	OutputDir string
}

func Load() (*Config, error) {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	config := &Config{}

	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	maxPages, err := strconv.Atoi(getEnv("MAX_PAGES", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PAGES: %w", err)
	}

	retryAttempts, err := strconv.Atoi(getEnv("RETRY_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_ATTEMPTS: %w", err)
	}

	retryBaseDelay, err := time.ParseDuration(getEnv("RETRY_BASE_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BASE_DELAY: %w", err)
	}

	config.Portal = PortalConfig{
		BaseURL:        getEnv("SSP_BASE_URL", "https://ssp.teco.com.tw"),
		LoginPath:      getEnv("SSP_LOGIN_PATH", "/index.aspx"),
		AttendancePath: getEnv("SSP_ATTENDANCE_PATH", "/FW99001Z.aspx"),
		CACertFile:     getEnv("SSP_CA_CERT_FILE", ""),
		RequestTimeout: timeout,
		MaxPages:       maxPages,
		RetryAttempts:  retryAttempts,
		RetryBaseDelay: retryBaseDelay,
	}

	lunchBreak, err := strconv.Atoi(getEnv("LUNCH_BREAK_MINUTES", "70"))
	if err != nil {
		return nil, fmt.Errorf("invalid LUNCH_BREAK_MINUTES: %w", err)
	}

	standardWork, err := strconv.Atoi(getEnv("STANDARD_WORK_MINUTES", "480"))
	if err != nil {
		return nil, fmt.Errorf("invalid STANDARD_WORK_MINUTES: %w", err)
	}

	restMinutes, err := strconv.Atoi(getEnv("REST_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid REST_MINUTES: %w", err)
	}

	dailyCap, err := strconv.Atoi(getEnv("DAILY_CAP_MINUTES", "240"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAILY_CAP_MINUTES: %w", err)
	}

	config.Overtime = OvertimeConfig{
		LunchBreakMinutes:   lunchBreak,
		StandardWorkMinutes: standardWork,
		RestMinutes:         restMinutes,
		StandardStart:       getEnv("STANDARD_START", "09:00:00"),
		DailyCapMinutes:     dailyCap,
	}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.Export = ExportConfig{
		OutputDir: getEnv("EXCEL_OUTPUT_DIR", "reports"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("SSP_BASE_URL is required")
	}
	if c.Portal.MaxPages < 1 {
		return fmt.Errorf("MAX_PAGES must be at least 1")
	}
	if c.Overtime.DailyCapMinutes < 0 {
		return fmt.Errorf("DAILY_CAP_MINUTES must not be negative")
	}
	if _, err := attendance.ParseTimeOfDay(c.Overtime.StandardStart); err != nil {
		return fmt.Errorf("invalid STANDARD_START: %w", err)
	}
	return nil
}

// OvertimeConfig converts the raw settings into the domain config.
func (c *Config) OvertimeConfig() (attendance.OvertimeConfig, error) {
	start, err := attendance.ParseTimeOfDay(c.Overtime.StandardStart)
	if err != nil {
		return attendance.OvertimeConfig{}, fmt.Errorf("invalid STANDARD_START: %w", err)
	}
	return attendance.OvertimeConfig{
		LunchBreakMinutes:   c.Overtime.LunchBreakMinutes,
		StandardWorkMinutes: c.Overtime.StandardWorkMinutes,
		RestMinutes:         c.Overtime.RestMinutes,
		StandardStart:       start,
		DailyCapMinutes:     c.Overtime.DailyCapMinutes,
	}, nil
}

// LoadCACert reads the configured self-signed certificate, if any.
func (c *Config) LoadCACert() ([]byte, error) {
	if c.Portal.CACertFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(c.Portal.CACertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSP_CA_CERT_FILE: %w", err)
	}
	return pem, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

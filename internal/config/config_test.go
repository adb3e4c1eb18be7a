package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ssp.teco.com.tw", cfg.Portal.BaseURL)
	assert.Equal(t, "/index.aspx", cfg.Portal.LoginPath)
	assert.Equal(t, "/FW99001Z.aspx", cfg.Portal.AttendancePath)
	assert.Equal(t, 200, cfg.Portal.MaxPages)
	assert.Equal(t, 3, cfg.Portal.RetryAttempts)

	assert.Equal(t, 70, cfg.Overtime.LunchBreakMinutes)
	assert.Equal(t, 480, cfg.Overtime.StandardWorkMinutes)
	assert.Equal(t, 30, cfg.Overtime.RestMinutes)
	assert.Equal(t, "09:00:00", cfg.Overtime.StandardStart)
	assert.Equal(t, 240, cfg.Overtime.DailyCapMinutes)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "reports", cfg.Export.OutputDir)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SSP_BASE_URL", "https://portal.example.com")
	t.Setenv("MAX_PAGES", "50")
	t.Setenv("STANDARD_START", "08:30:00")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com", cfg.Portal.BaseURL)
	assert.Equal(t, 50, cfg.Portal.MaxPages)
	assert.Equal(t, "08:30:00", cfg.Overtime.StandardStart)
	assert.Equal(t, "5s", cfg.Portal.RequestTimeout.String())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "REQUEST_TIMEOUT", "soon"},
		{"bad max pages", "MAX_PAGES", "many"},
		{"zero max pages", "MAX_PAGES", "0"},
		{"bad lunch break", "LUNCH_BREAK_MINUTES", "1h10m"},
		{"bad standard start", "STANDARD_START", "nine"},
		{"negative cap", "DAILY_CAP_MINUTES", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestOvertimeConfig_Conversion(t *testing.T) {
	t.Setenv("STANDARD_START", "08:30:00")

	cfg, err := Load()
	require.NoError(t, err)

	domainCfg, err := cfg.OvertimeConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, domainCfg.StandardStart.Hour)
	assert.Equal(t, 30, domainCfg.StandardStart.Minute)
	assert.Equal(t, 70, domainCfg.LunchBreakMinutes)
}

func TestLoadCACert(t *testing.T) {
	t.Run("unset returns nil", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		pem, err := cfg.LoadCACert()
		require.NoError(t, err)
		assert.Nil(t, pem)
	})

	t.Run("reads configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("-----BEGIN CERTIFICATE-----"), 0o600))
		t.Setenv("SSP_CA_CERT_FILE", path)

		cfg, err := Load()
		require.NoError(t, err)

		pem, err := cfg.LoadCACert()
		require.NoError(t, err)
		assert.Contains(t, string(pem), "BEGIN CERTIFICATE")
	})

	t.Run("missing file errors", func(t *testing.T) {
		t.Setenv("SSP_CA_CERT_FILE", filepath.Join(t.TempDir(), "missing.pem"))

		cfg, err := Load()
		require.NoError(t, err)

		_, err = cfg.LoadCACert()
		assert.Error(t, err)
	})
}

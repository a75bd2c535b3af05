package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "ZAR", cfg.CurrencyCode)
	assert.EqualValues(t, 2, cfg.CurrencyPrecision)
	assert.Equal(t, time.March, cfg.TaxYearStartMonth)
	assert.Equal(t, time.Hour, cfg.AccrualInterval)
	assert.Equal(t, "8", cfg.StandardDayHours.String())
	assert.Equal(t, "30", cfg.HighLeavePayoutDays.String())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Len(t, cfg.CORSOrigins, 2)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CURRENCY_CODE", "USD")
	t.Setenv("TAX_YEAR_START_MONTH", "1")
	t.Setenv("CORS_ORIGINS", " https://app.example.com , ")
	t.Setenv("RATE_LIMIT", "100-M")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "USD", cfg.CurrencyCode)
	assert.Equal(t, time.January, cfg.TaxYearStartMonth)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "100-M", cfg.RateLimit)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TAX_YEAR_START_MONTH", "13"},
		{"STANDARD_DAY_HOURS", "0"},
		{"HIGH_LEAVE_PAYOUT_DAYS", "abc"},
		{"MAX_HOURS_PER_LINE", "-1"},
		{"ACCRUAL_INTERVAL", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

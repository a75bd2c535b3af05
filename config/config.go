/*
Package config loads server configuration from the environment.

PURPOSE:
  One place that knows every tunable. Values come from, in increasing
  priority: built-in defaults, a .env file in the working directory, and
  process environment variables. Command-line flags in cmd/server override
  PORT and DB_PATH last.

KEYS:
  PORT                    HTTP port (8080)
  DB_PATH                 SQLite path, ":memory:" allowed (payroll.db)
  JWT_SECRET              HMAC secret for bearer tokens; empty disables auth
  DEFAULT_ORGANIZATION    Organization used when no token is presented
  CURRENCY_CODE           ISO code for payslip amounts (ZAR)
  CURRENCY_PRECISION      Minor-unit digits (2)
  STANDARD_DAY_HOURS      Hours in a full leave day (8)
  MAX_HOURS_PER_LINE      Cap on hours per earning line, 0 = none (0)
  PAYRUN_WORKERS          Payslip fan-out, 0 = GOMAXPROCS (0)
  ACCRUAL_INTERVAL        Accrual scheduler period, 0 disables (1h)
  RATE_LIMIT              ulule/limiter rate, e.g. "100-M"; empty disables
  TAX_YEAR_START_MONTH    First month of the tax year (3)
  HIGH_LEAVE_PAYOUT_DAYS  Leave payout warning threshold (30)
  CORS_ORIGINS            Comma-separated allowed origins
  LOG_LEVEL               debug, info, warn, error (info)

SEE ALSO:
  - cmd/server/main.go: Applies the configuration
*/
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port                int
	DBPath              string
	JWTSecret           string
	DefaultOrganization string

	CurrencyCode      string
	CurrencyPrecision int32

	StandardDayHours    decimal.Decimal
	MaxHoursPerLine     decimal.Decimal
	HighLeavePayoutDays decimal.Decimal
	TaxYearStartMonth   time.Month

	PayrunWorkers   int
	AccrualInterval time.Duration
	RateLimit       string
	CORSOrigins     []string
	LogLevel        slog.Level
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "payroll.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("DEFAULT_ORGANIZATION", "org-demo")
	v.SetDefault("CURRENCY_CODE", "ZAR")
	v.SetDefault("CURRENCY_PRECISION", 2)
	v.SetDefault("STANDARD_DAY_HOURS", "8")
	v.SetDefault("MAX_HOURS_PER_LINE", "0")
	v.SetDefault("PAYRUN_WORKERS", 0)
	v.SetDefault("ACCRUAL_INTERVAL", "1h")
	v.SetDefault("RATE_LIMIT", "")
	v.SetDefault("TAX_YEAR_START_MONTH", 3)
	v.SetDefault("HIGH_LEAVE_PAYOUT_DAYS", "30")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	cfg := &Config{
		Port:                v.GetInt("PORT"),
		DBPath:              v.GetString("DB_PATH"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		DefaultOrganization: v.GetString("DEFAULT_ORGANIZATION"),
		CurrencyCode:        v.GetString("CURRENCY_CODE"),
		CurrencyPrecision:   v.GetInt32("CURRENCY_PRECISION"),
		PayrunWorkers:       v.GetInt("PAYRUN_WORKERS"),
		RateLimit:           strings.TrimSpace(v.GetString("RATE_LIMIT")),
		CORSOrigins:         splitList(v.GetString("CORS_ORIGINS")),
	}

	var err error
	if cfg.StandardDayHours, err = positiveDecimal(v, "STANDARD_DAY_HOURS"); err != nil {
		return nil, err
	}
	if cfg.MaxHoursPerLine, err = decimalKey(v, "MAX_HOURS_PER_LINE"); err != nil {
		return nil, err
	}
	if cfg.HighLeavePayoutDays, err = positiveDecimal(v, "HIGH_LEAVE_PAYOUT_DAYS"); err != nil {
		return nil, err
	}

	if cfg.AccrualInterval, err = time.ParseDuration(v.GetString("ACCRUAL_INTERVAL")); err != nil {
		return nil, fmt.Errorf("ACCRUAL_INTERVAL: %w", err)
	}

	month := v.GetInt("TAX_YEAR_START_MONTH")
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("TAX_YEAR_START_MONTH must be 1-12, got %d", month)
	}
	cfg.TaxYearStartMonth = time.Month(month)

	if cfg.CurrencyPrecision < 0 {
		return nil, fmt.Errorf("CURRENCY_PRECISION cannot be negative")
	}
	if cfg.PayrunWorkers < 0 {
		return nil, fmt.Errorf("PAYRUN_WORKERS cannot be negative")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func decimalKey(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", key)
	}
	return d, nil
}

func positiveDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimalKey(v, key)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// internal/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		API
		View
		Circulation
		Sweep
		Server
		Telemetry
	}

	// API is the record source the client talks to.
	API struct {
		BaseURL   string
		RateLimit float64 // requests per second, 0 means unlimited
		RateBurst int
		Timeout   time.Duration
	}
	View struct {
		PageSize     int
		SortLanguage string // BCP 47 tag used for collation
	}
	Circulation struct {
		LoanPeriodDays int
	}
	Sweep struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}
	Server struct {
		Port        int
		DatabaseURL string // empty means in-memory repositories
	}
	Telemetry struct {
		ServiceName  string
		OTLPEndpoint string // empty disables export
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("api_base_url", "http://localhost:8080/api/v1")
	v.SetDefault("api_rate_limit", 0)
	v.SetDefault("api_rate_burst", 10)
	v.SetDefault("api_timeout", "10s")
	v.SetDefault("page_size", 10)
	v.SetDefault("sort_language", "vi")
	v.SetDefault("loan_period_days", 14)
	v.SetDefault("sweep_enabled", false)
	v.SetDefault("sweep_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("service_name", "libradesk")
	v.SetDefault("otel_exporter_otlp_endpoint", "")

	return &Config{
		API: API{
			BaseURL:   v.GetString("API_BASE_URL"),
			RateLimit: v.GetFloat64("API_RATE_LIMIT"),
			RateBurst: v.GetInt("API_RATE_BURST"),
			Timeout:   v.GetDuration("API_TIMEOUT"),
		},
		View: View{
			PageSize:     v.GetInt("PAGE_SIZE"),
			SortLanguage: v.GetString("SORT_LANGUAGE"),
		},
		Circulation: Circulation{
			LoanPeriodDays: v.GetInt("LOAN_PERIOD_DAYS"),
		},
		Sweep: Sweep{
			Enabled:  v.GetBool("SWEEP_ENABLED"),
			Schedule: v.GetString("SWEEP_SCHEDULE"),
		},
		Server: Server{
			Port:        v.GetInt("PORT"),
			DatabaseURL: v.GetString("DATABASE_URL"),
		},
		Telemetry: Telemetry{
			ServiceName:  v.GetString("SERVICE_NAME"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}
}

// LoanPeriod is LoanPeriodDays as a duration.
func (c Circulation) LoanPeriod() time.Duration {
	return time.Duration(c.LoanPeriodDays) * 24 * time.Hour
}

package config

import (
	"errors"
	"fmt"
	"os"

	"cabanas/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Email      EmailConfig      `yaml:"email"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Units      []models.Unit    `yaml:"units"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	BaseURL     string `yaml:"base_url"` // public origin for gateway callbacks
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	JobSecret string             `yaml:"job_secret"` // shared secret for /jobs endpoints
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	HoldTTLMinutes        int `yaml:"hold_ttl_minutes"`
	ReconcileGraceMinutes int `yaml:"reconcile_grace_minutes"`
	ReconcileBatchSize    int `yaml:"reconcile_batch_size"`
	CheckInHour           int `yaml:"check_in_hour"`
	CheckOutHour          int `yaml:"check_out_hour"`
}

type GatewayConfig struct {
	Mode      string `yaml:"mode"` // live, mock
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Secret    string `yaml:"secret"`
	Currency  string `yaml:"currency"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	ReplyTo  string `yaml:"reply_to"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"` // manager chats notified on paid bookings
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; its variables are expanded into the YAML below.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Gateway.Mode != "mock" {
		if c.Gateway.APIKey == "" || c.Gateway.Secret == "" {
			return errors.New("gateway api_key and secret are required outside mock mode")
		}
	}
	if c.App.BaseURL == "" {
		return errors.New("app base_url is required for gateway callbacks")
	}
	return ValidateUnits(c.Units)
}

func ValidateUnits(units []models.Unit) error {
	ids := make(map[int64]bool)
	slugs := make(map[string]bool)
	for _, u := range units {
		if u.ID == 0 {
			return fmt.Errorf("unit '%s' has invalid ID 0", u.Name)
		}
		if ids[u.ID] {
			return fmt.Errorf("duplicate unit ID found: %d", u.ID)
		}
		ids[u.ID] = true
		if u.Slug == "" {
			return fmt.Errorf("unit %d has empty slug", u.ID)
		}
		if slugs[u.Slug] {
			return fmt.Errorf("duplicate unit slug found: %s", u.Slug)
		}
		slugs[u.Slug] = true
		if u.CapacityMax <= 0 || u.CapacityMin > u.CapacityMax {
			return fmt.Errorf("unit %d has invalid capacity range %d..%d", u.ID, u.CapacityMin, u.CapacityMax)
		}
		if u.BasePrice <= 0 {
			return fmt.Errorf("unit %d has invalid base price %d", u.ID, u.BasePrice)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.HoldTTLMinutes == 0 {
		c.Booking.HoldTTLMinutes = models.HoldTTLMinutes
	}
	if c.Booking.ReconcileGraceMinutes == 0 {
		c.Booking.ReconcileGraceMinutes = models.ReconcileGraceMinutes
	}
	if c.Booking.ReconcileBatchSize == 0 {
		c.Booking.ReconcileBatchSize = models.ReconcileBatchSize
	}
	if c.Booking.CheckInHour == 0 {
		c.Booking.CheckInHour = models.DefaultCheckInHour
	}
	if c.Booking.CheckOutHour == 0 {
		c.Booking.CheckOutHour = models.DefaultCheckOutHour
	}

	if c.Gateway.Mode == "" {
		c.Gateway.Mode = "live"
	}
	if c.Gateway.Currency == "" {
		c.Gateway.Currency = "CLP"
	}
	if c.Gateway.TimeoutMS == 0 {
		c.Gateway.TimeoutMS = 10000
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
}

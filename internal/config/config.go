package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Env                 string `mapstructure:"env"`
	Port                int    `mapstructure:"port"`
	MetricsPort         int    `mapstructure:"metrics_port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `mapstructure:"idle_timeout_seconds"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTCfg struct {
	AccessSecret           string `mapstructure:"access_secret"`
	RefreshSecret          string `mapstructure:"refresh_secret"`
	AccessTTLHours         int    `mapstructure:"access_ttl_hours"`
	AutoLoginAccessTTLDays int    `mapstructure:"auto_login_access_ttl_days"`
	RefreshTTLDays         int    `mapstructure:"refresh_ttl_days"`
}

type SMSCfg struct {
	BaseURL  string `mapstructure:"base_url"`
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
	Sender   string `mapstructure:"sender"`
	Enabled  bool   `mapstructure:"enabled"`
}

type SecurityCfg struct {
	ServiceAPIKey    string `mapstructure:"service_api_key"`
	AutoLoginURL     string `mapstructure:"auto_login_url"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
	RateLimitPerHour int    `mapstructure:"rate_limit_per_hour"`
}

type Config struct {
	App      AppCfg      `mapstructure:"app"`
	Mongo    MongoCfg    `mapstructure:"mongo"`
	Redis    RedisCfg    `mapstructure:"redis"`
	JWT      JWTCfg      `mapstructure:"jwt"`
	SMS      SMSCfg      `mapstructure:"sms"`
	Security SecurityCfg `mapstructure:"security"`

	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads config.yaml and applies environment overrides of the form
// APP_SECTION_KEY (APP_MONGO_URI, APP_JWT_ACCESS_SECRET, ...).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.ReadTimeoutSeconds == 0 {
		cfg.App.ReadTimeoutSeconds = 15
	}
	if cfg.App.WriteTimeoutSeconds == 0 {
		cfg.App.WriteTimeoutSeconds = 15
	}
	if cfg.App.IdleTimeoutSeconds == 0 {
		cfg.App.IdleTimeoutSeconds = 60
	}
	if cfg.JWT.AccessTTLHours == 0 {
		cfg.JWT.AccessTTLHours = 24
	}
	if cfg.JWT.AutoLoginAccessTTLDays == 0 {
		cfg.JWT.AutoLoginAccessTTLDays = 7
	}
	if cfg.JWT.RefreshTTLDays == 0 {
		cfg.JWT.RefreshTTLDays = 30
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = 10
	}
	if cfg.Security.RateLimitPerHour == 0 {
		cfg.Security.RateLimitPerHour = 30
	}
	cfg.ReadTimeout = time.Duration(cfg.App.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.App.WriteTimeoutSeconds) * time.Second
	cfg.IdleTimeout = time.Duration(cfg.App.IdleTimeoutSeconds) * time.Second

	if cfg.Mongo.URI == "" {
		return nil, errors.New("mongo.uri is required (APP_MONGO_URI)")
	}
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("jwt.access_secret and jwt.refresh_secret are required")
	}
	if cfg.Security.ServiceAPIKey == "" {
		return nil, errors.New("security.service_api_key is required")
	}

	return &cfg, nil
}

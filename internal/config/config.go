// Package config loads service configuration from a YAML file and APA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourorg/amazonpay-order-admin/internal/policy"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AmazonPay AmazonPayConfig `mapstructure:"amazon_pay"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Store     StoreConfig     `mapstructure:"store"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Policy    PolicyConfig    `mapstructure:"policy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AmazonPayConfig holds the merchant's Amazon Pay credentials and transport
// settings.
type AmazonPayConfig struct {
	PublicKeyID    string        `mapstructure:"public_key_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	Region         string        `mapstructure:"region"`
	Sandbox        bool          `mapstructure:"sandbox"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// PaymentConfig selects the payment API implementation.
type PaymentConfig struct {
	Driver string `mapstructure:"driver"` // amazonpay or mock
}

// StoreConfig selects the order store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // bolt or memory
	Path   string `mapstructure:"path"`
}

// SecurityConfig holds admin nonce settings.
type SecurityConfig struct {
	NonceSecret string        `mapstructure:"nonce_secret"`
	NonceTTL    time.Duration `mapstructure:"nonce_ttl"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

// TracingConfig toggles the stdout trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// PolicyConfig overrides the action availability rules.
type PolicyConfig struct {
	Rules []policy.RuleConfig `mapstructure:"rules"`
}

// Load reads configuration. An explicit path must exist; otherwise
// config.yaml is looked up in . and ./configs and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Payment.Driver {
	case "mock":
	case "amazonpay":
		if c.AmazonPay.PublicKeyID == "" {
			return errors.New("config: amazon_pay.public_key_id is required for the amazonpay driver")
		}
		if c.AmazonPay.PrivateKeyPath == "" {
			return errors.New("config: amazon_pay.private_key_path is required for the amazonpay driver")
		}
	default:
		return fmt.Errorf("config: unknown payment.driver %q", c.Payment.Driver)
	}

	switch c.Store.Driver {
	case "memory":
	case "bolt":
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	if c.Security.NonceSecret == "" {
		return errors.New("config: security.nonce_secret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("amazon_pay.public_key_id", "")
	v.SetDefault("amazon_pay.private_key_path", "")
	v.SetDefault("amazon_pay.region", "na")
	v.SetDefault("amazon_pay.sandbox", true)
	v.SetDefault("amazon_pay.base_url", "")
	v.SetDefault("amazon_pay.timeout", 10*time.Second)
	v.SetDefault("amazon_pay.retry_attempts", 2)
	v.SetDefault("amazon_pay.retry_delay", 500*time.Millisecond)

	v.SetDefault("payment.driver", "amazonpay")

	v.SetDefault("store.driver", "bolt")
	v.SetDefault("store.path", "data/orders.db")

	v.SetDefault("security.nonce_secret", "")
	v.SetDefault("security.nonce_ttl", 12*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.debug", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "amazonpay-order-admin")
}

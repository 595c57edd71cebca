package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is built once in main and handed to every component that needs it.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	JWTSecret     string        `yaml:"jwt_secret"`
	JWTTTL        time.Duration `yaml:"jwt_ttl"`
	AllowedOrigin string        `yaml:"allowed_origin"`
	CookieDomain  string        `yaml:"cookie_domain"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	CSRFKey       []byte        `yaml:"-"`
	SessionKey    []byte        `yaml:"-"`

	UploadDir string `yaml:"upload_dir"`

	OrderPrefix string          `yaml:"order_prefix"`
	DeliveryFee decimal.Decimal `yaml:"-"`

	Mpesa MpesaConfig `yaml:"mpesa"`
	SMS   SMSConfig   `yaml:"sms"`
	Email EmailConfig `yaml:"email"`

	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileWindow   time.Duration `yaml:"reconcile_window"`
}

type MpesaConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	CallbackURL   string        `yaml:"callback_url"`
	CallbackToken string        `yaml:"callback_token"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SMSConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
}

type EmailConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaults() *Config {
	return &Config{
		Port:              "5000",
		Environment:       "development",
		LogLevel:          "debug",
		LogFormat:         "text",
		DBDriver:          "sqlite",
		DBDSN:             "./jewell.db",
		JWTTTL:            7 * 24 * time.Hour,
		AllowedOrigin:     "http://localhost:5173",
		UploadDir:         "./static/uploads",
		OrderPrefix:       "JH",
		DeliveryFee:       decimal.NewFromInt(0),
		ReconcileInterval: time.Minute,
		ReconcileWindow:   24 * time.Hour,
		Mpesa: MpesaConfig{
			Timeout: 30 * time.Second,
		},
		SMS: SMSConfig{
			SenderID: "JEWELLHAVEN",
		},
		Email: EmailConfig{
			From: "Jewell Haven <orders@jewellhaven.co.ke>",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// money and key material are read as strings and decoded in finish
	var extra struct {
		DeliveryFee string `yaml:"delivery_fee"`
		CSRFKey     string `yaml:"csrf_key"`
		SessionKey  string `yaml:"session_key"`
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if extra.DeliveryFee != "" {
		fee, err := decimal.NewFromString(extra.DeliveryFee)
		if err != nil {
			return fmt.Errorf("invalid delivery_fee %q: %w", extra.DeliveryFee, err)
		}
		c.DeliveryFee = fee
	}
	if extra.CSRFKey != "" {
		os.Setenv("CSRF_KEY", extra.CSRFKey)
	}
	if extra.SessionKey != "" {
		os.Setenv("SESSION_KEY", extra.SessionKey)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBDSN = getEnv("DB_DSN", c.DBDSN)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTTTL = getDuration("JWT_TTL", c.JWTTTL)
	c.AllowedOrigin = getEnv("ALLOWED_ORIGIN", c.AllowedOrigin)
	c.CookieDomain = getEnv("COOKIE_DOMAIN", c.CookieDomain)
	c.CookieSecure = getEnv("COOKIE_SECURE", strconv.FormatBool(c.CookieSecure)) == "true"
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.OrderPrefix = getEnv("ORDER_PREFIX", c.OrderPrefix)

	if v, ok := os.LookupEnv("DELIVERY_FEE"); ok {
		if fee, err := decimal.NewFromString(v); err == nil {
			c.DeliveryFee = fee
		} else {
			slog.Warn("Invalid DELIVERY_FEE, keeping previous value", "value", v)
		}
	}

	c.Mpesa.BaseURL = getEnv("MPESA_BASE_URL", c.Mpesa.BaseURL)
	c.Mpesa.APIKey = getEnv("MPESA_API_KEY", c.Mpesa.APIKey)
	c.Mpesa.CallbackURL = getEnv("MPESA_CALLBACK_URL", c.Mpesa.CallbackURL)
	c.Mpesa.CallbackToken = getEnv("MPESA_CALLBACK_TOKEN", c.Mpesa.CallbackToken)
	c.Mpesa.Timeout = getDuration("MPESA_TIMEOUT", c.Mpesa.Timeout)

	c.SMS.BaseURL = getEnv("SMS_BASE_URL", c.SMS.BaseURL)
	c.SMS.APIKey = getEnv("SMS_API_KEY", c.SMS.APIKey)
	c.SMS.SenderID = getEnv("SMS_SENDER_ID", c.SMS.SenderID)

	c.Email.BaseURL = getEnv("EMAIL_BASE_URL", c.Email.BaseURL)
	c.Email.APIKey = getEnv("EMAIL_API_KEY", c.Email.APIKey)
	c.Email.From = getEnv("EMAIL_FROM", c.Email.From)

	c.ReconcileInterval = getDuration("RECONCILE_INTERVAL", c.ReconcileInterval)
	c.ReconcileWindow = getDuration("RECONCILE_WINDOW", c.ReconcileWindow)
}

func (c *Config) finish() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		slog.Error("Invalid PORT. Falling back to default.", "PORT", c.Port)
		c.Port = "5000"
	}

	c.DBDriver = strings.ToLower(c.DBDriver)
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		slog.Warn("JWT_SECRET not set. Generating a random secret for development. Tokens will be invalid on restart.")
		c.JWTSecret = base64.StdEncoding.EncodeToString(generateRandomBytes(32))
	}

	c.CSRFKey = loadKey("CSRF_KEY")
	c.SessionKey = loadKey("SESSION_KEY")

	if c.DeliveryFee.IsNegative() {
		return fmt.Errorf("delivery fee cannot be negative")
	}
	return nil
}

// loadKey decodes a base64 key of at least 32 bytes, or generates a random
// one so development setups keep working.
func loadKey(name string) []byte {
	raw := os.Getenv(name)
	if raw == "" {
		slog.Warn(name + " not set. Generating a random key for development. This key will change on each restart.")
		return generateRandomBytes(32)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) < 32 {
		slog.Warn(name + " is invalid or shorter than 32 bytes. Generating a random key for development.")
		return generateRandomBytes(32)
	}
	return decoded
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Failed to read random bytes", "error", err)
		fallback := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		padded := make([]byte, n)
		copy(padded, fallback)
		return padded
	}
	return b
}

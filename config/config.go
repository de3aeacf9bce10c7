package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Studio   StudioConfig   `mapstructure:"studio"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	SwaggerDir     string   `mapstructure:"swagger_dir"`
	RatePerMinute  int      `mapstructure:"rate_per_minute"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers            []string `mapstructure:"brokers"`
	BookingTopic       string   `mapstructure:"booking_topic"`
	NotificationsTopic string   `mapstructure:"notifications_topic"`
	GroupID            string   `mapstructure:"group_id"`
}

// Enabled reports whether a broker list is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Brokers[0] != ""
}

type StudioConfig struct {
	Timezone        string `mapstructure:"timezone"`
	OpenHour        int    `mapstructure:"open_hour"`
	CloseHour       int    `mapstructure:"close_hour"`
	SlotStepMinutes int    `mapstructure:"slot_step_minutes"`
}

func (s StudioConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type PaymentConfig struct {
	StripeSecretKey       string `mapstructure:"stripe_secret_key"`
	Currency              string `mapstructure:"currency"`
	GatewayTimeoutSeconds int    `mapstructure:"gateway_timeout_seconds"`
}

func (p PaymentConfig) GatewayTimeout() time.Duration {
	return time.Duration(p.GatewayTimeoutSeconds) * time.Second
}

// lockMarginSeconds covers the database write and event publishing that
// follow the gateway calls made under a booking lock.
const lockMarginSeconds = 10

// MinLockTTLSeconds is the shortest booking lock that outlives a capture or
// refund: two gateway calls at the full timeout plus the follow-up writes.
func (p PaymentConfig) MinLockTTLSeconds() int {
	return 2*p.GatewayTimeoutSeconds + lockMarginSeconds
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type BookingConfig struct {
	LockTTLSeconds         int    `mapstructure:"lock_ttl_seconds"`
	PublishTimeoutSeconds  int    `mapstructure:"publish_timeout_seconds"`
	CatalogCacheTTLSeconds int    `mapstructure:"catalog_cache_ttl_seconds"`
	CatalogSeedPath        string `mapstructure:"catalog_seed_path"`
}

type WorkerConfig struct {
	OverlapScanMinutes int `mapstructure:"overlap_scan_minutes"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// Enabled reports whether outgoing mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type LogConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.swagger_dir", "./swagger")
	v.SetDefault("http.rate_per_minute", 120)
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "studiobooking")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.booking_topic", "booking-events")
	v.SetDefault("kafka.notifications_topic", "booking-notifications")
	v.SetDefault("kafka.group_id", "studiobooking")

	v.SetDefault("studio.timezone", "UTC")
	v.SetDefault("studio.open_hour", 9)
	v.SetDefault("studio.close_hour", 2)
	v.SetDefault("studio.slot_step_minutes", 30)

	v.SetDefault("payment.stripe_secret_key", "")
	v.SetDefault("payment.currency", "usd")
	v.SetDefault("payment.gateway_timeout_seconds", 15)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("booking.lock_ttl_seconds", 60)
	v.SetDefault("booking.publish_timeout_seconds", 5)
	v.SetDefault("booking.catalog_cache_ttl_seconds", 300)
	v.SetDefault("booking.catalog_seed_path", "")

	v.SetDefault("worker.overlap_scan_minutes", 10)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "bookings@studio.local")
	v.SetDefault("smtp.from_name", "Studio Bookings")

	v.SetDefault("log.env", "development")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads path (if it exists) and lets environment variables such as
// DATABASE_HOST or PAYMENT_STRIPE_SECRET_KEY override any key.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// viper reports a missing explicit config file as a plain fs error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (c *Config) Validate() error {
	if c.Studio.OpenHour < 0 || c.Studio.OpenHour > 23 {
		return fmt.Errorf("studio.open_hour must be within 0..23, got %d", c.Studio.OpenHour)
	}
	if c.Studio.CloseHour < 0 || c.Studio.CloseHour > 24 {
		return fmt.Errorf("studio.close_hour must be within 0..24, got %d", c.Studio.CloseHour)
	}
	if _, err := c.Studio.Location(); err != nil {
		return fmt.Errorf("studio.timezone: %w", err)
	}
	if c.Payment.GatewayTimeoutSeconds <= 0 {
		return errors.New("payment.gateway_timeout_seconds must be positive")
	}
	if c.Booking.PublishTimeoutSeconds <= 0 {
		return errors.New("booking.publish_timeout_seconds must be positive")
	}
	if minTTL := c.Payment.MinLockTTLSeconds(); c.Booking.LockTTLSeconds < minTTL {
		return fmt.Errorf("booking.lock_ttl_seconds must be at least %d for a %ds gateway timeout, got %d",
			minTTL, c.Payment.GatewayTimeoutSeconds, c.Booking.LockTTLSeconds)
	}
	return nil
}

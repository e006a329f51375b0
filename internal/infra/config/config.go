package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Security  SecuritySettings  `mapstructure:"security"`
	Session   SessionSettings   `mapstructure:"session"`
	MFA       MFASettings       `mapstructure:"mfa"`
	Notify    NotifySettings    `mapstructure:"notify"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	BaseURL     string   `mapstructure:"base_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection used for rate limiting.
type RedisSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              int           `mapstructure:"db"`
	Password        string        `mapstructure:"password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	RateLimitPrefix string        `mapstructure:"rate_limit_prefix"`
	RateLimitTTL    time.Duration `mapstructure:"rate_limit_ttl"`
}

// KafkaSettings configures the audit event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	PendingMFATTL  time.Duration `mapstructure:"pending_mfa_ttl"`
}

// SecuritySettings groups lockout, hashing, and code/token lifetime policy.
type SecuritySettings struct {
	BcryptCost            int           `mapstructure:"bcrypt_cost"`
	MaxFailedLogins       int           `mapstructure:"max_failed_logins"`
	LockoutDuration       time.Duration `mapstructure:"lockout_duration"`
	PasswordHistoryDepth  int           `mapstructure:"password_history_depth"`
	EmailVerifyTokenTTL   time.Duration `mapstructure:"email_verify_token_ttl"`
	EmailVerifyCodeTTL    time.Duration `mapstructure:"email_verify_code_ttl"`
	PasswordResetTokenTTL time.Duration `mapstructure:"password_reset_token_ttl"`
	PasswordResetCodeTTL  time.Duration `mapstructure:"password_reset_code_ttl"`
	PhoneCodeTTL          time.Duration `mapstructure:"phone_code_ttl"`
	NotificationTimeout   time.Duration `mapstructure:"notification_timeout"`
}

// SessionSettings governs the in-memory session registry.
type SessionSettings struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MFASettings configures second-factor provisioning.
type MFASettings struct {
	Issuer           string        `mapstructure:"issuer"`
	BackupCodeCount  int           `mapstructure:"backup_code_count"`
	BackupCodeLength int           `mapstructure:"backup_code_length"`
	TOTPSkewSteps    uint          `mapstructure:"totp_skew_steps"`
	ChallengeCodeTTL time.Duration `mapstructure:"challenge_code_ttl"`
}

// NotifySettings configures outbound email and SMS delivery.
type NotifySettings struct {
	ResendAPIKey  string `mapstructure:"resend_api_key"`
	FromEmail     string `mapstructure:"from_email"`
	FromName      string `mapstructure:"from_name"`
	SMSGatewayURL string `mapstructure:"sms_gateway_url"`
	SMSAPIKey     string `mapstructure:"sms_api_key"`
}

type TelemetrySettings struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	ServiceName string `mapstructure:"service_name"`
}

// RateLimitSettings configures sliding-window limits per auth endpoint.
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.base_url",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"redis.rate_limit_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.pending_mfa_ttl",
		"security.bcrypt_cost",
		"security.max_failed_logins",
		"security.lockout_duration",
		"security.password_history_depth",
		"security.email_verify_token_ttl",
		"security.email_verify_code_ttl",
		"security.password_reset_token_ttl",
		"security.password_reset_code_ttl",
		"security.phone_code_ttl",
		"security.notification_timeout",
		"session.idle_timeout",
		"session.sweep_interval",
		"mfa.issuer",
		"mfa.backup_code_count",
		"mfa.backup_code_length",
		"mfa.totp_skew_steps",
		"mfa.challenge_code_ttl",
		"notify.resend_api_key",
		"notify.from_email",
		"notify.from_name",
		"notify.sms_gateway_url",
		"notify.sms_api_key",
		"telemetry.metrics_port",
		"telemetry.service_name",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.password_reset_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "platform-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "auth:rate_limit")
	v.SetDefault("redis.rate_limit_ttl", "5m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "platform-auth")
	v.SetDefault("jwt.access_token_ttl", "24h")
	v.SetDefault("jwt.pending_mfa_ttl", "5m")

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.max_failed_logins", 5)
	v.SetDefault("security.lockout_duration", "30m")
	v.SetDefault("security.password_history_depth", 5)
	v.SetDefault("security.email_verify_token_ttl", "24h")
	v.SetDefault("security.email_verify_code_ttl", "10m")
	v.SetDefault("security.password_reset_token_ttl", "1h")
	v.SetDefault("security.password_reset_code_ttl", "15m")
	v.SetDefault("security.phone_code_ttl", "15m")
	v.SetDefault("security.notification_timeout", "5s")

	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.sweep_interval", "5m")

	v.SetDefault("mfa.issuer", "LedgerDesk")
	v.SetDefault("mfa.backup_code_count", 10)
	v.SetDefault("mfa.backup_code_length", 8)
	v.SetDefault("mfa.totp_skew_steps", 2)
	v.SetDefault("mfa.challenge_code_ttl", "10m")

	v.SetDefault("notify.resend_api_key", "")
	v.SetDefault("notify.from_email", "no-reply@ledgerdesk.example.com")
	v.SetDefault("notify.from_name", "LedgerDesk")
	v.SetDefault("notify.sms_gateway_url", "")
	v.SetDefault("notify.sms_api_key", "")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.service_name", "platform-auth")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

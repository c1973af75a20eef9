package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Token transports understood by the auth handlers.
const (
	TransportCookie = "cookie"
	TransportBody   = "body"
	TransportBoth   = "both"
)

// Tenant indicator sources.
const (
	TenantSourceHeader    = "header"
	TenantSourceSubdomain = "subdomain"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Tenant   TenantConfig
	Security SecurityConfig
	Password PasswordConfig
	Audit    AuditConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// JWTConfig holds signing material and lifetimes for both token kinds.
// Access and refresh tokens must be signed with different secrets.
type JWTConfig struct {
	AccessSecret      string
	RefreshSecret     string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
	Audience          []string
}

// SessionConfig tunes the session authority and its Redis store.
type SessionConfig struct {
	KeyPrefix          string
	RotateRefresh      bool
	StoreTimeout       time.Duration
	StrictAccessCheck  bool
	DeleteRetries      int
	DeleteRetryBackoff time.Duration
}

// CookieConfig controls how credentials travel to browsers.
type CookieConfig struct {
	Transport   string
	AccessName  string
	RefreshName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    string
}

// TenantConfig controls where the per-request tenant indicator is read from.
type TenantConfig struct {
	Source     string
	Header     string
	BaseDomain string
}

// SecurityConfig holds the suspicious-activity thresholds.
type SecurityConfig struct {
	MaxSessions int
	MaxDevices  int
	MaxIPs      int
}

// PasswordConfig holds argon2id parameters for newly hashed passwords.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig sizes the background audit writer.
type AuditConfig struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
	}

	cfg.Redis = RedisConfig{
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 3*time.Second),
		IOTimeout:   parseDuration(v.GetString("REDIS_IO_TIMEOUT"), 2*time.Second),
	}

	cfg.JWT = JWTConfig{
		AccessSecret:      v.GetString("JWT_SECRET"),
		RefreshSecret:     v.GetString("JWT_REFRESH_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
		Audience:          splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.Session = SessionConfig{
		KeyPrefix:          v.GetString("SESSION_KEY_PREFIX"),
		RotateRefresh:      v.GetBool("SESSION_ROTATE_REFRESH"),
		StoreTimeout:       parseDuration(v.GetString("SESSION_STORE_TIMEOUT"), 2*time.Second),
		StrictAccessCheck:  v.GetBool("AUTH_STRICT_SESSION_CHECK"),
		DeleteRetries:      v.GetInt("SESSION_DELETE_RETRIES"),
		DeleteRetryBackoff: parseDuration(v.GetString("SESSION_DELETE_RETRY_BACKOFF"), 50*time.Millisecond),
	}

	cfg.Cookie = CookieConfig{
		Transport:   strings.ToLower(v.GetString("AUTH_TOKEN_TRANSPORT")),
		AccessName:  v.GetString("AUTH_ACCESS_COOKIE"),
		RefreshName: v.GetString("AUTH_REFRESH_COOKIE"),
		Domain:      v.GetString("AUTH_COOKIE_DOMAIN"),
		Path:        v.GetString("AUTH_COOKIE_PATH"),
		Secure:      v.GetBool("AUTH_COOKIE_SECURE") || cfg.Env == EnvProduction,
		SameSite:    strings.ToLower(v.GetString("AUTH_COOKIE_SAMESITE")),
	}

	cfg.Tenant = TenantConfig{
		Source:     strings.ToLower(v.GetString("TENANT_SOURCE")),
		Header:     v.GetString("TENANT_HEADER"),
		BaseDomain: strings.ToLower(strings.TrimPrefix(v.GetString("TENANT_BASE_DOMAIN"), ".")),
	}

	cfg.Security = SecurityConfig{
		MaxSessions: v.GetInt("SECURITY_MAX_SESSIONS"),
		MaxDevices:  v.GetInt("SECURITY_MAX_DEVICES"),
		MaxIPs:      v.GetInt("SECURITY_MAX_IPS"),
	}

	cfg.Password = PasswordConfig{
		Memory:      v.GetUint32("PASSWORD_ARGON2_MEMORY_KB"),
		Time:        v.GetUint32("PASSWORD_ARGON2_TIME"),
		Parallelism: uint8(v.GetUint("PASSWORD_ARGON2_PARALLELISM")),
		SaltLength:  v.GetUint32("PASSWORD_ARGON2_SALT_LENGTH"),
		KeyLength:   v.GetUint32("PASSWORD_ARGON2_KEY_LENGTH"),
	}

	cfg.Audit = AuditConfig{
		Workers:     v.GetInt("AUDIT_WORKERS"),
		BufferSize:  v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxAttempts: v.GetInt("AUDIT_MAX_ATTEMPTS"),
		RetryDelay:  parseDuration(v.GetString("AUDIT_RETRY_DELAY"), 200*time.Millisecond),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWT.Expiration <= 0 || c.JWT.RefreshExpiration <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch c.Cookie.Transport {
	case TransportCookie, TransportBody, TransportBoth:
	default:
		return errors.New("AUTH_TOKEN_TRANSPORT must be one of cookie, body, both")
	}
	switch c.Tenant.Source {
	case TenantSourceHeader:
	case TenantSourceSubdomain:
		if c.Tenant.BaseDomain == "" {
			return errors.New("TENANT_BASE_DOMAIN is required when TENANT_SOURCE=subdomain")
		}
	default:
		return errors.New("TENANT_SOURCE must be header or subdomain")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lead_management")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "3s")
	v.SetDefault("REDIS_IO_TIMEOUT", "2s")

	v.SetDefault("JWT_SECRET", "dev_access_secret")
	v.SetDefault("JWT_REFRESH_SECRET", "dev_refresh_secret")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "lead-management-auth")
	v.SetDefault("JWT_AUDIENCE", "lead-management-api")

	v.SetDefault("SESSION_KEY_PREFIX", "lms:session")
	v.SetDefault("SESSION_ROTATE_REFRESH", true)
	v.SetDefault("SESSION_STORE_TIMEOUT", "2s")
	v.SetDefault("AUTH_STRICT_SESSION_CHECK", false)
	v.SetDefault("SESSION_DELETE_RETRIES", 3)
	v.SetDefault("SESSION_DELETE_RETRY_BACKOFF", "50ms")

	v.SetDefault("AUTH_TOKEN_TRANSPORT", TransportBoth)
	v.SetDefault("AUTH_ACCESS_COOKIE", "access_token")
	v.SetDefault("AUTH_REFRESH_COOKIE", "refresh_token")
	v.SetDefault("AUTH_COOKIE_DOMAIN", "")
	v.SetDefault("AUTH_COOKIE_PATH", "/")
	v.SetDefault("AUTH_COOKIE_SECURE", false)
	v.SetDefault("AUTH_COOKIE_SAMESITE", "lax")

	v.SetDefault("TENANT_SOURCE", TenantSourceHeader)
	v.SetDefault("TENANT_HEADER", "X-Tenant-ID")
	v.SetDefault("TENANT_BASE_DOMAIN", "")

	v.SetDefault("SECURITY_MAX_SESSIONS", 5)
	v.SetDefault("SECURITY_MAX_DEVICES", 3)
	v.SetDefault("SECURITY_MAX_IPS", 3)

	v.SetDefault("PASSWORD_ARGON2_MEMORY_KB", 64*1024)
	v.SetDefault("PASSWORD_ARGON2_TIME", 3)
	v.SetDefault("PASSWORD_ARGON2_PARALLELISM", 2)
	v.SetDefault("PASSWORD_ARGON2_SALT_LENGTH", 16)
	v.SetDefault("PASSWORD_ARGON2_KEY_LENGTH", 32)

	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("AUDIT_MAX_ATTEMPTS", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "200ms")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

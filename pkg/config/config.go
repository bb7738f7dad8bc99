package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugh/agricoop/pkg/util"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Tenancy    TenancyConfig
	Admin      AdminConfig
	Worker     WorkerConfig
	DNS        DNSConfig
	Archive    ArchiveConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// TenancyConfig drives tenant resolution.
type TenancyConfig struct {
	BaseDomain      string
	ReservedNames   []string
	Header          string
	QueryParam      string
	AllowQueryParam bool
	PublicPaths     []string
	TrialDays       int
	CacheTTLSeconds int
}

// AdminConfig gates the unscoped admin routes. An empty Key disables them.
type AdminConfig struct {
	Key string
}

type WorkerConfig struct {
	Concurrency int
	SweepCron   string
}

type DNSConfig struct {
	Provider string // none, cloudflare, route53, digitalocean, clouddns
	Target   string // CNAME target for tenant subdomains

	CloudflareToken  string
	CloudflareZoneID string

	Route53ZoneID string
	AWSRegion     string

	DigitalOceanToken  string
	DigitalOceanDomain string

	GCPProject     string
	GCPManagedZone string
	GCPCredentials string
}

type ArchiveConfig struct {
	Provider string // none, s3, gcs
	Bucket   string
	Prefix   string

	AWSRegion      string
	AWSAccessKey   string
	AWSSecretKey   string
	AWSAssumeRole  string
	GCSCredentials string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (t *TenancyConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

func (t *TenancyConfig) TrialPeriod() time.Duration {
	return time.Duration(t.TrialDays) * 24 * time.Hour
}

// IsReserved reports whether name can never be a tenant subdomain.
func (t *TenancyConfig) IsReserved(name string) bool {
	for _, r := range t.ReservedNames {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

// IsPublic reports whether path is served without a tenant.
func (t *TenancyConfig) IsPublic(path string) bool {
	for _, p := range t.PublicPaths {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	// .env values become process env so both viper and third-party SDKs see them
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "agricoop")
	v.SetDefault("DATABASE_PASSWORD", "agricoop_secret")
	v.SetDefault("DATABASE_NAME", "agricoop")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 100)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("TENANT_BASE_DOMAIN", "localhost")
	v.SetDefault("TENANT_RESERVED_NAMES", "www,api,admin")
	v.SetDefault("TENANT_HEADER", "X-Tenant-Subdomain")
	v.SetDefault("TENANT_QUERY_PARAM", "tenant")
	v.SetDefault("TENANT_PUBLIC_PATHS", "/health,/ready,/api/v1/register,/api/v1/auth/login,/api/v1/admin")
	v.SetDefault("TENANT_TRIAL_DAYS", 30)
	v.SetDefault("TENANT_CACHE_TTL_SECONDS", 60)
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_SWEEP_CRON", "*/15 * * * *")
	v.SetDefault("DNS_PROVIDER", "none")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("ARCHIVE_PROVIDER", "none")
	v.SetDefault("ARCHIVE_PREFIX", "tenants/")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	env := v.GetString("SERVER_ENV")
	v.SetDefault("TENANT_ALLOW_QUERY_PARAM", env == "development")

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  env,
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DATABASE_HOST"),
			Port:         v.GetInt("DATABASE_PORT"),
			User:         v.GetString("DATABASE_USER"),
			Password:     v.GetString("DATABASE_PASSWORD"),
			Name:         v.GetString("DATABASE_NAME"),
			SSLMode:      v.GetString("DATABASE_SSLMODE"),
			MaxIdleConns: v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Tenancy: TenancyConfig{
			BaseDomain:      v.GetString("TENANT_BASE_DOMAIN"),
			ReservedNames:   splitList(v.GetString("TENANT_RESERVED_NAMES")),
			Header:          v.GetString("TENANT_HEADER"),
			QueryParam:      v.GetString("TENANT_QUERY_PARAM"),
			AllowQueryParam: v.GetBool("TENANT_ALLOW_QUERY_PARAM"),
			PublicPaths:     splitList(v.GetString("TENANT_PUBLIC_PATHS")),
			TrialDays:       v.GetInt("TENANT_TRIAL_DAYS"),
			CacheTTLSeconds: v.GetInt("TENANT_CACHE_TTL_SECONDS"),
		},
		Admin: AdminConfig{
			Key: v.GetString("ADMIN_KEY"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			SweepCron:   v.GetString("WORKER_SWEEP_CRON"),
		},
		DNS: DNSConfig{
			Provider:           v.GetString("DNS_PROVIDER"),
			Target:             v.GetString("DNS_TARGET"),
			CloudflareToken:    v.GetString("CLOUDFLARE_API_TOKEN"),
			CloudflareZoneID:   v.GetString("CLOUDFLARE_ZONE_ID"),
			Route53ZoneID:      v.GetString("ROUTE53_HOSTED_ZONE_ID"),
			AWSRegion:          v.GetString("AWS_REGION"),
			DigitalOceanToken:  v.GetString("DIGITALOCEAN_TOKEN"),
			DigitalOceanDomain: v.GetString("DIGITALOCEAN_DOMAIN"),
			GCPProject:         v.GetString("GCP_PROJECT"),
			GCPManagedZone:     v.GetString("GCP_MANAGED_ZONE"),
			GCPCredentials:     v.GetString("GCS_CREDENTIALS_JSON"),
		},
		Archive: ArchiveConfig{
			Provider:       v.GetString("ARCHIVE_PROVIDER"),
			Bucket:         v.GetString("ARCHIVE_BUCKET"),
			Prefix:         v.GetString("ARCHIVE_PREFIX"),
			AWSRegion:      v.GetString("AWS_REGION"),
			AWSAccessKey:   v.GetString("AWS_ACCESS_KEY_ID"),
			AWSSecretKey:   v.GetString("AWS_SECRET_ACCESS_KEY"),
			AWSAssumeRole:  v.GetString("ARCHIVE_ASSUME_ROLE_ARN"),
			GCSCredentials: v.GetString("GCS_CREDENTIALS_JSON"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.Tenancy.Header == "" {
		return fmt.Errorf("TENANT_HEADER must not be empty")
	}
	if err := util.ValidateCronExpr(c.Worker.SweepCron); err != nil {
		return fmt.Errorf("invalid WORKER_SWEEP_CRON %q: %w", c.Worker.SweepCron, err)
	}
	if !c.Server.IsDevelopment() && c.JWT.Secret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be set outside development")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	HTTPAddress string
	GRPCAddress string
	LogLevel    string

	StoreBackend string
	DatabaseURL  string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	DynamoDBTable          string
	AWSRegion              string
	DynamoDBEndpoint       string
	AWSAccessKeyID         string
	AWSSecretAccessKey     string
	DynamoDBBucketSize     time.Duration
	DynamoDBConsistentRead bool

	RetentionPeriod   time.Duration
	RetentionInterval time.Duration

	AdminJWTPublicKeyPath string
	Issuer                string
	Audience              string
	AdminScope            string

	AllowedOrigins   []string
	AllowCredentials bool
	HTTPSCertFile    string
	HTTPSKeyFile     string

	RateLimitRPS   int
	RateLimitBurst int
}

// TLSEnabled reports whether both certificate and key were configured.
func (c *Config) TLSEnabled() bool {
	return c.HTTPSCertFile != "" && c.HTTPSKeyFile != ""
}

// AdminAuthEnabled reports whether admin endpoints require a bearer token.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminJWTPublicKeyPath != ""
}

var keys = []string{
	"HTTP_ADDRESS", "GRPC_ADDRESS", "LOG_LEVEL",
	"STORE_BACKEND", "DATABASE_URL",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY",
	"DYNAMODB_TABLE", "AWS_REGION", "DYNAMODB_ENDPOINT", "AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY", "DYNAMODB_BUCKET_SIZE", "DYNAMODB_CONSISTENT_READ",
	"RETENTION_PERIOD", "RETENTION_INTERVAL",
	"ADMIN_JWT_PUBLIC_KEY_PATH", "JWT_ISSUER", "JWT_AUDIENCE", "ADMIN_SCOPE",
	"ALLOWED_ORIGINS", "ALLOW_CREDENTIALS", "HTTPS_CERT_FILE", "HTTPS_KEY_FILE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads config.json from the working directory when present; environment
// variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("REDIS_KEY", "revocations")
	v.SetDefault("DYNAMODB_BUCKET_SIZE", "1h")
	v.SetDefault("RETENTION_PERIOD", "0s")
	v.SetDefault("RETENTION_INTERVAL", "1h")
	v.SetDefault("ADMIN_SCOPE", "revocation:write")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	origins, err := parseList(v.GetString("ALLOWED_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_ORIGINS: %w", err)
	}

	cfg := &Config{
		HTTPAddress: v.GetString("HTTP_ADDRESS"),
		GRPCAddress: v.GetString("GRPC_ADDRESS"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		StoreBackend: strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		DatabaseURL:  v.GetString("DATABASE_URL"),

		RedisAddress:  v.GetString("REDIS_ADDRESS"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisKey:      v.GetString("REDIS_KEY"),

		DynamoDBTable:          v.GetString("DYNAMODB_TABLE"),
		AWSRegion:              v.GetString("AWS_REGION"),
		DynamoDBEndpoint:       v.GetString("DYNAMODB_ENDPOINT"),
		AWSAccessKeyID:         v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:     v.GetString("AWS_SECRET_ACCESS_KEY"),
		DynamoDBBucketSize:     v.GetDuration("DYNAMODB_BUCKET_SIZE"),
		DynamoDBConsistentRead: v.GetBool("DYNAMODB_CONSISTENT_READ"),

		RetentionPeriod:   v.GetDuration("RETENTION_PERIOD"),
		RetentionInterval: v.GetDuration("RETENTION_INTERVAL"),

		AdminJWTPublicKeyPath: v.GetString("ADMIN_JWT_PUBLIC_KEY_PATH"),
		Issuer:                v.GetString("JWT_ISSUER"),
		Audience:              v.GetString("JWT_AUDIENCE"),
		AdminScope:            v.GetString("ADMIN_SCOPE"),

		AllowedOrigins:   origins,
		AllowCredentials: v.GetBool("ALLOW_CREDENTIALS"),
		HTTPSCertFile:    v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:     v.GetString("HTTPS_KEY_FILE"),

		RateLimitRPS:   v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := func(key, val string) error {
		if val == "" {
			return fmt.Errorf("%s is required for STORE_BACKEND=%s", key, c.StoreBackend)
		}
		return nil
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if err := required("REDIS_ADDRESS", c.RedisAddress); err != nil {
			return err
		}
	case BackendPostgres:
		if err := required("DATABASE_URL", c.DatabaseURL); err != nil {
			return err
		}
	case BackendDynamoDB:
		if err := required("DYNAMODB_TABLE", c.DynamoDBTable); err != nil {
			return err
		}
		if err := required("AWS_REGION", c.AWSRegion); err != nil {
			return err
		}
		if c.RetentionPeriod <= 0 {
			return fmt.Errorf("RETENTION_PERIOD must be positive for STORE_BACKEND=%s", c.StoreBackend)
		}
		if c.DynamoDBBucketSize < time.Second {
			return fmt.Errorf("DYNAMODB_BUCKET_SIZE must be at least 1s")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.RetentionPeriod < 0 {
		return fmt.Errorf("RETENTION_PERIOD must not be negative")
	}
	if c.RetentionPeriod > 0 && c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if (c.HTTPSCertFile == "") != (c.HTTPSKeyFile == "") {
		return fmt.Errorf("HTTPS_CERT_FILE and HTTPS_KEY_FILE must be set together")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// parseList accepts either a JSON array or a comma separated list.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Auth     AuthConfig
	Database DatabaseConfig
	Observe  ObserveConfig
	Server   ServerConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	// MaxUploadBytes bounds multipart upload requests on the common routes.
	MaxUploadBytes int64 `env:"SERVER_MAX_UPLOAD_BYTES, default=5242880"`
}

// DatabaseConfig specifies the MySQL connection backing the task tracker and
// the entity stores.
type DatabaseConfig struct {
	DSN string `env:"DATABASE_DSN, required"`

	MaxOpenConns    int `env:"DATABASE_MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int `env:"DATABASE_MAX_IDLE_CONNS, default=5"`
	ConnMaxLifeMins int `env:"DATABASE_CONN_MAX_LIFETIME_MINS, default=60"`
}

// AuthConfig holds settings for both authentication surfaces: the admin
// console (JWT bearer) and the mini-program client (opaque session id).
type AuthConfig struct {
	// JWTSecret signs admin access tokens (HS256).
	JWTSecret string `env:"AUTH_JWT_SECRET, required"`

	// JWTIssuer is set as the iss claim on issued tokens.
	JWTIssuer string `env:"AUTH_JWT_ISSUER, default=travel-platform"`

	// JWTExpiryHours is the admin token validity.
	JWTExpiryHours int `env:"AUTH_JWT_EXPIRY_HOURS, default=24"`

	// SessionHeader is the request header carrying the mini-program session
	// id. A "session_id" cookie is accepted as fallback.
	SessionHeader string `env:"AUTH_SESSION_HEADER, default=X-Session-Id"`

	// WechatAppID and WechatSecret authenticate the code-to-session exchange
	// during mini-program login. Leaving them empty disables that login.
	WechatAppID  string `env:"AUTH_WECHAT_APP_ID"`
	WechatSecret string `env:"AUTH_WECHAT_SECRET"`
}

// StorageConfig specifies the qiniu object storage used for media uploads.
// The credential values must be set together; leaving all of them empty
// disables the upload endpoint.
type StorageConfig struct {
	AccessKey string `env:"STORAGE_ACCESS_KEY"`
	SecretKey string `env:"STORAGE_SECRET_KEY"`
	Bucket    string `env:"STORAGE_BUCKET"`
	Domain    string `env:"STORAGE_DOMAIN"`

	// Zone selects the storage region ("z0".."z2", "na0", "as0").
	Zone string `env:"STORAGE_ZONE, default=z0"`
}

type ObserveConfig struct {
	SDKLogLevel               string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                   bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled            bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                      string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName               string `env:"OBSERVE_SERVICE_NAME, default=travel-platform"`
	TraceBatchTimeoutSeconds  int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Storage.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid storage configuration: %w", err)
	}

	return cfg, nil
}

// Enabled reports whether object storage is configured.
func (c *StorageConfig) Enabled() bool {
	return c.AccessKey != "" || c.SecretKey != "" || c.Bucket != "" || c.Domain != ""
}

// Validate checks that the storage configuration is either absent or whole.
func (c *StorageConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are both required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET required when storage is configured")
	}
	if c.Domain == "" {
		return fmt.Errorf("STORAGE_DOMAIN required when storage is configured")
	}
	return nil
}

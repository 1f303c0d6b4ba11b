package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/request/httpclient"
)

const (
	// EnvPrefix prefixes every environment override, e.g. HEARTHLINE_APISERVER_PORT
	EnvPrefix = "HEARTHLINE"

	// ConfigPathEnv points at the YAML config file
	ConfigPathEnv = "HEARTHLINE_CONFIG"

	DefaultConfigPath = "appconfig/default.yaml"
)

type AppConfig struct {
	App        App              `mapstructure:"app"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Cache      cache.Config     `mapstructure:"cache"`
	Store      StoreConfig      `mapstructure:"store"`
	Assets     AssetsConfig     `mapstructure:"assets"`
	Mesh       MeshConfig       `mapstructure:"mesh"`
	Sync       SyncConfig       `mapstructure:"sync"`
	HttpClient HttpClientConfig `mapstructure:"httpClient"`
	APIServer  APIServerConfig  `mapstructure:"apiServer"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type App struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// DefaultSender is recorded on messages that arrive without a sender
	DefaultSender string `mapstructure:"defaultSender"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StoreConfig struct {
	KeyPrefix string `mapstructure:"keyPrefix"`
}

type AssetsConfig struct {
	// Origin is the upstream the asset proxy fetches from, e.g. http://localhost:5173
	Origin string `mapstructure:"origin"`
	// ManifestFile is an optional YAML manifest; when empty the inline fields are used
	ManifestFile string   `mapstructure:"manifestFile"`
	Version      string   `mapstructure:"version"`
	Fallback     string   `mapstructure:"fallback"`
	Resources    []string `mapstructure:"resources"`
	// InstallConcurrency bounds parallel resource fetches during install
	InstallConcurrency int `mapstructure:"installConcurrency"`
}

type MeshConfig struct {
	// Transport is "simulated" or "redis"
	Transport string        `mapstructure:"transport"`
	NodeID    string        `mapstructure:"nodeId"`
	NodeName  string        `mapstructure:"nodeName"`
	PeerTTL   time.Duration `mapstructure:"peerTtl"`
	Peers     []PeerConfig  `mapstructure:"peers"`
	// Redis is used when Transport is "redis"
	Redis cache.RedisConfig `mapstructure:"redis"`
}

type PeerConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Connected bool   `mapstructure:"connected"`
}

type SyncConfig struct {
	// ProbeURL is checked by the connectivity monitor
	ProbeURL     string        `mapstructure:"probeUrl"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	ProbeTimeout time.Duration `mapstructure:"probeTimeout"`
}

type HttpClientConfig struct {
	ConnectionPoolConfig    httpclient.ConnectionPoolConfig    `mapstructure:"connectionPoolConfig"`
	HystrixResiliencyConfig httpclient.HystrixResiliencyConfig `mapstructure:"hystrixResiliencyConfig"`
	RetryCount              int                                `mapstructure:"retryCount"`
}

type APIServerConfig struct {
	Host string     `mapstructure:"host"`
	Port int        `mapstructure:"port"`
	Auth AuthConfig `mapstructure:"auth"`
	CORS CORSConfig `mapstructure:"cors"`
}

type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	AllowedMethods []string `mapstructure:"allowedMethods"`
	AllowedHeaders []string `mapstructure:"allowedHeaders"`
}

type TelemetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"serviceName"`
	OTLPEndpoint   string        `mapstructure:"otlpEndpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	ExportInterval time.Duration `mapstructure:"exportInterval"`
}

var (
	appConfig *AppConfig
	loadErr   error
	once      sync.Once
)

// GetConfig loads the process-wide configuration once, from HEARTHLINE_CONFIG or
// the default path
func GetConfig() (*AppConfig, error) {
	once.Do(func() {
		path := os.Getenv(ConfigPathEnv)
		if path == "" {
			path = DefaultConfigPath
		}
		appConfig, loadErr = Load(path)
	})
	return appConfig, loadErr
}

// Load reads the config file at path, applies environment overrides and fills
// defaults. A missing file is not an error; defaults and environment still apply.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the rest of the process relies on
func (c *AppConfig) Validate() error {
	switch c.Mesh.Transport {
	case "simulated", "redis":
	default:
		return fmt.Errorf("unsupported mesh transport %q", c.Mesh.Transport)
	}
	if c.Mesh.NodeID == "" {
		return fmt.Errorf("mesh.nodeId is required")
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.pollInterval must be positive")
	}
	if c.APIServer.Auth.Enabled && len(c.APIServer.Auth.APIKeys) == 0 {
		return fmt.Errorf("apiServer.auth.apiKeys is required when auth is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hearthline")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "local")
	v.SetDefault("app.defaultSender", "You")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.inmemory.defaultExpiration", -1)
	v.SetDefault("cache.inmemory.cleanupInterval", 600)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", "6379")
	v.SetDefault("cache.redis.database", 0)
	v.SetDefault("cache.redis.txRetries", 10)

	v.SetDefault("store.keyPrefix", "hearthline_")

	v.SetDefault("assets.origin", "http://localhost:5173")
	v.SetDefault("assets.version", "hearthline-v1")
	v.SetDefault("assets.fallback", "./index.html")
	v.SetDefault("assets.resources", []string{
		"./",
		"./index.html",
		"./styles/main.css",
		"./scripts/app.js",
		"./manifest.json",
		"./images/icon-192.png",
		"./images/icon-512.png",
	})
	v.SetDefault("assets.installConcurrency", 4)

	v.SetDefault("mesh.transport", "simulated")
	v.SetDefault("mesh.nodeId", "local")
	v.SetDefault("mesh.nodeName", "This Device")
	v.SetDefault("mesh.peerTtl", 30*time.Second)
	v.SetDefault("mesh.redis.host", "localhost")
	v.SetDefault("mesh.redis.port", "6379")
	v.SetDefault("mesh.redis.txRetries", 10)

	v.SetDefault("sync.probeUrl", "")
	v.SetDefault("sync.pollInterval", 5*time.Second)
	v.SetDefault("sync.probeTimeout", 2*time.Second)

	v.SetDefault("httpClient.connectionPoolConfig.timeoutInMs", 5000)
	v.SetDefault("httpClient.connectionPoolConfig.maxIdleConnections", 10)
	v.SetDefault("httpClient.connectionPoolConfig.idleConnTimeoutInMs", 30000)
	v.SetDefault("httpClient.connectionPoolConfig.keepAliveTimeoutInMs", 30000)
	v.SetDefault("httpClient.hystrixResiliencyConfig.maxConcurrentRequests", 100)
	v.SetDefault("httpClient.hystrixResiliencyConfig.requestVolumeThreshold", 20)
	v.SetDefault("httpClient.hystrixResiliencyConfig.circuitBreakerSleepWindow", 5000)
	v.SetDefault("httpClient.hystrixResiliencyConfig.errorPercentThreshold", 50)
	v.SetDefault("httpClient.hystrixResiliencyConfig.circuitBreakerTimeout", 5000)
	v.SetDefault("httpClient.retryCount", 0)

	v.SetDefault("apiServer.host", "127.0.0.1")
	v.SetDefault("apiServer.port", 8080)
	v.SetDefault("apiServer.auth.enabled", false)
	v.SetDefault("apiServer.cors.allowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("apiServer.cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("apiServer.cors.allowedHeaders", []string{"Origin", "Content-Type", "X-API-Key"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.serviceName", "hearthline")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.exportInterval", 30*time.Second)
}

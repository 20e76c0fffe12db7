package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PRESS"

// legacyEnv maps config keys to the plain variable names the deployment
// already exports for the service.
var legacyEnv = map[string]string{
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"api.port":          "PORT",
}

// defaults apply beneath the config file and environment.
var defaults = map[string]interface{}{
	"app.name":             "press-downtime",
	"app.mode":             "development",
	"app.log_level":        "info",
	"app.shutdown_timeout": "30s",

	"database.host":            "localhost",
	"database.port":            5432,
	"database.name":            "production",
	"database.user":            "postgres",
	"database.password":        "",
	"database.max_connections": 10,
	"database.ssl_mode":        "disable",
	"database.ping_timeout":    "10s",
	"database.query_timeout":   "15s",

	"api.port":                 5004,
	"api.read_timeout":         "15s",
	"api.write_timeout":        "120s",
	"api.idle_timeout":         "60s",
	"api.rate_limit":           120,
	"api.jwt_secret":           "",
	"api.jwt_issuer":           "press-backend",
	"api.cors.allowed_origins": []string{"*"},
	"api.cors.allowed_methods": []string{"GET", "POST", "OPTIONS"},
	"api.cors.allowed_headers": []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Trace-ID"},
	"api.cors.exposed_headers": []string{"X-Trace-ID"},

	"model.store":  "file",
	"model.dir":    "./models",
	"model.bucket": "press-models",

	"training.schedule":          "0 0 2 * * *",
	"training.train_on_startup":  true,
	"training.window_days":       90,
	"training.timeout":           "5m",
	"training.seed":              42,
	"training.test_fraction":     0.2,
	"training.trees":             100,
	"training.max_depth":         10,
	"training.min_samples_split": 5,

	"prediction.window_days": 30,
	"prediction.timeout":     "60s",

	"recommendations.default_window_days": 30,
	"recommendations.linkage":             "auto",
	"recommendations.timeout":             "60s",

	"circuit_breaker.max_failures": 5,
	"circuit_breaker.timeout":      "30s",

	"websocket.ping_interval": "54s",
	"websocket.pong_timeout":  "60s",
	"websocket.write_timeout": "10s",

	"prometheus.enabled": true,
	"prometheus.port":    9090,

	"kafka.enabled":       false,
	"kafka.topic":         "press.model-events",
	"kafka.write_timeout": "10s",

	"events.buffer_size": 100,
}

// Load reads configuration from configPath, or from config.yaml in the
// usual locations when configPath is empty. PRESS_-prefixed variables and
// the deployment's plain DB_* and PORT variables override the file.
func Load(configPath string) (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range []string{".", "./configs", "/etc/press-downtime"} {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, plain := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, plain); err != nil {
			return nil, fmt.Errorf("failed to bind %s to %s: %w", key, plain, err)
		}
	}
	return v, nil
}

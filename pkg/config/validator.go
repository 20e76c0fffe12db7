package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	appModes  = []string{"development", "production", "test"}
	logLevels = []string{"debug", "info", "warn", "error"}
	stores    = []string{"file", "minio"}
	linkages  = []string{"auto", "record", "day"}

	scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// problems collects every violation so operators see them all at once.
type problems []error

func (p *problems) require(ok bool, format string, args ...interface{}) {
	if !ok {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

func (p *problems) oneOf(key, value string, allowed []string) {
	p.require(slices.Contains(allowed, value), "%s must be one of: %s", key, strings.Join(allowed, ", "))
}

func (p *problems) port(key string, v int) {
	p.require(v > 0 && v <= 65535, "%s must be between 1 and 65535", key)
}

func (p *problems) positive(key string, v float64) {
	p.require(v > 0, "%s must be positive", key)
}

func (c *Config) Validate() error {
	var p problems

	p.require(c.App.Name != "", "app.name is required")
	p.oneOf("app.mode", c.App.Mode, appModes)
	p.oneOf("app.log_level", c.App.LogLevel, logLevels)

	p.require(c.Database.Host != "", "database.host is required")
	p.port("database.port", c.Database.Port)
	p.require(c.Database.Name != "", "database.name is required")
	p.positive("database.max_connections", float64(c.Database.MaxConnections))
	p.positive("database.query_timeout", float64(c.Database.QueryTimeout))

	p.port("api.port", c.API.Port)
	p.require(c.App.Mode != "production" || c.API.JWTSecret != "", "api.jwt_secret is required in production")

	p.oneOf("model.store", c.Model.Store, stores)
	switch c.Model.Store {
	case "file":
		p.require(c.Model.Dir != "", "model.dir is required for the file store")
	case "minio":
		p.require(c.Model.Endpoint != "" && c.Model.Bucket != "",
			"model.endpoint and model.bucket are required for the minio store")
	}

	p.positive("training.window_days", float64(c.Training.WindowDays))
	p.require(c.Training.TestFraction > 0 && c.Training.TestFraction < 1, "training.test_fraction must be between 0 and 1")
	p.positive("training.trees", float64(c.Training.Trees))
	if c.Training.Schedule != "" {
		_, err := scheduleParser.Parse(c.Training.Schedule)
		p.require(err == nil, "training.schedule is invalid: %v", err)
	}

	p.positive("prediction.window_days", float64(c.Prediction.WindowDays))
	p.positive("recommendations.default_window_days", float64(c.Recommendations.DefaultWindowDays))
	p.oneOf("recommendations.linkage", c.Recommendations.Linkage, linkages)

	p.require(!c.Kafka.Enabled || (len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""),
		"kafka.brokers and kafka.topic are required when kafka is enabled")

	if len(p) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(p...))
	}
	return nil
}

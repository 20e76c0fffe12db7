package config

import "time"

type Config struct {
	App             AppConfig             `mapstructure:"app"`
	Database        DatabaseConfig        `mapstructure:"database"`
	API             APIConfig             `mapstructure:"api"`
	Model           ModelConfig           `mapstructure:"model"`
	Training        TrainingConfig        `mapstructure:"training"`
	Prediction      PredictionConfig      `mapstructure:"prediction"`
	Recommendations RecommendationsConfig `mapstructure:"recommendations"`
	CircuitBreaker  CircuitBreakerConfig  `mapstructure:"circuit_breaker"`
	WebSocket       WebSocketConfig       `mapstructure:"websocket"`
	Prometheus      PrometheusConfig      `mapstructure:"prometheus"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Events          EventsConfig          `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// ModelConfig selects where the scaler and classifier artifacts live.
type ModelConfig struct {
	Store     string `mapstructure:"store"`
	Dir       string `mapstructure:"dir"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type TrainingConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	TrainOnStartup  bool          `mapstructure:"train_on_startup"`
	WindowDays      int           `mapstructure:"window_days"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Seed            int64         `mapstructure:"seed"`
	TestFraction    float64       `mapstructure:"test_fraction"`
	Trees           int           `mapstructure:"trees"`
	MaxDepth        int           `mapstructure:"max_depth"`
	MinSamplesSplit int           `mapstructure:"min_samples_split"`
}

type PredictionConfig struct {
	WindowDays int           `mapstructure:"window_days"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RecommendationsConfig struct {
	DefaultWindowDays int           `mapstructure:"default_window_days"`
	Linkage           string        `mapstructure:"linkage"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type WebSocketConfig struct {
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

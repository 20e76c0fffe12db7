package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB is the production datastore handle. Every repository query runs under
// QueryCtx so a slow statement cannot hold a request past queryTimeout.
type DB struct {
	*sqlx.DB
	queryTimeout time.Duration
	pingTimeout  time.Duration
}

type Config struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	MaxConnections  int
	SSLMode         string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	QueryTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 10 * time.Second
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 15 * time.Second
	}
	return c
}

// DSN renders a postgres URL; credentials are escaped.
func (c Config) DSN() string {
	c = c.withDefaults()
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Open prepares the pool without dialing. Connections are made on first use,
// so an unreachable datastore surfaces per query instead of at startup.
func Open(cfg Config) (*DB, error) {
	cfg = cfg.withDefaults()

	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 2)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{DB: db, queryTimeout: cfg.QueryTimeout, pingTimeout: cfg.PingTimeout}, nil
}

// New opens the pool and requires a successful ping within PingTimeout.
func New(cfg Config) (*DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}

// Ping checks connectivity within the configured ping timeout.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// Wrap adapts an existing sqlx handle, mainly for tests.
func Wrap(db *sqlx.DB, queryTimeout time.Duration) *DB {
	if queryTimeout == 0 {
		queryTimeout = 15 * time.Second
	}
	return &DB{DB: db, queryTimeout: queryTimeout, pingTimeout: 10 * time.Second}
}

// SQL exposes the pool for instrumentation.
func (db *DB) SQL() *sql.DB {
	return db.DB.DB
}

func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// QueryCtx bounds ctx by the configured per-query timeout.
func (db *DB) QueryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.queryTimeout)
}

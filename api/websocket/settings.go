package websocket

import (
	"net/http"
	"slices"
	"time"

	"github.com/OldStager01/press-downtime/pkg/config"
)

// Settings holds connection tuning for websocket clients.
type Settings struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	QueueSize       int
	ClientBuffer    int
	AllowedOrigins  []string
}

func NewSettings(cfg *config.WebSocketConfig) *Settings {
	s := &Settings{
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		QueueSize:       256,
		ClientBuffer:    64,
	}
	if cfg == nil {
		s.PingPeriod = s.PongWait * 9 / 10
		return s
	}

	s.WriteWait = durationOr(cfg.WriteTimeout, s.WriteWait)
	s.PongWait = durationOr(cfg.PongTimeout, s.PongWait)
	s.PingPeriod = cfg.PingInterval
	if cfg.MaxMessageSize > 0 {
		s.MaxMessageSize = cfg.MaxMessageSize
	}
	s.ReadBufferSize = intOr(cfg.ReadBufferSize, s.ReadBufferSize)
	s.WriteBufferSize = intOr(cfg.WriteBufferSize, s.WriteBufferSize)
	s.QueueSize = intOr(cfg.BroadcastBuffer, s.QueueSize)
	s.ClientBuffer = intOr(cfg.ClientBuffer, s.ClientBuffer)
	s.AllowedOrigins = cfg.AllowedOrigins

	// A ping must go out before the peer's pong deadline lapses.
	if s.PingPeriod <= 0 || s.PingPeriod >= s.PongWait {
		s.PingPeriod = s.PongWait * 9 / 10
	}
	return s
}

// checkOrigin admits any origin unless an allow list is configured.
func (s *Settings) checkOrigin(r *http.Request) bool {
	if len(s.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.AllowedOrigins, origin)
}

func durationOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func intOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

package server

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/cutout/internal/analysis"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/segment"
)

// processor is the part of the pipeline the server needs.
type processor interface {
	Process(ctx context.Context, img image.Image, s pipeline.Settings, progress pipeline.ProgressFunc) (*pipeline.Result, error)
	Status() pipeline.Status
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    processor
	defaults    pipeline.Settings
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
	stopPrune   context.CancelFunc
	pongWait    time.Duration
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Pipeline    pipeline.Config
	RateLimit   RateLimitConfig
}

// RateLimitConfig holds per-client limits. A zero limit is not enforced.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ModelsResponse is returned by /models.
type ModelsResponse struct {
	ModelsDir string               `json:"models_dir"`
	Quality   string               `json:"default_quality"`
	Backends  []segment.Capability `json:"backends"`
	Count     int                  `json:"count"`
	Available int                  `json:"available"`
}

// RemoveResponse is the JSON form of a background removal result.
type RemoveResponse struct {
	Success         bool               `json:"success"`
	RequestID       string             `json:"request_id,omitempty"`
	Image           string             `json:"image"` // base64 PNG
	Width           int                `json:"width"`
	Height          int                `json:"height"`
	Backend         string             `json:"backend"`
	Strategy        string             `json:"strategy"`
	Degraded        bool               `json:"degraded"`
	ForegroundRatio float64            `json:"foreground_ratio"`
	Attempts        []pipeline.Attempt `json:"attempts,omitempty"`
	Timings         map[string]float64 `json:"timings_ms,omitempty"`
}

// AnalyzeResponse reports image structure and quality.
type AnalyzeResponse struct {
	Success    bool                       `json:"success"`
	Width      int                        `json:"width"`
	Height     int                        `json:"height"`
	Complexity analysis.ComplexityMetrics `json:"complexity"`
	Quality    analysis.QualityReport     `json:"quality"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer loads the configured backends and creates a server.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.Pipeline).Build()
	if err != nil {
		return nil, err
	}
	return newServer(pl, config), nil
}

func newServer(p processor, config Config) *Server {
	s := &Server{
		pipeline:    p,
		defaults:    config.Pipeline.Defaults,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		pongWait:    wsPongWait,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
		ctx, cancel := context.WithCancel(context.Background())
		s.stopPrune = cancel
		go s.rateLimiter.pruneLoop(ctx, pruneInterval)
	}
	return s
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.stopPrune != nil {
		s.stopPrune()
	}
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler, false))
	mux.HandleFunc("/models", s.wrap(s.modelsHandler, false))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/remove", s.wrap(s.removeHandler, true))
	mux.HandleFunc("/api/v1/analyze", s.wrap(s.analyzeHandler, true))
	mux.HandleFunc("/ws/remove", s.wrap(s.removeWebSocketHandler, true))
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

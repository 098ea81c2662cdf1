// Package server exposes the chain pricer over HTTP.
package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/logger"
)

// DefaultRateCron refreshes the cached risk-free rate on weekday
// mornings, interpreted in the exchange timezone.
const DefaultRateCron = "0 8 * * 1-5"

// Config controls the REST server.
type Config struct {
	Addr        string  `json:"addr"`                   // listen address, e.g. ":8080"
	RatePercent float64 `json:"rate_percent,omitempty"` // fixed rate; 0 = fetch and refresh via cron
	RateCron    string  `json:"rate_cron,omitempty"`    // cron spec for rate refreshes, IST
}

// Server prices chains on demand. Every request fetches a fresh
// snapshot from the provider; the risk-free rate is the only state it
// caches between requests.
type Server struct {
	cfg  Config
	prov data.ChainProvider
	cron *cron.Cron

	fetchRate func() float64

	mu   sync.RWMutex
	rate float64
}

func New(cfg Config, prov data.ChainProvider) *Server {
	if cfg.RateCron == "" {
		cfg.RateCron = DefaultRateCron
	}
	return &Server{
		cfg:       cfg,
		prov:      prov,
		cron:      cron.New(cron.WithLocation(daycount.MarketLocation())),
		fetchRate: func() float64 { return data.FetchRiskFreeRate(nil) },
		rate:      cfg.RatePercent,
	}
}

// Router builds the route table. Exposed so tests can drive the
// handlers without a listener.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/chain", s.handleChain).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/strike", s.handleStrike).Methods(http.MethodGet)
	return r
}

// Start seeds the rate cache, schedules its refreshes, and serves until
// the listener fails. A fixed configured rate skips the feed entirely.
func (s *Server) Start() error {
	if s.cfg.RatePercent == 0 {
		s.refreshRate()
		if _, err := s.cron.AddFunc(s.cfg.RateCron, s.refreshRate); err != nil {
			return fmt.Errorf("schedule rate refresh: %w", err)
		}
		s.cron.Start()
		defer s.cron.Stop()
	}

	srv := &http.Server{
		Handler:           s.Router(),
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("listening on %s", s.cfg.Addr)
	return srv.ListenAndServe()
}

func (s *Server) refreshRate() {
	rate := s.fetchRate()
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
	logger.Infof("risk-free rate cache set to %.2f%%", rate)
}

// Rate returns the cached risk-free rate in percent.
func (s *Server) Rate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rate > 0 {
		return s.rate
	}
	return data.DefaultRiskFreeRate
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Infof("%s %s %s (%s)", id[:8], r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Microsecond))
	})
}

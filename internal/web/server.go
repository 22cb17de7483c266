// Package web exposes a read-only status HTTP server. It reports on the
// bot; it never mutates it.
package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/bot"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	bot       *bot.Bot
	tradeRepo domain.TradeRepository
	registry  *prometheus.Registry
	logger    *zap.Logger
}

func NewServer(
	port int,
	b *bot.Bot,
	tradeRepo domain.TradeRepository,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		bot:       b,
		tradeRepo: tradeRepo,
		registry:  registry,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Trades
	s.router.HandleFunc("GET /trades", s.handleTrades)

	// Health
	s.router.HandleFunc("GET /healthz", s.handleHealthz)

	// Metrics
	if s.registry != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Package api exposes the HTTP surface: agent ingestion, batch
// uploads, job queries, the live event stream, and exports.
package api

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/anomi-sec/anomi/pkg/config"
	"github.com/anomi-sec/anomi/pkg/ingest"
	"github.com/anomi-sec/anomi/pkg/live"
	"github.com/anomi-sec/anomi/pkg/ratelimit"
	"github.com/anomi-sec/anomi/pkg/registry"
	"github.com/anomi-sec/anomi/pkg/report"
	"github.com/anomi-sec/anomi/pkg/store"
)

// Version is stamped at build time.
var Version = "dev"

// Server wires the HTTP routes to the domain components.
type Server struct {
	cfg      *config.Config
	app      *fiber.App
	gateway  *ingest.Gateway
	store    store.Store
	registry *registry.Registry
	live     *live.Broadcaster
	reports  *report.Aggregator
	limiter  ratelimit.Limiter
}

// NewServer assembles the fiber app and its routes.
func NewServer(cfg *config.Config, gw *ingest.Gateway, st store.Store, reg *registry.Registry, bc *live.Broadcaster, agg *report.Aggregator, limiter ratelimit.Limiter) *Server {
	s := &Server{
		cfg:      cfg,
		gateway:  gw,
		store:    st,
		registry: reg,
		live:     bc,
		reports:  agg,
		limiter:  limiter,
	}

	s.app = fiber.New(fiber.Config{
		AppName:   "Anomi",
		BodyLimit: cfg.MaxUploadMB * 1024 * 1024,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/health", s.handleHealth)

	api.Post("/ingest/log", s.handleIngestLog, s.rateLimit)
	api.Post("/upload", s.handleUpload)

	api.Get("/jobs", s.handleListJobs)
	api.Get("/jobs/:id", s.handleGetJob)

	api.Get("/agents", s.handleListAgents)
	api.Get("/agent/install", s.handleAgentInstall)

	api.Get("/live/logs", s.handleLiveLogs)
	api.Get("/live/stream", s.handleLiveStream)

	api.Get("/stats", s.handleStats)
	api.Get("/export/attacks", s.handleExportAttacks)
	api.Get("/export/logs", s.handleExportLogs)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until the listener fails.
func (s *Server) Listen() error {
	return s.app.Listen(":" + s.cfg.ListenPort)
}

// Shutdown drains in-flight requests and closes the live stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.live.Close()
	return s.app.ShutdownWithContext(ctx)
}

// rateLimit guards the unauthenticated agent ingest path per client
// address. Limiter errors fail open with a warning.
func (s *Server) rateLimit(c fiber.Ctx) error {
	ok, err := s.limiter.Allow(c.Context(), c.IP())
	if err != nil {
		log.Printf("[WARN] Rate limiter unavailable: %v", err)
	}
	if !ok {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "rate limit exceeded",
		})
	}
	return c.Next()
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":           "ok",
		"version":          Version,
		"live_subscribers": s.live.SubscriberCount(),
	})
}

// statusForError maps domain errors to HTTP codes.
func statusForError(err error) int {
	var vErr *ingest.ValidationError
	switch {
	case errors.As(err, &vErr), errors.Is(err, ingest.ErrEmptyInput):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

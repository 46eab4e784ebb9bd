// Package api exposes the claim orchestrator and read-only game state over
// HTTP using fiber.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/claim"
	"github.com/Unwrenchable/fizz-caps/internal/config"
	"github.com/Unwrenchable/fizz-caps/internal/game/catalog"
	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/reconcile"
)

// Claimer settles claims. *claim.Orchestrator implements it.
type Claimer interface {
	Claim(ctx context.Context, req claim.Request) (claim.Settlement, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reports serves reconciliation results. *reconcile.Auditor implements it.
type Reports interface {
	Last() (reconcile.Report, bool)
	Run(ctx context.Context) (reconcile.Report, error)
}

// Deps are the collaborators the HTTP handlers call.
type Deps struct {
	Claims  Claimer
	Catalog *catalog.Catalog
	Players *player.Manager
	Health  Pinger
	// Balances is optional; when set, player lookups include the ledger balance.
	Balances issuer.BalanceReporter
	// Reports is optional; when nil the admin routes answer 404.
	Reports Reports
	// AdminTokenHash is the bcrypt hash of the admin token. Empty disables admin routes.
	AdminTokenHash string
	// Cluster selects the explorer link suffix.
	Cluster string
	Logger  *zap.Logger
}

// Server is the HTTP front end. It implements server.Service.
type Server struct {
	app  *fiber.App
	addr string
	deps Deps
	log  *zap.Logger
}

// New builds the fiber app with its middleware chain and routes.
//
// Precondition: cfg must be validated; deps.Claims, deps.Catalog,
// deps.Players, deps.Health and deps.Logger must be non-nil.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		addr: cfg.Addr(),
		deps: deps,
		log:  deps.Logger.Named("api"),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "fizz-caps",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(s.requestLogger())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigin,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Admin-Token",
		MaxAge:       86400,
	}))
	s.app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests",
			})
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Post("/claim-survival", s.handleClaim)
	s.app.Post("/claim", s.handleClaim)
	s.app.Get("/locations", s.handleLocations)
	s.app.Get("/player/:wallet", s.handlePlayer)
	s.app.Get("/healthz", s.handleHealth)

	admin := s.app.Group("/admin", s.requireAdmin)
	admin.Get("/reconcile", s.handleReport)
	admin.Post("/reconcile", s.handleReconcile)
}

// App returns the underlying fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	s.log.Info("http listening", zap.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

// Stop drains in-flight requests, giving up when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if status >= fiber.StatusInternalServerError {
			s.log.Warn("request", fields...)
		} else {
			s.log.Debug("request", fields...)
		}
		return err
	}
}

// handleError renders unhandled errors, including fiber's own (404, 413),
// as a JSON error body.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

package server

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"companylens/internal/config"
)

const (
	defaultRateLimit = 100
	defaultBodyLimit = 4 * 1024 * 1024
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App *fiber.App
	Cfg *config.Config
}

// New creates a new server with middleware configured.
func New(cfg *config.Config) *Server {
	app := fiber.New(fiber.Config{
		AppName: "companylens",
		// Pushed pages arrive as JSON-escaped HTML.
		BodyLimit:    bodyLimit(cfg.FetchMaxBytes),
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// The browser extension calls from its own origin
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins(cfg),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))

	// RATE_LIMIT_MAX requests per minute per IP on the API only
	limit := cfg.RateLimitMax
	if limit <= 0 {
		limit = defaultRateLimit
	}
	app.Use(limiter.New(limiter.Config{
		Next: func(c fiber.Ctx) bool {
			return !strings.HasPrefix(c.Path(), "/api/")
		},
		Max:        limit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status": "error",
				"error":  "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	return &Server{
		App: app,
		Cfg: cfg,
	}
}

// errorHandler renders unhandled errors in the API envelope.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// allowedOrigins returns CORS_ORIGINS, or BASE_URL when it is unset.
func allowedOrigins(cfg *config.Config) []string {
	raw := cfg.CORSOrigins
	if raw == "" {
		raw = cfg.BaseURL
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func bodyLimit(fetchMax int64) int {
	if fetchMax <= 0 {
		return defaultBodyLimit
	}
	return int(fetchMax) * 2
}

// Start starts the server with the configured address and TLS settings.
func (s *Server) Start() error {
	if !s.Cfg.TLSEnabled {
		return s.App.Listen(s.Cfg.ServerAddr)
	}

	tlsConfig, err := buildTLSConfig(s.Cfg)
	if err != nil {
		return err
	}
	if s.Cfg.TLSCAFile != "" {
		log.Printf("Starting server with mTLS on %s", s.Cfg.ServerAddr)
	} else {
		log.Printf("Starting server with TLS on %s", s.Cfg.ServerAddr)
	}
	return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{
		CertFile:      s.Cfg.TLSCertFile,
		CertKeyFile:   s.Cfg.TLSKeyFile,
		TLSConfigFunc: func(tc *tls.Config) { *tc = *tlsConfig },
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}

// buildTLSConfig requires client certificates signed by TLS_CA_FILE when it is set.
func buildTLSConfig(cfg *config.Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if cfg.TLSCAFile == "" {
		return tlsConfig, nil
	}

	caCert, err := os.ReadFile(cfg.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCAFile)
	}

	tlsConfig.ClientCAs = pool
	tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	return tlsConfig, nil
}

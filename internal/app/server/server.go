package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/HashURL/internal/app/service"
	inthttp "github.com/sifan077/HashURL/internal/http/handler"
	"github.com/sifan077/HashURL/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs to serve requests.
type Dependencies struct {
	Logger         *zap.Logger
	Links          service.LinkService
	ClickPublisher inthttp.ClickPublisher

	DefaultAlgorithm    string
	DefaultRankingLimit int
	MaxRankingLimit     int
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "HashURL",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application, mainly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(s.deps.Logger),
		middleware.Logger(s.deps.Logger, "/health"),
		middleware.CORS(),
	)

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:              s.deps.Logger,
		LinkService:         s.deps.Links,
		DefaultAlgorithm:    s.deps.DefaultAlgorithm,
		DefaultRankingLimit: s.deps.DefaultRankingLimit,
		MaxRankingLimit:     s.deps.MaxRankingLimit,
	})
	apiHandler.Register(s.app)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:         s.deps.Logger,
		LinkService:    s.deps.Links,
		ClickPublisher: s.deps.ClickPublisher,
	})
	redirectHandler.Register(s.app)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled request error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

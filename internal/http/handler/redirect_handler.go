package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/HashURL/internal/app/repository"
	"github.com/sifan077/HashURL/internal/app/service"
	"go.uber.org/zap"
)

// notFoundRedirect is where unknown codes are sent.
const notFoundRedirect = "/?error=notfound"

// ClickPublisher emits a click event for a resolved redirect.
type ClickPublisher interface {
	Publish(linkCode, ip, userAgent string) error
}

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger         *zap.Logger
	LinkService    service.LinkService
	ClickPublisher ClickPublisher
}

// RedirectHandler resolves short codes and counts clicks.
type RedirectHandler struct {
	logger         *zap.Logger
	linkService    service.LinkService
	clickPublisher ClickPublisher
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:         logger,
		linkService:    deps.LinkService,
		clickPublisher: deps.ClickPublisher,
	}
}

// Register wires redirect routes onto the provided router. It must be
// called after API routes so /:code does not shadow them.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Index)
	router.Get("/health", h.Health)
	router.Get("/r/:code", h.Resolve)
	router.Get("/:code", h.Resolve)
}

// Index serves the root. Unknown short codes land here with
// ?error=notfound, which is answered with a 404.
func (h *RedirectHandler) Index(c *fiber.Ctx) error {
	if c.Query("error") == "notfound" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}
	return h.Health(c)
}

// Health is a simple endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "HashURL",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code, counting a click and redirecting to the target.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	target, err := h.linkService.Redirect(code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			h.logger.Debug("unknown short link", zap.String("code", code))
			return c.Redirect(notFoundRedirect, fiber.StatusFound)
		case errors.Is(err, service.ErrLinkExpired):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{
				"error": "link expired",
			})
		default:
			h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	if h.clickPublisher != nil {
		// The fiber context is recycled once the handler returns.
		go h.publishClickEvent(utils.CopyString(code), utils.CopyString(c.IP()), utils.CopyString(c.Get(fiber.HeaderUserAgent)))
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}

func (h *RedirectHandler) publishClickEvent(code, ip, userAgent string) {
	if err := h.clickPublisher.Publish(code, ip, userAgent); err != nil {
		h.logger.Error("failed to publish click event", zap.Error(err), zap.String("code", code))
	}
}

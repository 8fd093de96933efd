package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/HashURL/internal/app/digest"
	"github.com/sifan077/HashURL/internal/app/model"
	"github.com/sifan077/HashURL/internal/app/repository"
	"github.com/sifan077/HashURL/internal/app/service"
	"go.uber.org/zap"
)

const (
	defaultAlgorithm    = "MD5"
	defaultRankingLimit = 10
	maxRankingLimit     = 100
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger              *zap.Logger
	LinkService         service.LinkService
	DefaultAlgorithm    string
	DefaultRankingLimit int
	MaxRankingLimit     int
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger       *zap.Logger
	linkService  service.LinkService
	algorithm    string
	defaultLimit int
	maxLimit     int
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &APIHandler{
		logger:       logger,
		linkService:  deps.LinkService,
		algorithm:    deps.DefaultAlgorithm,
		defaultLimit: deps.DefaultRankingLimit,
		maxLimit:     deps.MaxRankingLimit,
	}
	if h.algorithm == "" {
		h.algorithm = defaultAlgorithm
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = defaultRankingLimit
	}
	if h.maxLimit < h.defaultLimit {
		h.maxLimit = max(maxRankingLimit, h.defaultLimit)
	}
	return h
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Post("/shorten", h.Shorten)
		api.Get("/url/:code", h.GetLink)
		api.Get("/algorithms", h.ListAlgorithms)

		rankings := api.Group("/rankings")
		{
			rankings.Get("/", h.Rankings)
			rankings.Get("/stats", h.RankingStats)
		}
	}
}

// ShortenRequest is accepted as a JSON or form body when the query string
// does not carry the parameters.
type ShortenRequest struct {
	URL       string `json:"url" form:"url"`
	Algorithm string `json:"algorithm" form:"algorithm"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	model.Link
	Overwritten bool `json:"overwritten,omitempty"`
}

// AlgorithmResponse describes one supported algorithm.
type AlgorithmResponse struct {
	Name          string `json:"name"`
	Deterministic bool   `json:"deterministic"`
	Fallback      bool   `json:"fallback"`
	Default       bool   `json:"default"`
}

// Shorten handles POST /api/shorten?url=...&algorithm=...
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	req := ShortenRequest{
		URL:       c.Query("url"),
		Algorithm: c.Query("algorithm"),
	}

	if req.URL == "" && len(c.Body()) > 0 {
		var body ShortenRequest
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		req.URL = body.URL
		if req.Algorithm == "" {
			req.Algorithm = body.Algorithm
		}
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}
	if req.Algorithm == "" {
		req.Algorithm = h.algorithm
	}

	// Query and form values alias fasthttp buffers that are reused after
	// this request; the stored link must own its strings.
	res := h.linkService.Shorten(utils.CopyString(req.URL), utils.CopyString(req.Algorithm))
	return c.JSON(LinkResponse{Link: res.Link, Overwritten: res.Overwritten})
}

// GetLink handles GET /api/url/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	link, err := h.linkService.Lookup(code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(LinkResponse{Link: link})
}

// Rankings handles GET /api/rankings?limit=N
func (h *APIHandler) Rankings(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", h.defaultLimit)
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	return c.JSON(h.linkService.Rankings(limit))
}

// RankingStats handles GET /api/rankings/stats
func (h *APIHandler) RankingStats(c *fiber.Ctx) error {
	return c.JSON(h.linkService.RankingStats())
}

// ListAlgorithms handles GET /api/algorithms
func (h *APIHandler) ListAlgorithms(c *fiber.Ctx) error {
	def := digest.Parse(h.algorithm)
	all := digest.All()

	response := make([]AlgorithmResponse, len(all))
	for i, alg := range all {
		response[i] = AlgorithmResponse{
			Name:          alg.String(),
			Deterministic: alg.Deterministic(),
			Fallback:      alg == digest.Fallback,
			Default:       alg == def,
		}
	}
	return c.JSON(response)
}

package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/HashURL/internal/app/digest"
	"github.com/sifan077/HashURL/internal/app/model"
	"github.com/sifan077/HashURL/internal/app/ranking"
	"github.com/sifan077/HashURL/internal/app/repository"
	infraPrometheus "github.com/sifan077/HashURL/internal/infra/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrLinkExpired is returned by Redirect for links past their expiry
	// when expiry enforcement is enabled.
	ErrLinkExpired = errors.New("link expired")
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	Shorten(rawURL, algorithm string) ShortenResult
	Lookup(code string) (model.Link, error)
	Redirect(code string) (string, error)
	Rankings(limit int) []model.Link
	RankingStats() model.RankingStats
}

// ShortenResult is the stored link plus what, if anything, it replaced.
type ShortenResult struct {
	Link model.Link
	// Overwritten is set when a link already existed under the same code.
	Overwritten bool
	// PreviousURL is the target of the replaced link, if any.
	PreviousURL string
}

// Collision reports whether the replaced link pointed somewhere else.
func (r ShortenResult) Collision() bool {
	return r.Overwritten && r.PreviousURL != r.Link.URL
}

// Options tunes LinkService behaviour.
type Options struct {
	Logger           *zap.Logger
	Metrics          *infraPrometheus.Metrics
	Retention        time.Duration
	EnforceExpiry    bool
	DetectCollisions bool
	Now              func() time.Time
}

type linkService struct {
	repo   repository.LinkRepository
	ranker *ranking.Ranker
	opts   Options
	logger *zap.Logger
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(repo repository.LinkRepository, opts Options) LinkService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Retention <= 0 {
		opts.Retention = model.DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &linkService{
		repo:   repo,
		ranker: ranking.NewRanker(repo),
		opts:   opts,
		logger: opts.Logger,
	}
}

// NormalizeURL prefixes https:// unless rawURL already starts with http://
// or https://. The check is case-sensitive and nothing else is validated.
func NormalizeURL(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "https://" + rawURL
}

func (s *linkService) Shorten(rawURL, algorithm string) ShortenResult {
	target := NormalizeURL(rawURL)
	alg := digest.Parse(algorithm)
	now := s.opts.Now()

	link := model.Link{
		Code:      digest.Compute(target, alg),
		URL:       target,
		Algorithm: alg.String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.Retention),
	}

	previous, replaced := s.repo.Put(link)
	result := ShortenResult{Link: link, Overwritten: replaced}
	if replaced {
		result.PreviousURL = previous.URL
	}

	if s.opts.DetectCollisions && result.Collision() {
		s.opts.Metrics.Collision()
		s.logger.Warn("short code collision, previous link overwritten",
			zap.String("code", link.Code),
			zap.String("algorithm", link.Algorithm),
			zap.String("previous_url", previous.URL),
			zap.String("url", link.URL),
		)
	}

	s.opts.Metrics.Shortened(link.Algorithm, s.repo.Count())
	s.logger.Debug("link shortened",
		zap.String("code", link.Code),
		zap.String("algorithm", link.Algorithm),
		zap.Bool("overwritten", replaced),
	)
	return result
}

func (s *linkService) Lookup(code string) (model.Link, error) {
	link, err := s.repo.GetByCode(code)
	if err != nil {
		return model.Link{}, fmt.Errorf("lookup link: %w", err)
	}
	return link, nil
}

func (s *linkService) Redirect(code string) (string, error) {
	var allow func(model.Link) error
	if s.opts.EnforceExpiry {
		now := s.opts.Now()
		allow = func(l model.Link) error {
			if l.Expired(now) {
				return ErrLinkExpired
			}
			return nil
		}
	}

	link, err := s.repo.IncrementClicksIf(code, allow)
	switch {
	case errors.Is(err, ErrLinkExpired):
		s.opts.Metrics.Redirect(infraPrometheus.RedirectExpired)
		return "", fmt.Errorf("redirect %s: %w", code, err)
	case err != nil:
		s.opts.Metrics.Redirect(infraPrometheus.RedirectNotFound)
		return "", fmt.Errorf("redirect: %w", err)
	}

	s.opts.Metrics.Redirect(infraPrometheus.RedirectFound)
	return link.URL, nil
}

func (s *linkService) Rankings(limit int) []model.Link {
	defer s.opts.Metrics.ObserveRanking("top", time.Now())
	return s.ranker.Top(limit)
}

func (s *linkService) RankingStats() model.RankingStats {
	defer s.opts.Metrics.ObserveRanking("stats", time.Now())
	return s.ranker.Stats()
}

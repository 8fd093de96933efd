package model

import "time"

// DefaultRetention is how long a link is advertised as valid after creation.
const DefaultRetention = 30 * 24 * time.Hour

// Link describes the core short-link entity held by the link repository.
type Link struct {
	Code       string    `json:"id"`
	URL        string    `json:"originalUrl"`
	Algorithm  string    `json:"algorithm"`
	CreatedAt  time.Time `json:"createdDate"`
	ExpiresAt  time.Time `json:"expiryDate"`
	ClickCount int64     `json:"clickCount"`
}

// Expired reports whether the link's advisory expiry has passed at now.
func (l Link) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}

// RankingStats aggregates click totals across every stored link.
type RankingStats struct {
	TotalURLs     int     `json:"totalUrls"`
	TotalClicks   int64   `json:"totalClicks"`
	AverageClicks float64 `json:"averageClicks"`
	MaxClicks     int64   `json:"maxClicks"`
}

package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/HashURL/internal/app/digest"
	"github.com/sifan077/HashURL/internal/app/model"
	"github.com/sifan077/HashURL/internal/app/repository"
	"github.com/sifan077/HashURL/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	codes  []string
	notify chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{notify: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(linkCode, _, _ string) error {
	p.mu.Lock()
	p.codes = append(p.codes, linkCode)
	p.mu.Unlock()
	p.notify <- struct{}{}
	return nil
}

func newTestApp(t *testing.T, publisher ClickPublisher, opts service.Options) (*fiber.App, service.LinkService) {
	t.Helper()

	svc := service.NewLinkService(repository.NewMemoryLinkRepository(), opts)
	app := fiber.New()
	NewAPIHandler(APIDeps{LinkService: svc, DefaultRankingLimit: 2, MaxRankingLimit: 3}).Register(app)
	deps := RedirectDeps{LinkService: svc}
	if publisher != nil {
		deps.ClickPublisher = publisher
	}
	NewRedirectHandler(deps).Register(app)
	return app, svc
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func shorten(t *testing.T, app *fiber.App, rawURL, algorithm string) LinkResponse {
	t.Helper()
	q := url.Values{"url": {rawURL}}
	if algorithm != "" {
		q.Set("algorithm", algorithm)
	}
	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/shorten?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out LinkResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestAPIHandler_Shorten_Query(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	link := shorten(t, app, "example.com", "")

	assert.Equal(t, "https://example.com", link.URL)
	assert.Equal(t, digest.ComputeString("https://example.com", "MD5"), link.Code)
	assert.Equal(t, "MD5", link.Algorithm)
	assert.False(t, link.Overwritten)
}

func TestAPIHandler_Shorten_JSONBody(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"url":"http://example.org","algorithm":"crc32"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var link LinkResponse
	require.NoError(t, json.Unmarshal(body, &link))
	assert.Equal(t, "http://example.org", link.URL)
	assert.Equal(t, "CRC32", link.Algorithm)
	assert.Equal(t, digest.Compute("http://example.org", digest.CRC32), link.Code)
}

func TestAPIHandler_Shorten_WireFormat(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/shorten?url=example.com&algorithm=SHA256", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"id", "originalUrl", "algorithm", "createdDate", "expiryDate", "clickCount"} {
		assert.Contains(t, raw, key)
	}
}

func TestAPIHandler_Shorten_Overwritten(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	first := shorten(t, app, "example.com", "ADLER32")
	second := shorten(t, app, "example.com", "ADLER32")

	assert.Equal(t, first.Code, second.Code)
	assert.True(t, second.Overwritten)
}

func TestAPIHandler_Shorten_MissingURL(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/shorten", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{broken`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandler_Shorten_StoredURLSurvivesLaterRequests(t *testing.T) {
	const first = "https://aaaaaaaaaaaaaaaaaaaa.example/one"
	const other = "https://bbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.example/two"

	formShorten := func(t *testing.T, app *fiber.App, rawURL, algorithm string) LinkResponse {
		t.Helper()
		form := url.Values{"url": {rawURL}, "algorithm": {algorithm}}
		req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(form.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
		resp, body := doRequest(t, app, req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var link LinkResponse
		require.NoError(t, json.Unmarshal(body, &link))
		return link
	}

	tests := []struct {
		name    string
		shorten func(t *testing.T, app *fiber.App, rawURL, algorithm string) LinkResponse
	}{
		{"query", shorten},
		{"form body", formShorten},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, svc := newTestApp(t, nil, service.Options{})
			link := tt.shorten(t, app, first, "MD5")

			for i := 0; i < 50; i++ {
				tt.shorten(t, app, other, "SHA256")
			}

			stored, err := svc.Lookup(link.Code)
			require.NoError(t, err)
			assert.Equal(t, first, stored.URL)
			assert.Equal(t, "MD5", stored.Algorithm)

			resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/"+link.Code, nil))
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, first, resp.Header.Get(fiber.HeaderLocation))
		})
	}
}

func TestAPIHandler_GetLink(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})
	link := shorten(t, app, "example.com", "MD5")

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/url/"+link.Code, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got LinkResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, link.Code, got.Code)
	assert.Equal(t, int64(0), got.ClickCount)

	resp, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/url/unknown1", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRedirectHandler_Resolve(t *testing.T) {
	publisher := newRecordingPublisher()
	app, svc := newTestApp(t, publisher, service.Options{})
	link := shorten(t, app, "example.com/docs", "SHA256")

	for _, path := range []string{"/" + link.Code, "/r/" + link.Code} {
		resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/docs", resp.Header.Get(fiber.HeaderLocation))
	}

	stored, err := svc.Lookup(link.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ClickCount)

	for i := 0; i < 2; i++ {
		select {
		case <-publisher.notify:
		case <-time.After(2 * time.Second):
			t.Fatal("click event was not published")
		}
	}
	publisher.mu.Lock()
	assert.Equal(t, []string{link.Code, link.Code}, publisher.codes)
	publisher.mu.Unlock()
}

func TestRedirectHandler_Resolve_NotFound(t *testing.T) {
	app, svc := newTestApp(t, nil, service.Options{})
	link := shorten(t, app, "example.com", "MD5")

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/doesnotexist", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, notFoundRedirect, resp.Header.Get(fiber.HeaderLocation))

	stored, err := svc.Lookup(link.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.ClickCount)
}

func TestRedirectHandler_Index_ReportsNotFound(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, notFoundRedirect, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"link not found"}`, string(body))

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestRedirectHandler_Resolve_Expired(t *testing.T) {
	now := time.Now()
	app, _ := newTestApp(t, nil, service.Options{
		EnforceExpiry: true,
		Retention:     time.Minute,
		Now:           func() time.Time { return now },
	})
	link := shorten(t, app, "example.com", "MD5")

	now = now.Add(time.Hour)
	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/"+link.Code, nil))
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestAPIHandler_Rankings(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	clicks := []int{5, 1, 9, 3, 7}
	codes := make([]string, len(clicks))
	for i, n := range clicks {
		codes[i] = shorten(t, app, fmt.Sprintf("example.com/%d", i), "MD5").Code
		for j := 0; j < n; j++ {
			resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/"+codes[i], nil))
			require.Equal(t, http.StatusFound, resp.StatusCode)
		}
	}

	rankings := func(query string) []model.Link {
		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/rankings"+query, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []model.Link
		require.NoError(t, json.Unmarshal(body, &out))
		return out
	}

	top := rankings("?limit=3")
	require.Len(t, top, 3)
	assert.Equal(t, []int64{9, 7, 5}, []int64{top[0].ClickCount, top[1].ClickCount, top[2].ClickCount})
	assert.Equal(t, codes[2], top[0].Code)

	assert.Len(t, rankings(""), 2, "default limit")
	assert.Len(t, rankings("?limit=0"), 2, "non-positive limit uses default")
	assert.Len(t, rankings("?limit=abc"), 2, "invalid limit uses default")
	assert.Len(t, rankings("?limit=50"), 3, "limit clamped to max")

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/rankings/stats", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.RankingStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, model.RankingStats{TotalURLs: 5, TotalClicks: 25, AverageClicks: 5, MaxClicks: 9}, stats)
}

func TestAPIHandler_Rankings_Empty(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/rankings", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/rankings/stats", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"totalUrls":0,"totalClicks":0,"averageClicks":0,"maxClicks":0}`, string(body))
}

func TestAPIHandler_ListAlgorithms(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/algorithms", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var algs []AlgorithmResponse
	require.NoError(t, json.Unmarshal(body, &algs))
	require.Len(t, algs, 5)

	byName := make(map[string]AlgorithmResponse, len(algs))
	for _, a := range algs {
		byName[a.Name] = a
	}
	assert.True(t, byName["MD5"].Default)
	assert.True(t, byName["CRC32"].Fallback)
	assert.False(t, byName["BASE62"].Deterministic)
}

func TestRedirectHandler_Health(t *testing.T) {
	app, _ := newTestApp(t, nil, service.Options{})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

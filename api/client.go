// Package api is the typed client for the news backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ChristosG/finsmart-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxErrorBody = 64 << 10

// Client issues JSON requests against the backend. Authentication is left to
// the http.Client's transport, see package interceptor.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables it.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Auth

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, PathSignup, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new credential set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, PathRefresh, nil, RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile of the bearer of the current access token.
func (c *Client) Me(ctx context.Context) (*users.User, error) {
	var out users.User
	if err := c.do(ctx, http.MethodGet, PathMe, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathLogout, nil, nil, nil)
}

func (c *Client) LogoutAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathLogoutAll, nil, nil, nil)
}

// Sources

func (c *Client) ListSources(ctx context.Context) ([]Source, error) {
	var out []Source
	if err := c.do(ctx, http.MethodGet, PathSources, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RefreshSource(ctx context.Context, id int64, maxArticles int) (*RefreshSourceResponse, error) {
	var out RefreshSourceResponse
	if err := c.do(ctx, http.MethodPost, SourceRefreshPath(id), nil, RefreshSourceRequest{MaxArticles: maxArticles}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSource(ctx context.Context, id int64) (*DeleteSourceResponse, error) {
	var out DeleteSourceResponse
	if err := c.do(ctx, http.MethodDelete, SourcePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	var out ScrapeResponse
	if err := c.do(ctx, http.MethodPost, PathScrape, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Articles

func (c *Client) ListArticles(ctx context.Context, q ArticlesQuery) (*ArticlesPage, error) {
	params := url.Values{}
	if q.SourceID != nil {
		params.Set("sourceId", strconv.FormatInt(*q.SourceID, 10))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var out ArticlesPage
	if err := c.do(ctx, http.MethodGet, PathArticles, params, nil, &out); err != nil {
		return nil, err
	}
	if out.Articles == nil {
		out.Articles = []Article{}
	}
	return &out, nil
}

func (c *Client) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var out Article
	if err := c.do(ctx, http.MethodGet, ArticlePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteArticles(ctx context.Context, ids []int64) (*DeleteArticlesResponse, error) {
	var out DeleteArticlesResponse
	if err := c.do(ctx, http.MethodDelete, PathArticles, nil, DeleteArticlesRequest{ArticleIDs: ids}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Summary(ctx context.Context, id int64) (string, error) {
	var out SummaryResponse
	if err := c.do(ctx, http.MethodGet, ArticleSummaryPath(id), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) Analysis(ctx context.Context, id int64) (string, error) {
	var out AnalysisResponse
	if err := c.do(ctx, http.MethodGet, ArticleAnalysisPath(id), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Analysis, nil
}

// Audio returns the narrated article and its content type.
func (c *Client) Audio(ctx context.Context, id int64) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, ArticleAudioPath(id), nil, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// send returns the response for a 2xx status and an *Error otherwise.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := newError(resp.StatusCode, raw)
		log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg(apiErr.Error())
		return nil, apiErr
	}
	return resp, nil
}

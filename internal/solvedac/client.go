// Package solvedac is a small client for the solved.ac v3 API: user profile
// lookups for account enrichment and the ranked problem page that seeds the
// problem cache.
package solvedac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/alecgard/studyhub/internal/apperr"
)

// User is the subset of the user/show payload kept in profiles.
type User struct {
	Handle          string `json:"handle"`
	Rank            int    `json:"rank"`
	Rating          int    `json:"rating"`
	SolvedCount     int    `json:"solvedCount"`
	Tier            int    `json:"tier"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// Tag is a problem tag.
type Tag struct {
	Key string `json:"key"`
}

// Problem is one item of a ranked problem page.
type Problem struct {
	ID      int    `json:"problemId"`
	TitleKo string `json:"titleKo"`
	Level   int    `json:"level"`
	Tags    []Tag  `json:"tags"`
}

// TagKey returns the first tag key, or "" for untagged problems.
func (p Problem) TagKey() string {
	if len(p.Tags) == 0 {
		return ""
	}
	return p.Tags[0].Key
}

type problemPage struct {
	Count int       `json:"count"`
	Items []Problem `json:"items"`
}

// Recorder receives one observation per upstream call.
type Recorder interface {
	IncUpstreamRequest(endpoint, outcome string)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration
}

// Client calls solved.ac with bounded retries on transport errors, 429 and
// 5xx responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	logger     *slog.Logger
	metrics    Recorder
}

// NewClient creates a client from opts.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		attempts:   attempts,
		delay:      opts.RetryDelay,
		logger:     logger,
	}
}

// SetMetrics sets the optional metrics recorder.
func (c *Client) SetMetrics(m Recorder) {
	c.metrics = m
}

// UserShow returns the profile for handle. An unknown handle yields
// apperr.ErrNotFound; any other failure yields apperr.ErrUpstream.
func (c *Client) UserShow(ctx context.Context, handle string) (*User, error) {
	var u User
	if err := c.get(ctx, "user_show", "/api/v3/user/show", handle, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// HandleExists reports whether solved.ac knows handle.
func (c *Client) HandleExists(ctx context.Context, handle string) (bool, error) {
	_, err := c.UserShow(ctx, handle)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TopProblems returns the top-100 problem page solved by handle.
func (c *Client) TopProblems(ctx context.Context, handle string) ([]Problem, error) {
	var page problemPage
	if err := c.get(ctx, "top_100", "/api/v3/user/top_100", handle, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) get(ctx context.Context, endpoint, path, handle string, out any) error {
	u := c.baseURL + path + "?handle=" + url.QueryEscape(handle)

	body, err := retry.DoWithData(
		func() ([]byte, error) { return c.fetch(ctx, u) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("solved.ac request failed, retrying",
				"endpoint", endpoint,
				"attempt", n+1,
				"error", err,
			)
		}),
	)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			c.record(endpoint, "not_found")
			return apperr.Newf(apperr.ErrNotFound, "solved.ac handle %q not found", handle)
		}
		c.record(endpoint, "error")
		c.logger.Error("solved.ac request failed", "endpoint", endpoint, "error", err)
		return apperr.New(apperr.ErrUpstream, "failed to fetch data from solved.ac")
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.record(endpoint, "error")
		c.logger.Error("decoding solved.ac response", "endpoint", endpoint, "error", err)
		return apperr.New(apperr.ErrUpstream, "unexpected response from solved.ac")
	}
	c.record(endpoint, "ok")
	return nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

func (c *Client) record(endpoint, outcome string) {
	if c.metrics != nil {
		c.metrics.IncUpstreamRequest(endpoint, outcome)
	}
}

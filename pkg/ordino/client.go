// Package ordino provides a client for the Ordino test-reporting API.
package ordino

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/failure-kb/internal/model"
	"github.com/sells-group/failure-kb/internal/resilience"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://dev-portal.ordino.ai/api/v1"

// Client defines the Ordino operations used by the harvester.
type Client interface {
	// GetProjects lists the projects visible to the API key.
	GetProjects(ctx context.Context) ([]Project, error)
	// GetFailedTestCases returns the failed test cases of a project's latest report.
	GetFailedTestCases(ctx context.Context, projectID string) ([]FailedTestCase, error)
}

// Project is a project registered with Ordino.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FailedTestCase is one failed test case from a test report.
type FailedTestCase struct {
	TestCase   string `json:"testCase"`
	Error      string `json:"error"`
	StackTrace string `json:"stackTrace"`
	Status     string `json:"status"`
	FilePath   string `json:"filePath"`
	FailedStep string `json:"failedStep"`
}

// Observation converts the test case into a store observation.
func (f FailedTestCase) Observation() model.FailureObservation {
	return model.FailureObservation{
		TestCase:   f.TestCase,
		Error:      f.Error,
		StackTrace: f.StackTrace,
		Status:     f.Status,
		FilePath:   f.FilePath,
		FailedStep: f.FailedStep,
	}
}

// Option configures the Ordino client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default limit of 5 req/s. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithBackoff replaces the retry policy.
func WithBackoff(b resilience.Backoff) Option {
	return func(c *httpClient) {
		c.backoff = b
	}
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
	breaker *resilience.Breaker
}

// NewClient creates a new Ordino client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		backoff: resilience.NewBackoff(3),
		breaker: resilience.NewBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff.OnRetry == nil {
		c.backoff.OnRetry = resilience.LogRetries("ordino", "get")
	}
	return c
}

func (c *httpClient) GetProjects(ctx context.Context) ([]Project, error) {
	body, err := c.get(ctx, "/project-external")
	if err != nil {
		return nil, eris.Wrap(err, "ordino: get projects")
	}
	projects, err := decodeList[Project](body)
	if err != nil {
		return nil, eris.Wrap(err, "ordino: decode projects")
	}
	return projects, nil
}

func (c *httpClient) GetFailedTestCases(ctx context.Context, projectID string) ([]FailedTestCase, error) {
	if projectID == "" {
		return nil, eris.New("ordino: project id is required")
	}
	body, err := c.get(ctx, "/public/test-report/failed-test-cases/"+url.PathEscape(projectID))
	if err != nil {
		return nil, eris.Wrapf(err, "ordino: get failed test cases for %s", projectID)
	}
	cases, err := decodeList[FailedTestCase](body)
	if err != nil {
		return nil, eris.Wrapf(err, "ordino: decode failed test cases for %s", projectID)
	}
	return cases, nil
}

// get performs a rate-limited GET through the breaker and retry policy and
// returns the body of a 200 response.
func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	return resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.Retry(ctx, c.backoff, func(ctx context.Context) ([]byte, error) {
			return c.once(ctx, path)
		})
	})
}

func (c *httpClient) once(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Ordino-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return body, nil
}

// envelope is the wrapped response shape some endpoints use.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeList accepts either a bare JSON array or an object carrying the
// array under "data".
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, eris.New("empty response body")
	}

	out := []T{}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, eris.Wrap(err, "unmarshal array")
		}
		return out, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, eris.Wrap(err, "unmarshal envelope")
	}
	if env.Success != nil && !*env.Success {
		return nil, eris.Errorf("api reported failure: %s", env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, eris.Wrap(err, "unmarshal data")
	}
	return out, nil
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	return fmt.Sprintf("%s...", body[:limit])
}

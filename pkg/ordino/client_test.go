package ordino

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/failure-kb/internal/resilience"
)

func newTestClient(srv *httptest.Server, opts ...Option) Client {
	base := []Option{
		WithBaseURL(srv.URL),
		WithRateLimit(0),
		WithBackoff(resilience.Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}),
	}
	return NewClient("test-key", append(base, opts...)...)
}

func TestGetProjects_BareArray(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/project-external", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Ordino-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"p-1","name":"dataplatform-reporting"},{"id":"p-2","name":"pos"}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).GetProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Project{ID: "p-1", Name: "dataplatform-reporting"}, got[0])
}

func TestGetFailedTestCases_Envelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/test-report/failed-test-cases/p-1", r.URL.Path)
		w.Write([]byte(`{
			"success": true,
			"data": [{
				"testCase": "Menu Report",
				"error": "AssertionError: expected 3 rows",
				"stackTrace": "at menu.cy.ts:42",
				"status": "failed",
				"filePath": "cypress/e2e/menu.cy.ts",
				"failedStep": "verify totals"
			}]
		}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).GetFailedTestCases(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	o := got[0].Observation()
	assert.Equal(t, "Menu Report", o.TestCase)
	assert.Equal(t, "AssertionError: expected 3 rows", o.Error)
	assert.Equal(t, "at menu.cy.ts:42", o.StackTrace)
	assert.Equal(t, "failed", o.Status)
	assert.Equal(t, "cypress/e2e/menu.cy.ts", o.FilePath)
	assert.Equal(t, "verify totals", o.FailedStep)
}

func TestGetFailedTestCases_EmptyData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": null}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).GetFailedTestCases(context.Background(), "p-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetFailedTestCases_ReportedFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "project not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetFailedTestCases(context.Background(), "p-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project not found")
}

func TestGetFailedTestCases_RequiresProjectID(t *testing.T) {
	t.Parallel()

	c := NewClient("k", WithRateLimit(0))
	_, err := c.GetFailedTestCases(context.Background(), "")
	require.Error(t, err)
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).GetProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_PermanentStatusNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetProjects(context.Background())
	require.Error(t, err)
	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "invalid key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv,
		WithBackoff(resilience.Backoff{Attempts: 1}),
		WithBreaker(resilience.NewBreaker(2, time.Hour)),
	)
	for i := 0; i < 2; i++ {
		_, err := c.GetProjects(context.Background())
		require.Error(t, err)
	}

	_, err := c.GetProjects(context.Background())
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ordino: decode projects")
}

func TestDecodeList(t *testing.T) {
	_, err := decodeList[Project]([]byte("   "))
	assert.Error(t, err)

	got, err := decodeList[Project]([]byte(`{"data":[{"id":"x"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []Project{{ID: "x"}}, got)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet([]byte("short")))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	s := snippet(long)
	assert.Len(t, s, 203)
}

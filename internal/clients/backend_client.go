package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/monitoring"
)

// ResultCache stores raw 2xx bodies of the results endpoint.
type ResultCache interface {
	Get(ctx context.Context, brand, limit string) ([]byte, bool)
	Set(ctx context.Context, brand, limit string, body []byte)
}

type BackendOptions struct {
	BaseURL          string
	Timeout          time.Duration
	SubmitMaxRetries int
	// SubmitBackoff overrides the initial retry delay, mostly for tests.
	SubmitBackoff time.Duration
	Cache         ResultCache
}

// BackendClient talks to the analysis backend.
type BackendClient struct {
	Client  *http.Client
	BaseURL string

	submitExecutor failsafe.Executor[*http.Response]
	cache          ResultCache
}

// RelayResponse is an upstream results response passed through unchanged.
type RelayResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Cached      bool
}

func NewBackendClient(opts BackendOptions) *BackendClient {
	backoff := opts.SubmitBackoff
	if backoff <= 0 {
		backoff = SUBMIT_INITIAL_BACKOFF
	}
	maxBackoff := SUBMIT_MAX_BACKOFF
	if maxBackoff < backoff {
		maxBackoff = backoff
	}
	retries := opts.SubmitMaxRetries
	if retries < 0 {
		retries = 0
	}

	policy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(shouldRetrySubmit).
		WithBackoff(backoff, maxBackoff).
		WithMaxRetries(retries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			slog.Warn("[BackendClient] Submission failed, will retry",
				slog.Int("attempt", e.Attempts()),
				slog.String("error", errMsg(e.LastError(), e.LastResult())))
		}).
		Build()

	slog.Info("[BackendClient] Initializing Client",
		slog.String("base_url", opts.BaseURL),
		slog.Duration("timeout", opts.Timeout),
		slog.Int("submit_max_retries", retries))

	return &BackendClient{
		Client:         &http.Client{Timeout: opts.Timeout},
		BaseURL:        strings.TrimRight(opts.BaseURL, "/"),
		submitExecutor: failsafe.With(policy),
		cache:          opts.Cache,
	}
}

// shouldRetrySubmit retries transport failures and transient upstream
// statuses only. A cancelled context is never retried.
func shouldRetrySubmit(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// SubmitAnalysis posts an analysis request. It returns nil once the backend
// answered 2xx; the backend response body is ignored.
func (b *BackendClient) SubmitAnalysis(ctx context.Context, req models.AnalyzeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return &SubmitError{Brand: req.Brand, Err: fmt.Errorf("marshal request: %w", err)}
	}

	start := time.Now()
	defer monitoring.ObserveBackendRequest(OP_SUBMIT, start)

	resp, err := b.submitExecutor.WithContext(ctx).Get(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/analyze", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", USER_AGENT)

		resp, err := b.Client.Do(httpReq)
		if err != nil {
			return nil, err
		}
		// Keep only a preview so every attempt releases its connection.
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, MAX_ERROR_BODY))
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(preview))
		return resp, nil
	})
	if err != nil {
		slog.Warn("[BackendClient] Submission failed",
			slog.String("brand", req.Brand),
			slog.String("error", err.Error()))
		return &SubmitError{Brand: req.Brand, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		slog.Warn("[BackendClient] Submission rejected",
			slog.String("brand", req.Brand),
			slog.Int("status", resp.StatusCode))
		return &SubmitError{Brand: req.Brand, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	slog.Info("[BackendClient] Submission accepted",
		slog.String("brand", req.Brand),
		slog.Int("status", resp.StatusCode))
	return nil
}

// FetchResults returns the current analysed records for brand, newest first
// as ordered by the backend.
func (b *BackendClient) FetchResults(ctx context.Context, brand string, limit int) ([]models.Post, error) {
	relay, err := b.RelayResults(ctx, brand, strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	if relay.StatusCode < 200 || relay.StatusCode > 299 {
		return nil, &FetchError{Brand: brand, StatusCode: relay.StatusCode, Body: preview(relay.Body)}
	}

	var posts []models.Post
	if err := json.Unmarshal(relay.Body, &posts); err != nil {
		return nil, &FetchError{
			Brand:      brand,
			StatusCode: relay.StatusCode,
			Body:       preview(relay.Body),
			Err:        fmt.Errorf("decode results: %w", err),
		}
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// RelayResults performs the results request and hands back whatever the
// backend answered. Only transport failures produce an error.
func (b *BackendClient) RelayResults(ctx context.Context, brand, limit string) (*RelayResponse, error) {
	if limit == "" {
		limit = DEFAULT_RESULTS_LIMIT
	}

	if b.cache != nil {
		if body, ok := b.cache.Get(ctx, brand, limit); ok {
			return &RelayResponse{
				StatusCode:  http.StatusOK,
				ContentType: "application/json",
				Body:        body,
				Cached:      true,
			}, nil
		}
	}

	query := url.Values{}
	query.Set("brand", brand)
	query.Set("limit", limit)
	endpoint := b.BaseURL + "/results?" + query.Encode()

	start := time.Now()
	defer monitoring.ObserveBackendRequest(OP_RESULTS, start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Brand: brand, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Brand: brand, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Brand: brand, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if b.cache != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		b.cache.Set(ctx, brand, limit, body)
	}

	return &RelayResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// HealthCheck reports whether the backend health endpoint answers 2xx.
func (b *BackendClient) HealthCheck(ctx context.Context) bool {
	start := time.Now()
	defer monitoring.ObserveBackendRequest(OP_HEALTH, start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := b.Client.Do(req)
	if err != nil {
		slog.Debug("[BackendClient] Health probe failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func preview(body []byte) string {
	if len(body) > MAX_ERROR_BODY {
		body = body[:MAX_ERROR_BODY]
	}
	return strings.TrimSpace(string(body))
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return "unknown error"
}

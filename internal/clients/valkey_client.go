package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

const VALKEY_RESULTS_PREFIX = "feedbot:results"

type ValkeyOptions struct {
	Address  string
	Password string
	TLS      bool
	TTL      time.Duration
}

// ValkeyClient caches raw results bodies per brand and limit.
type ValkeyClient struct {
	mu     sync.Mutex
	client valkey.Client
	opts   valkey.ClientOption
	ttl    time.Duration
}

func NewValkeyClient(ctx context.Context, o ValkeyOptions) (*ValkeyClient, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{o.Address},
		Password:         o.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if o.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := connectValkey(ctx, opts)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", o.Address),
		slog.Duration("ttl", o.TTL))

	return newValkeyClient(client, opts, o.TTL), nil
}

func newValkeyClient(client valkey.Client, opts valkey.ClientOption, ttl time.Duration) *ValkeyClient {
	return &ValkeyClient{client: client, opts: opts, ttl: ttl}
}

func connectValkey(ctx context.Context, opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) current() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.client
}

func (vc *ValkeyClient) recreateClient(ctx context.Context) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(ctx, vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.client.Close()
	vc.client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Close() {
	vc.current().Close()
}

// resultsKey keeps the brand exactly as queried since the backend matches it
// case-sensitively. Segments are escaped so ':' cannot shift the boundary.
func resultsKey(brand, limit string) string {
	return VALKEY_RESULTS_PREFIX + ":" + url.QueryEscape(brand) + ":" + url.QueryEscape(limit)
}

// Get returns a cached body. Misses and cache errors both report false.
func (vc *ValkeyClient) Get(ctx context.Context, brand, limit string) ([]byte, bool) {
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Get().Key(resultsKey(brand, limit)).Build()
	}, 2)
	if err := res.Error(); err != nil {
		if !valkey.IsValkeyNil(err) {
			slog.Warn("[ValkeyClient] Cache read failed",
				slog.String("brand", brand),
				slog.String("error", err.Error()))
		}
		return nil, false
	}

	body, err := res.AsBytes()
	if err != nil {
		return nil, false
	}
	return body, true
}

func (vc *ValkeyClient) Set(ctx context.Context, brand, limit string, body []byte) {
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Set().Key(resultsKey(brand, limit)).Value(valkey.BinaryString(body)).
			PxMilliseconds(vc.ttl.Milliseconds()).Build()
	}, 2)
	if err := res.Error(); err != nil {
		slog.Warn("[ValkeyClient] Cache write failed",
			slog.String("brand", brand),
			slog.String("error", err.Error()))
	}
}

// DoWithRetry builds the command against the current client on every attempt
// since completed commands are recycled after Do.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func(valkey.Client) valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		c := vc.current()
		result = c.Do(ctx, build(c))
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}

		select {
		case <-ctx.Done():
			return result
		case <-time.After(250 * time.Millisecond):
		}
	}

	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}

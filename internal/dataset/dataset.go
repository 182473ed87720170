// Package dataset reads tour rows from the external dataset API, with
// an optional read-through cache in front of it.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geowander/citytour/internal/ingest"
)

// Source reads every row of a named dataset.
type Source interface {
	ReadAll(ctx context.Context, name string) ([]map[string]any, error)
}

// HTTPSource fetches rows from the dataset API over HTTP. The endpoint
// returns a JSON array of untyped row objects.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (s *HTTPSource) ReadAll(ctx context.Context, name string) ([]map[string]any, error) {
	u := fmt.Sprintf("%s/datasets/%s/items", s.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataset returned %s", resp.Status)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decoding dataset rows: %v", ingest.ErrMalformedPayload, err)
	}
	return rows, nil
}

// ErrMiss is returned by a Cache when the key is absent.
var ErrMiss = errors.New("cache miss")

// Cache is a byte cache keyed by dataset name.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache adapts a redis client to the Cache interface.
type RedisCache struct {
	Client *redis.Client
}

func (c RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Cached wraps a Source with a read-through cache so repeated tour
// loads do not hammer the dataset API. Every cache failure degrades to
// a direct read; a garbled cached entry is ignored and overwritten.
type Cached struct {
	Source Source
	Cache  Cache
	TTL    time.Duration
	Logger *slog.Logger
}

func (c *Cached) ReadAll(ctx context.Context, name string) ([]map[string]any, error) {
	key := "dataset:" + name

	b, err := c.Cache.Get(ctx, key)
	if err == nil {
		var rows []map[string]any
		if err := json.Unmarshal(b, &rows); err == nil {
			return rows, nil
		}
	} else if !errors.Is(err, ErrMiss) && c.Logger != nil {
		c.Logger.Warn("dataset cache read failed", "key", key, "error", err)
	}

	rows, err := c.Source.ReadAll(ctx, name)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(rows); err == nil {
		if err := c.Cache.Set(ctx, key, b, c.TTL); err != nil && c.Logger != nil {
			c.Logger.Warn("dataset cache write failed", "key", key, "error", err)
		}
	}
	return rows, nil
}

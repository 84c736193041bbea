package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type memoryCache struct {
	values map[string]string
	sets   int
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value.(string)
	m.sets++
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	return "np:cache:" + strings.Join(parts, ":")
}

func newTestService(t *testing.T, url string, cache cacheStore) *Service {
	t.Helper()
	svc, err := NewService(config.ExchangeConfig{
		URL:          url,
		TTL:          5 * time.Minute,
		FallbackRate: 1400,
	}, cache, logger.New(logger.Options{Output: io.Discard}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestIsStale(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	if !(Rate{}).IsStale(now, ttl) {
		t.Fatal("zero snapshot must be stale")
	}

	fresh := Rate{Value: decimal.NewFromInt(1400), FetchedAt: now.Add(-time.Minute)}
	if fresh.IsStale(now, ttl) {
		t.Fatal("one minute old snapshot must be fresh")
	}

	old := Rate{Value: decimal.NewFromInt(1400), FetchedAt: now.Add(-6 * time.Minute)}
	if !old.IsStale(now, ttl) {
		t.Fatal("six minute old snapshot must be stale")
	}

	nonPositive := Rate{Value: decimal.Zero, FetchedAt: now}
	if !nonPositive.IsStale(now, ttl) {
		t.Fatal("non-positive rate must be stale")
	}
}

func TestUSDToARSFetchesAndCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"moneda":"USD","casa":"tarjeta","venta":1450.5}`))
	}))
	defer srv.Close()

	cache := &memoryCache{}
	svc := newTestService(t, srv.URL, cache)

	got := svc.USDToARS(context.Background())
	if !got.Equal(decimal.NewFromFloat(1450.5)) {
		t.Fatalf("expected 1450.5, got %s", got)
	}
	if cache.sets != 1 {
		t.Fatalf("expected redis write, got %d", cache.sets)
	}

	// Second call answers from the process-local snapshot.
	got = svc.USDToARS(context.Background())
	if !got.Equal(decimal.NewFromFloat(1450.5)) {
		t.Fatalf("expected cached 1450.5, got %s", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
}

func TestUSDToARSReadsSharedSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called when the shared snapshot is fresh")
	}))
	defer srv.Close()

	cache := &memoryCache{values: map[string]string{}}
	snapshot, _ := json.Marshal(Rate{Value: decimal.NewFromInt(1500), FetchedAt: time.Now().UTC()})
	cache.values["np:cache:exchange:usd_ars"] = string(snapshot)

	svc := newTestService(t, srv.URL, cache)
	got := svc.USDToARS(context.Background())
	if !got.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected shared snapshot 1500, got %s", got)
	}
}

func TestUSDToARSFallsBackWhenUpstreamFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &memoryCache{})
	got := svc.USDToARS(context.Background())
	if !got.Equal(decimal.NewFromInt(1400)) {
		t.Fatalf("expected fallback 1400, got %s", got)
	}
}

func TestUSDToARSRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"venta":1480}`))
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &memoryCache{})
	got := svc.USDToARS(context.Background())
	if !got.Equal(decimal.NewFromInt(1480)) {
		t.Fatalf("expected 1480 after retry, got %s", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

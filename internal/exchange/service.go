package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

// Rate is a cached USD→ARS conversion. The fetch timestamp travels with the
// value so staleness is a property of the snapshot, not of the cache it sits in.
type Rate struct {
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// IsStale reports whether the snapshot is too old to quote from.
func (r Rate) IsStale(now time.Time, ttl time.Duration) bool {
	if r.FetchedAt.IsZero() || r.Value.LessThanOrEqual(decimal.Zero) {
		return true
	}
	return now.Sub(r.FetchedAt) > ttl
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Service quotes a USD→ARS rate with a process-local snapshot, a shared redis
// snapshot, and a live fetch behind them. It never fails: when everything is
// unavailable it quotes the configured fallback rate.
type Service struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	fallback   decimal.Decimal
	cache      cacheStore
	logg       *logger.Logger

	mu    sync.Mutex
	local Rate
}

func NewService(cfg config.ExchangeConfig, cache cacheStore, logg *logger.Logger) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("exchange url required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        cfg.URL,
		ttl:        ttl,
		fallback:   decimal.NewFromFloat(cfg.FallbackRate),
		cache:      cache,
		logg:       logg,
	}, nil
}

// USDToARS returns the current conversion rate. Lookup order: process-local
// snapshot, redis snapshot, live fetch, configured fallback.
func (s *Service) USDToARS(ctx context.Context) decimal.Decimal {
	now := time.Now().UTC()

	s.mu.Lock()
	local := s.local
	s.mu.Unlock()
	if !local.IsStale(now, s.ttl) {
		return local.Value
	}

	if cached, ok := s.fromRedis(ctx, now); ok {
		s.remember(cached)
		return cached.Value
	}

	fetched, err := s.fetch(ctx)
	if err != nil {
		s.logg.Error(ctx, "exchange rate fetch failed, quoting fallback", err)
		return s.fallback
	}

	rate := Rate{Value: fetched, FetchedAt: now}
	s.remember(rate)
	s.toRedis(ctx, rate)
	return rate.Value
}

func (s *Service) remember(rate Rate) {
	s.mu.Lock()
	s.local = rate
	s.mu.Unlock()
}

func (s *Service) fromRedis(ctx context.Context, now time.Time) (Rate, bool) {
	if s.cache == nil {
		return Rate{}, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey("exchange", "usd_ars"))
	if err != nil || raw == "" {
		return Rate{}, false
	}
	var rate Rate
	if err := json.Unmarshal([]byte(raw), &rate); err != nil {
		return Rate{}, false
	}
	if rate.IsStale(now, s.ttl) {
		return Rate{}, false
	}
	return rate, true
}

func (s *Service) toRedis(ctx context.Context, rate Rate) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(rate)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey("exchange", "usd_ars"), string(raw), s.ttl); err != nil {
		s.logg.Warn(ctx, "exchange rate cache write failed")
	}
}

// quote is the subset of the dolarapi payload the service reads. The card
// rate (venta) is what Argentine customers actually pay.
type quote struct {
	Venta float64 `json:"venta"`
}

func (s *Service) fetch(ctx context.Context) (decimal.Decimal, error) {
	var value decimal.Decimal
	backoff := retry.WithMaxRetries(2, retry.NewExponential(300*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("exchange api status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("exchange api status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return retry.RetryableError(err)
		}
		var q quote
		if err := json.Unmarshal(body, &q); err != nil {
			return err
		}
		if q.Venta <= 0 {
			return fmt.Errorf("exchange api returned non-positive rate")
		}
		value = decimal.NewFromFloat(q.Venta)
		return nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value, nil
}

// Package schema assembles the per-store context that grounds prompt
// construction: currency, order date range and table row counts. Contexts
// are cached in Redis because the counts only need to be roughly right and
// the queries behind them are the most expensive part of a request.
package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/models"
)

const cacheKeyPrefix = "insights:store-context:"

// contextTables are the tables whose row counts feed the prompt.
var contextTables = []string{"customers", "products", "orders", "order_items"}

// Service loads store contexts with a Redis cache in front of Postgres. A
// cache failure is never fatal: reads fall through to the database and
// write failures are only logged.
type Service struct {
	db     *sql.DB
	cache  *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewService(db *sql.DB, cache *redis.Client, log logger.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{db: db, cache: cache, logger: log, ttl: ttl}
}

// GetStoreContext returns the context for one store, from cache when fresh.
func (s *Service) GetStoreContext(ctx context.Context, storeID string) (models.StoreContext, error) {
	if cached, ok := s.fromCache(ctx, storeID); ok {
		return cached, nil
	}

	sc, err := s.load(ctx, storeID)
	if err != nil {
		return models.StoreContext{}, err
	}

	s.toCache(ctx, sc)
	return sc, nil
}

// InvalidateStoreContext drops the cached context, used after data imports.
func (s *Service) InvalidateStoreContext(ctx context.Context, storeID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, cacheKeyPrefix+storeID).Err(); err != nil {
		return fmt.Errorf("invalidate store context: %w", err)
	}
	return nil
}

func (s *Service) fromCache(ctx context.Context, storeID string) (models.StoreContext, bool) {
	if s.cache == nil {
		return models.StoreContext{}, false
	}

	payload, err := s.cache.Get(ctx, cacheKeyPrefix+storeID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).Warn("store context cache read failed", map[string]interface{}{
				"store_id": storeID,
			})
		}
		return models.StoreContext{}, false
	}

	var sc models.StoreContext
	if err := json.Unmarshal(payload, &sc); err != nil {
		s.logger.WithError(err).Warn("store context cache entry corrupt", map[string]interface{}{
			"store_id": storeID,
		})
		return models.StoreContext{}, false
	}
	return sc, true
}

func (s *Service) toCache(ctx context.Context, sc models.StoreContext) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(sc)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+sc.StoreID, payload, s.ttl).Err(); err != nil {
		s.logger.WithError(err).Warn("store context cache write failed", map[string]interface{}{
			"store_id": sc.StoreID,
		})
	}
}

func (s *Service) load(ctx context.Context, storeID string) (models.StoreContext, error) {
	sc := models.StoreContext{
		StoreID:     storeID,
		TableCounts: make(map[string]int64, len(contextTables)),
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT currency FROM stores WHERE id = $1", storeID,
	).Scan(&sc.Currency); err != nil {
		if err == sql.ErrNoRows {
			return models.StoreContext{}, fmt.Errorf("store %s not found", storeID)
		}
		return models.StoreContext{}, fmt.Errorf("load store currency: %w", err)
	}

	for _, table := range contextTables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE store_id = $1", table)
		if err := s.db.QueryRowContext(ctx, query, storeID).Scan(&count); err != nil {
			return models.StoreContext{}, fmt.Errorf("count %s: %w", table, err)
		}
		sc.TableCounts[table] = count
	}

	var first, last sql.NullTime
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(created_at), MAX(created_at) FROM orders WHERE store_id = $1", storeID,
	).Scan(&first, &last); err != nil {
		return models.StoreContext{}, fmt.Errorf("load order date range: %w", err)
	}
	if first.Valid {
		sc.FirstOrderAt = &first.Time
	}
	if last.Valid {
		sc.LastOrderAt = &last.Time
	}

	return sc, nil
}

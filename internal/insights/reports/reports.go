// Package reports serves the fixed dashboard aggregates that do not need
// the generation pipeline. Every statement is hand-written, parameterized
// and scoped by store_id, and runs through the same read-only executor as
// generated queries.
package reports

import (
	"context"
	"fmt"

	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/insights/executor"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
	defaultTopLimit   = 10
	maxTopLimit       = 50
)

const revenueSummarySQL = `SELECT
	COUNT(*) AS order_count,
	COALESCE(ROUND(SUM(total_price), 2), 0) AS total_revenue,
	COALESCE(ROUND(AVG(total_price), 2), 0) AS average_order_value,
	COALESCE(ROUND(SUM(total_discounts), 2), 0) AS total_discounts
FROM orders
WHERE store_id = $1
  AND created_at >= now() - make_interval(days => $2)
LIMIT 1`

const ordersByDaySQL = `SELECT
	date_trunc('day', created_at)::date AS day,
	COUNT(*) AS order_count,
	COALESCE(ROUND(SUM(total_price), 2), 0) AS revenue
FROM orders
WHERE store_id = $1
  AND created_at >= now() - make_interval(days => $2)
GROUP BY day
ORDER BY day
LIMIT 366`

const topProductsSQL = `SELECT
	p.title,
	SUM(oi.quantity) AS units_sold,
	ROUND(SUM(oi.quantity * oi.price), 2) AS revenue
FROM order_items oi
JOIN products p ON p.id = oi.product_id AND p.store_id = $1
WHERE oi.store_id = $1
GROUP BY p.title
ORDER BY revenue DESC
LIMIT $2`

const newCustomersSQL = `SELECT
	date_trunc('day', created_at)::date AS day,
	COUNT(*) AS new_customers
FROM customers
WHERE store_id = $1
  AND created_at >= now() - make_interval(days => $2)
GROUP BY day
ORDER BY day
LIMIT 366`

// Service runs the canned reports.
type Service struct {
	exec   *executor.Executor
	logger logger.Logger
}

func NewService(exec *executor.Executor, log logger.Logger) *Service {
	return &Service{exec: exec, logger: log}
}

// RevenueSummary aggregates order totals over the trailing window.
func (s *Service) RevenueSummary(ctx context.Context, storeID string, days int) (*executor.QueryResult, error) {
	return s.run(ctx, "revenue_summary", revenueSummarySQL, storeID, clampWindow(days))
}

// OrdersByDay returns one row per day with order count and revenue.
func (s *Service) OrdersByDay(ctx context.Context, storeID string, days int) (*executor.QueryResult, error) {
	return s.run(ctx, "orders_by_day", ordersByDaySQL, storeID, clampWindow(days))
}

// TopProducts ranks products by lifetime revenue.
func (s *Service) TopProducts(ctx context.Context, storeID string, limit int) (*executor.QueryResult, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	return s.run(ctx, "top_products", topProductsSQL, storeID, limit)
}

// NewCustomers returns daily signup counts over the trailing window.
func (s *Service) NewCustomers(ctx context.Context, storeID string, days int) (*executor.QueryResult, error) {
	return s.run(ctx, "new_customers", newCustomersSQL, storeID, clampWindow(days))
}

func (s *Service) run(ctx context.Context, name, query, storeID string, arg int) (*executor.QueryResult, error) {
	res, err := s.exec.Run(ctx, query, []any{storeID, arg})
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	s.logger.Debug("report served", map[string]interface{}{
		"report":    name,
		"store_id":  storeID,
		"row_count": res.RowCount,
	})
	return res, nil
}

func clampWindow(days int) int {
	if days <= 0 {
		return defaultWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

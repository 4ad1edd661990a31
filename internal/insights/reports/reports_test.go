package reports

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "commerce-insights/internal/common/errors"
	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/insights/executor"
)

const storeID = "9e4b2a6e-1111-4c1d-8a2b-000000000001"

func newService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	return NewService(executor.New(db, log, 0), log), mock
}

func TestRevenueSummary(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery(revenueSummarySQL).
		WithArgs(storeID, 30).
		WillReturnRows(sqlmock.NewRows(
			[]string{"order_count", "total_revenue", "average_order_value", "total_discounts"}).
			AddRow(int64(42), []byte("1234.56"), []byte("29.39"), []byte("12.00")))

	res, err := svc.RevenueSummary(context.Background(), storeID, 0)

	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, int64(42), res.Rows[0]["order_count"])
	assert.Equal(t, "1234.56", res.Rows[0]["total_revenue"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersByDay_WindowClamped(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery(ordersByDaySQL).
		WithArgs(storeID, 365).
		WillReturnRows(sqlmock.NewRows([]string{"day", "order_count", "revenue"}))

	_, err := svc.OrdersByDay(context.Background(), storeID, 5000)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopProducts_LimitClamped(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery(topProductsSQL).
		WithArgs(storeID, 50).
		WillReturnRows(sqlmock.NewRows([]string{"title", "units_sold", "revenue"}).
			AddRow("Hoodie", int64(12), []byte("540.00")))

	res, err := svc.TopProducts(context.Background(), storeID, 9999)

	require.NoError(t, err)
	assert.Equal(t, []string{"title", "units_sold", "revenue"}, res.Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopProducts_DefaultLimit(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery(topProductsSQL).
		WithArgs(storeID, 10).
		WillReturnRows(sqlmock.NewRows([]string{"title", "units_sold", "revenue"}))

	_, err := svc.TopProducts(context.Background(), storeID, 0)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCustomers_ExecutorErrorsKeepTheirCode(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery(newCustomersSQL).
		WithArgs(storeID, 30).
		WillReturnError(errors.New("pq: canceling statement due to statement timeout"))

	_, err := svc.NewCustomers(context.Background(), storeID, 30)

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeQueryTimeout, stderrors.CodeOf(err))
}

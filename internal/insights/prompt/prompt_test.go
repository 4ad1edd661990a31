package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"commerce-insights/internal/models"
)

func TestBuildSystemPrompt_ContainsCoreSections(t *testing.T) {
	first := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	store := models.StoreContext{
		StoreID:      "9e4b2a6e-1111-4c1d-8a2b-000000000001",
		Currency:     "EUR",
		FirstOrderAt: &first,
		LastOrderAt:  &last,
		TableCounts:  map[string]int64{"orders": 1200, "customers": 340, "products": 55},
	}

	p := BuildSystemPrompt(store)

	assert.Contains(t, p, "DATABASE SCHEMA")
	assert.Contains(t, p, "store_id = $1")
	assert.Contains(t, p, "Currency: EUR")
	assert.Contains(t, p, "Order history: 2024-03-01 to 2026-08-20")
	assert.Contains(t, p, "customers=340 orders=1200 products=55")
	assert.Contains(t, p, `"chartSpec"`)
	assert.Contains(t, p, "LIMIT of at most 1000")
}

func TestBuildSystemPrompt_EmptyStoreDefaults(t *testing.T) {
	p := BuildSystemPrompt(models.StoreContext{})

	assert.Contains(t, p, "Currency: USD")
	assert.Contains(t, p, "Order history: no orders yet")
	assert.NotContains(t, p, "Row counts:")
}

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	store := models.StoreContext{
		TableCounts: map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5},
	}

	first := BuildSystemPrompt(store)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildSystemPrompt(store))
	}
	assert.True(t, strings.Contains(first, "a=1 b=2 c=3 d=4 e=5"))
}

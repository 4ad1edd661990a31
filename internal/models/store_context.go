package models

import "time"

// StoreContext is a read-only snapshot of one store's schema metadata,
// fetched once per request and handed to the prompt builder.
type StoreContext struct {
	StoreID      string           `json:"storeId"`
	Currency     string           `json:"currency"`
	TableCounts  map[string]int64 `json:"tableCounts"`
	FirstOrderAt *time.Time       `json:"firstOrderAt"`
	LastOrderAt  *time.Time       `json:"lastOrderAt"`
}

// Package prompt builds the system prompt for SQL generation. The prompt
// restates the same constraints the validator enforces so a compliant model
// rarely produces output that gets rejected.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"commerce-insights/internal/models"
)

const schemaSection = `DATABASE SCHEMA (PostgreSQL):

stores(id uuid, name text, currency text, country text, created_at timestamptz)
customers(id uuid, store_id uuid, email text, first_name text, last_name text, accepts_marketing boolean, created_at timestamptz)
products(id uuid, store_id uuid, title text, product_type text, vendor text, price numeric, inventory_quantity integer, created_at timestamptz)
orders(id uuid, store_id uuid, customer_id uuid, order_number integer, total_price numeric, subtotal_price numeric, total_discounts numeric, financial_status text, fulfillment_status text, created_at timestamptz)
order_items(id uuid, store_id uuid, order_id uuid, product_id uuid, quantity integer, price numeric, created_at timestamptz)

Every table carries store_id for tenant scoping.`

const rulesSection = `RULES:
1. Generate exactly one PostgreSQL SELECT statement. No other statement type, ever.
2. Every table you touch MUST be filtered with store_id = $1. Use $1 as the only parameter; never inline a store id.
3. No semicolons, no SQL comments, no UNION, no WITH/CTE, no SELECT INTO.
4. Use only the tables and columns listed in the schema.
5. Include a LIMIT of at most 1000 rows.
6. Use ASCII characters only.
7. Round monetary values to 2 decimal places.`

const outputSection = `OUTPUT FORMAT:
Respond with a single JSON object, no markdown fences, no prose outside the JSON:
{
  "sql": "<the SELECT statement>",
  "explanation": "<one or two plain-language sentences describing what the query answers>",
  "chartSpec": {
    "type": "bar | line | pie | doughnut | table",
    "title": "<chart title>",
    "dataKey": "<column holding the numeric series>",
    "labelKey": "<column holding the category labels>",
    "xLabel": "<x axis title, optional>",
    "yLabel": "<y axis title, optional>"
  }
}
Omit chartSpec (or set it to null) when the result does not suit a chart.

EXAMPLES:
Question: What were my total sales last month?
{"sql": "SELECT COALESCE(ROUND(SUM(total_price), 2), 0) AS total_sales FROM orders WHERE store_id = $1 AND created_at >= date_trunc('month', now()) - interval '1 month' AND created_at < date_trunc('month', now()) LIMIT 100", "explanation": "Total revenue from orders placed during the previous calendar month.", "chartSpec": null}

Question: Show my top 5 products by revenue
{"sql": "SELECT p.title, ROUND(SUM(oi.quantity * oi.price), 2) AS revenue FROM order_items oi JOIN products p ON p.id = oi.product_id AND p.store_id = $1 WHERE oi.store_id = $1 GROUP BY p.title ORDER BY revenue DESC LIMIT 5", "explanation": "The five products that earned the most revenue across all orders.", "chartSpec": {"type": "bar", "title": "Top 5 Products by Revenue", "dataKey": "revenue", "labelKey": "title", "yLabel": "Revenue"}}`

// BuildSystemPrompt assembles the full system prompt: role, schema, store
// facts, generation rules and the required response shape.
func BuildSystemPrompt(store models.StoreContext) string {
	var b strings.Builder

	b.WriteString("You are a PostgreSQL analyst for an e-commerce store. ")
	b.WriteString("You translate a merchant's question into one safe, read-only SQL query.\n\n")

	b.WriteString(schemaSection)
	b.WriteString("\n\n")
	b.WriteString(buildStoreSection(store))
	b.WriteString("\n\n")
	b.WriteString(rulesSection)
	b.WriteString("\n\n")
	b.WriteString(outputSection)

	return b.String()
}

// buildStoreSection renders per-store facts so the model grounds relative
// dates and currency correctly. Table counts are sorted for a stable prompt,
// which keeps provider-side prompt caching effective.
func buildStoreSection(store models.StoreContext) string {
	var b strings.Builder
	b.WriteString("STORE CONTEXT:\n")

	currency := store.Currency
	if currency == "" {
		currency = "USD"
	}
	fmt.Fprintf(&b, "Currency: %s\n", currency)

	if store.FirstOrderAt != nil && store.LastOrderAt != nil {
		fmt.Fprintf(&b, "Order history: %s to %s\n",
			store.FirstOrderAt.Format("2006-01-02"),
			store.LastOrderAt.Format("2006-01-02"))
	} else {
		b.WriteString("Order history: no orders yet\n")
	}

	if len(store.TableCounts) > 0 {
		tables := make([]string, 0, len(store.TableCounts))
		for name := range store.TableCounts {
			tables = append(tables, name)
		}
		sort.Strings(tables)
		b.WriteString("Row counts:")
		for _, name := range tables {
			fmt.Fprintf(&b, " %s=%d", name, store.TableCounts[name])
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

package service_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/querypilot/querypilot/internal/service"
)

// ─── Schema Context Formatting ────────────────────────────────────────────────

func TestFormatSchemaContext(t *testing.T) {
	tables := []service.TableContext{
		{
			FullName:    "`proj.sales.orders`",
			Description: "Customer orders",
			RowCount:    1500,
			Columns: []service.ColumnContext{
				{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
				{Name: "amount", Type: "FLOAT", Mode: "NULLABLE", Description: "Order total in USD"},
				{Name: "tags", Type: "STRING", Mode: "REPEATED"},
			},
		},
	}

	got := service.FormatSchemaContext("proj", "sales", tables)

	for _, want := range []string{
		"Project: proj",
		"Dataset: sales",
		"### Table: `proj.sales.orders`",
		"Description: Customer orders",
		"Row count: 1500",
		"  - `id` (INTEGER, REQUIRED)",
		"  - `amount` (FLOAT) - Order total in USD",
		"  - `tags` (STRING, REPEATED)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestFormatSchemaContextOmitsEmptyFields(t *testing.T) {
	tables := []service.TableContext{
		{
			FullName: "`p.d.t`",
			Columns:  []service.ColumnContext{{Name: "c", Type: "STRING", Mode: "NULLABLE"}},
		},
	}

	got := service.FormatSchemaContext("p", "d", tables)

	if strings.Contains(got, "Description:") {
		t.Error("empty table description should be omitted")
	}
	if strings.Contains(got, "Row count:") {
		t.Error("zero row count should be omitted")
	}
	// NULLABLE is the default mode and is not rendered
	if !strings.Contains(got, "  - `c` (STRING)\n") && !strings.HasSuffix(got, "  - `c` (STRING)") {
		t.Errorf("nullable column should render without a mode:\n%s", got)
	}
}

// ─── Relevant Tables ──────────────────────────────────────────────────────────

func TestRelevantTables(t *testing.T) {
	all := []string{"users", "orders", "products"}

	tests := []struct {
		question string
		want     []string
	}{
		{"how many users signed up?", []string{"users"}},
		{"show the latest order amounts", []string{"orders"}},
		{"top product by revenue", []string{"products"}},
		{"users who placed orders", []string{"users", "orders"}},
		// No mention falls back to every table
		{"what happened yesterday?", []string{"users", "orders", "products"}},
	}

	for _, tt := range tests {
		got := service.RelevantTables(tt.question, all)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("RelevantTables(%q) = %v, want %v", tt.question, got, tt.want)
		}
	}
}

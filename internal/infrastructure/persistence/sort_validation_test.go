package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := map[string]string{
		"":                         "DESC",
		"asc":                      "ASC",
		"  ASC ":                   "ASC",
		"desc":                     "DESC",
		"ascending":                "DESC",
		"ASC; DELETE FROM returns": "DESC",
	}
	for input, want := range tests {
		assert.Equal(t, want, ValidateSortOrder(input), "input %q", input)
	}
}

func TestValidateSortField_ReturnOrders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty falls back", "", "created_at"},
		{"refund amount", "refund_amount", "refund_amount"},
		{"pickup date with padding", "  pickup_date ", "pickup_date"},
		{"customer column is not sortable", "customer_email", "created_at"},
		{"case sensitive", "STATUS", "created_at"},
		{"injection", "status; DROP TABLE return_orders", "created_at"},
		{"quoted", "status'--", "created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSortField(tt.input, ReturnOrderSortFields, "created_at"))
		})
	}
}

func TestValidateSortField_EmptyDefault(t *testing.T) {
	assert.Equal(t, "", ValidateSortField("awb_number", ReturnOrderSortFields, ""))
}

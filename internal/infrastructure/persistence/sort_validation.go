package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if it is whitelisted, defaultField otherwise.
// Sort columns are interpolated into SQL, so only whitelisted names may pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ReturnOrderSortFields contains allowed sort fields for return orders
var ReturnOrderSortFields = map[string]bool{
	"created_at":          true,
	"updated_at":          true,
	"return_number":       true,
	"status":              true,
	"quantity":            true,
	"refund_amount":       true,
	"pickup_date":         true,
	"received_at":         true,
	"refund_completed_at": true,
}

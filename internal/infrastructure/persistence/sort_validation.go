package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the requested direction to ASC or DESC,
// defaulting to DESC for anything unrecognized.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks the requested field against a whitelist and
// falls back to defaultField otherwise. Filter.OrderBy comes from query
// strings and is interpolated into ORDER BY, so everything not on the
// whitelist is rejected.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	field := strings.TrimSpace(sortField)
	if allowedFields[field] {
		return field
	}
	return defaultField
}

func sortFields(names ...string) map[string]bool {
	fields := make(map[string]bool, len(names))
	for _, name := range names {
		fields[name] = true
	}
	return fields
}

// Per-table sort whitelists. Every list carries the common audit columns.
var (
	StorageLocationSortFields = sortFields("id", "created_at", "updated_at", "code", "status")
	HandlingUnitSortFields    = sortFields("id", "created_at", "updated_at", "type_code", "status")
	WarehouseJobSortFields    = sortFields("id", "created_at", "updated_at", "code", "type", "status",
		"allocated_at", "completed_at")
)

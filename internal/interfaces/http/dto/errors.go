package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Capacity and posting error codes. These surface races between concurrent
// jobs: a competing hold or posting consumed the capacity or moved state
// between read and write, so retrying the request can succeed.
const (
	// ErrCodeCapacityConflict is used when a location cannot take the demanded capacity
	ErrCodeCapacityConflict = "ERR_CAPACITY_CONFLICT"
	// ErrCodeAnchoringViolation is used when a handling unit move would break its anchoring
	ErrCodeAnchoringViolation = "ERR_ANCHORING_VIOLATION"
	// ErrCodePhaseOrder is used when posting phases arrive out of order
	ErrCodePhaseOrder = "ERR_PHASE_ORDER"
	// ErrCodeReconciliation is used when occupancy and ledger state disagree
	ErrCodeReconciliation = "ERR_RECONCILIATION"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInvalidTransition is used when a job status transition is not allowed
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeInsufficientStock is used when stock is insufficient
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeAllocationFailed is used when no allocation plan satisfies a job
	ErrCodeAllocationFailed = "ERR_ALLOCATION_FAILED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeTooManyRequests is an alias for rate limiting
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Capacity and posting races -> 409 Conflict (retryable)
	ErrCodeCapacityConflict:   http.StatusConflict,
	ErrCodeAnchoringViolation: http.StatusConflict,
	ErrCodePhaseOrder:         http.StatusConflict,
	ErrCodeReconciliation:     http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeAllocationFailed:  http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized codes
// carried on the wire
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"DOCK_NOT_FOUND":        ErrCodeNotFound,
	"STAGING_NOT_FOUND":     ErrCodeNotFound,
	"RESERVATION_NOT_FOUND": ErrCodeNotFound,
	"ROW_NOT_FOUND":         ErrCodeNotFound,

	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"CAPACITY_CONFLICT":    ErrCodeCapacityConflict,
	"ANCHORING_VIOLATION":  ErrCodeAnchoringViolation,
	"PHASE_ORDER":          ErrCodePhaseOrder,
	"RECONCILIATION_ERROR": ErrCodeReconciliation,

	"INVALID_TRANSITION": ErrCodeInvalidTransition,
	"INVALID_STATE":      ErrCodeInvalidState,
	"INSUFFICIENT_STOCK": ErrCodeInsufficientStock,
	"ALLOCATION_FAILED":  ErrCodeAllocationFailed,
	"LOCATION_INACTIVE":  ErrCodeBusinessRule,
	"HU_RELEASED":        ErrCodeBusinessRule,
	"ROW_INCOMPLETE":     ErrCodeBusinessRule,
	"INVALID_MOVEMENT":   ErrCodeBusinessRule,
	"INVALID_PHASE":      ErrCodeBusinessRule,
	"INVALID_JOB":        ErrCodeBusinessRule,

	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_QUANTITY":      ErrCodeInvalidInput,
	"INVALID_CAPACITY":      ErrCodeInvalidInput,
	"INVALID_LOCATION_CODE": ErrCodeInvalidInput,
	"INVALID_LOCATION_PATH": ErrCodeInvalidInput,
	"INVALID_HU_TYPE":       ErrCodeInvalidInput,
	"INVALID_POLICY":        ErrCodeInvalidInput,

	"VALIDATION_ERROR": ErrCodeValidation,
	"BAD_REQUEST":      ErrCodeBadRequest,
	"INVALID_CONFIG":   ErrCodeInternal,
	"INTERNAL_ERROR":   ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists        = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict  = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidTransition    = NewDomainError("INVALID_TRANSITION", "Operation not allowed in current state")
	ErrInsufficientStock    = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrCapacityConflict     = NewDomainError("CAPACITY_CONFLICT", "Location capacity was consumed by a concurrent operation")
	ErrAnchoringViolation   = NewDomainError("ANCHORING_VIOLATION", "Handling unit is already anchored to another location")
	ErrReconciliationFailed = NewDomainError("RECONCILIATION_ERROR", "Posted quantities do not reconcile with requested quantities")
	ErrAllocationFailed     = NewDomainError("ALLOCATION_FAILED", "No compatible location with sufficient capacity")
)

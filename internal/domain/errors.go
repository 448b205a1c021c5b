package domain

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrScoring        = "SCORING_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrNotFound       = "NOT_FOUND"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
	ErrImport         = "IMPORT_ERROR"
	ErrConflict       = "CONFLICT"
	ErrUnavailable    = "SERVICE_UNAVAILABLE"
)

// Sentinels for errors.Is checks.
var (
	ErrUnknownSegment       = errors.New("unknown segment")
	ErrSegmentNotApplicable = errors.New("segment not applicable for dominance")
	ErrUnresolvedSegment    = errors.New("no canonical segment for vessel and location")
	ErrMissingPatientField  = errors.New("missing patient field")
	ErrPatientOutOfRange    = errors.New("patient field out of range")
	ErrRecordNotFound       = errors.New("record not found")
	ErrRecordExists         = errors.New("record already exists")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// LookupError reports a segment or vessel/dominance combination absent from
// the catalog. It costs one lesion its contribution, never the whole score.
type LookupError struct {
	SegmentID int
	Vessel    Vessel
	Location  Location
	Dominance Dominance
	Err       error
}

func (e *LookupError) Error() string {
	if e.SegmentID != 0 {
		return fmt.Sprintf("segment %d (%s dominance): %v", e.SegmentID, e.Dominance, e.Err)
	}
	return fmt.Sprintf("%s %s (%s dominance): %v", e.Vessel, e.Location, e.Dominance, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// PatientError aborts scoring of a single patient.
type PatientError struct {
	PatientID string
	Field     string
	Err       error
}

func (e *PatientError) Error() string {
	id := e.PatientID
	if id == "" {
		id = "<unnamed patient>"
	}
	if e.Field != "" {
		return fmt.Sprintf("patient %s: %s: %v", id, e.Field, e.Err)
	}
	return fmt.Sprintf("patient %s: %v", id, e.Err)
}

func (e *PatientError) Unwrap() error {
	return e.Err
}

// ImportError is raised by the file readers, never by the scorers.
type ImportError struct {
	File string
	Row  int
	Err  error
}

func (e *ImportError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("import %s row %d: %v", e.File, e.Row, e.Err)
	}
	return fmt.Sprintf("import %s: %v", e.File, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

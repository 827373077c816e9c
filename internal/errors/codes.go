// Package errors provides structured error handling for trackindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (file, disk, transaction)
//   - 3XX: Lyrics extraction errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates SQLite and file I/O errors.
	CategoryStorage Category = "STORAGE"
	// CategoryExtraction indicates lyrics gateway errors.
	CategoryExtraction Category = "EXTRACTION"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreNotOpen    = "ERR_201_STORE_NOT_OPEN"
	ErrCodeStoreOpenFailed = "ERR_202_STORE_OPEN_FAILED"
	ErrCodeTxFailed        = "ERR_203_TX_FAILED"
	ErrCodeStoreCorrupt    = "ERR_204_STORE_CORRUPT"
	ErrCodeStoreLocked     = "ERR_205_STORE_LOCKED"

	// Extraction errors (300-399)
	ErrCodeExtractionFailed = "ERR_301_EXTRACTION_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidUser  = "ERR_402_INVALID_USER"

	// Internal errors (500-599)
	ErrCodeInternal   = "ERR_501_INTERNAL"
	ErrCodeChunkLimit = "ERR_502_CHUNK_LIMIT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryExtraction
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from the code.
// Extraction failures are warnings: they are absorbed per-track and never
// abort a reconciliation batch.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryExtraction:
		return SeverityWarning
	case CategoryInternal:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether an operation failing with this code can be
// retried wholesale. Storage transaction failures leave the prior state
// intact, so a retry is always safe.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeTxFailed, ErrCodeStoreLocked, ErrCodeExtractionFailed:
		return true
	default:
		return false
	}
}

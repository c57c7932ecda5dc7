package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission intake errors
// 12000-12999: Grading pipeline errors
// 13000-13999: Job status & reporting errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidEncoding    ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Submission Intake Errors (11000-11999) ==========

	MissingStudentCode  ErrorCode = 11000
	MissingTestArtifact ErrorCode = 11001
	ArtifactTooLarge    ErrorCode = 11002
	ArtifactDecodeError ErrorCode = 11003

	// ========== Grading Pipeline Errors (12000-12999) ==========

	WorkspaceCreateFailed ErrorCode = 12000
	MaterializeFailed     ErrorCode = 12001
	ExtractionFailed      ErrorCode = 12002
	ExecutionFailed       ErrorCode = 12003
	ExecutionTimeout      ErrorCode = 12004
	CapacityExhausted     ErrorCode = 12005

	// ========== Job Status & Reporting Errors (13000-13999) ==========

	JobNotFound         ErrorCode = 13000
	StatusStoreDisabled ErrorCode = 13001
	ReportArchiveFailed ErrorCode = 13002
	EventPublishFailed  ErrorCode = 13003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success: "Success",

	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service unavailable",
	Timeout:             "Operation timed out",

	CacheError:     "Cache operation failed",
	CacheSetFailed: "Failed to set cache",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidEncoding:    "Invalid encoding",
	RequiredFieldEmpty: "Required field is empty",

	MissingStudentCode:  "Student code is required",
	MissingTestArtifact: "Test file is required",
	ArtifactTooLarge:    "Test artifact exceeds size limit",
	ArtifactDecodeError: "Invalid test artifact encoding",

	WorkspaceCreateFailed: "Failed to create job workspace",
	MaterializeFailed:     "Failed to materialize job inputs",
	ExtractionFailed:      "Failed to extract test archive",
	ExecutionFailed:       "Grading command execution failed",
	ExecutionTimeout:      "Grading command timed out",
	CapacityExhausted:     "Server busy",

	JobNotFound:         "Job not found",
	StatusStoreDisabled: "Job status store is not configured",
	ReportArchiveFailed: "Failed to archive grading report",
	EventPublishFailed:  "Failed to publish job event",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == JobNotFound:
		return 404
	case c == TooManyRequests, c == CapacityExhausted:
		return 429
	case c == ServiceUnavailable, c == StatusStoreDisabled:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c >= 11000 && c < 12000: // Intake errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}

package errors

// ErrorCode identifies a class of application error.
type ErrorCode int

const (
	ErrorCode_INTERNAL ErrorCode = iota
	ErrorCode_INVALID_ARGUMENT
	ErrorCode_NOT_FOUND
	ErrorCode_ALREADY_EXISTS
	ErrorCode_UNAUTHENTICATED

	// Extraction
	ErrorCode_EXTRACTION_PARTIAL
	ErrorCode_EXTRACTION_UNPARSEABLE

	// Reconciliation
	ErrorCode_RECONCILIATION_CONFLICT
	ErrorCode_UNRESOLVED_REFERENCE

	// External collaborators
	ErrorCode_EXTERNAL_TIMEOUT
	ErrorCode_EXTERNAL_RATE_LIMITED
	ErrorCode_EXTERNAL_UNAVAILABLE

	// Validation
	ErrorCode_VALIDATION_MISSING_FIELD
	ErrorCode_VALIDATION_MALFORMED_SHAPE

	// Infrastructure
	ErrorCode_DB_QUERY_FAILED
	ErrorCode_STORAGE_FAILED
	ErrorCode_LOCK_FAILED

	ErrorCode_HTTP_OK
)

var codeNames = map[ErrorCode]string{
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:             "ALREADY_EXISTS",
	ErrorCode_UNAUTHENTICATED:            "UNAUTHENTICATED",
	ErrorCode_EXTRACTION_PARTIAL:         "EXTRACTION_PARTIAL",
	ErrorCode_EXTRACTION_UNPARSEABLE:     "EXTRACTION_UNPARSEABLE",
	ErrorCode_RECONCILIATION_CONFLICT:    "RECONCILIATION_CONFLICT",
	ErrorCode_UNRESOLVED_REFERENCE:       "UNRESOLVED_REFERENCE",
	ErrorCode_EXTERNAL_TIMEOUT:           "EXTERNAL_TIMEOUT",
	ErrorCode_EXTERNAL_RATE_LIMITED:      "EXTERNAL_RATE_LIMITED",
	ErrorCode_EXTERNAL_UNAVAILABLE:       "EXTERNAL_UNAVAILABLE",
	ErrorCode_VALIDATION_MISSING_FIELD:   "VALIDATION_MISSING_FIELD",
	ErrorCode_VALIDATION_MALFORMED_SHAPE: "VALIDATION_MALFORMED_SHAPE",
	ErrorCode_DB_QUERY_FAILED:            "DB_QUERY_FAILED",
	ErrorCode_STORAGE_FAILED:             "STORAGE_FAILED",
	ErrorCode_LOCK_FAILED:                "LOCK_FAILED",
	ErrorCode_HTTP_OK:                    "OK",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

package errors

// Category groups errors by the subsystem concern that produced them.
type Category string

const (
	// CategoryConfig covers unknown model/selector/collector names and
	// other construction-time configuration problems.
	CategoryConfig Category = "Config"

	// CategoryIO covers failures reading postings, feedback documents,
	// or index files.
	CategoryIO Category = "IO"

	// CategoryStructural covers index-shape preconditions, such as a
	// bound index lacking a direct index.
	CategoryStructural Category = "Structural"

	// CategoryValidation covers malformed request input.
	CategoryValidation Category = "Validation"

	// CategoryInternal covers programming errors and broken invariants.
	CategoryInternal Category = "Internal"
)

// Severity indicates how the caller should react to an error.
type Severity string

const (
	// SeverityRecoverable errors degrade the current request (e.g. skip
	// expansion) but never fail it.
	SeverityRecoverable Severity = "recoverable"

	// SeverityFatal errors abort the current operation.
	SeverityFatal Severity = "fatal"
)

// Error codes. The numeric band encodes the category:
// 1xx config, 2xx IO, 3xx structural, 4xx validation, 5xx internal.
const (
	ErrCodeUnknownModel     = "ERR_101_UNKNOWN_MODEL"
	ErrCodeUnknownSelector  = "ERR_102_UNKNOWN_SELECTOR"
	ErrCodeUnknownCollector = "ERR_103_UNKNOWN_COLLECTOR"
	ErrCodeBadChain         = "ERR_104_BAD_CHAIN"
	ErrCodeConfigInvalid    = "ERR_105_CONFIG_INVALID"

	ErrCodePostingRead = "ERR_201_POSTING_READ"
	ErrCodeIndexRead   = "ERR_202_INDEX_READ"
	ErrCodeIndexWrite  = "ERR_203_INDEX_WRITE"

	ErrCodeNoDirectIndex = "ERR_301_NO_DIRECT_INDEX"
	ErrCodeNoIndex       = "ERR_302_NO_INDEX"

	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"

	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the code's numeric band.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStructural
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code. Only internal
// errors are fatal; everything else degrades the current request.
func severityFromCode(code string) Severity {
	if categoryFromCode(code) == CategoryInternal {
		return SeverityFatal
	}
	return SeverityRecoverable
}

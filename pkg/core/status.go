package core

// ErrorCategory classifies the type of error for reporting
type ErrorCategory int

const (
	ErrCategoryNone            ErrorCategory = iota // No error
	ErrCategoryConfiguration                        // Unparseable version, unsupported host, invalid settings
	ErrCategoryParse                                // Malformed simctl catalog payload
	ErrCategorySelection                            // No device type and no instance matched
	ErrCategoryExternalCommand                      // A required external command exited non-zero
	ErrCategoryTimeout                              // Boot wait exceeded its bound
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryConfiguration:
		return "configuration"
	case ErrCategoryParse:
		return "parse"
	case ErrCategorySelection:
		return "selection"
	case ErrCategoryExternalCommand:
		return "external_command"
	case ErrCategoryTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

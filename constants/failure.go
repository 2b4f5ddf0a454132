package constants

// FailureKind classifies why a backend could not produce its output.
type FailureKind string

const (
	FailureUnsupportedFormat       FailureKind = "UNSUPPORTED_FORMAT"
	FailureCorruptInput            FailureKind = "CORRUPT_INPUT"
	FailureIO                      FailureKind = "IO_FAILURE"
	FailureInsufficientPermissions FailureKind = "INSUFFICIENT_PERMISSIONS"
	FailureInternal                FailureKind = "INTERNAL"
)

// Package errors provides structured error handling with an explicit
// fatal/recoverable split consumed by the process supervisor.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigMissingValue Code = "CONFIG_MISSING_VALUE"
	CodeConfigInvalidValue Code = "CONFIG_INVALID_VALUE"

	// Storage errors
	CodeStorageOpen        Code = "STORAGE_OPEN"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeNotFound           Code = "NOT_FOUND"

	// Engine peer errors
	CodeEngineUnavailable Code = "ENGINE_UNAVAILABLE"
	CodeEngineBadReply    Code = "ENGINE_BAD_REPLY"
	CodeEngineIllegalMove Code = "ENGINE_ILLEGAL_MOVE"

	// Game errors
	CodeGameInvalidOrientation Code = "GAME_INVALID_ORIENTATION"
	CodeGameNotActive          Code = "GAME_NOT_ACTIVE"
	CodeGameEmptyMove          Code = "GAME_EMPTY_MOVE"

	// Settings errors
	CodeSettingsUnknownKey   Code = "SETTINGS_UNKNOWN_KEY"
	CodeSettingsInvalidValue Code = "SETTINGS_INVALID_VALUE"
)

// Class groups codes by how the process must react to them.
type Class int

const (
	// ClassInvalid marks rejected input; the operation is reported back to
	// the caller and nothing is retried or terminated.
	ClassInvalid Class = iota
	// ClassRecoverable marks transient failures; the operation is retried
	// with backoff and logged, never silently swallowed.
	ClassRecoverable
	// ClassFatal marks failures that terminate the process with a non-zero
	// exit code so the orchestrator can restart or alert.
	ClassFatal
)

// Class maps a code to its process-reaction class.
func (c Code) Class() Class {
	switch c {
	case CodeConfigMissingValue,
		CodeConfigInvalidValue,
		CodeStorageOpen:
		return ClassFatal

	case CodeStorageUnavailable,
		CodeEngineUnavailable:
		return ClassRecoverable

	default:
		return ClassInvalid
	}
}

// Process exit codes surfaced to the orchestrator on fatal errors.
const (
	ExitCodeGeneric = 1
	ExitCodeConfig  = 2
	ExitCodeStorage = 3
)

// ExitCode maps a fatal code to the process exit status. Non-fatal codes
// map to the generic status for callers that exit anyway.
func (c Code) ExitCode() int {
	switch c {
	case CodeConfigMissingValue, CodeConfigInvalidValue:
		return ExitCodeConfig
	case CodeStorageOpen:
		return ExitCodeStorage
	default:
		return ExitCodeGeneric
	}
}

package store

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrEnvironment indicates the environment could not be opened or
	// initialized.  This is fatal: callers are expected to report it and
	// abort startup.
	ErrEnvironment ErrorCode = iota

	// ErrFileOpen indicates a named file could not be opened within the
	// environment.  Callers may recover, for example by running the
	// verification and salvage flow.
	ErrFileOpen

	// ErrAccessorOpen indicates an accessor could not be constructed,
	// either because the environment is not open or the underlying file
	// open failed.
	ErrAccessorOpen

	// ErrCorruption indicates integrity verification reported damage.
	ErrCorruption

	// ErrDecode indicates stored bytes could not be decoded into the
	// requested record type.  Reads treat this as a missing record so
	// format drift never crashes readers.
	ErrDecode

	// ErrContract indicates a programming contract violation such as
	// writing through a read-only accessor or beginning a transaction
	// while one is already active.
	ErrContract

	// ErrEngine indicates a generic failure from the underlying engine.
	ErrEngine

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrEnvironment:  "ErrEnvironment",
	ErrFileOpen:     "ErrFileOpen",
	ErrAccessorOpen: "ErrAccessorOpen",
	ErrCorruption:   "ErrCorruption",
	ErrDecode:       "ErrDecode",
	ErrContract:     "ErrContract",
	ErrEngine:       "ErrEngine",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can occur in the coordination
// layer.
//
// The caller can use type assertions to determine if an error is an Error
// and access the ErrorCode field to ascertain the specific reason for the
// failure, or the IsErrorCode convenience function.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// makeError creates an Error given a set of arguments.
func makeError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether or not the provided error is an Error with the
// provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	storeErr, ok := err.(Error)
	return ok && storeErr.ErrorCode == c
}

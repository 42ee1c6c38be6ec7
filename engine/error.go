package engine

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrEnvOpen indicates the environment could not be initialized, for
	// example because its path cannot be created or accessed.
	ErrEnvOpen ErrorCode = iota

	// ErrEnvClosed indicates an operation was performed against an
	// environment that has already been shut down.
	ErrEnvClosed

	// ErrFileOpenFailed indicates the engine rejected opening a named
	// file, for example due to an incompatible existing format.
	ErrFileOpenFailed

	// ErrFileNotFound indicates the named file does not exist within the
	// environment.
	ErrFileNotFound

	// ErrKeyNotFound indicates no record exists for the given key.  It is
	// also returned by cursors to signal end of iteration or a missed
	// seek target.
	ErrKeyNotFound

	// ErrKeyExists indicates a put with overwrite disabled found an
	// existing record under the key.
	ErrKeyExists

	// ErrCorruption indicates the engine's integrity verification found
	// structural damage in a file.
	ErrCorruption

	// ErrTxConflict indicates a transaction already bound to one file was
	// used against a different file.
	ErrTxConflict

	// ErrTxClosed indicates an operation was issued through a transaction
	// that has already been committed or aborted.
	ErrTxClosed

	// ErrInvalid indicates a request the engine cannot interpret, such as
	// an unknown cursor op.
	ErrInvalid

	// ErrDriverSpecific indicates a failure that is specific to the
	// underlying driver.  The Err field of the Error will contain the
	// driver's own error.
	ErrDriverSpecific

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrEnvOpen:        "ErrEnvOpen",
	ErrEnvClosed:      "ErrEnvClosed",
	ErrFileOpenFailed: "ErrFileOpenFailed",
	ErrFileNotFound:   "ErrFileNotFound",
	ErrKeyNotFound:    "ErrKeyNotFound",
	ErrKeyExists:      "ErrKeyExists",
	ErrCorruption:     "ErrCorruption",
	ErrTxConflict:     "ErrTxConflict",
	ErrTxClosed:       "ErrTxClosed",
	ErrInvalid:        "ErrInvalid",
	ErrDriverSpecific: "ErrDriverSpecific",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can occur at the engine
// boundary.  It is used to indicate several potential failure conditions
// including missing keys, corruption, and driver-specific failures.
//
// The caller can use type assertions to determine if an error is an Error and
// access the ErrorCode field to ascertain the specific reason for the
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

// MakeError creates an Error given a set of arguments.  Drivers outside this
// package use it to produce conforming errors.
func MakeError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether or not the provided error is an Error with the
// provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	dbErr, ok := err.(Error)
	return ok && dbErr.ErrorCode == c
}

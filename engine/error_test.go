package engine

import (
	"errors"
	"testing"
)

// TestErrorCodeStringer ensures every error code has a name and unknown
// codes degrade gracefully.
func TestErrorCodeStringer(t *testing.T) {
	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrEnvOpen, "ErrEnvOpen"},
		{ErrEnvClosed, "ErrEnvClosed"},
		{ErrFileOpenFailed, "ErrFileOpenFailed"},
		{ErrFileNotFound, "ErrFileNotFound"},
		{ErrKeyNotFound, "ErrKeyNotFound"},
		{ErrKeyExists, "ErrKeyExists"},
		{ErrCorruption, "ErrCorruption"},
		{ErrTxConflict, "ErrTxConflict"},
		{ErrTxClosed, "ErrTxClosed"},
		{ErrInvalid, "ErrInvalid"},
		{ErrDriverSpecific, "ErrDriverSpecific"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}

	// Detect additional error codes that don't have an entry above.
	if len(tests)-1 != int(numErrorCodes) {
		t.Errorf("it appears an error code was added without adding "+
			"an associated stringer test: got %d, want %d",
			len(tests)-1, int(numErrorCodes))
	}

	for i, test := range tests {
		if got := test.in.String(); got != test.want {
			t.Errorf("String #%d: got %q, want %q", i, got,
				test.want)
		}
	}
}

// TestError ensures the error formats as expected with and without an
// underlying error.
func TestError(t *testing.T) {
	underlying := errors.New("disk full")
	tests := []struct {
		in   Error
		want string
	}{
		{MakeError(ErrEnvOpen, "env open failed", nil),
			"env open failed"},
		{MakeError(ErrDriverSpecific, "put failed", underlying),
			"put failed: disk full"},
	}

	for i, test := range tests {
		if got := test.in.Error(); got != test.want {
			t.Errorf("Error #%d: got %q, want %q", i, got,
				test.want)
		}
	}
}

// TestIsErrorCode ensures code matching handles non-Error values.
func TestIsErrorCode(t *testing.T) {
	err := MakeError(ErrKeyNotFound, "missing", nil)
	if !IsErrorCode(err, ErrKeyNotFound) {
		t.Error("expected ErrKeyNotFound to match")
	}
	if IsErrorCode(err, ErrKeyExists) {
		t.Error("ErrKeyExists should not match ErrKeyNotFound")
	}
	if IsErrorCode(errors.New("plain"), ErrKeyNotFound) {
		t.Error("plain errors should never match")
	}
	if IsErrorCode(nil, ErrKeyNotFound) {
		t.Error("nil should never match")
	}
}

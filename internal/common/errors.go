// Package common holds the error taxonomy shared by every SecretVault
// component. Callers match kinds with errors.Is and extract details with
// errors.As.
package common

import (
	"errors"
	"fmt"
)

var (
	// Validation rejections.
	ErrTooLarge  = errors.New("file too large")
	ErrWrongType = errors.New("unsupported media type")

	// Identity failures.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyInUse       = errors.New("account already in use")
	ErrWeakSecret         = errors.New("password too weak")
	ErrAuthUnknown        = errors.New("authentication failed")

	// Remote persistence failures.
	ErrUploadFailed        = errors.New("upload failed")
	ErrMetadataWriteFailed = errors.New("metadata write failed")
	ErrDeleteFailed        = errors.New("delete failed")

	// Repository-level errors.
	ErrNotFound  = errors.New("not found")
	ErrCorrupted = errors.New("local store corrupted")

	// Session lifecycle.
	ErrNoSession          = errors.New("no active session")
	ErrSessionActive      = errors.New("session already active")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ValidationError is returned by the validation gate for a rejected file.
// Reason is ErrTooLarge or ErrWrongType.
type ValidationError struct {
	Name        string
	Reason      error
	Size        int64
	Limit       int64
	ContentType string
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrTooLarge):
		return fmt.Sprintf("%s: %v (%d bytes, limit %d)", e.Name, e.Reason, e.Size, e.Limit)
	case errors.Is(e.Reason, ErrWrongType):
		return fmt.Sprintf("%s: %v %q", e.Name, e.Reason, e.ContentType)
	default:
		return fmt.Sprintf("%s: %v", e.Name, e.Reason)
	}
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// AuthError wraps an identity provider failure with its kind.
type AuthError struct {
	Kind error
	Err  error
}

func NewAuthError(kind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() []error { return compact(e.Kind, e.Err) }

// StorageError reports a failed persistence phase. Path is the object
// storage path involved, if any; after ErrMetadataWriteFailed it names the
// orphaned object.
type StorageError struct {
	Kind error
	Path string
	Err  error
}

func NewStorageError(kind error, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Path: path, Err: err}
}

func (e *StorageError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() []error { return compact(e.Kind, e.Err) }

func compact(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

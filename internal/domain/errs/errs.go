package errs

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. Callers match them with errors.Is.
var (
	ErrConnectivity = errors.New("store or upload service unreachable")
	ErrNotFound     = errors.New("record not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpload       = errors.New("upload failed")
)

// ValidationError reports a single invalid or missing field.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the user-facing message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Required builds the "field is required" validation error.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("Le champ %s est requis", field)}
}

// Invalid builds a validation error with a custom message.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UploadError reports a rejected or failed upload.
// Status is the HTTP status returned by the upload service, 0 when the request never completed.
type UploadError struct {
	Status  int
	Message string
	Err     error
}

// Error returns a description including the service status when known.
func (e *UploadError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("upload failed (status %d): %s", e.Status, msg)
	}
	return "upload failed: " + msg
}

// Is matches ErrUpload.
func (e *UploadError) Is(target error) bool {
	return target == ErrUpload
}

// Unwrap exposes the transport error, so ErrConnectivity also matches for network failures.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// Connectivity wraps a transport failure as ErrConnectivity while keeping the cause in the message.
func Connectivity(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrConnectivity, err)
}

// NotFound wraps ErrNotFound with the missing path.
func NotFound(path string) error {
	return fmt.Errorf("%s: %w", path, ErrNotFound)
}

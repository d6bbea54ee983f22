// Package domain defines the error taxonomy shared by the webhost core.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a webhost error with a structured error code.
type DomainError struct {
	Code        string   // Error code (e.g., "WH-CFG-1003")
	Message     string   // Human-readable message
	Details     string   // Optional additional details (file, field, address)
	Diagnostics []string // Optional list of parser or validator findings
	Cause       error    // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if len(e.Diagnostics) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Diagnostics, "; "))
		b.WriteString(")")
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := e.clone()
	c.Details = details
	return c
}

// WithDiagnostics returns a copy of the error carrying the given diagnostics.
func (e *DomainError) WithDiagnostics(diags []string) *DomainError {
	c := e.clone()
	c.Diagnostics = append([]string(nil), diags...)
	return c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := e.clone()
	c.Cause = cause
	return c
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

func (e *DomainError) clone() *DomainError {
	return &DomainError{
		Code:        e.Code,
		Message:     e.Message,
		Details:     e.Details,
		Diagnostics: e.Diagnostics,
		Cause:       e.Cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetDiagnostics extracts the diagnostics list from an error if it's a DomainError.
func GetDiagnostics(err error) []string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Diagnostics
	}
	return nil
}

// ============================================================================
// Settings Errors (CFG)
// ============================================================================

var (
	// ErrSettingsRead indicates the settings document exists but cannot be read.
	ErrSettingsRead = NewDomainError("WH-CFG-1001", "settings file unreadable")

	// ErrSettingsWrite indicates the settings document cannot be written.
	ErrSettingsWrite = NewDomainError("WH-CFG-1002", "settings file unwritable")

	// ErrSettingsParse indicates the settings document has syntax errors.
	ErrSettingsParse = NewDomainError("WH-CFG-1003", "syntax errors were found in the settings file")

	// ErrSettingsModel indicates the settings document has type or value errors.
	ErrSettingsModel = NewDomainError("WH-CFG-1004", "errors were found in the settings file")
)

// ============================================================================
// Listener Errors (LSN)
// ============================================================================

var (
	// ErrNoServerPorts indicates both the HTTP and HTTPS ports are disabled.
	ErrNoServerPorts = NewDomainError("WH-LSN-1001", "no server ports defined")

	// ErrListenerBind indicates a planned listener could not be bound.
	ErrListenerBind = NewDomainError("WH-LSN-1002", "listener bind failed")
)

// ============================================================================
// Certificate Errors (TLS)
// ============================================================================

var (
	// ErrCertificateLoad indicates certificate or key material could not be loaded.
	ErrCertificateLoad = NewDomainError("WH-TLS-1001", "ssl certificate could not be loaded")

	// ErrCertificateFormat indicates the certificate file extension is not supported.
	ErrCertificateFormat = NewDomainError("WH-TLS-1002", "ssl certificate format not supported")

	// ErrCertificatePassword indicates the certificate password was rejected.
	ErrCertificatePassword = NewDomainError("WH-TLS-1003", "ssl certificate password rejected")
)

// ============================================================================
// Admission Errors (ADM)
// ============================================================================

var (
	// ErrHostNotAllowed indicates the Host header is not in the allowlist.
	ErrHostNotAllowed = NewDomainError("WH-ADM-4000", "host not allowed")

	// ErrRateLimited indicates the partition's window and queue are exhausted.
	ErrRateLimited = NewDomainError("WH-ADM-4290", "too many requests")
)

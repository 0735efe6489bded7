package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrFetchFailed      = errors.New("page fetch failed")            // Wraps the transport or status error of a single fetch
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")      // Wraps original status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")      // Wraps original status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")   // Wraps original status
	ErrNotHTML          = errors.New("response is not HTML")         // Content-Type outside text/html
	ErrExclusionBlocked = errors.New("crawl blocked by robots.txt") // Seed disallowed and bypass disabled
	ErrScopeViolation   = errors.New("URL out of scope (domain/path/extension)")
	ErrFormatInvalid    = errors.New("format invalid")
	ErrDisposable       = errors.New("disposable domain")
	ErrNoMXRecord       = errors.New("no MX record")
	ErrTaskPanic        = errors.New("task panicked")
	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON, YAML)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrSink             = errors.New("sink publish error")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf annotates err with a formatted prefix, keeping it unwrappable.
// Returns nil when err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging and result reasons.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrExclusionBlocked):
		return "Policy_Robots"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrNotHTML):
		return "Content_NotHTML"
	case errors.Is(err, ErrFormatInvalid):
		return "Verify_Format"
	case errors.Is(err, ErrDisposable):
		return "Verify_Disposable"
	case errors.Is(err, ErrNoMXRecord):
		return "Verify_NoMX"
	case errors.Is(err, ErrTaskPanic):
		return "Internal_Panic"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		if strings.Contains(errMsg, "YAML") {
			return "Content_ParsingYAML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSink):
		return "Sink_Publish"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return "DNS_NotFound"
		}
		if dnsErr.IsTimeout {
			return "DNS_Timeout"
		}
		return "DNS_Other"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}

// Package apperr holds the error taxonomy shared by providers, the pipeline and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Stable machine-readable codes returned to API clients.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeGeocoding        = "GEOCODING_FAILED"
	CodeLocationNotFound = "LOCATION_NOT_FOUND"
	CodeProvider         = "PROVIDER_UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeCache            = "CACHE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// Upstream service names used in errors and metrics.
const (
	ServiceGeocoding = "geocoding"
	ServiceDiscovery = "discovery"
	ServicePricing   = "pricing"
)

// Geocoding statuses as reported by the upstream geocoder.
const (
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusOverLimit      = "OVER_QUERY_LIMIT"
	StatusDenied         = "REQUEST_DENIED"
	StatusUnknown        = "UNKNOWN_ERROR"
)

// ErrValidation is matched by every input validation failure.
var ErrValidation = errors.New("validation failed")

// Coded is implemented by errors that carry a client-facing code and HTTP status.
type Coded interface {
	error
	Code() string
	HTTPStatus() int
}

// ValidationError reports malformed caller input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Code() string     { return CodeValidation }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest }
func (e *ValidationError) Is(t error) bool  { return t == ErrValidation }
func (e *ValidationError) Provider() string { return "" }

// GeocodingError is returned when a text or coordinate lookup cannot be resolved.
type GeocodingError struct {
	Query  string
	Status string
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("geocode %q: %s", e.Query, e.Status)
}

func (e *GeocodingError) Code() string {
	switch e.Status {
	case StatusZeroResults:
		return CodeLocationNotFound
	case StatusInvalidRequest:
		return CodeValidation
	default:
		return CodeGeocoding
	}
}

func (e *GeocodingError) HTTPStatus() int {
	switch e.Status {
	case StatusZeroResults:
		return http.StatusNotFound
	case StatusInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (e *GeocodingError) Is(t error) bool {
	return t == ErrValidation && e.Status == StatusInvalidRequest
}

func (e *GeocodingError) Provider() string { return ServiceGeocoding }

// ProviderError wraps a failed upstream call. Status is zero for transport failures.
type ProviderError struct {
	Service string
	Status  int
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: upstream status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %v", e.Service, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error    { return e.Err }
func (e *ProviderError) Code() string     { return CodeProvider }
func (e *ProviderError) HTTPStatus() int  { return http.StatusBadGateway }
func (e *ProviderError) Provider() string { return e.Service }

// RateLimitError signals an upstream 429 or quota rejection.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited", e.Service)
}

func (e *RateLimitError) Code() string     { return CodeRateLimited }
func (e *RateLimitError) HTTPStatus() int  { return http.StatusServiceUnavailable }
func (e *RateLimitError) Provider() string { return e.Service }

// CacheError is produced by cache backends. The cache wrapper logs and swallows it.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error    { return e.Err }
func (e *CacheError) Code() string     { return CodeCache }
func (e *CacheError) HTTPStatus() int  { return http.StatusServiceUnavailable }
func (e *CacheError) Provider() string { return "cache" }

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Retryable decides whether a failed attempt may be repeated.
// Rate limits, 5xx and transport failures are retryable; any other 4xx is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsRateLimited(err) {
		return true
	}
	if errors.Is(err, ErrValidation) {
		return false
	}

	var geo *GeocodingError
	if errors.As(err, &geo) {
		switch geo.Status {
		case StatusInvalidRequest, StatusZeroResults, StatusDenied:
			return false
		}
		return true
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Status >= 400 && pe.Status < 500 && pe.Status != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

// Describe extracts the client-facing code, HTTP status and provider name from err.
func Describe(err error) (code string, status int, provider string) {
	var coded Coded
	if !errors.As(err, &coded) {
		if errors.Is(err, context.DeadlineExceeded) {
			return CodeProvider, http.StatusGatewayTimeout, ""
		}
		return CodeInternal, http.StatusInternalServerError, ""
	}

	if p, ok := coded.(interface{ Provider() string }); ok {
		provider = p.Provider()
	}
	return coded.Code(), coded.HTTPStatus(), provider
}

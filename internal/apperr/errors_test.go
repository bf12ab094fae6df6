package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/hotel-radar/internal/apperr"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: &apperr.RateLimitError{Service: "pricing"}, want: true},
		{name: "wrapped rate limit", err: fmt.Errorf("call: %w", &apperr.RateLimitError{Service: "pricing"}), want: true},
		{name: "server error", err: &apperr.ProviderError{Service: "discovery", Status: 503}, want: true},
		{name: "transport", err: &apperr.ProviderError{Service: "discovery", Err: errors.New("connection reset")}, want: true},
		{name: "bad request", err: &apperr.ProviderError{Service: "discovery", Status: 400}, want: false},
		{name: "forbidden", err: &apperr.ProviderError{Service: "geocoding", Status: 403}, want: false},
		{name: "validation", err: &apperr.ValidationError{Field: "guests", Message: "out of range"}, want: false},
		{name: "geocode invalid", err: &apperr.GeocodingError{Query: "a", Status: apperr.StatusInvalidRequest}, want: false},
		{name: "geocode unknown", err: &apperr.GeocodingError{Query: "paris", Status: apperr.StatusUnknown}, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apperr.Retryable(tt.err))
		})
	}
}

func TestDescribe(t *testing.T) {
	code, status, provider := apperr.Describe(fmt.Errorf("search: %w", &apperr.ProviderError{Service: "discovery", Status: 500}))
	require.Equal(t, apperr.CodeProvider, code)
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "discovery", provider)

	code, status, _ = apperr.Describe(&apperr.GeocodingError{Query: "atlantis", Status: apperr.StatusZeroResults})
	require.Equal(t, apperr.CodeLocationNotFound, code)
	require.Equal(t, http.StatusNotFound, status)

	code, status, provider = apperr.Describe(errors.New("boom"))
	require.Equal(t, apperr.CodeInternal, code)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Empty(t, provider)
}

func TestGeocodingInvalidRequestIsValidation(t *testing.T) {
	err := &apperr.GeocodingError{Query: "x", Status: apperr.StatusInvalidRequest}
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.NotErrorIs(t, &apperr.GeocodingError{Status: apperr.StatusZeroResults}, apperr.ErrValidation)
}

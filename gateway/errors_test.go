package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsAreExclusive(t *testing.T) {
	err := NewInvalidToken("kapitalbank", "token expired")

	assert.True(t, IsKind(err, KindInvalidToken))
	assert.False(t, IsKind(err, KindInvalidRequest))
	assert.False(t, IsKind(err, KindInvalidOrderState))
	assert.False(t, IsKind(err, KindOrderNotFound))
}

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NewInvalidRequest("d", "x"), http.StatusBadRequest},
		{NewInvalidToken("d", "x"), http.StatusBadRequest},
		{NewInvalidOrderState("d", "x"), http.StatusBadRequest},
		{NewOrderNotFound("d"), http.StatusNotFound},
		{NewGatewayError("d", 503, "Down", "x"), http.StatusBadGateway},
		{NewTransportFailure("d", errors.New("timeout")), http.StatusBadGateway},
		{NewConfigurationError("d", "x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), string(tt.err.Kind))
	}
}

func TestTransportFailureUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewTransportFailure("kapitalbank", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("attach token: %w", NewOrderNotFound("kapitalbank"))

	assert.True(t, IsKind(err, KindOrderNotFound))

	ge, ok := AsError(err)
	assert.True(t, ok)
	assert.Equal(t, "kapitalbank", ge.Driver)
}

func TestErrorMessageOmitsEmptyParts(t *testing.T) {
	err := NewOrderNotFound("kapitalbank")
	assert.NotContains(t, err.Error(), "http=")
	assert.NotContains(t, err.Error(), "code=")
}

package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the expected failure classes of a gateway interaction.
// Anything outside this set is an unexpected internal fault and travels as a
// plain wrapped error instead.
type Kind string

const (
	KindInvalidRequest    Kind = "InvalidRequest"
	KindInvalidToken      Kind = "InvalidToken"
	KindInvalidOrderState Kind = "InvalidOrderState"
	KindOrderNotFound     Kind = "OrderNotFound"
	KindGatewayError      Kind = "GatewayError"
	KindTransportFailure  Kind = "TransportFailure"
	KindConfiguration     Kind = "ConfigurationError"
)

// Error is the typed error raised for every expected gateway-side or
// configuration failure. Description never contains credentials.
type Error struct {
	Kind        Kind
	Driver      string
	HTTPCode    int
	GatewayCode string
	Description string
	cause       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Kind, e.Driver)
	if e.HTTPCode != 0 {
		msg += fmt.Sprintf(" http=%d", e.HTTPCode)
	}
	if e.GatewayCode != "" {
		msg += fmt.Sprintf(" code=%s", e.GatewayCode)
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error kind to a caller-facing HTTP status code
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest, KindInvalidToken, KindInvalidOrderState:
		return http.StatusBadRequest
	case KindOrderNotFound:
		return http.StatusNotFound
	case KindGatewayError, KindTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidRequest reports a request the gateway rejected as malformed
func NewInvalidRequest(driver, description string) *Error {
	return &Error{Kind: KindInvalidRequest, Driver: driver, HTTPCode: http.StatusBadRequest, GatewayCode: "InvalidRequest", Description: description}
}

// NewInvalidToken reports a set-source-token rejection for a bad stored token
func NewInvalidToken(driver, description string) *Error {
	return &Error{Kind: KindInvalidToken, Driver: driver, HTTPCode: http.StatusBadRequest, GatewayCode: "InvalidToken", Description: description}
}

// NewInvalidOrderState reports a set-source-token rejection because the order
// is not in a state that accepts a token
func NewInvalidOrderState(driver, description string) *Error {
	return &Error{Kind: KindInvalidOrderState, Driver: driver, HTTPCode: http.StatusBadRequest, GatewayCode: "InvalidOrderState", Description: description}
}

// NewOrderNotFound reports an order unknown to the gateway or to the local store
func NewOrderNotFound(driver string) *Error {
	return &Error{Kind: KindOrderNotFound, Driver: driver, Description: "order not found"}
}

// NewGatewayError reports any other non-success gateway response
func NewGatewayError(driver string, httpCode int, gatewayCode, description string) *Error {
	return &Error{Kind: KindGatewayError, Driver: driver, HTTPCode: httpCode, GatewayCode: gatewayCode, Description: description}
}

// NewTransportFailure reports an outbound call that failed before any gateway
// response was obtained (DNS, TLS, timeout). No gateway state was changed.
func NewTransportFailure(driver string, cause error) *Error {
	description := ""
	if cause != nil {
		description = cause.Error()
	}
	return &Error{Kind: KindTransportFailure, Driver: driver, Description: description, cause: cause}
}

// NewConfigurationError reports an unknown driver or a missing environment
// configuration block. Fatal for the call; indicates a deployment defect.
func NewConfigurationError(driver, description string) *Error {
	return &Error{Kind: KindConfiguration, Driver: driver, Description: description}
}

// IsKind reports whether err is a gateway error of the given kind
func IsKind(err error, kind Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == kind
}

// AsError extracts the typed gateway error from err, if any
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

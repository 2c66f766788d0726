// Package apperr implements the closed error taxonomy of §7: every business
// error surfaced by the core is a value of this package's Error type, never
// a thrown/panicked exception. Handlers translate an *Error directly into
// the {"error":{...}} HTTP envelope; anything else is logged and surfaced
// as INTERNAL_ERROR.
package apperr

import "net/http"

// Code is one of the closed SCREAMING_SNAKE error codes from §7.
type Code string

const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeConflict           Code = "CONFLICT"
	CodeAlreadySettled     Code = "ALREADY_SETTLED"
	CodeAlreadyInLobby     Code = "ALREADY_IN_LOBBY"
	CodeDisplayNameTaken   Code = "DISPLAY_NAME_TAKEN"
	CodeDuplicateExecution Code = "DUPLICATE_EXECUTION"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeLobbyFull          Code = "LOBBY_FULL"
	CodeLobbyNotReady      Code = "LOBBY_NOT_READY"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeGameNotActive      Code = "GAME_NOT_ACTIVE"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeValidationError    Code = "VALIDATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeInvalidToken:        http.StatusUnauthorized,
	CodeInvalidSignature:    http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeInsufficientFunds:   http.StatusPaymentRequired,
	CodeConflict:            http.StatusConflict,
	CodeAlreadySettled:      http.StatusConflict,
	CodeAlreadyInLobby:      http.StatusConflict,
	CodeDisplayNameTaken:    http.StatusConflict,
	CodeDuplicateExecution:  http.StatusConflict,
	CodeConcurrencyConflict: http.StatusConflict,
	CodeLobbyFull:           http.StatusUnprocessableEntity,
	CodeLobbyNotReady:       http.StatusUnprocessableEntity,
	CodeSessionExpired:      http.StatusUnprocessableEntity,
	CodeGameNotActive:       http.StatusUnprocessableEntity,
	CodeInvalidState:        http.StatusUnprocessableEntity,
	CodeValidationError:     http.StatusBadRequest,
	CodeInternalError:       http.StatusInternalServerError,
}

// Error is the single error type every core operation returns for business
// and validation failures. It is a value, never panicked.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code associated with e's Code.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds an *Error of the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails attaches field-level or contextual detail and returns e for
// chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is supports errors.Is comparison against a sentinel built with the same
// Code (message/details are not compared).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Internal wraps an infrastructure failure (database, identity provider)
// as an opaque INTERNAL_ERROR carrying a correlation id, per §7's
// propagation policy: the underlying error is logged by the caller, never
// echoed to the client.
func Internal(correlationID string) *Error {
	return &Error{
		Code:    CodeInternalError,
		Message: "an internal error occurred",
		Details: map[string]any{"correlationId": correlationID},
	}
}

func NotFound(resource string) *Error {
	return New(CodeNotFound, resource+" not found").WithDetails(map[string]any{"resource": resource})
}

func Validation(message string, fields map[string]any) *Error {
	return New(CodeValidationError, message).WithDetails(fields)
}

func InsufficientFunds(required, available string) *Error {
	return New(CodeInsufficientFunds, "insufficient available balance").WithDetails(map[string]any{
		"required":  required,
		"available": available,
	})
}

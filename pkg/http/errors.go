package http

import (
	"fmt"
	"net/http"
)

// Error codes shared by the API handlers.
const (
	CodeInsufficientData = "ERR_INSUFFICIENT_DATA"
	CodeDegenerateData   = "ERR_DEGENERATE_TRAINING_DATA"
	CodeModelNotTrained  = "ERR_MODEL_NOT_TRAINED"
	CodeInvalidRisk      = "ERR_INVALID_RISK"
	CodeInvalidSetting   = "ERR_INVALID_SETTING"
	CodeInvalidSymbol    = "ERR_INVALID_SYMBOL"
	CodeRateLimited      = "ERR_RATE_LIMITED"
	CodeUpstream         = "ERR_UPSTREAM"
	CodeUnavailable      = "ERR_UNAVAILABLE"
	CodeInternal         = "ERR_INTERNAL"
)

// AppError is an error that knows its HTTP status. Status and the wrapped
// cause never reach the client.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// WithParam attaches a detail for the client, e.g. the upstream status.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithField names the request field the error is about.
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithError keeps the cause for logging.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError rejects input that passed validation tags but not domain rules.
func BadRequestError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusBadRequest)
}

// UnprocessableError is used when the input is valid but the data cannot
// support the computation.
func UnprocessableError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusUnprocessableEntity)
}

func ConflictError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusConflict)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

func BadGatewayError(message string) *AppError {
	return NewAppError(CodeUpstream, "", message, http.StatusBadGateway)
}

func UnavailableError(message string) *AppError {
	return NewAppError(CodeUnavailable, "", message, http.StatusServiceUnavailable)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}

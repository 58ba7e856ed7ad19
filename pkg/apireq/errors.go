package apireq

import (
	"errors"
	"fmt"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// Error kinds. Every *HTTPError matches exactly one of them with errors.Is.
var (
	ErrHTTP             = errors.New("http error")
	ErrRequest          = errors.New("request error")
	ErrAPIClosed        = errors.New("api closed")
	ErrResourceNotFound = errors.New("resource not found")
	ErrParameterIllegal = errors.New("parameter illegal")
	ErrAuth             = errors.New("auth error")
)

// ErrMalformedPayload is returned when a response decodes as JSON but does not
// have the expected shape.
var ErrMalformedPayload = errors.New("malformed payload")

// HTTPError is a failed API call.
type HTTPError struct {
	// Kind is the error kind selected from the upstream result code.
	Kind error
	// Message is the upstream "message", or the raw body when there is none.
	Message string
	// Code is the upstream result code, 0 when absent.
	Code int
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	// Response is the raw response body.
	Response []byte
	// Err is the transport error, if any.
	Err error
}

// NewHTTPError creates an error of the kind matching code.
func NewHTTPError(code int, message string, statusCode int, body []byte) *HTTPError {
	return &HTTPError{
		Kind:       KindForCode(code),
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Response:   body,
	}
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	kind := ErrHTTP
	if e.Kind != nil {
		kind = e.Kind
	}

	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: %s (code: %d, status: %d)", kind, e.Message, e.Code, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status: %d)", kind, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", kind, e.Message)
	}
}

// Unwrap exposes both the kind and the transport error to errors.Is/As.
func (e *HTTPError) Unwrap() []error {
	errs := make([]error, 0, 2) //nolint:mnd // kind plus cause

	if e.Kind != nil {
		errs = append(errs, e.Kind)
	} else {
		errs = append(errs, ErrHTTP)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// KindForCode maps an upstream result code to its error kind.
func KindForCode(code int) error {
	switch code {
	case constants.ResultCodeRequestError:
		return ErrRequest
	case constants.ResultCodeAPIClosed:
		return ErrAPIClosed
	case constants.ResultCodeResourceNotFound:
		return ErrResourceNotFound
	case constants.ResultCodeParameterIllegal:
		return ErrParameterIllegal
	case constants.ResultCodeAuthError:
		return ErrAuth
	default:
		return ErrHTTP
	}
}

// IsNotFound checks if the error is a resource-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// IsAuth checks if the error is an authentication error.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsAPIClosed checks if the error reports a closed API.
func IsAPIClosed(err error) bool {
	return errors.Is(err, ErrAPIClosed)
}

// IsParameterIllegal checks if the error reports illegal parameters.
func IsParameterIllegal(err error) bool {
	return errors.Is(err, ErrParameterIllegal)
}

// IsRequestError checks if the error is a generic request error.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrRequest)
}

// ResultCode returns the upstream result code of err, or 0.
func ResultCode(err error) int {
	httpErr := &HTTPError{}
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return 0
}

// StatusCode returns the HTTP status of err, or 0.
func StatusCode(err error) int {
	httpErr := &HTTPError{}
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}

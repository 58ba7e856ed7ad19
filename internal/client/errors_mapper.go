package client

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/fivetwenty-io/apirequests/internal/http"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// failureBody is the upstream error payload.
type failureBody struct {
	ResultCode json.Number     `json:"result_code"`
	Message    json.RawMessage `json:"message"`
}

// mapError converts a transport failure into an *apireq.HTTPError.
func mapError(resp *apireq.Response, err error) error {
	var statusErr *http.StatusError
	if !errors.As(err, &statusErr) || resp == nil {
		return &apireq.HTTPError{
			Kind:    apireq.ErrHTTP,
			Message: err.Error(),
			Err:     err,
		}
	}

	return mapHTTPError(resp)
}

// mapHTTPError maps a failed response body onto the error taxonomy by its
// result_code. The message falls back to the raw body text.
func mapHTTPError(resp *apireq.Response) error {
	raw := strings.TrimSpace(string(resp.Body))
	message := raw
	code := 0

	var body failureBody

	err := json.Unmarshal(resp.Body, &body)
	if err == nil {
		code = resultCode(body.ResultCode)
		if text, ok := messageText(body.Message); ok {
			message = text
		}
	}

	return apireq.NewHTTPError(code, message, resp.StatusCode, resp.Body)
}

func resultCode(number json.Number) int {
	if number == "" {
		return 0
	}

	code, err := number.Int64()
	if err != nil {
		return 0
	}

	return int(code)
}

func messageText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var text string

	err := json.Unmarshal(raw, &text)
	if err != nil {
		return string(raw), true
	}

	return text, true
}

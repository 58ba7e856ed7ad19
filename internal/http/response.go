package http

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// StatusError is returned by Client.Do for non-2xx responses.
type StatusError struct {
	Response *apireq.Response
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Response.StatusCode)
}

// ParseJSON decodes a response body keeping object key order. ok is false
// when the body is empty.
func ParseJSON(body []byte) (any, bool, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false, nil
	}

	value, err := apireq.DecodeJSON(body)
	if err != nil {
		return nil, true, err
	}

	return value, true, nil
}

func sortedKeys(values map[string][]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

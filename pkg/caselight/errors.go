package caselight

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("caselight: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 API error.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(body, apiErr) != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

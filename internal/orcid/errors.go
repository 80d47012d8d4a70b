package orcid

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx reply from the Member API. UserMessage carries the
// registry's "user-message" field when present, suitable for end users.
type APIError struct {
	StatusCode  int
	UserMessage string
	Body        string
}

func (e *APIError) Error() string {
	if e.UserMessage != "" {
		return fmt.Sprintf("ORCID API error %d: %s", e.StatusCode, e.UserMessage)
	}
	return fmt.Sprintf("ORCID API error %d", e.StatusCode)
}

// IsUnauthorized reports a 401 reply, meaning the access token was revoked.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports a 404 reply, meaning the remote entry no longer exists.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func apiErrorFrom(resp *resty.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}
	var body struct {
		UserMessage string `json:"user-message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.UserMessage = body.UserMessage
	}
	return apiErr
}

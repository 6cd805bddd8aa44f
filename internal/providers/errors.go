package providers

import (
	"errors"
	"fmt"
)

// ErrCredentialMissing is returned when no API key is found in the
// environment.
var ErrCredentialMissing = errors.New("GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set")

// APIError is a non-success HTTP status from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

type authError struct {
	status  int
	message string
}

func (e *authError) Error() string {
	return fmt.Sprintf("authentication error (status %d): %s", e.status, e.message)
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// streamError is an error object delivered inside the event stream.
type streamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *streamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("API error (%s %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

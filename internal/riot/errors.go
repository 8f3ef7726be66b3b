package riot

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for upstream calls and documents.
//
// ErrRateLimited and ErrTransportFault are recovered inside Client.Fetch and
// never returned to callers; they exist so retries can be logged and counted.
var (
	ErrRateLimited       = errors.New("rate limited")
	ErrTransportFault    = errors.New("transport fault")
	ErrHardFailure       = errors.New("hard failure")
	ErrMalformedDocument = errors.New("malformed document")
	ErrConfiguration     = errors.New("configuration error")
	ErrKeyRejected       = errors.New("API key rejected")
)

// StatusError is returned for any non-success, non-429 response.
// It matches ErrHardFailure under errors.Is.
type StatusError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *StatusError) Error() string {
	switch e.StatusCode {
	case http.StatusForbidden:
		return "API returned 403 Forbidden - check if your API key is valid"
	case http.StatusNotFound:
		return fmt.Sprintf("API returned 404 Not Found - player/match may not exist (%s)", e.URL)
	}
	if e.Body == "" {
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrHardFailure
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsAPIKeyError reports whether err is a 401/403 from the upstream.
func IsAPIKeyError(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

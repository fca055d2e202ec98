package asana

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProjectNotFound indicates a target project name did not resolve.
	ErrProjectNotFound = errors.New("asana project not found")
	// ErrSectionNotFound indicates a target section name did not resolve.
	ErrSectionNotFound = errors.New("asana section not found")
)

// APIError is a non-2xx response from the Asana API.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("asana API error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("asana API error (%d): %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// IsNotFound reports whether err is an Asana 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

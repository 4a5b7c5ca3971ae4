package llm

import "fmt"

// StatusError is returned when an upstream answers with a non-success
// HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: %d %s", e.Provider, e.StatusCode, e.Body)
}

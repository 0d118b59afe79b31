package api

import "fmt"

// ServerError is a non-success HTTP response with a structured body. The
// server-provided message is surfaced verbatim to the user and the request is
// not retried automatically.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// ProtocolError is a malformed response or one missing expected fields. It is
// fatal to the current task; the user retries by recreating the task.
type ProtocolError struct {
	Endpoint string
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %s", e.Endpoint, e.Reason)
}

package response

import (
	"fmt"

	"mentorgate/lib/clock"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Reason        string      `json:"reason,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}

func Errorf(format string, args ...any) Response {
	return Error(fmt.Sprintf(format, args...))
}

// Rejected is an error response carrying a machine-readable reason, e.g. "code_already_used".
func Rejected(reason, message string) Response {
	r := Error(message)
	r.Reason = reason
	return r
}

// Unavailable reports a dependency that was not wired at startup.
func Unavailable(service string) Response {
	return Errorf("%s not available", service)
}

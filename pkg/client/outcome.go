package client

import (
	"time"

	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
)

// Outcome is the result of fetching one descriptor. Exactly one of Body
// (success) or Err (failure) is meaningful.
type Outcome struct {
	Descriptor params.Descriptor

	// Body is the verbatim response text of a 2xx response.
	Body []byte

	// Err is an *APIError or *TransportError on failure, nil on success.
	Err error

	// Duration is the wall time spent on the request.
	Duration time.Duration
}

// Success builds a successful outcome.
func Success(d params.Descriptor, body []byte, elapsed time.Duration) Outcome {
	return Outcome{Descriptor: d, Body: body, Duration: elapsed}
}

// Failure builds a failed outcome.
func Failure(d params.Descriptor, err error, elapsed time.Duration) Outcome {
	return Outcome{Descriptor: d, Err: err, Duration: elapsed}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason is the human readable failure reason, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Class is the failure classification, empty on success.
func (o Outcome) Class() ErrorClass {
	if o.Err == nil {
		return ""
	}
	return classOf(o.Err)
}

package client

import (
	"errors"
	"fmt"
)

// PermanentError is a non-retryable provider answer (4xx other than 429, or a
// success status carrying a rejection body).
type PermanentError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: provider rejected request: status=%d body=%q", e.Op, e.StatusCode, e.Body)
}

// TransientError is returned when every attempt against one endpoint hit a
// retryable status or a network failure.
type TransientError struct {
	Op         string
	Endpoint   string
	Attempts   int
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %d attempts against %s failed: %v", e.Op, e.Attempts, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: %d attempts against %s failed: status=%d body=%q", e.Op, e.Attempts, e.Endpoint, e.StatusCode, e.Body)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// EndpointsError reports that every configured endpoint failed. Endpoint and Err
// describe the last one tried.
type EndpointsError struct {
	Tried    int
	Endpoint string
	Err      error
}

func (e *EndpointsError) Error() string {
	return fmt.Sprintf("all %d endpoints failed, last %s: %v", e.Tried, e.Endpoint, e.Err)
}

func (e *EndpointsError) Unwrap() error {
	return e.Err
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

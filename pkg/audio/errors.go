package audio

import (
	"fmt"
)

// ConfigurationError reports an invalid rate, channel count or option
// combination detected before any samples were processed.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// InputShapeError reports a frame of the wrong length or layout.
type InputShapeError struct {
	Reason string
}

func (e InputShapeError) Error() string {
	return fmt.Sprintf("input shape error: %s", e.Reason)
}

// ResourceError reports a failure to acquire or initialize an underlying
// engine or detector instance. Such failures are fatal to the instance
// being constructed and are not retried with the same configuration.
type ResourceError struct {
	Op  string
	Err error
}

func (e ResourceError) Error() string {
	return fmt.Sprintf("unable to %s: %v", e.Op, e.Err)
}

func (e ResourceError) Unwrap() error {
	return e.Err
}

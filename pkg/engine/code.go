package engine

import (
	"fmt"
)

// Code is an engine status code. Zero means success, everything else is a
// failure (including the warning-class codes: the orchestration layer never
// swallows them).
type Code int

const (
	CodeNoError                   Code = 0
	CodeUnspecifiedError          Code = -1
	CodeCreationFailed            Code = -2
	CodeUnsupportedComponent      Code = -3
	CodeUnsupportedFunction       Code = -4
	CodeNullPointer               Code = -5
	CodeBadParameter              Code = -6
	CodeBadSampleRate             Code = -7
	CodeBadDataLength             Code = -8
	CodeBadNumberChannels         Code = -9
	CodeFile                      Code = -10
	CodeStreamParameterNotSet     Code = -11
	CodeNotEnabled                Code = -12
	CodeBadStreamParameterWarning Code = -13
)

func (c Code) String() string {
	switch c {
	case CodeNoError:
		return "no_error"
	case CodeUnspecifiedError:
		return "unspecified_error"
	case CodeCreationFailed:
		return "creation_failed"
	case CodeUnsupportedComponent:
		return "unsupported_component"
	case CodeUnsupportedFunction:
		return "unsupported_function"
	case CodeNullPointer:
		return "null_pointer"
	case CodeBadParameter:
		return "bad_parameter"
	case CodeBadSampleRate:
		return "bad_sample_rate"
	case CodeBadDataLength:
		return "bad_data_length"
	case CodeBadNumberChannels:
		return "bad_number_channels"
	case CodeFile:
		return "file_error"
	case CodeStreamParameterNotSet:
		return "stream_parameter_not_set"
	case CodeNotEnabled:
		return "not_enabled"
	case CodeBadStreamParameterWarning:
		return "bad_stream_parameter_warning"
	default:
		return fmt.Sprintf("unknown_code_%d", int(c))
	}
}

// Err returns nil for CodeNoError and an *Error wrapping the code otherwise.
func (c Code) Err() error {
	if c == CodeNoError {
		return nil
	}
	return &Error{Code: c}
}

// Error is the opaque passthrough of an engine failure code. The code is
// not reinterpreted; retrying is caller policy.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine error: %s (%d)", e.Code, int(e.Code))
}

package domain

import "errors"

// Error kinds surfaced to callers. Wrap them with fmt.Errorf("...: %w", ErrX)
// and match with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrTransportFailure   = errors.New("transport failure")
	ErrUnsupported        = errors.New("unsupported")
)

// Error codes used on the wire.
const (
	CodeInvalidInput       = "invalid_input"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodePreconditionFailed = "precondition_failed"
	CodeTransportFailure   = "transport_failure"
	CodeUnsupported        = "unsupported"
	CodeInternal           = "internal"
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrInvalidInput, CodeInvalidInput},
	{ErrNotFound, CodeNotFound},
	{ErrConflict, CodeConflict},
	{ErrPreconditionFailed, CodePreconditionFailed},
	{ErrTransportFailure, CodeTransportFailure},
	{ErrUnsupported, CodeUnsupported},
}

// KindOf returns the wire code for err, or CodeInternal when err carries no known kind.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeInternal
}

// ErrorForCode returns the sentinel matching a wire code, or nil for unknown codes.
func ErrorForCode(code string) error {
	for _, k := range kinds {
		if k.code == code {
			return k.err
		}
	}
	return nil
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

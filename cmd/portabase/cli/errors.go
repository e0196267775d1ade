package cli

// SilentError wraps an error whose message the command already printed.
// main exits non-zero without printing it again.
type SilentError struct {
	err error
}

func NewSilentError(err error) *SilentError {
	return &SilentError{err: err}
}

func (e *SilentError) Error() string {
	return e.err.Error()
}

func (e *SilentError) Unwrap() error {
	return e.err
}

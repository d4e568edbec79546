package cli

import "fmt"

// ExitError lets a command pick the process exit code. Security blocks
// exit 2, operation errors exit 1; per-path diagnostics are printed
// where they happen, so the message here is often empty.
type ExitError struct {
	code    int
	message string
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{code: code, message: message}
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *ExitError) Code() int {
	if e == nil {
		return 1
	}
	return e.code
}

func (e *ExitError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

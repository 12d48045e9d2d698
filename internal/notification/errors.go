package notification

import "errors"

// SendError marks a delivery failure with its retry classification.
type SendError struct {
	err       error
	permanent bool
}

func (e *SendError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Permanent wraps a failure that should be dead-lettered without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &SendError{err: err, permanent: true}
}

// IsPermanent reports whether err is a non-retryable send failure.
func IsPermanent(err error) bool {
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		return false
	}
	return sendErr.permanent
}

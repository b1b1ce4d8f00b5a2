package api

// UnauthorizedError marks a failure that should surface as HTTP 401.
type UnauthorizedError struct {
	Message string
	Err     error
}

func (e *UnauthorizedError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return "unauthorized"
}

func (e *UnauthorizedError) Unwrap() error { return e.Err }

// Unauthorized returns an UnauthorizedError with msg.
func Unauthorized(msg string) error {
	return &UnauthorizedError{Message: msg}
}

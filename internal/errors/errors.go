package errors

// Default error is an internal service error at handler level.
// Errors that map to a different status code use ErrorWithStatusCode.
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

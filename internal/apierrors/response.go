package apierrors

// APIError represents the JSON error structure handed to the calling layer
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// New creates an APIError with the registered default message
func New(code string) APIError {
	return APIError{
		Code:    code,
		Message: Registry.Message(code),
		Status:  Registry.HTTPStatus(code),
	}
}

// NewWithMessage creates an APIError with a custom message
func NewWithMessage(code, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
		Status:  Registry.HTTPStatus(code),
	}
}

// FromError converts any engine error into an APIError. Business errors keep
// their detailed message; infrastructure errors get the registered default so
// internals do not leak to users.
func FromError(err error) APIError {
	if err == nil {
		return APIError{}
	}
	code := CodeOf(err)
	if IsBusiness(err) || code == CodeNotFound {
		return NewWithMessage(code, err.Error())
	}
	return New(code)
}

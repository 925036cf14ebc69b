package core

type ErrorNotFound struct {
}

func (e ErrorNotFound) Error() string {
	return "Not Found"
}

func NewErrorNotFound() ErrorNotFound {
	return ErrorNotFound{}
}

type ErrorPermissionDenied struct {
}

func (e ErrorPermissionDenied) Error() string {
	return "Permission Denied"
}

func NewErrorPermissionDenied() ErrorPermissionDenied {
	return ErrorPermissionDenied{}
}

type ErrorUnauthenticated struct {
}

func (e ErrorUnauthenticated) Error() string {
	return "Unauthenticated"
}

func NewErrorUnauthenticated() ErrorUnauthenticated {
	return ErrorUnauthenticated{}
}

// FieldError is one field-level validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorValidation carries a flat list of field errors instead of a
// nested structure, so the first human-readable message is always
// Fields[0].Message.
type ErrorValidation struct {
	Fields []FieldError
}

func (e ErrorValidation) Error() string {
	return e.FirstMessage()
}

// FirstMessage returns the first field message, or a generic fallback
func (e ErrorValidation) FirstMessage() string {
	if len(e.Fields) == 0 {
		return "Invalid payload."
	}
	return e.Fields[0].Message
}

func NewErrorValidation(field string, message string) ErrorValidation {
	return ErrorValidation{Fields: []FieldError{{Field: field, Message: message}}}
}

package apierrors

import (
	"errors"
	"fmt"

	"github.com/goatkit/pesflow/internal/models"
)

// Coded is implemented by every business error of the inspection engine.
type Coded interface {
	error
	Code() string
}

// MissingRequiredFieldError is returned when a transition or resolution needs
// a field that is empty.
type MissingRequiredFieldError struct {
	Field models.Field
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

func (e *MissingRequiredFieldError) Code() string { return CodeMissingRequiredField }

// MissingRequiredField builds a MissingRequiredFieldError.
func MissingRequiredField(field models.Field) error {
	return &MissingRequiredFieldError{Field: field}
}

// FieldNotEditableError rejects an edit to a field the actor may not change.
type FieldNotEditableError struct {
	Field  models.Field
	Role   models.Role
	Status models.InspectionStatus
}

func (e *FieldNotEditableError) Error() string {
	status := string(e.Status)
	if status == "" {
		status = "new"
	}
	return fmt.Sprintf("field %q is not editable by %s in status %q", e.Field, e.Role, status)
}

func (e *FieldNotEditableError) Code() string { return CodeFieldNotEditable }

// FieldNotEditable builds a FieldNotEditableError.
func FieldNotEditable(field models.Field, role models.Role, status models.InspectionStatus) error {
	return &FieldNotEditableError{Field: field, Role: role, Status: status}
}

// IllegalTransitionError rejects a status change.
type IllegalTransitionError struct {
	From models.InspectionStatus
	To   models.InspectionStatus
	Role models.Role
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("transition from %q to %q is not allowed for %s", e.From, e.To, e.Role)
}

func (e *IllegalTransitionError) Code() string { return CodeIllegalTransition }

// IllegalTransition builds an IllegalTransitionError.
func IllegalTransition(from, to models.InspectionStatus, role models.Role) error {
	return &IllegalTransitionError{From: from, To: to, Role: role}
}

// NotReprogrammableError rejects a reprogram request.
type NotReprogrammableError struct {
	Reason string
}

func (e *NotReprogrammableError) Error() string {
	return "inspection cannot be reprogrammed: " + e.Reason
}

func (e *NotReprogrammableError) Code() string { return CodeNotReprogrammable }

// NotReprogrammable builds a NotReprogrammableError.
func NotReprogrammable(reason string) error {
	return &NotReprogrammableError{Reason: reason}
}

// SupportNotAllowedError rejects a support validation attempt for the wrong
// role or status.
type SupportNotAllowedError struct {
	Role   models.Role
	Status models.InspectionStatus
}

func (e *SupportNotAllowedError) Error() string {
	return fmt.Sprintf("support validation not allowed for %s in status %q", e.Role, e.Status)
}

func (e *SupportNotAllowedError) Code() string { return CodeSupportNotAllowed }

// InvalidValueError rejects a draft whose field value does not have the
// expected shape.
type InvalidValueError struct {
	Field  models.Field
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %q: %s", e.Field, e.Reason)
}

func (e *InvalidValueError) Code() string { return CodeInvalidValue }

// InvalidValue builds an InvalidValueError.
func InvalidValue(field models.Field, reason string) error {
	return &InvalidValueError{Field: field, Reason: reason}
}

type codedSentinel struct {
	msg  string
	code string
}

func (e *codedSentinel) Error() string { return e.msg }
func (e *codedSentinel) Code() string  { return e.code }

var (
	// ErrAmbiguousResolution is returned when support validation input confirms
	// and rejects at the same time, or does neither.
	ErrAmbiguousResolution error = &codedSentinel{
		msg:  "support validation must set either connection data or rejection data, not both or neither",
		code: CodeAmbiguousResolution,
	}

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound error = &codedSentinel{msg: "inspection not found", code: CodeNotFound}

	// ErrStoreUnavailable marks infrastructure failures of the store, history
	// store or clock collaborators. It is not part of the business taxonomy.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsBusiness reports whether err belongs to the recoverable business taxonomy.
func IsBusiness(err error) bool {
	var coded Coded
	if !errors.As(err, &coded) {
		return false
	}
	return namespaceOf(coded.Code()) == "inspection"
}

// CodeOf returns the registered code for err, falling back to internal error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return CodeServiceUnavailable
	}
	return CodeInternalError
}

// Package apierrors provides structured error codes for the inspection engine.
// All codes are namespaced (e.g., "core:not_found", "inspection:illegal_transition").
package apierrors

import "net/http"

// Core error codes - registered automatically at init
const (
	CodeForbidden        = "core:forbidden"
	CodeInvalidRequest   = "core:invalid_request"
	CodeValidationFailed = "core:validation_failed"
	CodeNotFound         = "core:not_found"
	CodeConflict         = "core:conflict"

	CodeInternalError      = "core:internal_error"
	CodeServiceUnavailable = "core:service_unavailable"
)

// Inspection workflow error codes
const (
	CodeMissingRequiredField = "inspection:missing_required_field"
	CodeFieldNotEditable     = "inspection:field_not_editable"
	CodeIllegalTransition    = "inspection:illegal_transition"
	CodeAmbiguousResolution  = "inspection:ambiguous_resolution"
	CodeNotReprogrammable    = "inspection:not_reprogrammable"
	CodeSupportNotAllowed    = "inspection:support_validation_not_allowed"
	CodeInvalidValue         = "inspection:invalid_value"
)

// coreErrors defines all core error codes with their default messages and HTTP status
var coreErrors = []ErrorCode{
	{Code: CodeForbidden, Message: "Permission denied", HTTPStatus: http.StatusForbidden},
	{Code: CodeInvalidRequest, Message: "Invalid request body", HTTPStatus: http.StatusBadRequest},
	{Code: CodeValidationFailed, Message: "Request validation failed", HTTPStatus: http.StatusBadRequest},
	{Code: CodeNotFound, Message: "Resource not found", HTTPStatus: http.StatusNotFound},
	{Code: CodeConflict, Message: "Resource conflict", HTTPStatus: http.StatusConflict},
	{Code: CodeInternalError, Message: "Internal server error", HTTPStatus: http.StatusInternalServerError},
	{Code: CodeServiceUnavailable, Message: "Service temporarily unavailable", HTTPStatus: http.StatusServiceUnavailable},
}

var inspectionErrors = []ErrorCode{
	{Code: CodeMissingRequiredField, Message: "A required field is missing", HTTPStatus: http.StatusUnprocessableEntity},
	{Code: CodeFieldNotEditable, Message: "Field cannot be edited by this role in the current status", HTTPStatus: http.StatusForbidden},
	{Code: CodeIllegalTransition, Message: "Status change is not allowed", HTTPStatus: http.StatusConflict},
	{Code: CodeAmbiguousResolution, Message: "Support validation must either confirm the connection or reject it", HTTPStatus: http.StatusUnprocessableEntity},
	{Code: CodeNotReprogrammable, Message: "Inspection cannot be reprogrammed", HTTPStatus: http.StatusConflict},
	{Code: CodeSupportNotAllowed, Message: "Support validation is not available for this inspection", HTTPStatus: http.StatusForbidden},
	{Code: CodeInvalidValue, Message: "A field value is malformed", HTTPStatus: http.StatusUnprocessableEntity},
}

func init() {
	for _, e := range coreErrors {
		Registry.Register(e)
	}
	for _, e := range inspectionErrors {
		Registry.Register(e)
	}
}

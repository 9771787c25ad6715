package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorForbidden       ErrorCode = "FORBIDDEN"
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorConfig          ErrorCode = "CONFIG_ERROR"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorFeatureDisabled ErrorCode = "FEATURE_DISABLED"
	ErrorCalculation     ErrorCode = "CALCULATION_ERROR"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

// Reasons are the stable error codes returned to clients.
const (
	ReasonForbidden           = "rest_forbidden"
	ReasonRateLimited         = "rate_limited"
	ReasonInvalidBody         = "invalid_body"
	ReasonInvalidMessages     = "invalid_messages"
	ReasonAPIKeyMissing       = "api_key_missing"
	ReasonModelTransport      = "model_transport_error"
	ReasonModelUpstream       = "model_upstream_error"
	ReasonModelMalformed      = "model_malformed_response"
	ReasonFeatureDisabled     = "feature_disabled"
	ReasonInvalidProducts     = "invalid_products"
	ReasonNoProducts          = "no_products"
	ReasonInvalidEmail        = "invalid_email"
	ReasonInvalidPhone        = "invalid_phone"
	ReasonInvalidName         = "invalid_name"
	ReasonInvalidAddress      = "invalid_address"
	ReasonInvalidCity         = "invalid_city"
	ReasonInvalidPostcode     = "invalid_postcode"
	ReasonCalculationFailed   = "order_calculation_failed"
	ReasonBackendUnavailable  = "backend_unavailable"
	ReasonSettingsUnavailable = "settings_unavailable"
	ReasonDraftStore          = "draft_store_error"
	ReasonInternal            = "internal_error"
)

var userMessages = map[string]string{
	ReasonForbidden:           "Invalid nonce.",
	ReasonRateLimited:         "Too many requests. Please slow down.",
	ReasonInvalidBody:         "Invalid request body.",
	ReasonInvalidMessages:     "Invalid messages.",
	ReasonAPIKeyMissing:       "The assistant is not configured yet.",
	ReasonModelTransport:      "The assistant is temporarily unavailable. Please try again.",
	ReasonModelUpstream:       "The assistant is temporarily unavailable. Please try again.",
	ReasonModelMalformed:      "The assistant is temporarily unavailable. Please try again.",
	ReasonFeatureDisabled:     "Order creation is not enabled.",
	ReasonInvalidProducts:     "No products specified.",
	ReasonNoProducts:          "No valid products could be added to the order.",
	ReasonInvalidEmail:        "Please provide a valid email address.",
	ReasonInvalidPhone:        "Please provide a phone number.",
	ReasonInvalidName:         "Please provide your first name.",
	ReasonInvalidAddress:      "Please provide your address.",
	ReasonInvalidCity:         "Please provide your city.",
	ReasonInvalidPostcode:     "Please provide your postal code.",
	ReasonCalculationFailed:   "Failed to calculate order totals. Please try again.",
	ReasonBackendUnavailable:  "The store is temporarily unavailable. Please try again.",
	ReasonSettingsUnavailable: "The assistant is temporarily unavailable. Please try again.",
}

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Message is the customer-facing text for the error. It never carries
// upstream detail.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return UserMessage(e.Reason)
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// UserMessage returns the customer-facing text for a reason code.
func UserMessage(reason string) string {
	if msg, ok := userMessages[reason]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// AsError extracts a *Error from err, wrapping anything else as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	return newError(ErrorInternal, ReasonInternal, err)
}

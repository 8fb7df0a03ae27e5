// Package apperr carries the error taxonomy shared by the domain components.
// Components return *Error values; the HTTP layer maps Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindExpired
	KindRateLimited
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindExpired:
		return "expired"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	}
	return "internal"
}

const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidPhone      = "invalid_phone"
	CodeInvalidOTP        = "invalid_otp"
	CodeOTPExpired        = "otp_expired"
	CodeOTPNotFound       = "otp_not_found"
	CodeRateLimited       = "rate_limited"
	CodeMissingToken      = "missing_token"
	CodeInvalidToken      = "invalid_token"
	CodeFarmerNotFound    = "farmer_not_found"
	CodeFarmerExists      = "farmer_exists"
	CodePolicyNotFound    = "policy_not_found"
	CodeClaimNotFound     = "claim_not_found"
	CodeInvalidUpload     = "invalid_upload"
	CodeUpstreamFailure   = "upstream_error"
	CodeServerError       = "server_error"
	CodeNotFound          = "not_found"
	CodeDeliveryFailed    = "otp_delivery_failed"
	CodePaymentValidation = "invalid_payment"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Status is an upstream HTTP status, set only on upstream errors that should be relayed.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Expired(code, message string) *Error {
	return &Error{Kind: KindExpired, Code: code, Message: message}
}

func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: message}
}

func Upstream(message string, status int, err error) *Error {
	return &Error{Kind: KindUpstream, Code: CodeUpstreamFailure, Message: message, Status: status, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeServerError, Message: "internal server error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

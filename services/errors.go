package services

import (
	"errors"
	"fmt"

	"github.com/tradedesk/tradedesk-api/policy"
)

// ErrorKind classifies a service failure; controllers map kinds to HTTP statuses
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindForbidden
	KindBusinessRule
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindBusinessRule:
		return "business_rule"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error codes returned in the response envelope
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodeProductNotFound    = "PRODUCT_NOT_FOUND"
	CodeReportNotFound     = "REPORT_NOT_FOUND"
	CodeNoOrders           = "NO_ORDERS"
	CodeForbidden          = "FORBIDDEN"
	CodeMixedCategory      = "MIXED_CATEGORY"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeNoQualifyingOrders = "NO_QUALIFYING_ORDERS"
	CodeDatabase           = "DATABASE_ERROR"
	CodeStorage            = "STORAGE_ERROR"
)

// Error is the failure type returned by every service operation
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}


func validationError(message string, details any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Details: details}
}

func notFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: reason}
}

func businessRule(code, message string, cause error) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: message, Err: cause}
}

func persistence(message string, cause error) *Error {
	e := &Error{Kind: KindPersistence, Code: CodeDatabase, Message: message, Err: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// fromPolicy translates the errors of the policy package
func fromPolicy(err error) *Error {
	var (
		mixed      *policy.MixedCategoryError
		denied     *policy.CategoryDeniedError
		transition *policy.TransitionError
	)
	switch {
	case errors.Is(err, policy.ErrNoLines):
		return validationError(err.Error(), nil)
	case errors.As(err, &mixed):
		return businessRule(CodeMixedCategory, mixed.Error(), err)
	case errors.As(err, &denied):
		return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: denied.Error(), Err: err}
	case errors.As(err, &transition):
		allowed := make([]string, len(transition.Allowed))
		for i, t := range transition.Allowed {
			allowed[i] = t.String()
		}
		return &Error{
			Kind:    KindForbidden,
			Code:    CodeInvalidTransition,
			Message: transition.Error(),
			Details: map[string]any{"allowed_transitions": allowed},
			Err:     err,
		}
	default:
		return persistence("unexpected policy failure", err)
	}
}

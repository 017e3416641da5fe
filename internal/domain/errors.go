package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeIO             ErrorType = "io"
	ErrorTypeAPI            ErrorType = "api"
	ErrorTypeDataNotFound   ErrorType = "data_not_found"
	ErrorTypeNoKeywords     ErrorType = "no_keywords"
	ErrorTypeNoMatch        ErrorType = "no_match"
	ErrorTypeDetailNotFound ErrorType = "detail_not_found"
)

// Sentinels for errors.Is checks. A DomainError matches the sentinel of its type.
var (
	ErrDataNotFound   = errors.New("catalog data not found")
	ErrNoKeywords     = errors.New("no keywords extracted")
	ErrNoMatch        = errors.New("no matching catalog entry")
	ErrDetailNotFound = errors.New("page detail not found")
	ErrOracle         = errors.New("oracle call failed")
	ErrValidation     = errors.New("invalid input")
)

var sentinels = map[ErrorType]error{
	ErrorTypeDataNotFound:   ErrDataNotFound,
	ErrorTypeNoKeywords:     ErrNoKeywords,
	ErrorTypeNoMatch:        ErrNoMatch,
	ErrorTypeDetailNotFound: ErrDetailNotFound,
	ErrorTypeAPI:            ErrOracle,
	ErrorTypeValidation:     ErrValidation,
}

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's type.
func (e *DomainError) Is(target error) bool {
	s, ok := sentinels[e.Type]
	return ok && s == target
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func DataNotFoundError(message string, err error) *DomainError {
	return NewError(ErrorTypeDataNotFound, message, err)
}

func NoKeywordsError(message string, err error) *DomainError {
	return NewError(ErrorTypeNoKeywords, message, err)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// UserMessage maps an error to the message shown to people asking questions.
func UserMessage(err error) string {
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return "Please make sure to enter a question and a valid URL."
	case ErrorTypeDataNotFound, ErrorTypeIO:
		return "Failed to load data. Please check the CSV file path."
	case ErrorTypeNoKeywords:
		return "Could not identify any keyword in the question. Please rephrase it."
	case ErrorTypeNoMatch:
		return "No URL could be selected based on the question."
	case ErrorTypeAPI:
		return "The answering service is unavailable right now. Please try again later."
	case ErrorTypeConfig:
		return "The assistant is misconfigured."
	default:
		return "Something went wrong while answering the question."
	}
}

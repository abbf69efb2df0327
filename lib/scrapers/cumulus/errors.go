package cumulus

import (
	"fmt"
	"strconv"
)

// Code identifies an entry in the closed error catalog shared by every
// component of the scraper.
type Code int

const (
	CodeCouldNotAuthenticate Code = 1
	CodeMissingUsername      Code = 2
	CodeCumulusAccess        Code = 3
	CodeNotADate             Code = 4
	CodeRangeInverted        Code = 5
	CodeRetryReceipt         Code = 6
)

var catalog = map[Code]string{
	CodeCouldNotAuthenticate: "could not authenticate",
	CodeMissingUsername:      "could not find username when authenticating",
	CodeCumulusAccess:        "could not authenticate to cumulus",
	CodeNotADate:             "from and to should be valid dates",
	CodeRangeInverted:        "`from` should be <= to `to`",
	CodeRetryReceipt:         "request the receipt again, including the pdf form",
}

// Message is the catalog lookup, a pure function from code to text.
func (c Code) Message() string {
	if msg, ok := catalog[c]; ok {
		return msg
	}
	return "unknown error"
}

// CodeFromString resolves a stringified numeric code against the catalog,
// string and numeric codes are interchangeable keys.
func CodeFromString(s string) (Code, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	c := Code(n)
	_, ok := catalog[c]
	return c, ok
}

// AuthError reports a classified failure of the login sequence. It is fatal
// to the session, a client that returned one is unusable.
type AuthError struct {
	Code   Code
	Reason string
}

// NewAuthError builds an AuthError with the catalog message for code.
func NewAuthError(code Code) *AuthError {
	return &AuthError{Code: code, Reason: code.Message()}
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error %d: %s", e.Code, e.Reason)
}

// ValidationError reports caller input that can never produce a request,
// it is raised before any network call.
type ValidationError struct {
	Code Code
}

func NewValidationError(code Code) *ValidationError {
	return &ValidationError{Code: code}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error %d: %s", e.Code, e.Code.Message())
}

// ParseError reports markup that could not be parsed at all. It aborts the
// in-flight query, retrying would face the same input again.
type ParseError struct {
	Page int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse listing page %d: %v", e.Page, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TransportError reports a network or HTTP-status failure that survived the
// transport-level retry policy. Code may be zero when no catalog entry fits.
type TransportError struct {
	Code   Code
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transport error %d: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("transport error: %s: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

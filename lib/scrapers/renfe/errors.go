package renfe

import "fmt"

// SecurityError reports a request that would violate the transport's
// scheme requirement, domain allow-list or response-size policy. It is
// fatal to the scrape and never retried automatically.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation: %s", e.Reason)
}

// NetworkError covers timeouts, transport-level HTTP failures and
// excessive redirects. Fatal to the current attempt; callers may retry
// a fresh scrape after the limiter's backoff delay.
type NetworkError struct {
	Reason string
	Cause  error
}

func (e *NetworkError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("network error: %s", e.Reason)
	}
	return fmt.Sprintf("network error: %s: %s", e.Reason, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// TokenError means the session token could not be located in the
// id-generation response. Usually the target changed its response
// format, or the priming call was skipped.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token error: %s", e.Reason)
}

// ParseError means the train list could not be located or
// relaxed-parsed. It does not imply zero trains exist, only that the
// response shape was unrecognized.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("parse error: %s", e.Reason)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Reason, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

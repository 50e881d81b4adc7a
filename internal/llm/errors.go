package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Sentinel errors surfaced by the conversation core. Use errors.Is to
// test for them.
var (
	// ErrEmptyQuestion indicates a blank question was submitted.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrEmptyConversation indicates an outbound conversation with no messages.
	ErrEmptyConversation = errors.New("conversation is empty")

	// ErrEmptyMessage indicates a conversation message with blank content.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrMisplacedSystem indicates a system message anywhere but position 0.
	ErrMisplacedSystem = errors.New("system message only allowed at position 0")

	// ErrNoUserMessage indicates a conversation that does not end with a user message.
	ErrNoUserMessage = errors.New("conversation must end with a user message")

	// ErrMissingAPIKey indicates the selected backend's credential is absent
	// from the environment.
	ErrMissingAPIKey = errors.New("API key not set")

	// ErrEmptyCompletion indicates the service returned no usable choice.
	ErrEmptyCompletion = errors.New("empty completion from service")

	// ErrUnknownBackend indicates a backend name outside the registry.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrBusy indicates a session already has a request in flight.
	ErrBusy = errors.New("a request is already in progress for this session")
)

// Error kinds categorize completion failures. Every error leaving a
// backend carries exactly one kind so callers can react without string
// matching.
const (
	// KindConfiguration marks startup problems such as a missing credential.
	KindConfiguration = "configuration"

	// KindAuthentication marks rejected or invalid credentials.
	KindAuthentication = "authentication"

	// KindRateLimit marks quota or throttling rejections.
	KindRateLimit = "rate_limit"

	// KindTransient marks network failures and service-side outages that
	// may succeed if the caller chooses to try again later.
	KindTransient = "transient"

	// KindInvalidRequest marks payloads the service refused as malformed.
	KindInvalidRequest = "invalid_request"

	// KindInternal marks failures inside this process.
	KindInternal = "internal"
)

// Error wraps an underlying failure with the operation that produced it
// and its kind. It supports errors.Is and errors.As, and two Errors
// compare equal under errors.Is when their kinds match.
type Error struct {
	// Op is the operation that failed (e.g. "openai.Complete").
	Op string

	// Kind categorizes the failure.
	Kind string

	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("llm: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind (and by op when the target sets
// one), otherwise delegates to the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			return t.Op == "" || e.Op == t.Op
		}
		return false
	}
	return errors.Is(e.Err, target)
}

// UnknownRoleError reports a message role outside the known set.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", string(e.Role))
}

// NewConfigurationError creates an Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewAuthenticationError creates an Error with KindAuthentication.
func NewAuthenticationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindAuthentication, Err: err}
}

// NewRateLimitError creates an Error with KindRateLimit.
func NewRateLimitError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindRateLimit, Err: err}
}

// NewTransientError creates an Error with KindTransient.
func NewTransientError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTransient, Err: err}
}

// NewInvalidRequestError creates an Error with KindInvalidRequest.
func NewInvalidRequestError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInvalidRequest, Err: err}
}

// NewInternalError creates an Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when none is present.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsConfiguration reports whether err carries KindConfiguration.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsAuthentication reports whether err carries KindAuthentication.
func IsAuthentication(err error) bool { return KindOf(err) == KindAuthentication }

// IsRateLimit reports whether err carries KindRateLimit.
func IsRateLimit(err error) bool { return KindOf(err) == KindRateLimit }

// IsTransient reports whether err carries KindTransient.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsInvalidRequest reports whether err carries KindInvalidRequest.
func IsInvalidRequest(err error) bool { return KindOf(err) == KindInvalidRequest }

// ClassifyStatus maps a non-2xx HTTP status from a completion service
// onto the error taxonomy. The response body is carried in the message
// for operator visibility.
func ClassifyStatus(op string, status int, body string) error {
	err := fmt.Errorf("API error: %d - %s", status, strings.TrimSpace(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthenticationError(op, err)
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(op, err)
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity:
		return NewInvalidRequestError(op, err)
	case status >= 500:
		return NewTransientError(op, err)
	default:
		return NewInternalError(op, err)
	}
}

// ClassifyTransport maps transport-level failures onto the taxonomy.
// Dial errors, timeouts, and cancellation all land on the transient
// kind; anything else is internal.
func ClassifyTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr) {
		return NewTransientError(op, fmt.Errorf("failed to send request: %w", err))
	}
	return NewInternalError(op, fmt.Errorf("failed to send request: %w", err))
}

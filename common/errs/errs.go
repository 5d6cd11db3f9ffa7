package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
)

// Kind classifies failures so callers can pick a user-facing message.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindSearch
	KindSynthesis
	KindModeration
	KindCompletion
	KindContentFilter
	KindTimeout
	KindMemory
	KindConfig
	KindMaxTokens
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindSearch:
		return "search"
	case KindSynthesis:
		return "synthesis"
	case KindModeration:
		return "moderation"
	case KindCompletion:
		return "completion"
	case KindContentFilter:
		return "content_filter"
	case KindTimeout:
		return "timeout"
	case KindMemory:
		return "memory"
	case KindConfig:
		return "config"
	case KindMaxTokens:
		return "max_tokens"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error. A nil err is allowed when Op carries the message.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a classified error from a format string.
func Ef(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Memory wraps a session store failure. Nil stays nil.
func Memory(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindMemory {
		return err
	}
	return &Error{Kind: KindMemory, Op: op, Err: err}
}

// KindOf returns the outermost classified kind in the chain. Unclassified
// timeouts report KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsTimeout(err) {
		return KindTimeout
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindTimeout {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsConnectivity reports whether err means the remote side could not be reached.
func IsConnectivity(err error) bool {
	if err == nil || IsTimeout(err) {
		return false
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var de *net.DNSError
	return errors.As(err, &de)
}

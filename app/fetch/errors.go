package fetch

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindTransient covers timeouts, connection failures and 5xx responses.
	// These are eligible for backoff retry.
	KindTransient Kind = iota
	// KindPermanent covers 4xx responses, malformed URLs and persistent DNS
	// failures. The feed stays subscribed but is not hot-retried.
	KindPermanent
)

func (k Kind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

type Error struct {
	URL    string
	Kind   Kind
	Status int // HTTP status when the server answered, 0 otherwise
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a fetch error eligible for retry.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTransient
}

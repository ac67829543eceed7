package scrape

import (
	"errors"
	"fmt"
)

// FetchError wraps a fetch failure with its classification. Blocking means
// the site pushed back (captcha, 403, 429); transient failures are timeouts
// and server errors. The breaker backs off steeper on blocking failures.
type FetchError struct {
	Source   string
	Blocking bool
	Err      error
}

func (e *FetchError) Error() string {
	kind := "transient"
	if e.Blocking {
		kind = "blocking"
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func Transient(source string, err error) error {
	return &FetchError{Source: source, Err: err}
}

func Blocking(source string, err error) error {
	return &FetchError{Source: source, Blocking: true, Err: err}
}

// IsBlocking reports whether err carries an anti-bot classification.
func IsBlocking(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Blocking
}

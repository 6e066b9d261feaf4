package gateway

import (
	"context"
	"fmt"
)

// Client is the carrier capability. A successful send returns the
// carrier's delivery identifier; the dispatcher treats a non-empty id
// with a nil error as delivered.
type Client interface {
	Send(ctx context.Context, to, from, body string) (id string, err error)
}

// Error is a carrier-side rejection or transport failure, recorded per
// recipient and never retried within the same dispatch pass.
type Error struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gateway: %s (code %d, http %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s (http %d)", e.Message, e.StatusCode)
}

// Package service defines the accept/request/next contract every venue
// connection implements, the N-way select that merges them into one stream,
// and the builder registry that assembles services from configuration.
package service

import (
	"context"
	"errors"
)

// ErrClosed is returned by Next once a service is permanently closed.
var ErrClosed = errors.New("service: closed")

// ErrNoService is returned by Request when no composed child accepts it.
var ErrNoService = errors.New("service: no child accepts request")

// Service is the uniform contract for venue connections and composites.
//
// Accept reports whether the service may handle the request, routed by the
// request's venue tag. Request enqueues the request and must not block
// beyond the outbound send. Next produces the next asynchronous event and
// returns ErrClosed only on permanent close.
type Service[Req, Resp any] interface {
	Accept(req Req) bool
	Request(ctx context.Context, req Req) error
	Next(ctx context.Context) (Resp, error)
}

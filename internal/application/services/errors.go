package services

import "errors"

var (
	// ErrInvalidOperation marks caller misuse: a DM with yourself, blank
	// message content, an illegal order status transition. Never retried.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrForbidden marks an authorization or membership failure. On the
	// gateway it is reported back on the connection without closing it.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing room, order, listing or user.
	ErrNotFound = errors.New("not found")

	// ErrProvisioningFailed marks a failure anywhere in order-triggered
	// room creation. The whole order transaction rolls back; an order
	// without its support rooms must never be observable.
	ErrProvisioningFailed = errors.New("order provisioning failed")
)

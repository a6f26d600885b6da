package payment

import "errors"

var (
	// ErrAbandoned is returned by a Collector when the user closes the
	// payment dialog or the provider reports a failure.
	ErrAbandoned = errors.New("payment: collection abandoned")

	// ErrVerificationTransport means the verify call did not complete, so
	// money may have moved without a confirmed acknowledgment.
	ErrVerificationTransport = errors.New("payment: verification transport failure")

	// ErrAttemptInFlight refuses a directive for a provider order that is
	// already being collected or verified.
	ErrAttemptInFlight = errors.New("payment: attempt already in progress for order")

	ErrInvalidDirective = errors.New("payment: invalid directive")
)

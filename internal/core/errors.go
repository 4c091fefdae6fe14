package core

import "errors"

// Classification error taxonomy. Adapters map their provider's failures onto
// these sentinels so the gateway can apply a uniform retry policy.
var (
	// ErrAuthFailed means the API rejected our credentials. Retrying is pointless.
	ErrAuthFailed = errors.New("classification: authentication failed")

	// ErrRateLimited means the API signaled a rate limit. The run keeps going,
	// the attachment is skipped without a retry.
	ErrRateLimited = errors.New("classification: rate limited")

	// ErrConnection is a transport-level failure that may succeed on retry.
	ErrConnection = errors.New("classification: connection error")

	// ErrBadResponse means the API answered but the body was empty or not the
	// expected JSON object.
	ErrBadResponse = errors.New("classification: malformed response")
)

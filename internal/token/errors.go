package token

import "errors"

var (
	ErrUnauthorized      = errors.New("caller lacks the required role")
	ErrInvalidRecipient  = errors.New("recipient must not be the zero address")
	ErrInvalidCommitment = errors.New("commitment must not be zero")
	ErrNotFound          = errors.New("token does not exist")
	ErrAlreadyUnlocked   = errors.New("token is already unlocked")
	ErrNotYetEligible    = errors.New("token cannot be unlocked yet")
	ErrMismatch          = errors.New("unlock value does not match commitment")

	// ErrLocked is returned when reading a sealed payload before unlock.
	ErrLocked = errors.New("token is still locked")

	ErrNoPayload = errors.New("token has no sealed payload")
)

// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure that can cross a container boundary.
type ErrorKind string

const (
	KindProviderUnavailable   ErrorKind = "provider_unavailable"
	KindUserRejected          ErrorKind = "user_rejected"
	KindNoAccounts            ErrorKind = "no_accounts"
	KindNetworkMismatch       ErrorKind = "network_mismatch"
	KindNetworkSwitchRejected ErrorKind = "network_switch_rejected"
	KindTransientRpc          ErrorKind = "transient_rpc"
	KindInsufficientBalance   ErrorKind = "insufficient_balance"
	KindInsufficientStaked    ErrorKind = "insufficient_staked"
	KindNoRewards             ErrorKind = "no_rewards"
	KindApprovalFailed        ErrorKind = "approval_failed"
	KindTransactionReverted   ErrorKind = "transaction_reverted"
	KindTimeout               ErrorKind = "timeout"
	KindCancelled             ErrorKind = "cancelled"
	KindResourceBusy          ErrorKind = "resource_busy"
	KindNotResellable         ErrorKind = "not_resellable"
	KindPriceAboveCap         ErrorKind = "price_above_cap"
	KindVerificationTooLow    ErrorKind = "verification_too_low"
	KindNotConnected          ErrorKind = "not_connected"
	KindInternal              ErrorKind = "internal"
)

// Error is the normalized error shape exposed to callers: a human-readable
// message plus a machine-checkable kind. Raw provider errors stay in Err.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a normalized error without an underlying cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from any error in the chain. Unclassified
// errors report KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether an error is safe to retry. Only transient RPC
// failures on read paths qualify; write submissions are never retried.
func Retryable(err error) bool {
	return IsKind(err, KindTransientRpc)
}

// LocalPrecondition reports whether an error was raised before any network
// call was made.
func LocalPrecondition(err error) bool {
	switch KindOf(err) {
	case KindInsufficientBalance, KindInsufficientStaked, KindNoRewards,
		KindNotResellable, KindPriceAboveCap, KindVerificationTooLow,
		KindResourceBusy, KindNotConnected:
		return true
	}
	return false
}

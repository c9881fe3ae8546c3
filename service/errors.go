package service

import (
	"errors"
	"fmt"

	"clubledger/models"
)

// ErrorKind classifies failures of ledger operations
type ErrorKind string

const (
	KindUnauthenticated              ErrorKind = "unauthenticated"
	KindPermissionDenied             ErrorKind = "permission_denied"
	KindInvalidArgument              ErrorKind = "invalid_argument"
	KindNotFound                     ErrorKind = "not_found"
	KindInsufficientAvailableBalance ErrorKind = "insufficient_available_balance"
	KindInsufficientFunds            ErrorKind = "insufficient_funds"
	KindChargeNotPending             ErrorKind = "charge_not_pending"
	KindTransactionNotPending        ErrorKind = "transaction_not_pending"
	KindInternal                     ErrorKind = "internal"
)

// Error is the error type returned by every service operation
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind against a bare sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is
var (
	ErrUnauthenticated              = &Error{Kind: KindUnauthenticated}
	ErrPermissionDenied             = &Error{Kind: KindPermissionDenied}
	ErrInvalidArgument              = &Error{Kind: KindInvalidArgument}
	ErrNotFound                     = &Error{Kind: KindNotFound}
	ErrInsufficientAvailableBalance = &Error{Kind: KindInsufficientAvailableBalance}
	ErrInsufficientFunds            = &Error{Kind: KindInsufficientFunds}
	ErrChargeNotPending             = &Error{Kind: KindChargeNotPending}
	ErrTransactionNotPending        = &Error{Kind: KindTransactionNotPending}
	ErrInternal                     = &Error{Kind: KindInternal}
)

// KindOf returns the kind of err, Internal for errors that are not *Error
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// fromModelError maps validation failures raised by the models package
func fromModelError(err error) error {
	switch {
	case errors.Is(err, models.ErrTransactionNotPending):
		return wrapError(KindTransactionNotPending, err, "transaction is not under review")
	case errors.Is(err, models.ErrInvalidTransaction):
		return &Error{Kind: KindInvalidArgument, Message: err.Error()}
	}
	return err
}

func requireAuthenticated(caller models.CallerIdentity) error {
	if !caller.IsAuthenticated() {
		return newError(KindUnauthenticated, "authentication required")
	}
	return nil
}

func requireAdmin(caller models.CallerIdentity) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return newError(KindPermissionDenied, "admin role required")
	}
	return nil
}

func requireSuperAdmin(caller models.CallerIdentity) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if !caller.IsSuperAdmin() {
		return newError(KindPermissionDenied, "super_admin role required")
	}
	return nil
}

func requireAccess(caller models.CallerIdentity, accountID string) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if !caller.CanAccess(accountID) {
		return newError(KindPermissionDenied, "cannot access account %s", accountID)
	}
	return nil
}

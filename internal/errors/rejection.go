package errors

import (
	stderrors "errors"
	"fmt"
)

// Reason identifies why the engine refused a bid, entry or claim.
// Values are stable and surfaced verbatim to API callers.
type Reason string

const (
	ReasonRoundNotActive        Reason = "ROUND_NOT_ACTIVE"
	ReasonEntryNotPaid          Reason = "ENTRY_NOT_PAID"
	ReasonDuplicateBid          Reason = "DUPLICATE_BID"
	ReasonBidNotIncreasing      Reason = "BID_NOT_INCREASING"
	ReasonBelowMinimum          Reason = "BELOW_MINIMUM"
	ReasonAboveMaximum          Reason = "ABOVE_MAXIMUM"
	ReasonNotQualified          Reason = "NOT_QUALIFIED" // reserved for elimination variants
	ReasonClaimWindowExpired    Reason = "CLAIM_WINDOW_EXPIRED"
	ReasonClaimWrongRank        Reason = "CLAIM_WRONG_RANK"
	ReasonDuplicateEntryPayment Reason = "DUPLICATE_ENTRY_PAYMENT"
	ReasonEntryClosed           Reason = "ENTRY_CLOSED"
	ReasonPaymentMismatch       Reason = "PAYMENT_MISMATCH"
)

// Rejection is an expected refusal. It is never retried by the engine.
type Rejection struct {
	Reason  Reason
	Message string
	Details map[string]any
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Kind lets callers treat rejections like other application errors
func (r *Rejection) Kind() Kind {
	return ErrRejected
}

// Reject builds a rejection without details
func Reject(reason Reason, msg string) *Rejection {
	return &Rejection{Reason: reason, Message: msg}
}

// Rejectf builds a rejection with a formatted message
func Rejectf(reason Reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// With attaches a detail field and returns the rejection for chaining
func (r *Rejection) With(key string, value any) *Rejection {
	if r.Details == nil {
		r.Details = make(map[string]any)
	}
	r.Details[key] = value
	return r
}

// ReasonOf returns the rejection reason carried by err, if any
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if stderrors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

// IsUnavailable reports whether err is a fatal engine condition
func IsUnavailable(err error) bool {
	var appErr *Error
	return stderrors.As(err, &appErr) && appErr.Kind == ErrUnavailable
}

// KindOf classifies any error returned by the engine
func KindOf(err error) Kind {
	if err == nil {
		return ErrInternal
	}
	var rej *Rejection
	if stderrors.As(err, &rej) {
		return ErrRejected
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

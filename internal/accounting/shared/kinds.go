package shared

import "errors"

// Kind classifies ledger errors so callers can react without matching every sentinel.
type Kind string

const (
	KindValidation Kind = "validation"
	KindState      Kind = "state"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindInvariant  Kind = "invariant"
	KindInternal   Kind = "internal"
)

var kindTable = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{
		ErrUnbalanced, ErrTooFewLines, ErrUnbalancedLine, ErrNegativeAmount, ErrAmountPrecision, ErrDescriptionRequired,
		ErrAccountRequired, ErrReasonRequired, ErrYearOutOfRange, ErrLineNotFound, ErrUnknownDocument,
		ErrInvalidDateRange,
	}},
	{KindNotFound, []error{
		ErrJournalNotFound, ErrYearNotFound, ErrPeriodNotFound, ErrAccountNotFound, ErrRetainedEarningsMissing,
	}},
	{KindConflict, []error{ErrDuplicateYear, ErrConcurrencyConflict, ErrSourceAlreadyLinked}},
	{KindInvariant, []error{ErrTrialBalanceMismatch}},
	{KindState, []error{
		ErrEntryNotDraft, ErrAlreadyPosted, ErrNotPosted, ErrAlreadyReversed, ErrNoOpenPeriod,
		ErrPeriodNotOpen, ErrYearNotActive, ErrDateOutOfRange, ErrInvalidYearStatus, ErrAnotherYearActive,
		ErrYearClosed, ErrPeriodsNotAllLocked, ErrPendingDrafts, ErrPendingDraftsInPeriod,
		ErrPeriodAlreadyLocked, ErrPeriodNotLocked, ErrNotMostRecentLock, ErrAccountNotPostable,
		ErrNoTemporaryBalances, ErrClosingAlreadyPosted, ErrAdjustmentTargetNotPosted,
	}},
}

// KindOf reports the kind of a ledger error. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, group := range kindTable {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}

// IsBusinessRule reports whether err is an expected domain rejection rather than an infrastructure fault.
func IsBusinessRule(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindInternal
}

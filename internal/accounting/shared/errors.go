package shared

import "errors"

// Structural validation.
var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrUnbalancedLine indicates a line carrying both or neither side.
	ErrUnbalancedLine = errors.New("accounting: line must carry exactly one of debit or credit")
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = errors.New("accounting: amounts cannot be negative")
	// ErrAmountPrecision indicates an amount with more than four decimals or beyond NUMERIC(20,4).
	ErrAmountPrecision = errors.New("accounting: amount exceeds ledger precision")
	// ErrDescriptionRequired indicates a blank journal description.
	ErrDescriptionRequired = errors.New("accounting: description required")
	// ErrAccountRequired indicates a line without account.
	ErrAccountRequired = errors.New("accounting: line account required")
	// ErrReasonRequired indicates a blank reason on unlock or reversal.
	ErrReasonRequired = errors.New("accounting: reason required")
	// ErrYearOutOfRange indicates a fiscal year outside 2000..2100.
	ErrYearOutOfRange = errors.New("accounting: fiscal year out of range")
	// ErrLineNotFound indicates a missing draft line number.
	ErrLineNotFound = errors.New("accounting: journal line not found")
	// ErrUnknownDocument indicates an unrecognised source or document type.
	ErrUnknownDocument = errors.New("accounting: unknown source or document type")
	// ErrInvalidDateRange indicates a report range ending before it starts.
	ErrInvalidDateRange = errors.New("accounting: invalid date range")
)

// State violations.
var (
	// ErrEntryNotDraft indicates a mutation on a non-draft entry.
	ErrEntryNotDraft = errors.New("accounting: entry is not a draft")
	// ErrAlreadyPosted indicates a second posting attempt.
	ErrAlreadyPosted = errors.New("accounting: entry already posted")
	// ErrNotPosted indicates an action that needs a posted entry.
	ErrNotPosted = errors.New("accounting: entry is not posted")
	// ErrAlreadyReversed indicates the entry already has a reversal.
	ErrAlreadyReversed = errors.New("accounting: entry already reversed")
	// ErrNoOpenPeriod indicates the date does not resolve to an open period.
	ErrNoOpenPeriod = errors.New("accounting: no open period for date")
	// ErrPeriodNotOpen indicates a locked period.
	ErrPeriodNotOpen = errors.New("accounting: period is locked")
	// ErrYearNotActive indicates the fiscal year is not active.
	ErrYearNotActive = errors.New("accounting: fiscal year is not active")
	// ErrDateOutOfRange indicates the date falls outside every fiscal year.
	ErrDateOutOfRange = errors.New("accounting: date outside any fiscal year")
	// ErrInvalidYearStatus indicates an illegal fiscal year transition.
	ErrInvalidYearStatus = errors.New("accounting: invalid fiscal year status transition")
	// ErrAnotherYearActive indicates a second active fiscal year.
	ErrAnotherYearActive = errors.New("accounting: another fiscal year is already active")
	// ErrYearClosed indicates a mutation against a closed year.
	ErrYearClosed = errors.New("accounting: fiscal year is closed")
	// ErrPeriodsNotAllLocked blocks year closing.
	ErrPeriodsNotAllLocked = errors.New("accounting: all periods must be locked before closing")
	// ErrPendingDrafts blocks year closing.
	ErrPendingDrafts = errors.New("accounting: fiscal year has draft entries")
	// ErrPendingDraftsInPeriod blocks period locking.
	ErrPendingDraftsInPeriod = errors.New("accounting: period has draft entries")
	// ErrPeriodAlreadyLocked indicates a repeated lock.
	ErrPeriodAlreadyLocked = errors.New("accounting: period already locked")
	// ErrPeriodNotLocked indicates unlock on an open period.
	ErrPeriodNotLocked = errors.New("accounting: period is not locked")
	// ErrNotMostRecentLock blocks out of order unlocking.
	ErrNotMostRecentLock = errors.New("accounting: only the most recently locked period can be unlocked")
	// ErrAccountNotPostable indicates an inactive, parent or blocked account.
	ErrAccountNotPostable = errors.New("accounting: account does not accept postings")
	// ErrNoTemporaryBalances indicates nothing to close.
	ErrNoTemporaryBalances = errors.New("accounting: no temporary account balances to close")
	// ErrClosingAlreadyPosted indicates the closing entry exists.
	ErrClosingAlreadyPosted = errors.New("accounting: closing entry already posted for fiscal year")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrAdjustmentTargetNotPosted indicates an adjustment of an unposted entry.
	ErrAdjustmentTargetNotPosted = errors.New("accounting: adjusted entry must be posted")
)

// Not found.
var (
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrYearNotFound indicates missing fiscal year.
	ErrYearNotFound = errors.New("accounting: fiscal year not found")
	// ErrPeriodNotFound indicates missing fiscal period.
	ErrPeriodNotFound = errors.New("accounting: fiscal period not found")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrRetainedEarningsMissing indicates the closing target account is absent.
	ErrRetainedEarningsMissing = errors.New("accounting: retained earnings account not found")
)

// Conflicts and invariant breaches.
var (
	// ErrDuplicateYear indicates the fiscal year already exists.
	ErrDuplicateYear = errors.New("accounting: fiscal year already exists")
	// ErrConcurrencyConflict indicates a serialization failure or stale version.
	ErrConcurrencyConflict = errors.New("accounting: concurrent update conflict")
	// ErrTrialBalanceMismatch indicates total debits differ from total credits.
	ErrTrialBalanceMismatch = errors.New("accounting: trial balance does not balance")
)

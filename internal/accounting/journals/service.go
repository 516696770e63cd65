package journals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/sequence"
	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-gl/internal/shared"
)

// AuditPort records journal transitions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// AccountChecker is the account master contract used before posting.
type AccountChecker interface {
	EnsurePostable(ctx context.Context, ids []int64) error
}

// Observer receives posting outcomes, typically for metrics.
type Observer interface {
	EntryPosted(docType sequence.DocumentType)
	EntryReversed()
	ConflictRetried(operation string)
}

type noopObserver struct{}

func (noopObserver) EntryPosted(sequence.DocumentType) {}
func (noopObserver) EntryReversed()                    {}
func (noopObserver) ConflictRetried(string)            {}

// Service orchestrates drafts, posting and reversal.
type Service struct {
	repo      Repository
	accounts  AccountChecker
	audit     AuditPort
	logger    *slog.Logger
	observer  Observer
	retry     shared.RetryPolicy
	now       func() time.Time
	draftCode func() string
}

func NewService(repo Repository, accounts AccountChecker, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		accounts:  accounts,
		audit:     audit,
		logger:    logger,
		observer:  noopObserver{},
		retry:     shared.DefaultRetryPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
		draftCode: NewDraftCode,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithRetryPolicy bounds the replay of posting transactions on conflicts.
func (s *Service) WithRetryPolicy(policy shared.RetryPolicy) {
	if policy.MaxTries > 0 {
		s.retry = policy
	}
}

func (s *Service) WithObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// CreateDraft validates and stores a new draft. The journal date must resolve to
// an open period and every account must accept postings.
func (s *Service) CreateDraft(ctx context.Context, in DraftInput) (Entry, error) {
	return s.createDraft(ctx, in, nil)
}

// CreateOpeningDraft stores an opening balance draft.
func (s *Service) CreateOpeningDraft(ctx context.Context, in DraftInput) (Entry, error) {
	in.SourceType = SourceOpening
	in.DocumentType = ""
	return s.createDraft(ctx, in, nil)
}

// CreateAdjustmentDraft stores a draft that adjusts a posted entry.
func (s *Service) CreateAdjustmentDraft(ctx context.Context, adjustedEntryID int64, in DraftInput) (Entry, error) {
	in.SourceType = SourceAdjustment
	in.DocumentType = ""
	return s.createDraft(ctx, in, func(ctx context.Context, tx TxRepository, e *Entry) error {
		target, err := tx.GetEntryForUpdate(ctx, adjustedEntryID)
		if err != nil {
			return err
		}
		if target.Status != StatusPosted {
			return fmt.Errorf("%s is %s: %w", target.Reference(), target.Status, shared.ErrAdjustmentTargetNotPosted)
		}
		e.AdjustedEntryID = &target.ID
		return nil
	})
}

func (s *Service) createDraft(ctx context.Context, in DraftInput, prepare func(context.Context, TxRepository, *Entry) error) (Entry, error) {
	entry, err := NewDraft(in, s.draftCode(), s.now())
	if err != nil {
		return Entry{}, err
	}
	if err := s.accounts.EnsurePostable(ctx, entry.AccountIDs()); err != nil {
		return Entry{}, err
	}
	var created Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, _, err := periods.ResolveDate(ctx, tx, entry.JournalDate); err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(ctx, tx, &entry); err != nil {
				return err
			}
		}
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, in.Actor, "journal.draft.create", created.ID, map[string]any{
		"draft_code":  created.DraftCode,
		"source_type": string(created.SourceType),
	})
	return created, nil
}

// UpdateDraft edits the header of a draft.
func (s *Service) UpdateDraft(ctx context.Context, id int64, in HeaderInput, actor string) (Entry, error) {
	return s.mutateDraft(ctx, id, actor, "journal.draft.update", func(e *Entry) error {
		return e.UpdateHeader(in, s.now())
	})
}

// AddLine appends a line to a draft.
func (s *Service) AddLine(ctx context.Context, id int64, in LineInput, actor string) (Entry, error) {
	return s.mutateDraft(ctx, id, actor, "journal.draft.add_line", func(e *Entry) error {
		return e.AddLine(in, s.now())
	})
}

// RemoveLine deletes a draft line by number.
func (s *Service) RemoveLine(ctx context.Context, id int64, lineNumber int, actor string) (Entry, error) {
	return s.mutateDraft(ctx, id, actor, "journal.draft.remove_line", func(e *Entry) error {
		return e.RemoveLine(lineNumber, s.now())
	})
}

// ReplaceLines swaps every line of a draft.
func (s *Service) ReplaceLines(ctx context.Context, id int64, lines []LineInput, actor string) (Entry, error) {
	return s.mutateDraft(ctx, id, actor, "journal.draft.replace_lines", func(e *Entry) error {
		return e.ReplaceLines(lines, s.now())
	})
}

// DeleteDraft soft deletes a draft. Posted entries are never deleted.
func (s *Service) DeleteDraft(ctx context.Context, id int64, actor string) error {
	_, err := s.mutateDraft(ctx, id, actor, "journal.draft.delete", func(e *Entry) error {
		now := s.now()
		e.DeletedAt = &now
		e.UpdatedAt = now
		return nil
	})
	return err
}

func (s *Service) mutateDraft(ctx context.Context, id int64, actor, action string, mutate func(*Entry) error) (Entry, error) {
	var updated Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := e.EnsureDraft(); err != nil {
			return err
		}
		previousDate := e.JournalDate
		if err := mutate(&e); err != nil {
			return err
		}
		if e.DeletedAt == nil {
			if !e.JournalDate.Equal(previousDate) {
				if _, _, err := periods.ResolveDate(ctx, tx, e.JournalDate); err != nil {
					return err
				}
			}
			if err := s.accounts.EnsurePostable(ctx, e.AccountIDs()); err != nil {
				return err
			}
		}
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return err
		}
		if err := tx.ReplaceEntryLines(ctx, e.ID, e.Lines); err != nil {
			return err
		}
		e.Version++
		updated = e
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, actor, action, updated.ID, map[string]any{"draft_code": updated.DraftCode})
	return updated, nil
}

// Post moves a draft to POSTED, assigning its journal number. The whole
// transaction is replayed when it loses a serialization race.
func (s *Service) Post(ctx context.Context, id int64, actor string) (PostResult, error) {
	var posted Entry
	err := s.withRetry(ctx, "post", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			e, err := tx.GetEntryForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := s.post(ctx, tx, &e, actor); err != nil {
				return err
			}
			posted = e
			return nil
		})
	})
	if err != nil {
		return PostResult{}, err
	}
	s.observer.EntryPosted(posted.DocumentType)
	s.logger.Info("journal posted",
		slog.String("journal_number", posted.JournalNumber),
		slog.Int64("entry_id", posted.ID),
		slog.String("actor", actor),
	)
	s.record(ctx, actor, "journal.post", posted.ID, map[string]any{
		"journal_number": posted.JournalNumber,
		"total":          posted.TotalDebit.StringFixed(2),
	})
	return resultOf(posted), nil
}

// post runs the posting steps on e inside tx.
func (s *Service) post(ctx context.Context, tx TxRepository, e *Entry, actor string) error {
	if err := e.ensurePostable(); err != nil {
		return err
	}
	fy, period, err := periods.ResolveDate(ctx, tx, e.JournalDate)
	if err != nil {
		return err
	}
	if err := s.accounts.EnsurePostable(ctx, e.AccountIDs()); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	number, err := sequence.Next(ctx, tx, e.documentType(), fy.ID, fy.Year)
	if err != nil {
		return err
	}
	if err := e.MarkPosted(number, fy.ID, period.ID, actor, s.now()); err != nil {
		return err
	}
	if err := tx.UpdateEntry(ctx, *e); err != nil {
		return err
	}
	e.Version++
	return tx.ApplyBalances(ctx, period.ID, e.Lines)
}

func (s *Service) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	return s.repo.ListEntries(ctx, filter.Normalize())
}

func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) withRetry(ctx context.Context, operation string, fn func() error) error {
	policy := s.retry
	policy.OnRetry = func(err error, wait time.Duration) {
		s.observer.ConflictRetried(operation)
		s.logger.Warn("journal transaction conflict, retrying",
			slog.String("operation", operation),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}
	return shared.RetryOnConflict(ctx, policy, fn)
}

func resultOf(e Entry) PostResult {
	res := PostResult{EntryID: e.ID, JournalNumber: e.JournalNumber}
	if e.PostedAt != nil {
		res.PostedAt = *e.PostedAt
	}
	return res
}

func (s *Service) record(ctx context.Context, actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

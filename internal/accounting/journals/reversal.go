package journals

import (
	"context"
	"log/slog"
)

// Reverse posts a mirror entry of a posted entry and marks the source REVERSED.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (PostResult, error) {
	date := in.ReversalDate
	if date.IsZero() {
		date = s.now()
	}
	var source, reversal Entry
	err := s.withRetry(ctx, "reverse", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			src, err := tx.GetEntryForUpdate(ctx, in.EntryID)
			if err != nil {
				return err
			}
			draft, err := src.BuildReversal(in.Reason, date, s.draftCode(), in.Actor, s.now())
			if err != nil {
				return err
			}
			rev, err := tx.InsertEntry(ctx, draft)
			if err != nil {
				return err
			}
			if err := s.post(ctx, tx, &rev, in.Actor); err != nil {
				return err
			}
			if err := src.MarkReversed(rev.ID, s.now()); err != nil {
				return err
			}
			if err := tx.UpdateEntry(ctx, src); err != nil {
				return err
			}
			src.Version++
			source, reversal = src, rev
			return nil
		})
	})
	if err != nil {
		return PostResult{}, err
	}
	s.observer.EntryPosted(reversal.DocumentType)
	s.observer.EntryReversed()
	s.logger.Info("journal reversed",
		slog.String("journal_number", source.JournalNumber),
		slog.String("reversal_number", reversal.JournalNumber),
		slog.String("actor", in.Actor),
	)
	s.record(ctx, in.Actor, "journal.reverse", source.ID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.JournalNumber,
		"reason":          reversal.ReversalReason,
	})
	return resultOf(reversal), nil
}

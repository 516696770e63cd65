package periods

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-gl/internal/shared"
)

// AuditPort records calendar transitions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service owns the fiscal year and period lifecycle.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateFiscalYear creates a SETUP year with its twelve periods.
func (s *Service) CreateFiscalYear(ctx context.Context, year int, actor string) (FiscalYear, error) {
	fy, err := NewFiscalYear(year, actor, s.now())
	if err != nil {
		return FiscalYear{}, err
	}
	var created FiscalYear
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertFiscalYear(ctx, fy)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, actor, "fiscal_year.create", "fiscal_year", created.ID, map[string]any{"year": created.Year})
	return created, nil
}

// ActivateFiscalYear transitions SETUP to ACTIVE. The active-year check and the
// write run under the activation guard so concurrent activations serialize.
func (s *Service) ActivateFiscalYear(ctx context.Context, id int64, actor string) (FiscalYear, error) {
	var activated FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AcquireActivationGuard(ctx); err != nil {
			return err
		}
		fy, err := tx.GetFiscalYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		active, found, err := tx.FindActiveFiscalYear(ctx)
		if err != nil {
			return err
		}
		if found && active.ID != fy.ID {
			return fmt.Errorf("year %d is active: %w", active.Year, shared.ErrAnotherYearActive)
		}
		if err := fy.Activate(s.now()); err != nil {
			return err
		}
		if err := tx.UpdateFiscalYear(ctx, fy); err != nil {
			return err
		}
		fy.Version++
		activated = fy
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.logger.Info("fiscal year activated", slog.Int("year", activated.Year), slog.String("actor", actor))
	s.record(ctx, actor, "fiscal_year.activate", "fiscal_year", activated.ID, map[string]any{"year": activated.Year})
	return activated, nil
}

// CloseFiscalYear transitions ACTIVE to CLOSED. Closure is terminal.
func (s *Service) CloseFiscalYear(ctx context.Context, id int64, actor string) (FiscalYear, error) {
	var closed FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetFiscalYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if fy.Status == YearStatusActive {
			drafts, err := tx.CountDrafts(ctx, fy.StartDate, fy.EndDate)
			if err != nil {
				return err
			}
			if drafts > 0 {
				return fmt.Errorf("%d drafts in %d: %w", drafts, fy.Year, shared.ErrPendingDrafts)
			}
		}
		if err := fy.Close(actor, s.now()); err != nil {
			return err
		}
		debit, credit, err := tx.PostedTotals(ctx, fy.ID)
		if err != nil {
			return err
		}
		if !debit.Equal(credit) {
			return fmt.Errorf("debit %s credit %s: %w", debit.StringFixed(2), credit.StringFixed(2), shared.ErrTrialBalanceMismatch)
		}
		if err := tx.UpdateFiscalYear(ctx, fy); err != nil {
			return err
		}
		fy.Version++
		closed = fy
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.logger.Info("fiscal year closed", slog.Int("year", closed.Year), slog.String("actor", actor))
	s.record(ctx, actor, "fiscal_year.close", "fiscal_year", closed.ID, map[string]any{"year": closed.Year})
	return closed, nil
}

// LockPeriod locks an open period that has no pending drafts.
func (s *Service) LockPeriod(ctx context.Context, periodID int64, actor string) (FiscalPeriod, error) {
	var locked FiscalPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetFiscalYearByPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		current, ok := fy.PeriodByID(periodID)
		if !ok {
			return shared.ErrPeriodNotFound
		}
		if current.IsOpen() && fy.Status != YearStatusClosed {
			drafts, err := tx.CountDrafts(ctx, current.StartDate, current.EndDate)
			if err != nil {
				return err
			}
			if drafts > 0 {
				return fmt.Errorf("%d drafts in %s: %w", drafts, current.Code(), shared.ErrPendingDraftsInPeriod)
			}
		}
		p, err := fy.LockPeriod(current.Number, actor, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return err
		}
		p.Version++
		locked = p
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}
	s.record(ctx, actor, "fiscal_period.lock", "fiscal_period", locked.ID, map[string]any{"period": locked.Code()})
	return locked, nil
}

// UnlockPeriod reopens the most recently locked period of the active year.
func (s *Service) UnlockPeriod(ctx context.Context, periodID int64, reason, actor string) (FiscalPeriod, error) {
	var unlocked FiscalPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetFiscalYearByPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		current, ok := fy.PeriodByID(periodID)
		if !ok {
			return shared.ErrPeriodNotFound
		}
		p, err := fy.UnlockPeriod(current.Number, reason, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return err
		}
		p.Version++
		unlocked = p
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}
	s.logger.Warn("fiscal period unlocked", slog.String("period", unlocked.Code()), slog.String("actor", actor), slog.String("reason", unlocked.UnlockReason))
	s.record(ctx, actor, "fiscal_period.unlock", "fiscal_period", unlocked.ID, map[string]any{"period": unlocked.Code(), "reason": unlocked.UnlockReason})
	return unlocked, nil
}

// ResolvePeriod returns the active year and open period containing date.
func (s *Service) ResolvePeriod(ctx context.Context, date time.Time) (FiscalYear, FiscalPeriod, error) {
	return ResolveDate(ctx, s.repo, date)
}

func (s *Service) ListFiscalYears(ctx context.Context) ([]FiscalYear, error) {
	return s.repo.ListFiscalYears(ctx)
}

func (s *Service) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return s.repo.GetFiscalYear(ctx, id)
}

// GetActiveFiscalYear returns ErrYearNotFound when no year is active.
func (s *Service) GetActiveFiscalYear(ctx context.Context) (FiscalYear, error) {
	return s.repo.GetActiveFiscalYear(ctx)
}

func (s *Service) record(ctx context.Context, actor, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

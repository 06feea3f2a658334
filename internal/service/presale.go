package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

var hundred = decimal.NewFromInt(100)

// FindActiveWindow returns the first active window containing the calendar
// day of now, or nil.
func (s *Service) FindActiveWindow(ctx context.Context, now time.Time) (*domain.PreSaleWindow, error) {
	var found *domain.PreSaleWindow
	err := s.run(ctx, []string{store.PreSales}, func(sess *session) error {
		var err error
		found, err = s.activeWindow(sess, domain.DayOf(now, s.loc))
		return err
	})
	return found, err
}

func (s *Service) activeWindow(sess *session, day domain.Day) (*domain.PreSaleWindow, error) {
	windows, err := load[domain.PreSaleWindow](sess, store.PreSales)
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		if !w.Active {
			continue
		}
		if !w.StartDate.Valid() || !w.EndDate.Valid() {
			s.logger.Warn("skipping pre-sale window with malformed dates",
				zap.Int64("presale_id", w.ID),
				zap.String("start_date", w.StartDate.String()),
				zap.String("end_date", w.EndDate.String()))
			continue
		}
		if w.Contains(day) {
			found := w
			return &found, nil
		}
	}
	return nil, nil
}

// CreatePreSale opens a new window and makes it the only active one.
func (s *Service) CreatePreSale(ctx context.Context, start domain.Day, end domain.Day, discountPercent decimal.Decimal, actor string) (domain.PreSaleWindow, error) {
	if !start.Valid() || !end.Valid() {
		return domain.PreSaleWindow{}, fmt.Errorf("start and end dates are required: %w", store.ErrInvalidArgument)
	}
	if !end.After(start) {
		return domain.PreSaleWindow{}, fmt.Errorf("end date must be after start date: %w", store.ErrInvalidArgument)
	}
	if start.Before(s.today()) {
		return domain.PreSaleWindow{}, fmt.Errorf("start date is in the past: %w", store.ErrInvalidArgument)
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return domain.PreSaleWindow{}, fmt.Errorf("discount must be between 0 and 100: %w", store.ErrInvalidArgument)
	}

	var created domain.PreSaleWindow
	err := s.run(ctx, []string{store.PreSales}, func(sess *session) error {
		windows, err := load[domain.PreSaleWindow](sess, store.PreSales)
		if err != nil {
			return err
		}

		windows = slices.Clone(windows)
		for i := range windows {
			windows[i].Active = false
		}
		created = domain.PreSaleWindow{
			ID:              nextID(windows, func(w domain.PreSaleWindow) int64 { return w.ID }),
			StartDate:       start,
			EndDate:         end,
			DiscountPercent: discountPercent,
			Active:          true,
			CreatedBy:       actorName(actor),
			CreatedAt:       s.Now(),
		}
		put(sess, store.PreSales, append(windows, created))
		return nil
	})
	if err != nil {
		return domain.PreSaleWindow{}, err
	}

	s.logger.Info("pre-sale window created",
		zap.Int64("presale_id", created.ID),
		zap.String("start_date", created.StartDate.String()),
		zap.String("end_date", created.EndDate.String()),
		zap.String("discount_percent", created.DiscountPercent.String()))
	return created, nil
}

// ActivatePreSale makes id the only active window.
func (s *Service) ActivatePreSale(ctx context.Context, id int64) (domain.PreSaleWindow, error) {
	return s.updatePreSale(ctx, id, func(windows []domain.PreSaleWindow, idx int) {
		for i := range windows {
			windows[i].Active = i == idx
		}
	})
}

// DeactivatePreSale clears the active flag of id only.
func (s *Service) DeactivatePreSale(ctx context.Context, id int64) (domain.PreSaleWindow, error) {
	return s.updatePreSale(ctx, id, func(windows []domain.PreSaleWindow, idx int) {
		windows[idx].Active = false
	})
}

func (s *Service) updatePreSale(ctx context.Context, id int64, mutate func([]domain.PreSaleWindow, int)) (domain.PreSaleWindow, error) {
	var updated domain.PreSaleWindow
	err := s.run(ctx, []string{store.PreSales}, func(sess *session) error {
		windows, err := load[domain.PreSaleWindow](sess, store.PreSales)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(windows, func(w domain.PreSaleWindow) bool { return w.ID == id })
		if idx < 0 {
			return fmt.Errorf("pre-sale %d: %w", id, store.ErrNotFound)
		}

		windows = slices.Clone(windows)
		mutate(windows, idx)
		updated = windows[idx]
		put(sess, store.PreSales, windows)
		return nil
	})
	return updated, err
}

// DeletePreSale removes a window. Orders placed under it keep their discount.
func (s *Service) DeletePreSale(ctx context.Context, id int64) error {
	return s.run(ctx, []string{store.PreSales}, func(sess *session) error {
		windows, err := load[domain.PreSaleWindow](sess, store.PreSales)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(windows, func(w domain.PreSaleWindow) bool { return w.ID == id })
		if idx < 0 {
			return fmt.Errorf("pre-sale %d: %w", id, store.ErrNotFound)
		}
		put(sess, store.PreSales, slices.Delete(slices.Clone(windows), idx, idx+1))
		return nil
	})
}

// ListPreSales returns all windows, newest first.
func (s *Service) ListPreSales(ctx context.Context) ([]domain.PreSaleWindow, error) {
	var out []domain.PreSaleWindow
	err := s.run(ctx, []string{store.PreSales}, func(sess *session) error {
		windows, err := load[domain.PreSaleWindow](sess, store.PreSales)
		if err != nil {
			return err
		}
		out = slices.Clone(windows)
		slices.SortStableFunc(out, func(a, b domain.PreSaleWindow) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
		return nil
	})
	return out, err
}

// VerifyPreSaleInvariant fails with ErrConflict when more than one window is
// flagged active.
func (s *Service) VerifyPreSaleInvariant(ctx context.Context) error {
	return s.run(ctx, []string{store.PreSales}, func(sess *session) error {
		windows, err := load[domain.PreSaleWindow](sess, store.PreSales)
		if err != nil {
			return err
		}
		active := make([]int64, 0, 1)
		for _, w := range windows {
			if w.Active {
				active = append(active, w.ID)
			}
		}
		if len(active) > 1 {
			return fmt.Errorf("%d active pre-sale windows %v: %w", len(active), active, store.ErrConflict)
		}
		return nil
	})
}

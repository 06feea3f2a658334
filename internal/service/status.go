package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

// MigrateOrderStatuses rewrites orders still carrying a legacy or missing
// status as the delivered/paid pair. The collection is only written when at
// least one order changed. Running it again is a no-op.
func (s *Service) MigrateOrderStatuses(ctx context.Context) (int, error) {
	migrated := 0
	err := s.run(ctx, []string{store.Orders}, func(sess *session) error {
		var err error
		migrated, err = s.migrateOrderStatuses(sess)
		return err
	})
	if err != nil {
		return 0, err
	}
	if migrated > 0 {
		s.logger.Info("legacy order statuses migrated", zap.Int("count", migrated))
	}
	return migrated, nil
}

func (s *Service) migrateOrderStatuses(sess *session) (int, error) {
	raw, err := sess.records.Load(sess.ctx, store.Orders)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", store.Orders, err)
	}

	legacy := 0
	for _, record := range raw {
		if domain.NeedsStatusMigration(record) {
			legacy++
		}
	}

	orders, err := store.Decode[domain.Order](store.Orders, raw)
	if err != nil {
		return 0, err
	}
	if legacy == 0 {
		sess.loaded[store.Orders] = orders
		return 0, nil
	}
	put(sess, store.Orders, orders)
	return legacy, nil
}

// ToggleDelivery flips the delivered flag, stamping or clearing deliveredAt.
func (s *Service) ToggleDelivery(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.updateOrder(ctx, orderID, func(order *domain.Order, now time.Time) {
		order.Status.Delivered = !order.Status.Delivered
		order.DeliveredAt = stampIf(order.Status.Delivered, now)
	})
}

// TogglePayment flips the paid flag, stamping or clearing paidAt.
func (s *Service) TogglePayment(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.updateOrder(ctx, orderID, func(order *domain.Order, now time.Time) {
		order.Status.Paid = !order.Status.Paid
		order.PaidAt = stampIf(order.Status.Paid, now)
	})
}

func stampIf(set bool, now time.Time) *time.Time {
	if !set {
		return nil
	}
	return &now
}

func (s *Service) updateOrder(ctx context.Context, orderID int64, mutate func(*domain.Order, time.Time)) (domain.Order, error) {
	var updated domain.Order
	err := s.run(ctx, []string{store.Orders}, func(sess *session) error {
		orders, err := load[domain.Order](sess, store.Orders)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(orders, func(o domain.Order) bool { return o.ID == orderID })
		if idx < 0 {
			return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
		}

		orders = slices.Clone(orders)
		mutate(&orders[idx], s.Now())
		updated = orders[idx]
		put(sess, store.Orders, orders)
		return nil
	})
	return updated, err
}

// DeleteOrder removes an order. Stock is not restored.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	return s.run(ctx, []string{store.Orders}, func(sess *session) error {
		orders, err := load[domain.Order](sess, store.Orders)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(orders, func(o domain.Order) bool { return o.ID == orderID })
		if idx < 0 {
			return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
		}
		put(sess, store.Orders, slices.Delete(slices.Clone(orders), idx, idx+1))
		return nil
	})
}

package service

import (
	"context"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

type BootstrapOptions struct {
	// Admin is created as a protected administrator when no user exists yet.
	Admin *domain.User
	// DemoProducts seeds the starter catalogue when no product exists yet.
	DemoProducts bool
}

var demoCatalogue = []domain.Product{
	{Name: "Pão Francês", Price: decimal.RequireFromString("0.50"), Quantity: 50, Category: "Pães", MinStock: 10},
	{Name: "Bolo de Chocolate", Price: decimal.RequireFromString("15.00"), Quantity: 8, Category: "Bolos", MinStock: 5},
	{Name: "Café", Price: decimal.RequireFromString("5.00"), Quantity: 30, Category: "Bebidas", MinStock: 15},
	{Name: "Suco Natural", Price: decimal.RequireFromString("7.00"), Quantity: 25, Category: "Bebidas", MinStock: 10},
	{Name: "Croissant", Price: decimal.RequireFromString("4.50"), Quantity: 20, Category: "Salgados", MinStock: 8},
}

var allCollections = []string{
	store.Users, store.Products, store.Movements, store.Sales,
	store.Orders, store.PreSales, store.Loyalty,
}

// Bootstrap makes sure every collection exists, seeds an empty store,
// migrates legacy order statuses and reports a broken pre-sale invariant.
func (s *Service) Bootstrap(ctx context.Context, opts BootstrapOptions) error {
	err := s.run(ctx, allCollections, func(sess *session) error {
		for _, name := range allCollections {
			if _, err := sess.records.Load(ctx, name); err != nil {
				return err
			}
		}

		if opts.Admin != nil {
			if err := s.seedAdmin(sess, *opts.Admin); err != nil {
				return err
			}
		}
		if opts.DemoProducts {
			if err := s.seedProducts(sess); err != nil {
				return err
			}
		}

		_, err := s.migrateOrderStatuses(sess)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.VerifyPreSaleInvariant(ctx); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		s.logger.Warn("pre-sale invariant violated", zap.Error(err))
	}
	return nil
}

func (s *Service) seedAdmin(sess *session, admin domain.User) error {
	users, err := load[domain.User](sess, store.Users)
	if err != nil || len(users) > 0 {
		return err
	}

	admin.Kind = domain.KindAdmin
	admin.Protected = true
	if err := normalizeUser(&admin); err != nil {
		return err
	}
	created, err := s.insertUser(sess, admin)
	if err != nil {
		return err
	}
	s.logger.Info("seeded admin user", zap.Int64("user_id", created.ID), zap.String("email", created.Email))
	return nil
}

func (s *Service) seedProducts(sess *session) error {
	products, err := load[domain.Product](sess, store.Products)
	if err != nil || len(products) > 0 {
		return err
	}

	seeded := slices.Clone(demoCatalogue)
	for i := range seeded {
		seeded[i].ID = int64(i + 1)
		if err := s.recordMovement(sess, domain.Movement{
			ProductID:   seeded[i].ID,
			ProductName: seeded[i].Name,
			Quantity:    seeded[i].Quantity,
			Kind:        domain.MovementInitialInbound,
		}); err != nil {
			return err
		}
	}
	put(sess, store.Products, seeded)
	s.logger.Info("seeded demo catalogue", zap.Int("products", len(seeded)))
	return nil
}

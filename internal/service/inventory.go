package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

const defaultMinStock = 10

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := s.run(ctx, []string{store.Products}, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		out = slices.Clone(products)
		return err
	})
	return out, err
}

// LowStockProducts lists products whose quantity is below their minimum.
func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return lowStock(products), nil
}

func lowStock(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) RegisterProduct(ctx context.Context, req domain.ProductCreateRequest, actor string) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	minStock := defaultMinStock
	if req.MinStock != nil {
		minStock = *req.MinStock
	}
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, fmt.Errorf("name and category are required: %w", store.ErrInvalidArgument)
	}
	if req.Price.IsNegative() || req.Quantity < 0 || minStock < 0 {
		return domain.Product{}, fmt.Errorf("price, quantity and min stock must not be negative: %w", store.ErrInvalidArgument)
	}

	var created domain.Product
	err := s.run(ctx, []string{store.Products, store.Movements}, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		for _, p := range products {
			if strings.EqualFold(strings.TrimSpace(p.Name), req.Name) {
				return fmt.Errorf("product %q: %w", req.Name, store.ErrDuplicateName)
			}
		}

		created = domain.Product{
			ID:       nextID(products, func(p domain.Product) int64 { return p.ID }),
			Name:     req.Name,
			Price:    req.Price,
			Quantity: req.Quantity,
			Category: req.Category,
			MinStock: minStock,
		}
		put(sess, store.Products, append(slices.Clone(products), created))

		return s.recordMovement(sess, domain.Movement{
			ProductID:   created.ID,
			ProductName: created.Name,
			Quantity:    created.Quantity,
			Kind:        domain.MovementInitialInbound,
			Actor:       actor,
		})
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product registered", zap.Int64("product_id", created.ID), zap.String("name", created.Name), zap.Int("quantity", created.Quantity))
	return created, nil
}

// IncreaseStock adds amount units to a product. A zero effective date means
// today.
func (s *Service) IncreaseStock(ctx context.Context, productID int64, amount int, effective domain.Day, actor string) (domain.Product, error) {
	if amount <= 0 {
		return domain.Product{}, fmt.Errorf("amount must be positive: %w", store.ErrInvalidArgument)
	}
	if !effective.Valid() {
		effective = s.today()
	}

	var updated domain.Product
	err := s.run(ctx, []string{store.Products, store.Movements}, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(products, func(p domain.Product) bool { return p.ID == productID })
		if idx < 0 {
			return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
		}

		products = slices.Clone(products)
		products[idx].Quantity += amount
		updated = products[idx]
		put(sess, store.Products, products)

		return s.recordMovement(sess, domain.Movement{
			ProductID:     updated.ID,
			ProductName:   updated.Name,
			Quantity:      amount,
			Kind:          domain.MovementInbound,
			Actor:         actor,
			EffectiveDate: &effective,
		})
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// ReserveStock decrements every line or none of them.
func (s *Service) ReserveStock(ctx context.Context, lines []domain.StockLine, actor string, note string) error {
	return s.run(ctx, []string{store.Products, store.Movements}, func(sess *session) error {
		return s.reserve(sess, lines, actor, note)
	})
}

func (s *Service) reserve(sess *session, lines []domain.StockLine, actor string, note string) error {
	if len(lines) == 0 {
		return fmt.Errorf("no items to reserve: %w", store.ErrInvalidArgument)
	}

	requested := make(map[int64]int, len(lines))
	order := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("quantity for product %d must be positive: %w", line.ProductID, store.ErrInvalidArgument)
		}
		if _, seen := requested[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	products, err := load[domain.Product](sess, store.Products)
	if err != nil {
		return err
	}
	index := make(map[int64]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}

	for _, id := range order {
		i, ok := index[id]
		if !ok {
			return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
		}
		if products[i].Quantity < requested[id] {
			return &store.InsufficientStockError{
				ProductID:   id,
				ProductName: products[i].Name,
				Available:   products[i].Quantity,
				Requested:   requested[id],
			}
		}
	}

	products = slices.Clone(products)
	for _, id := range order {
		i := index[id]
		products[i].Quantity -= requested[id]
		if err := s.recordMovement(sess, domain.Movement{
			ProductID:   id,
			ProductName: products[i].Name,
			Quantity:    requested[id],
			Kind:        domain.MovementOutbound,
			Actor:       actor,
			Note:        note,
		}); err != nil {
			return err
		}
	}
	put(sess, store.Products, products)
	return nil
}

// DeleteProduct removes a product and records the stock that left with it.
func (s *Service) DeleteProduct(ctx context.Context, productID int64, actor string) error {
	var removed domain.Product
	err := s.run(ctx, []string{store.Products, store.Movements}, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(products, func(p domain.Product) bool { return p.ID == productID })
		if idx < 0 {
			return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
		}

		removed = products[idx]
		put(sess, store.Products, slices.Delete(slices.Clone(products), idx, idx+1))

		return s.recordMovement(sess, domain.Movement{
			ProductID:   removed.ID,
			ProductName: removed.Name,
			Quantity:    removed.Quantity,
			Kind:        domain.MovementDeletion,
			Actor:       actor,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("product deleted", zap.Int64("product_id", removed.ID), zap.String("name", removed.Name), zap.Int("quantity", removed.Quantity))
	return nil
}

// CheckAvailability reports whether quantity units of a product are on hand.
func (s *Service) CheckAvailability(ctx context.Context, productID int64, quantity int) (domain.StockAvailability, error) {
	if quantity <= 0 {
		return domain.StockAvailability{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidArgument)
	}

	var out domain.StockAvailability
	err := s.run(ctx, []string{store.Products}, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(products, func(p domain.Product) bool { return p.ID == productID })
		if idx < 0 {
			return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
		}
		out = domain.StockAvailability{
			Available:    products[idx].Quantity >= quantity,
			CurrentStock: products[idx].Quantity,
			Requested:    quantity,
		}
		return nil
	})
	return out, err
}

func catalogPrices(products []domain.Product) map[int64]decimal.Decimal {
	prices := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}
	return prices
}

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

// ProcessPosSale reserves stock for every line, records an in-person sale and
// credits loyalty points when a customer tax id is given.
func (s *Service) ProcessPosSale(ctx context.Context, req domain.PosSaleRequest, seller string) (domain.Sale, error) {
	if err := validateLines(req.LineItems); err != nil {
		return domain.Sale{}, err
	}
	if req.Total.IsNegative() {
		return domain.Sale{}, fmt.Errorf("total must not be negative: %w", store.ErrInvalidArgument)
	}
	taxID := ""
	if strings.TrimSpace(req.CustomerTaxID) != "" {
		taxID = NormalizeTaxID(req.CustomerTaxID)
		if taxID == "" {
			return domain.Sale{}, fmt.Errorf("tax id %q has no digits: %w", req.CustomerTaxID, store.ErrInvalidArgument)
		}
	}

	var sale domain.Sale
	var balance domain.LoyaltyAccount
	names := []string{store.Products, store.Movements, store.Sales, store.Loyalty}
	err := s.run(ctx, names, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		lines := fillProductNames(req.LineItems, products)
		computed := computeTotal(lines, catalogPrices(products))

		if err := s.reserve(sess, stockLines(lines), seller, ""); err != nil {
			return err
		}

		sales, err := load[domain.Sale](sess, store.Sales)
		if err != nil {
			return err
		}
		sale = domain.Sale{
			ID:            nextID(sales, func(v domain.Sale) int64 { return v.ID }),
			Timestamp:     s.Now(),
			LineItems:     lines,
			Total:         req.Total,
			ComputedTotal: computed,
			TotalMismatch: !computed.Equal(req.Total.Round(2)),
			SellerName:    actorName(seller),
			CustomerTaxID: taxID,
			Channel:       domain.ChannelInPerson,
		}
		put(sess, store.Sales, append(slices.Clone(sales), sale))

		if taxID != "" {
			balance, err = s.creditLoyalty(sess, taxID, PointsFor(sale.Total))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	if sale.TotalMismatch {
		s.logger.Warn("submitted sale total differs from catalogue prices",
			zap.Int64("sale_id", sale.ID),
			zap.String("submitted", sale.Total.String()),
			zap.String("computed", sale.ComputedTotal.String()))
	}
	fields := []zap.Field{zap.Int64("sale_id", sale.ID), zap.String("total", sale.Total.String()), zap.String("seller", sale.SellerName)}
	if taxID != "" {
		fields = append(fields, zap.Int64("loyalty_points", balance.Points))
	}
	s.logger.Info("pos sale recorded", fields...)
	return sale, nil
}

// ProcessCustomerOrder places an online order. Pre-sale orders get the
// active window's discount; immediate orders are also recorded as a paid and
// delivered online sale.
func (s *Service) ProcessCustomerOrder(ctx context.Context, kind domain.OrderKind, items []domain.LineItem, paymentMethod string, customerID int64, customerName string) (domain.Order, error) {
	if !kind.Valid() {
		return domain.Order{}, fmt.Errorf("order kind %q: %w", kind, store.ErrInvalidArgument)
	}
	if err := validateLines(items); err != nil {
		return domain.Order{}, err
	}
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return domain.Order{}, fmt.Errorf("payment method is required: %w", store.ErrInvalidArgument)
	}
	customerName = strings.TrimSpace(customerName)

	var order domain.Order
	names := []string{store.Products, store.Movements, store.Sales, store.Orders, store.PreSales}
	err := s.run(ctx, names, func(sess *session) error {
		discount := decimal.Zero
		if kind == domain.OrderPreSale {
			window, err := s.activeWindow(sess, s.today())
			if err != nil {
				return err
			}
			if window != nil {
				discount = window.DiscountPercent
			}
		}

		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		prices := catalogPrices(products)
		mismatch := false
		for _, item := range items {
			if catalog, ok := prices[item.ProductID]; ok && !catalog.Equal(item.UnitPrice) {
				mismatch = true
			}
		}

		lines := applyDiscount(fillProductNames(items, products), discount)
		note := "online order - " + string(kind)
		if err := s.reserve(sess, stockLines(lines), customerName, note); err != nil {
			return err
		}

		now := s.Now()
		orders, err := load[domain.Order](sess, store.Orders)
		if err != nil {
			return err
		}
		order = domain.Order{
			ID:              nextID(orders, func(o domain.Order) int64 { return o.ID }),
			CustomerID:      customerID,
			CustomerName:    customerName,
			LineItems:       lines,
			PaymentMethod:   paymentMethod,
			Kind:            kind,
			Total:           sumLines(lines),
			CreatedAt:       now,
			DiscountApplied: discount,
			PriceMismatch:   mismatch,
		}

		if kind == domain.OrderImmediate {
			order.Status = domain.OrderStatus{Delivered: true, Paid: true}
			order.DeliveredAt = &now
			order.PaidAt = &now

			sales, err := load[domain.Sale](sess, store.Sales)
			if err != nil {
				return err
			}
			sale := domain.Sale{
				ID:            nextID(sales, func(v domain.Sale) int64 { return v.ID }),
				Timestamp:     now,
				LineItems:     lines,
				Total:         order.Total,
				ComputedTotal: order.Total,
				SellerName:    customerName + " (Online)",
				CustomerID:    customerID,
				CustomerName:  customerName,
				Channel:       domain.ChannelOnline,
			}
			put(sess, store.Sales, append(slices.Clone(sales), sale))
		}

		put(sess, store.Orders, append(slices.Clone(orders), order))
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if order.PriceMismatch {
		s.logger.Warn("submitted unit prices differ from catalogue prices", zap.Int64("order_id", order.ID))
	}
	s.logger.Info("customer order recorded",
		zap.Int64("order_id", order.ID),
		zap.String("order_kind", string(order.Kind)),
		zap.String("total", order.Total.String()),
		zap.String("discount_percent", order.DiscountApplied.String()))
	return order, nil
}

// ListSales returns recorded sales, newest first.
func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var out []domain.Sale
	err := s.run(ctx, []string{store.Sales}, func(sess *session) error {
		sales, err := load[domain.Sale](sess, store.Sales)
		out = slices.Clone(sales)
		slices.Reverse(out)
		return err
	})
	return out, err
}

// ListOrders returns orders newest first. A positive customerID limits the
// result to that customer.
func (s *Service) ListOrders(ctx context.Context, customerID int64) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	err := s.run(ctx, []string{store.Orders}, func(sess *session) error {
		orders, err := load[domain.Order](sess, store.Orders)
		if err != nil {
			return err
		}
		for i := len(orders) - 1; i >= 0; i-- {
			if customerID > 0 && orders[i].CustomerID != customerID {
				continue
			}
			out = append(out, orders[i])
		}
		return nil
	})
	return out, err
}

func validateLines(items []domain.LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one line item is required: %w", store.ErrInvalidArgument)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("quantity for product %d must be positive: %w", item.ProductID, store.ErrInvalidArgument)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("unit price for product %d must not be negative: %w", item.ProductID, store.ErrInvalidArgument)
		}
	}
	return nil
}

func fillProductNames(items []domain.LineItem, products []domain.Product) []domain.LineItem {
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	out := slices.Clone(items)
	for i := range out {
		if strings.TrimSpace(out[i].ProductName) == "" {
			out[i].ProductName = names[out[i].ProductID]
		}
	}
	return out
}

func applyDiscount(items []domain.LineItem, percent decimal.Decimal) []domain.LineItem {
	if percent.IsZero() {
		return items
	}
	factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
	for i := range items {
		items[i].UnitPrice = items[i].UnitPrice.Mul(factor)
	}
	return items
}

func sumLines(items []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total.Round(2)
}

// computeTotal prices lines at catalogue prices. Unknown products count as
// zero; reservation rejects them anyway.
func computeTotal(items []domain.LineItem, prices map[int64]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(prices[item.ProductID].Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2)
}

func stockLines(items []domain.LineItem) []domain.StockLine {
	lines := make([]domain.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

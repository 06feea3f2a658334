package service

import (
	"context"

	"github.com/shopspring/decimal"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

// Summary aggregates the dashboard figures.
func (s *Service) Summary(ctx context.Context) (domain.SummaryReport, error) {
	var report domain.SummaryReport
	names := []string{store.Products, store.Sales, store.Users, store.Orders, store.Loyalty}
	err := s.run(ctx, names, func(sess *session) error {
		products, err := load[domain.Product](sess, store.Products)
		if err != nil {
			return err
		}
		sales, err := load[domain.Sale](sess, store.Sales)
		if err != nil {
			return err
		}
		users, err := load[domain.User](sess, store.Users)
		if err != nil {
			return err
		}
		orders, err := load[domain.Order](sess, store.Orders)
		if err != nil {
			return err
		}
		accounts, err := load[domain.LoyaltyAccount](sess, store.Loyalty)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, sale := range sales {
			total = total.Add(sale.Total)
		}
		report = domain.SummaryReport{
			TotalSales:      total,
			ProductCount:    len(products),
			UserCount:       len(users),
			OrderCount:      len(orders),
			ActiveCustomers: activeCustomers(accounts),
			LowStock:        lowStock(products),
		}
		return nil
	})
	return report, err
}

// OnlineOrdersReport summarises pre-sale orders after migrating legacy
// statuses.
func (s *Service) OnlineOrdersReport(ctx context.Context) (domain.OnlineOrdersReport, error) {
	report := domain.OnlineOrdersReport{Orders: make([]domain.Order, 0), TotalValue: decimal.Zero}
	err := s.run(ctx, []string{store.Orders}, func(sess *session) error {
		if _, err := s.migrateOrderStatuses(sess); err != nil {
			return err
		}
		orders, err := load[domain.Order](sess, store.Orders)
		if err != nil {
			return err
		}

		for i := len(orders) - 1; i >= 0; i-- {
			order := orders[i]
			if order.Kind != domain.OrderPreSale {
				continue
			}
			report.Orders = append(report.Orders, order)
			report.TotalValue = report.TotalValue.Add(order.Total)
			if order.Status.Delivered {
				report.Delivered++
			}
			if order.Status.Paid {
				report.Paid++
			}
			if order.Status.Completed() {
				report.Completed++
			}
		}
		report.TotalCount = len(report.Orders)
		return nil
	})
	return report, err
}

package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

var pointsDivisor = decimal.NewFromInt(10)

// NormalizeTaxID keeps only the digits of a tax id.
func NormalizeTaxID(taxID string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, taxID)
}

// PointsFor returns the loyalty points earned by a sale total: one point per
// ten currency units, rounded down.
func PointsFor(total decimal.Decimal) int64 {
	if total.IsNegative() {
		return 0
	}
	return total.Div(pointsDivisor).Floor().IntPart()
}

// CreditLoyalty adds points to the account of taxID, creating it if needed.
func (s *Service) CreditLoyalty(ctx context.Context, taxID string, points int64) (domain.LoyaltyAccount, error) {
	var account domain.LoyaltyAccount
	err := s.run(ctx, []string{store.Loyalty}, func(sess *session) error {
		var err error
		account, err = s.creditLoyalty(sess, taxID, points)
		return err
	})
	return account, err
}

func (s *Service) creditLoyalty(sess *session, taxID string, points int64) (domain.LoyaltyAccount, error) {
	normalized := NormalizeTaxID(taxID)
	if normalized == "" {
		return domain.LoyaltyAccount{}, fmt.Errorf("tax id %q has no digits: %w", taxID, store.ErrInvalidArgument)
	}
	if points < 0 {
		return domain.LoyaltyAccount{}, fmt.Errorf("points must not be negative: %w", store.ErrInvalidArgument)
	}

	accounts, err := load[domain.LoyaltyAccount](sess, store.Loyalty)
	if err != nil {
		return domain.LoyaltyAccount{}, err
	}

	accounts = slices.Clone(accounts)
	idx := slices.IndexFunc(accounts, func(a domain.LoyaltyAccount) bool { return a.CustomerTaxID == normalized })
	if idx < 0 {
		accounts = append(accounts, domain.LoyaltyAccount{CustomerTaxID: normalized})
		idx = len(accounts) - 1
	}
	accounts[idx].Points += points
	put(sess, store.Loyalty, accounts)
	return accounts[idx], nil
}

func (s *Service) ListLoyaltyAccounts(ctx context.Context) ([]domain.LoyaltyAccount, error) {
	var out []domain.LoyaltyAccount
	err := s.run(ctx, []string{store.Loyalty}, func(sess *session) error {
		accounts, err := load[domain.LoyaltyAccount](sess, store.Loyalty)
		out = slices.Clone(accounts)
		return err
	})
	return out, err
}

func activeCustomers(accounts []domain.LoyaltyAccount) int {
	count := 0
	for _, a := range accounts {
		if a.Points > 0 {
			count++
		}
	}
	return count
}

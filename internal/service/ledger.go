package service

import (
	"context"
	"slices"

	"forno/backend/internal/domain"
	"forno/backend/internal/store"
)

// recordMovement appends one ledger entry inside sess. Ids are assigned under
// the movements lock held by the session.
func (s *Service) recordMovement(sess *session, movement domain.Movement) error {
	movements, err := load[domain.Movement](sess, store.Movements)
	if err != nil {
		return err
	}

	movement.ID = nextID(movements, func(m domain.Movement) int64 { return m.ID })
	movement.Actor = actorName(movement.Actor)
	if movement.Timestamp.IsZero() {
		movement.Timestamp = s.Now()
	}

	put(sess, store.Movements, append(slices.Clone(movements), movement))
	return nil
}

// ListMovements returns the stock ledger, newest first.
func (s *Service) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	var out []domain.Movement
	err := s.run(ctx, []string{store.Movements}, func(sess *session) error {
		movements, err := load[domain.Movement](sess, store.Movements)
		if err != nil {
			return err
		}
		out = slices.Clone(movements)
		slices.Reverse(out)
		return nil
	})
	return out, err
}

// internal/ledger/service.go
package ledger

import (
	"context"
	"fmt"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
)

// Service records charges and payments and settles them.
type Service interface {
	Record(ctx context.Context, fields records.Patch) (Transaction, error)
	Complete(ctx context.Context, id string) (Transaction, error)
	Cancel(ctx context.Context, id string) (Transaction, error)
	Balance(userID string) float64
}

type service struct {
	entries *pipeline.Collection[Transaction]
}

func NewService(entries *pipeline.Collection[Transaction]) Service {
	return &service{entries: entries}
}

func (s *service) Record(ctx context.Context, fields records.Patch) (Transaction, error) {
	fields = fields.Without("status")
	if _, err := NewTransaction("", fields); err != nil {
		return Transaction{}, fmt.Errorf("failed to record transaction: %w", err)
	}
	return s.entries.Create(ctx, fields)
}

func (s *service) Complete(ctx context.Context, id string) (Transaction, error) {
	return s.settle(ctx, id, StatusCompleted)
}

func (s *service) Cancel(ctx context.Context, id string) (Transaction, error) {
	return s.settle(ctx, id, StatusCancelled)
}

// settle moves a pending entry to a final status. Final statuses never change.
func (s *service) settle(ctx context.Context, id, status string) (Transaction, error) {
	t, err := s.entries.Get(id)
	if err != nil {
		return Transaction{}, err
	}
	if t.Status != StatusPending {
		return Transaction{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, t.Status)
	}
	return s.entries.Update(ctx, id, records.Patch{"status": status})
}

// Balance is what the user owes: completed fines and fees minus completed
// payments and deposits.
func (s *service) Balance(userID string) float64 {
	return Balance(s.entries.All(), userID)
}

func Balance(entries []Transaction, userID string) float64 {
	var total float64
	for _, t := range entries {
		if t.UserID != userID || t.Status != StatusCompleted {
			continue
		}
		if t.Charge() {
			total += t.Amount
		} else {
			total -= t.Amount
		}
	}
	return total
}

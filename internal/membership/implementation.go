// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
)

// service implements the Service interface.
type service struct {
	users *pipeline.Collection[User]
}

// NewService creates a new membership service over the users collection.
func NewService(users *pipeline.Collection[User]) Service {
	return &service{users: users}
}

// RegisterUser creates a user. Borrow counters are owned by circulation and
// cannot be set here.
func (s *service) RegisterUser(ctx context.Context, fields records.Patch) (User, error) {
	fields = fields.Without("totalBorrowed", "currentBorrowed")
	if _, err := NewUser("", fields); err != nil {
		return User{}, fmt.Errorf("failed to register user: %w", err)
	}
	return s.users.Create(ctx, fields)
}

func (s *service) GetUser(id string) (User, error) {
	return s.users.Get(id)
}

// SetStatus blocks or reactivates a user.
func (s *service) SetStatus(ctx context.Context, id, status string) (User, error) {
	if status != StatusActive && status != StatusBlocked {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.users.Update(ctx, id, records.Patch{"status": status})
}

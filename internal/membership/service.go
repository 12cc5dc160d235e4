// internal/membership/service.go
package membership

import (
	"context"

	"libradesk/internal/records"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterUser(ctx context.Context, fields records.Patch) (User, error)
	GetUser(id string) (User, error)
	SetStatus(ctx context.Context, id, status string) (User, error)
}

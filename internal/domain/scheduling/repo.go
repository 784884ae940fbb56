package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain/access"
)

// Repository reads are pre-filtered by scope.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*Appointment, error)
	// GetForUpdate locks the row for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, scope access.Scope, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Appointment, int, error)
}

package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain/access"
)

// Repository reads are filtered by scope: a doctor sees only patients that
// have at least one appointment with them.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Patient, int, error)
}

package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain/access"
)

type Repository interface {
	// LockAppointment reads the appointment with its row locked until the
	// surrounding transaction ends.
	LockAppointment(ctx context.Context, appointmentID uuid.UUID) (*AppointmentState, error)
	Create(ctx context.Context, p *Payment) error
	MarkCompleted(ctx context.Context, appointmentID uuid.UUID) error
	GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*Payment, error)
	List(ctx context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Payment, int, error)
}

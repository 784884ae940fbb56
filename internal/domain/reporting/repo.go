package reporting

import (
	"context"
	"time"

	"github.com/medcrm/clinic/internal/domain/access"
)

// Repository reads the raw facts the reports are aggregated from.
type Repository interface {
	// Payments lists payments of completed appointments, oldest first.
	Payments(ctx context.Context, scope access.Scope, q PaymentQuery) ([]*PaymentRow, error)
	// Appointments lists appointments starting in [from, to).
	Appointments(ctx context.Context, from, to time.Time) ([]AppointmentPoint, error)
	// VisitCounts returns the lifetime appointment count of every patient
	// that has at least one.
	VisitCounts(ctx context.Context) ([]int, error)
	CountDoctors(ctx context.Context) (int, error)
}

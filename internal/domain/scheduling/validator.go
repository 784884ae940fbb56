package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/clinic"
)

// Candidate is an appointment as it would be stored, after any patch has
// been merged over the current values.
type Candidate struct {
	Doctor       *clinic.Doctor
	Service      *clinic.Service
	DepartmentID uuid.UUID
	Start        time.Time
	End          time.Time
}

// Validate enforces that doctor, service and appointment share one
// department and that the interval is non-empty. It does not check for
// overlapping appointments.
func Validate(c Candidate) error {
	if c.Doctor == nil || c.Doctor.DepartmentID != c.DepartmentID {
		return domain.Invalid("doctor", "doctor not in department")
	}
	if c.Service == nil || c.Service.DepartmentID != c.DepartmentID {
		return domain.Invalid("service", "service not in department")
	}
	if !c.Start.Before(c.End) {
		return domain.Invalid("end_time", "invalid interval")
	}
	return nil
}

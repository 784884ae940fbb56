package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

var methodLabels = map[Method]string{
	MethodCash: "Наличные",
	MethodCard: "Безналичные",
}

func (m Method) Valid() bool {
	_, ok := methodLabels[m]
	return ok
}

func (m Method) Label() string { return methodLabels[m] }

// Payment settles one appointment. The joined fields describe the
// appointment it belongs to.
type Payment struct {
	ID            uuid.UUID    `json:"id"`
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Amount        domain.Money `json:"amount"`
	Method        Method       `json:"method"`
	RegistrarID   *uuid.UUID   `json:"registrar_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`

	PatientName    string       `json:"patient_name"`
	DoctorID       uuid.UUID    `json:"doctor_id"`
	DoctorName     string       `json:"doctor_name"`
	ServiceName    string       `json:"service_name"`
	ServicePrice   domain.Money `json:"service_price"`
	DepartmentName string       `json:"department_name"`
	BonusPercent   int          `json:"bonus_percent"`
}

type View struct {
	*Payment
	MethodLabel string `json:"method_label"`
}

func NewView(p *Payment) View {
	return View{Payment: p, MethodLabel: p.Method.Label()}
}

// AppointmentState is what payment recording needs to know about the
// appointment being paid.
type AppointmentState struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Status   scheduling.Status
	Price    domain.Money
	Paid     bool
}

type RecordPaymentInput struct {
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Amount        domain.Money `json:"amount"`
	Method        Method       `json:"method"`
	RegistrarID   *uuid.UUID   `json:"-"`
}

type Filter struct {
	DoctorID     *uuid.UUID
	DepartmentID *uuid.UUID
	Method       Method
	From         *time.Time
	To           *time.Time
	Search       string
}

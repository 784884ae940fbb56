package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
)

type Status string

const (
	StatusQueue     Status = "queue"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var statusLabels = map[Status]string{
	StatusQueue:     "В ожидании",
	StatusConfirmed: "Подтверждён",
	StatusCompleted: "Был в приёме",
	StatusCancelled: "Отменён",
}

var statusColors = map[Status]string{
	StatusQueue:     "#22c55e",
	StatusConfirmed: "#3b82f6",
	StatusCancelled: "#ef4444",
	StatusCompleted: "#9ca3af",
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string { return statusLabels[s] }
func (s Status) Color() string { return statusColors[s] }

// PaymentInfo is the payment attached to a completed appointment.
type PaymentInfo struct {
	Method string       `json:"method"`
	Amount domain.Money `json:"amount"`
}

type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	ServiceID    uuid.UUID  `json:"service_id"`
	DepartmentID uuid.UUID  `json:"department_id"`
	RegistrarID  *uuid.UUID `json:"registrar_id,omitempty"`
	Start        time.Time  `json:"start_time"`
	End          time.Time  `json:"end_time"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`

	PatientName    string       `json:"patient_name"`
	DoctorName     string       `json:"doctor_name"`
	ServiceName    string       `json:"service_name"`
	ServicePrice   domain.Money `json:"service_price"`
	DepartmentName string       `json:"department_name"`
	Payment        *PaymentInfo `json:"payment,omitempty"`
}

type View struct {
	*Appointment
	StatusLabel string `json:"status_label"`
	Color       string `json:"color"`
}

func NewView(a *Appointment) View {
	return View{Appointment: a, StatusLabel: a.Status.Label(), Color: a.Status.Color()}
}

// CalendarEvent is one appointment rendered for a calendar widget.
type CalendarEvent struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Color  string    `json:"color"`
	Status Status    `json:"status"`
}

func NewCalendarEvent(a *Appointment) CalendarEvent {
	return CalendarEvent{
		ID:     a.ID,
		Title:  a.ServiceName + " — " + a.PatientName,
		Start:  a.Start,
		End:    a.End,
		Color:  a.Status.Color(),
		Status: a.Status,
	}
}

type Filter struct {
	DoctorID     *uuid.UUID
	DepartmentID *uuid.UUID
	PatientID    *uuid.UUID
	Status       Status
	From         *time.Time
	To           *time.Time
	Search       string
}

type CreateAppointmentInput struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	ServiceID    uuid.UUID  `json:"service_id"`
	DepartmentID uuid.UUID  `json:"department_id"`
	RegistrarID  *uuid.UUID `json:"-"`
	Start        time.Time  `json:"start_time"`
	End          time.Time  `json:"end_time"`
	Status       Status     `json:"status"`
}

// UpdateAppointmentInput is a patch; nil fields keep their stored value.
type UpdateAppointmentInput struct {
	PatientID    *uuid.UUID `json:"patient_id"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
	ServiceID    *uuid.UUID `json:"service_id"`
	DepartmentID *uuid.UUID `json:"department_id"`
	Start        *time.Time `json:"start_time"`
	End          *time.Time `json:"end_time"`
	Status       *Status    `json:"status"`
}

package reporting

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/billing"
	"github.com/medcrm/clinic/internal/domain/patient"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

// PaymentRow is one payment of a completed appointment, joined with what
// the reports print about it.
type PaymentRow struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	PatientName    string
	DepartmentName string
	DoctorID       uuid.UUID
	DoctorName     string
	ServiceName    string
	Price          domain.Money
	Amount         domain.Money
	Method         billing.Method
	BonusPercent   int
}

// PaymentQuery selects payment rows. From/To bound payment.created_at.
type PaymentQuery struct {
	From         time.Time
	To           time.Time
	DoctorID     *uuid.UUID
	DepartmentID *uuid.UUID
	Search       string
}

// AppointmentPoint is the part of an appointment the analytics look at.
type AppointmentPoint struct {
	PatientID uuid.UUID
	StartTime time.Time
	Status    scheduling.Status
}

type DetailedFilter struct {
	DoctorID     *uuid.UUID
	DepartmentID *uuid.UUID
	Search       string
	Period       Period
}

type DetailedRow struct {
	ID           uuid.UUID      `json:"id"`
	Date         string         `json:"date"`
	Patient      string         `json:"patient"`
	Department   string         `json:"department"`
	Doctor       string         `json:"doctor"`
	Service      string         `json:"service"`
	Method       billing.Method `json:"method"`
	MethodLabel  string         `json:"method_label"`
	Price        domain.Money   `json:"price"`
	Amount       domain.Money   `json:"amount"`
	BonusPercent int            `json:"bonus_percent"`
}

type DetailedSummary struct {
	Count int          `json:"count"`
	Total domain.Money `json:"total"`
	Cash  domain.Money `json:"cash"`
	Card  domain.Money `json:"card"`
}

type DetailedReport struct {
	DateFrom string          `json:"date_from"`
	DateTo   string          `json:"date_to"`
	Rows     []DetailedRow   `json:"rows"`
	Summary  DetailedSummary `json:"summary"`
}

type CloseRow struct {
	Index int          `json:"index"`
	Date  string       `json:"date"`
	Total domain.Money `json:"total_sum"`
}

type CloseReport struct {
	DoctorID     uuid.UUID    `json:"doctor_id"`
	DoctorName   string       `json:"doctor_name"`
	BonusPercent int          `json:"bonus_percent"`
	DateFrom     string       `json:"date_from"`
	DateTo       string       `json:"date_to"`
	Rows         []CloseRow   `json:"rows"`
	Total        domain.Money `json:"total"`
	DoctorShare  domain.Money `json:"doctor_share"`
}

type SummaryReport struct {
	DateFrom     string       `json:"date_from"`
	DateTo       string       `json:"date_to"`
	TotalCash    domain.Money `json:"total_cash"`
	TotalCard    domain.Money `json:"total_card"`
	TotalSum     domain.Money `json:"total_sum"`
	DoctorsCash  domain.Money `json:"doctors_cash"`
	DoctorsCard  domain.Money `json:"doctors_card"`
	DoctorsTotal domain.Money `json:"doctors_total"`
	ClinicCash   domain.Money `json:"clinic_cash"`
	ClinicCard   domain.Money `json:"clinic_card"`
	ClinicTotal  domain.Money `json:"clinic_total"`
}

type ChartPoint struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Cancelled int    `json:"cancelled"`
}

type Analytics struct {
	DateFrom              string       `json:"date_from"`
	DateTo                string       `json:"date_to"`
	DoctorsCount          int          `json:"doctors_count"`
	TotalAppointments     int          `json:"total_appointments"`
	CancelledAppointments int          `json:"cancelled_appointments"`
	GrowthPercent         float64      `json:"growth_percent"`
	DeclinePercent        float64      `json:"decline_percent"`
	TotalPatients         int          `json:"total_patients"`
	PrimaryPercent        int          `json:"primary_percent"`
	RepeatPercent         int          `json:"repeat_percent"`
	Chart                 []ChartPoint `json:"chart"`
}

type HistoryStats struct {
	Total     int `json:"total"`
	Queue     int `json:"queue"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

type HistoryPayment struct {
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Date          string       `json:"date"`
	Service       string       `json:"service"`
	Doctor        string       `json:"doctor"`
	Method        string       `json:"method"`
	MethodLabel   string       `json:"method_label"`
	Amount        domain.Money `json:"amount"`
}

// PatientHistory is the patient card: visit counts by status, the visits
// themselves and what was paid for them.
type PatientHistory struct {
	Patient      patient.View      `json:"patient"`
	Stats        HistoryStats      `json:"stats"`
	Appointments []scheduling.View `json:"appointments"`
	Payments     []HistoryPayment  `json:"payments"`
	TotalPaid    domain.Money      `json:"total_paid"`
}

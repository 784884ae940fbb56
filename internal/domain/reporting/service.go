package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/billing"
	"github.com/medcrm/clinic/internal/domain/clinic"
	"github.com/medcrm/clinic/internal/domain/patient"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

type Doctors interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
}

type Appointments interface {
	ListAppointments(ctx context.Context, p access.Policy, f scheduling.Filter, limit, offset int) ([]*scheduling.Appointment, int, error)
}

type Patients interface {
	GetPatient(ctx context.Context, p access.Policy, id uuid.UUID) (*patient.Patient, error)
}

// historyLimit bounds the appointments shown on one patient card.
const historyLimit = 500

var errReportsForbidden = domain.Invalid("role", "not allowed to view reports")

type Service struct {
	repo         Repository
	doctors      Doctors
	appointments Appointments
	patients     Patients
	loc          *time.Location
	now          func() time.Time
}

func NewService(repo Repository, doctors Doctors, appointments Appointments, patients Patients, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:         repo,
		doctors:      doctors,
		appointments: appointments,
		patients:     patients,
		loc:          loc,
		now:          time.Now,
	}
}

// Period resolves report dates against the current clinic day.
func (s *Service) Period(kind PeriodKind, from, to string) (Period, error) {
	return ResolvePeriod(kind, from, to, s.now(), s.loc)
}

func (s *Service) bounds(period Period) (string, string) {
	return period.From.Format(dateLayout), period.LastDay().Format(dateLayout)
}

func (s *Service) BuildDetailedReport(ctx context.Context, p access.Policy, f DetailedFilter) (*DetailedReport, error) {
	if !p.CanViewReports() {
		return nil, errReportsForbidden
	}
	rows, err := s.repo.Payments(ctx, p.AppointmentScope(), PaymentQuery{
		From:         f.Period.From,
		To:           f.Period.To,
		DoctorID:     f.DoctorID,
		DepartmentID: f.DepartmentID,
		Search:       f.Search,
	})
	if err != nil {
		return nil, err
	}

	rep := &DetailedReport{Rows: make([]DetailedRow, 0, len(rows)), Summary: Summarize(rows)}
	rep.DateFrom, rep.DateTo = s.bounds(f.Period)
	for _, r := range rows {
		rep.Rows = append(rep.Rows, DetailedRow{
			ID:           r.ID,
			Date:         r.CreatedAt.In(s.loc).Format(displayLayout),
			Patient:      r.PatientName,
			Department:   r.DepartmentName,
			Doctor:       r.DoctorName,
			Service:      r.ServiceName,
			Method:       r.Method,
			MethodLabel:  r.Method.Label(),
			Price:        r.Price,
			Amount:       r.Amount,
			BonusPercent: r.BonusPercent,
		})
	}
	return rep, nil
}

// BuildDoctorCloseReport totals one doctor's takings per day of the period.
func (s *Service) BuildDoctorCloseReport(ctx context.Context, p access.Policy, doctorID uuid.UUID, period Period) (*CloseReport, error) {
	if !p.CanViewCloseReport(doctorID) {
		return nil, domain.Invalid("doctor_id", "not allowed to view this close report")
	}
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Payments(ctx, p.AppointmentScope(), PaymentQuery{
		From:     period.From,
		To:       period.To,
		DoctorID: &doctorID,
	})
	if err != nil {
		return nil, err
	}

	rep := &CloseReport{
		DoctorID:     doc.ID,
		DoctorName:   doc.FullName,
		BonusPercent: doc.BonusPercent,
	}
	rep.DateFrom, rep.DateTo = s.bounds(period)
	rep.Rows, rep.Total = DailyTotals(rows, s.loc)
	rep.DoctorShare = billing.SplitBonus(BonusLines(rows)).Total.Doctors
	return rep, nil
}

// BuildSummaryReport splits the period's takings between doctors and the
// clinic per payment method.
func (s *Service) BuildSummaryReport(ctx context.Context, p access.Policy, period Period) (*SummaryReport, error) {
	if !p.CanViewReports() {
		return nil, errReportsForbidden
	}
	rows, err := s.repo.Payments(ctx, p.AppointmentScope(), PaymentQuery{From: period.From, To: period.To})
	if err != nil {
		return nil, err
	}
	split := billing.SplitBonus(BonusLines(rows))

	rep := &SummaryReport{
		TotalCash:    split.Cash.Gross,
		TotalCard:    split.Card.Gross,
		TotalSum:     split.Total.Gross,
		DoctorsCash:  split.Cash.Doctors,
		DoctorsCard:  split.Card.Doctors,
		DoctorsTotal: split.Total.Doctors,
		ClinicCash:   split.Cash.Clinic,
		ClinicCard:   split.Card.Clinic,
		ClinicTotal:  split.Total.Clinic,
	}
	rep.DateFrom, rep.DateTo = s.bounds(period)
	return rep, nil
}

// BuildAnalytics summarises appointment volume over the period. The
// primary/repeat split looks at every appointment ever booked.
func (s *Service) BuildAnalytics(ctx context.Context, p access.Policy, period Period) (*Analytics, error) {
	if !p.CanViewReports() {
		return nil, errReportsForbidden
	}
	doctors, err := s.repo.CountDoctors(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.repo.Appointments(ctx, period.From, period.To)
	if err != nil {
		return nil, err
	}
	visits, err := s.repo.VisitCounts(ctx)
	if err != nil {
		return nil, err
	}

	var cancelled int
	for _, pt := range points {
		if pt.Status == scheduling.StatusCancelled {
			cancelled++
		}
	}
	total := len(points)

	a := &Analytics{
		DoctorsCount:          doctors,
		TotalAppointments:     total,
		CancelledAppointments: cancelled,
		GrowthPercent:         Ratio(total, cancelled),
		DeclinePercent:        Ratio(cancelled, total),
		TotalPatients:         DistinctPatients(points),
		Chart:                 DailySeries(points, period, s.loc),
	}
	a.PrimaryPercent, a.RepeatPercent = ClassifyPatients(visits)
	a.DateFrom, a.DateTo = s.bounds(period)
	return a, nil
}

// BuildPatientHistory assembles the patient card. Doctors see only their
// own appointments with the patient.
func (s *Service) BuildPatientHistory(ctx context.Context, p access.Policy, patientID uuid.UUID) (*PatientHistory, error) {
	pt, err := s.patients.GetPatient(ctx, p, patientID)
	if err != nil {
		return nil, err
	}
	appts, _, err := s.appointments.ListAppointments(ctx, p, scheduling.Filter{PatientID: &patientID}, historyLimit, 0)
	if err != nil {
		return nil, err
	}

	h := &PatientHistory{
		Patient:      patient.NewView(pt, s.now().In(s.loc)),
		Appointments: make([]scheduling.View, 0, len(appts)),
		Payments:     []HistoryPayment{},
	}
	var paid decimal.Decimal
	for _, a := range appts {
		h.Appointments = append(h.Appointments, scheduling.NewView(a))
		h.Stats.Total++
		switch a.Status {
		case scheduling.StatusQueue:
			h.Stats.Queue++
		case scheduling.StatusConfirmed:
			h.Stats.Confirmed++
		case scheduling.StatusCompleted:
			h.Stats.Completed++
		case scheduling.StatusCancelled:
			h.Stats.Cancelled++
		}
		if a.Payment == nil {
			continue
		}
		h.Payments = append(h.Payments, HistoryPayment{
			AppointmentID: a.ID,
			Date:          a.Start.In(s.loc).Format(displayLayout),
			Service:       a.ServiceName,
			Doctor:        a.DoctorName,
			Method:        a.Payment.Method,
			MethodLabel:   billing.Method(a.Payment.Method).Label(),
			Amount:        a.Payment.Amount,
		})
		paid = paid.Add(a.Payment.Amount.Decimal)
	}
	h.TotalPaid = domain.NewMoney(paid)
	return h, nil
}

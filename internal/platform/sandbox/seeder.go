// Package sandbox fills a database with demo data for local development
// and UI demos. Everything goes through the domain services, so the data
// obeys the same rules as data entered by hand.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/billing"
	"github.com/medcrm/clinic/internal/domain/clinic"
	"github.com/medcrm/clinic/internal/domain/patient"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

type Config struct {
	Departments            int
	DoctorsPerDepartment   int
	ServicesPerDepartment  int
	Patients               int
	AppointmentsPerPatient int
	// DoctorPassword is the sign-in password of every generated doctor.
	DoctorPassword string
	// Seed makes a run reproducible; 0 picks a random one.
	Seed uint64
	// Operator is the admin account the seed acts as. It is recorded as
	// registrar on appointments and payments.
	Operator uuid.UUID
}

func DefaultConfig() Config {
	return Config{
		Departments:            4,
		DoctorsPerDepartment:   2,
		ServicesPerDepartment:  3,
		Patients:               50,
		AppointmentsPerPatient: 3,
		DoctorPassword:         "doctor-password",
	}
}

type Result struct {
	Departments  int `json:"departments"`
	Doctors      int `json:"doctors"`
	Services     int `json:"services"`
	Patients     int `json:"patients"`
	Appointments int `json:"appointments"`
	Payments     int `json:"payments"`
	Cancelled    int `json:"cancelled"`
}

type Catalog interface {
	CreateDepartment(ctx context.Context, p access.Policy, name string) (*clinic.Department, error)
	CreateDoctor(ctx context.Context, p access.Policy, in clinic.CreateDoctorInput) (*clinic.Doctor, error)
	CreateService(ctx context.Context, p access.Policy, in clinic.ServiceInput) (*clinic.Service, error)
}

type Patients interface {
	CreatePatient(ctx context.Context, p access.Policy, in patient.Input) (*patient.Patient, error)
}

type Appointments interface {
	CreateAppointment(ctx context.Context, p access.Policy, in scheduling.CreateAppointmentInput) (*scheduling.Appointment, error)
	UpdateAppointment(ctx context.Context, p access.Policy, id uuid.UUID, in scheduling.UpdateAppointmentInput) (*scheduling.Appointment, error)
}

type Payments interface {
	RecordPayment(ctx context.Context, p access.Policy, in billing.RecordPaymentInput) (*billing.Payment, error)
}

var departmentNames = []string{
	"Терапия", "Кардиология", "Неврология", "Хирургия", "Педиатрия",
	"Офтальмология", "Стоматология", "Гинекология", "Урология", "Дерматология",
}

var serviceNames = []string{
	"Первичный приём", "Повторный приём", "Консультация", "УЗИ", "ЭКГ",
	"Анализ крови", "Процедура", "Осмотр", "Перевязка", "Справка",
}

// slot is one appointment length; visits start on the hour or half hour.
const slot = 30 * time.Minute

type dept struct {
	id       uuid.UUID
	doctors  []*clinic.Doctor
	services []*clinic.Service
}

type Seeder struct {
	cfg          Config
	faker        *gofakeit.Faker
	catalog      Catalog
	patients     Patients
	appointments Appointments
	payments     Payments
	logger       zerolog.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewSeeder(cfg Config, catalog Catalog, patients Patients, appointments Appointments, payments Payments,
	loc *time.Location, logger zerolog.Logger) *Seeder {
	if loc == nil {
		loc = time.UTC
	}
	return &Seeder{
		cfg:          cfg,
		faker:        gofakeit.New(cfg.Seed),
		catalog:      catalog,
		patients:     patients,
		appointments: appointments,
		payments:     payments,
		logger:       logger.With().Str("component", "seed").Logger(),
		loc:          loc,
		now:          time.Now,
	}
}

// Run creates the catalog, patients and a history of appointments. Past
// appointments are mostly paid, some cancelled; future ones stay booked.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	if s.cfg.Operator == uuid.Nil {
		return nil, fmt.Errorf("seed needs an operator account")
	}
	op := access.Admin(s.cfg.Operator)
	res := &Result{}

	depts, err := s.seedCatalog(ctx, op, res)
	if err != nil {
		return res, err
	}
	if len(depts) == 0 {
		return res, nil
	}

	for i := 0; i < s.cfg.Patients; i++ {
		pt, err := s.patients.CreatePatient(ctx, op, s.patientInput())
		if err != nil {
			return res, fmt.Errorf("patient %d: %w", i+1, err)
		}
		res.Patients++

		for j := 0; j < s.cfg.AppointmentsPerPatient; j++ {
			if err := s.seedVisit(ctx, op, pt.ID, depts, res); err != nil {
				return res, fmt.Errorf("patient %d visit %d: %w", i+1, j+1, err)
			}
		}
		if (i+1)%25 == 0 {
			s.logger.Info().Int("patients", i+1).Int("of", s.cfg.Patients).Msg("seeding")
		}
	}
	return res, nil
}

func (s *Seeder) seedCatalog(ctx context.Context, op access.Policy, res *Result) ([]*dept, error) {
	tag := s.faker.LetterN(4)
	var depts []*dept
	for i := 0; i < s.cfg.Departments; i++ {
		name := departmentNames[i%len(departmentNames)]
		if i >= len(departmentNames) {
			name = fmt.Sprintf("%s %d", name, i/len(departmentNames)+1)
		}
		dep, err := s.catalog.CreateDepartment(ctx, op, name)
		if err != nil {
			return nil, fmt.Errorf("department %q: %w", name, err)
		}
		res.Departments++
		d := &dept{id: dep.ID}

		for j := 0; j < s.cfg.DoctorsPerDepartment; j++ {
			first, last := s.faker.FirstName(), s.faker.LastName()
			bonus := s.faker.Number(10, 40)
			doc, err := s.catalog.CreateDoctor(ctx, op, clinic.CreateDoctorInput{
				Email:          strings.ToLower(fmt.Sprintf("%s.%s.%s%d@clinic.local", first, last, tag, res.Doctors+1)),
				Password:       s.cfg.DoctorPassword,
				FirstName:      first,
				LastName:       last,
				Phone:          s.faker.Phone(),
				DepartmentID:   dep.ID,
				Specialization: name,
				Cabinet:        fmt.Sprintf("%d", 100+res.Doctors+1),
				BonusPercent:   &bonus,
			})
			if err != nil {
				return nil, fmt.Errorf("doctor in %q: %w", name, err)
			}
			res.Doctors++
			d.doctors = append(d.doctors, doc)
		}

		for j := 0; j < s.cfg.ServicesPerDepartment; j++ {
			svc, err := s.catalog.CreateService(ctx, op, clinic.ServiceInput{
				DepartmentID: dep.ID,
				Name:         fmt.Sprintf("%s: %s", name, serviceNames[j%len(serviceNames)]),
				Price:        domain.MustMoney(fmt.Sprintf("%d", s.faker.Number(5, 60)*100)),
			})
			if err != nil {
				return nil, fmt.Errorf("service in %q: %w", name, err)
			}
			res.Services++
			d.services = append(d.services, svc)
		}

		if len(d.doctors) > 0 && len(d.services) > 0 {
			depts = append(depts, d)
		}
	}
	return depts, nil
}

func (s *Seeder) patientInput() patient.Input {
	in := patient.Input{
		FullName: s.faker.FirstName() + " " + s.faker.LastName(),
		Phone:    s.faker.Phone(),
		Gender:   patient.GenderFemale,
	}
	if s.faker.Gender() == "male" {
		in.Gender = patient.GenderMale
	}
	today := s.now().In(s.loc)
	birth := s.faker.DateRange(today.AddDate(-85, 0, 0), today.AddDate(-1, 0, 0)).Format("2006-01-02")
	in.BirthDate = &birth
	return in
}

// visitStart picks a half-hour slot between 09:00 and 17:30 within 30 days
// of today.
func (s *Seeder) visitStart() time.Time {
	today := s.now().In(s.loc)
	day := today.AddDate(0, 0, s.faker.Number(-30, 14))
	return time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, s.loc).
		Add(time.Duration(s.faker.Number(0, 17)) * slot)
}

func (s *Seeder) seedVisit(ctx context.Context, op access.Policy, patientID uuid.UUID, depts []*dept, res *Result) error {
	d := depts[s.faker.Number(0, len(depts)-1)]
	doc := d.doctors[s.faker.Number(0, len(d.doctors)-1)]
	svc := d.services[s.faker.Number(0, len(d.services)-1)]
	start := s.visitStart()
	future := !start.Before(s.now())
	status := scheduling.StatusQueue
	if future && s.faker.Bool() {
		status = scheduling.StatusConfirmed
	}

	appt, err := s.appointments.CreateAppointment(ctx, op, scheduling.CreateAppointmentInput{
		PatientID:    patientID,
		DoctorID:     doc.ID,
		ServiceID:    svc.ID,
		DepartmentID: d.id,
		Start:        start,
		End:          start.Add(slot),
		Status:       status,
	})
	if err != nil {
		return err
	}
	res.Appointments++

	if future {
		return nil
	}
	switch roll := s.faker.Number(1, 10); {
	case roll == 1:
		cancelled := scheduling.StatusCancelled
		if _, err := s.appointments.UpdateAppointment(ctx, op, appt.ID, scheduling.UpdateAppointmentInput{Status: &cancelled}); err != nil {
			return err
		}
		res.Cancelled++
	case roll <= 8:
		method := billing.MethodCash
		if s.faker.Bool() {
			method = billing.MethodCard
		}
		if _, err := s.payments.RecordPayment(ctx, op, billing.RecordPaymentInput{
			AppointmentID: appt.ID,
			Amount:        svc.Price,
			Method:        method,
		}); err != nil {
			return err
		}
		res.Payments++
	}
	return nil
}

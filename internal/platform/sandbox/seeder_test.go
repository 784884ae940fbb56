package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/billing"
	"github.com/medcrm/clinic/internal/domain/clinic"
	"github.com/medcrm/clinic/internal/domain/patient"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

type fakeStore struct {
	emails       map[string]bool
	services     map[uuid.UUID]*clinic.Service
	appointments map[uuid.UUID]*scheduling.Appointment
	payments     []billing.RecordPaymentInput
	cancelled    int
	failPatient  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		emails:       map[string]bool{},
		services:     map[uuid.UUID]*clinic.Service{},
		appointments: map[uuid.UUID]*scheduling.Appointment{},
	}
}

func (f *fakeStore) CreateDepartment(_ context.Context, _ access.Policy, name string) (*clinic.Department, error) {
	return &clinic.Department{ID: uuid.New(), Name: name}, nil
}

func (f *fakeStore) CreateDoctor(_ context.Context, _ access.Policy, in clinic.CreateDoctorInput) (*clinic.Doctor, error) {
	if f.emails[in.Email] {
		return nil, errors.New("duplicate email " + in.Email)
	}
	f.emails[in.Email] = true
	return &clinic.Doctor{ID: uuid.New(), DepartmentID: in.DepartmentID}, nil
}

func (f *fakeStore) CreateService(_ context.Context, _ access.Policy, in clinic.ServiceInput) (*clinic.Service, error) {
	svc := &clinic.Service{ID: uuid.New(), DepartmentID: in.DepartmentID, Name: in.Name, Price: in.Price}
	f.services[svc.ID] = svc
	return svc, nil
}

func (f *fakeStore) CreatePatient(_ context.Context, _ access.Policy, in patient.Input) (*patient.Patient, error) {
	if f.failPatient != nil {
		return nil, f.failPatient
	}
	return &patient.Patient{ID: uuid.New(), FullName: in.FullName}, nil
}

func (f *fakeStore) CreateAppointment(_ context.Context, _ access.Policy, in scheduling.CreateAppointmentInput) (*scheduling.Appointment, error) {
	a := &scheduling.Appointment{
		ID:           uuid.New(),
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
		ServiceID:    in.ServiceID,
		DepartmentID: in.DepartmentID,
		Start:        in.Start,
		End:          in.End,
		Status:       in.Status,
	}
	f.appointments[a.ID] = a
	return a, nil
}

func (f *fakeStore) UpdateAppointment(_ context.Context, _ access.Policy, id uuid.UUID, in scheduling.UpdateAppointmentInput) (*scheduling.Appointment, error) {
	a := f.appointments[id]
	if in.Status != nil {
		a.Status = *in.Status
		if a.Status == scheduling.StatusCancelled {
			f.cancelled++
		}
	}
	return a, nil
}

func (f *fakeStore) RecordPayment(_ context.Context, _ access.Policy, in billing.RecordPaymentInput) (*billing.Payment, error) {
	a := f.appointments[in.AppointmentID]
	if a.Status == scheduling.StatusCancelled {
		return nil, errors.New("paying a cancelled appointment")
	}
	a.Status = scheduling.StatusCompleted
	f.payments = append(f.payments, in)
	return &billing.Payment{ID: uuid.New(), AppointmentID: in.AppointmentID, Amount: in.Amount, Method: in.Method}, nil
}

func newTestSeeder(cfg Config, store *fakeStore) *Seeder {
	s := NewSeeder(cfg, store, store, store, store, time.UTC, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC) }
	return s
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Operator = uuid.New()
	cfg.Patients = 20
	return cfg
}

func TestRun_Counts(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()

	res, err := newTestSeeder(cfg, store).Run(t.Context())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Departments != cfg.Departments {
		t.Errorf("departments: expected %d, got %d", cfg.Departments, res.Departments)
	}
	if res.Doctors != cfg.Departments*cfg.DoctorsPerDepartment {
		t.Errorf("doctors: expected %d, got %d", cfg.Departments*cfg.DoctorsPerDepartment, res.Doctors)
	}
	if res.Services != cfg.Departments*cfg.ServicesPerDepartment {
		t.Errorf("services: expected %d, got %d", cfg.Departments*cfg.ServicesPerDepartment, res.Services)
	}
	if res.Patients != cfg.Patients {
		t.Errorf("patients: expected %d, got %d", cfg.Patients, res.Patients)
	}
	if res.Appointments != cfg.Patients*cfg.AppointmentsPerPatient {
		t.Errorf("appointments: expected %d, got %d", cfg.Patients*cfg.AppointmentsPerPatient, res.Appointments)
	}
	if res.Payments != len(store.payments) || res.Cancelled != store.cancelled {
		t.Errorf("result %+v does not match store (%d payments, %d cancelled)", res, len(store.payments), store.cancelled)
	}
	if res.Payments == 0 {
		t.Error("expected some past appointments to be paid")
	}
}

func TestRun_VisitsFollowTheCatalog(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)
	if _, err := newTestSeeder(testConfig(), store).Run(t.Context()); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, a := range store.appointments {
		svc, ok := store.services[a.ServiceID]
		if !ok {
			t.Fatalf("appointment %s uses an unknown service", a.ID)
		}
		if svc.DepartmentID != a.DepartmentID {
			t.Errorf("appointment %s: service from another department", a.ID)
		}
		if a.End.Sub(a.Start) != slot {
			t.Errorf("appointment %s lasts %s", a.ID, a.End.Sub(a.Start))
		}
		if h := a.Start.Hour(); h < 9 || h > 17 {
			t.Errorf("appointment %s starts at %s, outside working hours", a.ID, a.Start.Format("15:04"))
		}
		if !a.Start.Before(now) && a.Status != scheduling.StatusQueue && a.Status != scheduling.StatusConfirmed {
			t.Errorf("future appointment %s has status %s", a.ID, a.Status)
		}
	}
	for _, p := range store.payments {
		a := store.appointments[p.AppointmentID]
		if !p.Amount.Equal(store.services[a.ServiceID].Price.Decimal) {
			t.Errorf("payment %s does not match the service price", p.Amount)
		}
	}
}

func TestRun_UniqueDoctorEmails(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig()
	cfg.Departments = 12
	cfg.Patients = 0

	if _, err := newTestSeeder(cfg, store).Run(t.Context()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.emails) != cfg.Departments*cfg.DoctorsPerDepartment {
		t.Errorf("expected %d distinct emails, got %d", cfg.Departments*cfg.DoctorsPerDepartment, len(store.emails))
	}
	for email := range store.emails {
		if email != strings.ToLower(email) || !strings.HasSuffix(email, "@clinic.local") {
			t.Errorf("unexpected email %q", email)
		}
	}
}

func TestRun_Reproducible(t *testing.T) {
	a, b := newFakeStore(), newFakeStore()
	ra, err := newTestSeeder(testConfig(), a).Run(t.Context())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	rb, err := newTestSeeder(testConfig(), b).Run(t.Context())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if *ra != *rb {
		t.Errorf("same seed gave different results: %+v vs %+v", ra, rb)
	}
}

func TestRun_RequiresOperator(t *testing.T) {
	cfg := testConfig()
	cfg.Operator = uuid.Nil
	if _, err := newTestSeeder(cfg, newFakeStore()).Run(t.Context()); err == nil {
		t.Error("expected an error without an operator")
	}
}

func TestRun_StopsOnError(t *testing.T) {
	store := newFakeStore()
	store.failPatient = errors.New("db down")

	res, err := newTestSeeder(testConfig(), store).Run(t.Context())
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if res.Patients != 0 || res.Departments == 0 {
		t.Errorf("unexpected partial result %+v", res)
	}
}

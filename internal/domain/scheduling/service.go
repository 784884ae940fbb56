package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/clinic"
	"github.com/medcrm/clinic/internal/domain/patient"
)

// Catalog looks up the doctors, services and departments an appointment
// refers to.
type Catalog interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
	GetService(ctx context.Context, id uuid.UUID) (*clinic.Service, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (*clinic.Department, error)
}

type Patients interface {
	GetPatient(ctx context.Context, p access.Policy, id uuid.UUID) (*patient.Patient, error)
	CreatePatient(ctx context.Context, p access.Policy, in patient.Input) (*patient.Patient, error)
}

// Notifier delivers an in-app message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, appointmentID *uuid.UUID, title, message string) error
}

type Service struct {
	repo     Repository
	catalog  Catalog
	patients Patients
	notifier Notifier
	tx       domain.TxRunner
	logger   zerolog.Logger
	loc      *time.Location
}

func NewService(repo Repository, catalog Catalog, patients Patients, notifier Notifier,
	tx domain.TxRunner, logger zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		patients: patients,
		notifier: notifier,
		tx:       tx,
		logger:   logger.With().Str("component", "scheduling").Logger(),
		loc:      loc,
	}
}

// resolved holds the catalog records behind a candidate appointment.
type resolved struct {
	doctor  *clinic.Doctor
	service *clinic.Service
}

// resolve loads the referenced doctor, service and department and runs the
// consistency validator.
func (s *Service) resolve(ctx context.Context, doctorID, serviceID, departmentID uuid.UUID, start, end time.Time) (*resolved, error) {
	if _, err := s.catalog.GetDepartment(ctx, departmentID); err != nil {
		return nil, err
	}
	doc, err := s.catalog.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	err = Validate(Candidate{Doctor: doc, Service: svc, DepartmentID: departmentID, Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return &resolved{doctor: doc, service: svc}, nil
}

// CreateAppointment books an appointment after validating it. The doctor is
// notified once the booking is stored; a failed notification is only logged.
func (s *Service) CreateAppointment(ctx context.Context, p access.Policy, in CreateAppointmentInput) (*Appointment, error) {
	if !p.CanBook() {
		return nil, domain.Invalid("role", "not allowed to book appointments")
	}
	if _, err := s.patients.GetPatient(ctx, p, in.PatientID); err != nil {
		return nil, err
	}
	a, ref, err := s.prepare(ctx, p, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.notifyBooked(ctx, a, ref)
	return s.repo.GetByID(ctx, access.Scope{}, a.ID)
}

// prepare validates a new appointment without writing it.
func (s *Service) prepare(ctx context.Context, p access.Policy, in CreateAppointmentInput) (*Appointment, *resolved, error) {
	status, err := InitialStatus(in.Status)
	if err != nil {
		return nil, nil, err
	}
	ref, err := s.resolve(ctx, in.DoctorID, in.ServiceID, in.DepartmentID, in.Start, in.End)
	if err != nil {
		return nil, nil, err
	}
	registrar := in.RegistrarID
	if registrar == nil {
		id := p.UserID()
		registrar = &id
	}
	return &Appointment{
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
		ServiceID:    in.ServiceID,
		DepartmentID: in.DepartmentID,
		RegistrarID:  registrar,
		Start:        in.Start,
		End:          in.End,
		Status:       status,
	}, ref, nil
}

// RegisterPatient creates a patient and their first appointment in one
// transaction. Both are validated before anything is written.
func (s *Service) RegisterPatient(ctx context.Context, p access.Policy, pin patient.Input, in CreateAppointmentInput) (*patient.Patient, *Appointment, error) {
	if !p.CanBook() || !p.CanManagePatients() {
		return nil, nil, domain.Invalid("role", "not allowed to register patients")
	}
	a, ref, err := s.prepare(ctx, p, in)
	if err != nil {
		return nil, nil, err
	}

	var pt *patient.Patient
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if pt, err = s.patients.CreatePatient(ctx, p, pin); err != nil {
			return err
		}
		a.PatientID = pt.ID
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, nil, err
	}
	s.notifyBooked(ctx, a, ref)

	stored, err := s.repo.GetByID(ctx, access.Scope{}, a.ID)
	if err != nil {
		return nil, nil, err
	}
	return pt, stored, nil
}

func (s *Service) notifyBooked(ctx context.Context, a *Appointment, ref *resolved) {
	if s.notifier == nil {
		return
	}
	id := a.ID
	msg := fmt.Sprintf("%s, %s", ref.service.Name, a.Start.In(s.loc).Format("02.01.2006 15:04"))
	if err := s.notifier.Notify(ctx, ref.doctor.UserID, &id, "Новая запись на приём", msg); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", a.ID.String()).
			Str("doctor_id", a.DoctorID.String()).
			Msg("failed to notify doctor")
	}
}

func (s *Service) GetAppointment(ctx context.Context, p access.Policy, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, p.AppointmentScope(), id)
}

func (s *Service) ListAppointments(ctx context.Context, p access.Policy, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, domain.Invalid("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	return s.repo.List(ctx, p.AppointmentScope(), f, limit, offset)
}

// maxCalendarEvents bounds one calendar window.
const maxCalendarEvents = 1000

// Calendar returns the caller's appointments starting in [from, to).
func (s *Service) Calendar(ctx context.Context, p access.Policy, f Filter) ([]CalendarEvent, error) {
	if f.From == nil || f.To == nil {
		return nil, domain.Invalid("start", "calendar needs start and end")
	}
	if !f.From.Before(*f.To) {
		return nil, domain.Invalid("end", "invalid interval")
	}
	items, _, err := s.repo.List(ctx, p.AppointmentScope(), f, maxCalendarEvents, 0)
	if err != nil {
		return nil, err
	}
	events := make([]CalendarEvent, 0, len(items))
	for _, a := range items {
		events = append(events, NewCalendarEvent(a))
	}
	return events, nil
}

// UpdateAppointment merges the patch over the stored appointment and
// validates the result inside a transaction holding the row lock. A doctor
// may only move their own appointment or change its status.
func (s *Service) UpdateAppointment(ctx context.Context, p access.Policy, id uuid.UUID, in UpdateAppointmentInput) (*Appointment, error) {
	if !p.Valid() {
		return nil, domain.Invalid("role", "not allowed to edit appointments")
	}
	if p.RestrictedAppointmentEdit() {
		if err := restrictedFields(in); err != nil {
			return nil, err
		}
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, p.AppointmentScope(), id)
		if err != nil {
			return err
		}
		if a.Status.Terminal() && changesDetails(a, in) {
			return domain.Invalid("status", fmt.Sprintf("%s appointment cannot be edited", a.Status))
		}
		if in.Status != nil {
			if err := CheckTransition(a.Status, *in.Status); err != nil {
				return err
			}
			a.Status = *in.Status
		}
		if in.PatientID != nil && *in.PatientID != a.PatientID {
			if _, err := s.patients.GetPatient(ctx, p, *in.PatientID); err != nil {
				return err
			}
			a.PatientID = *in.PatientID
		}
		if in.DoctorID != nil {
			a.DoctorID = *in.DoctorID
		}
		if in.ServiceID != nil {
			a.ServiceID = *in.ServiceID
		}
		if in.DepartmentID != nil {
			a.DepartmentID = *in.DepartmentID
		}
		if in.Start != nil {
			a.Start = *in.Start
		}
		if in.End != nil {
			a.End = *in.End
		}
		if _, err := s.resolve(ctx, a.DoctorID, a.ServiceID, a.DepartmentID, a.Start, a.End); err != nil {
			return err
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, p.AppointmentScope(), id)
}

// changesDetails reports whether the patch alters anything besides status.
func changesDetails(a *Appointment, in UpdateAppointmentInput) bool {
	switch {
	case in.PatientID != nil && *in.PatientID != a.PatientID,
		in.DoctorID != nil && *in.DoctorID != a.DoctorID,
		in.ServiceID != nil && *in.ServiceID != a.ServiceID,
		in.DepartmentID != nil && *in.DepartmentID != a.DepartmentID,
		in.Start != nil && !in.Start.Equal(a.Start),
		in.End != nil && !in.End.Equal(a.End):
		return true
	}
	return false
}

func restrictedFields(in UpdateAppointmentInput) error {
	fields := []struct {
		name string
		set  bool
	}{
		{"patient_id", in.PatientID != nil},
		{"doctor_id", in.DoctorID != nil},
		{"service_id", in.ServiceID != nil},
		{"department_id", in.DepartmentID != nil},
	}
	for _, f := range fields {
		if f.set {
			return domain.Invalid(f.name, "a doctor may only change time and status")
		}
	}
	return nil
}

func (s *Service) DeleteAppointment(ctx context.Context, p access.Policy, id uuid.UUID) error {
	if !p.CanBook() {
		return domain.Invalid("role", "not allowed to delete appointments")
	}
	return s.repo.Delete(ctx, id)
}

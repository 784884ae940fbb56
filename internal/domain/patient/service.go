package patient

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
)

const (
	maxNameLen  = 255
	maxPhoneLen = 20
)

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService returns a patient service. loc is the clinic time zone used to
// resolve ages and to reject future birth dates.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// Today returns the current time in the clinic zone.
func (s *Service) Today() time.Time { return s.now().In(s.loc) }

func (s *Service) CreatePatient(ctx context.Context, p access.Policy, in Input) (*Patient, error) {
	if !p.CanManagePatients() {
		return nil, domain.Invalid("role", "not allowed to register patients")
	}
	pt, err := s.build(&Patient{}, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, pt); err != nil {
		return nil, err
	}
	return pt, nil
}

func (s *Service) GetPatient(ctx context.Context, p access.Policy, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, p.AppointmentScope(), id)
}

func (s *Service) ListPatients(ctx context.Context, p access.Policy, f Filter, limit, offset int) ([]*Patient, int, error) {
	if f.Gender != "" && !f.Gender.Valid() {
		return nil, 0, domain.Invalid("gender", "gender must be male or female")
	}
	return s.repo.List(ctx, p.AppointmentScope(), f, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, p access.Policy, id uuid.UUID, in Input) (*Patient, error) {
	if !p.CanManagePatients() {
		return nil, domain.Invalid("role", "not allowed to edit patients")
	}
	pt, err := s.repo.GetByID(ctx, p.AppointmentScope(), id)
	if err != nil {
		return nil, err
	}
	if pt, err = s.build(pt, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, pt); err != nil {
		return nil, err
	}
	return pt, nil
}

func (s *Service) DeletePatient(ctx context.Context, p access.Policy, id uuid.UUID) error {
	if !p.CanManagePatients() {
		return domain.Invalid("role", "not allowed to delete patients")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) build(pt *Patient, in Input) (*Patient, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, domain.Invalid("full_name", "full name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, domain.Invalid("full_name", "full name is too long")
	}
	phone := strings.TrimSpace(in.Phone)
	if utf8.RuneCountInString(phone) > maxPhoneLen {
		return nil, domain.Invalid("phone", "phone is too long")
	}
	gender := in.Gender
	if gender == "" {
		gender = GenderMale
	}
	if !gender.Valid() {
		return nil, domain.Invalid("gender", "gender must be male or female")
	}

	var birth *time.Time
	if in.BirthDate != nil && strings.TrimSpace(*in.BirthDate) != "" {
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(*in.BirthDate), time.UTC)
		if err != nil {
			return nil, domain.Invalid("birth_date", "birth date must be YYYY-MM-DD")
		}
		today := s.Today()
		if d.After(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)) {
			return nil, domain.Invalid("birth_date", "birth date is in the future")
		}
		birth = &d
	}

	pt.FullName = name
	pt.Phone = phone
	pt.Gender = gender
	pt.Note = strings.TrimSpace(in.Note)
	pt.BirthDate = birth
	return pt, nil
}

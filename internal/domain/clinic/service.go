package clinic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/identity"
	"github.com/medcrm/clinic/internal/platform/blobstore"
)

// AccountService manages the user accounts behind doctor profiles.
type AccountService interface {
	CreateUser(ctx context.Context, in identity.CreateUserInput) (*identity.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in identity.UpdateUserInput) (*identity.User, error)
}

// PhotoStore keeps doctor photos.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*blobstore.Blob, error)
	Delete(ctx context.Context, key string) error
}

// Catalog manages departments, doctors and the services they offer.
type Catalog struct {
	departments DepartmentRepository
	doctors     DoctorRepository
	services    ServiceRepository
	accounts    AccountService
	photos      PhotoStore
	tx          domain.TxRunner
}

func NewCatalog(departments DepartmentRepository, doctors DoctorRepository, services ServiceRepository,
	accounts AccountService, photos PhotoStore, tx domain.TxRunner) *Catalog {
	return &Catalog{departments: departments, doctors: doctors, services: services, accounts: accounts, photos: photos, tx: tx}
}

var errCatalogForbidden = domain.Invalid("role", "not allowed to change the catalog")

// -- Departments --

func (s *Catalog) CreateDepartment(ctx context.Context, p access.Policy, name string) (*Department, error) {
	if !p.CanManageStaff() {
		return nil, domain.Invalid("role", "only an admin can manage departments")
	}
	name, err := cleanName("name", name)
	if err != nil {
		return nil, err
	}
	d := &Department{Name: name}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Catalog) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.departments.GetByID(ctx, id)
}

func (s *Catalog) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.departments.List(ctx)
}

func (s *Catalog) RenameDepartment(ctx context.Context, p access.Policy, id uuid.UUID, name string) (*Department, error) {
	if !p.CanManageStaff() {
		return nil, domain.Invalid("role", "only an admin can manage departments")
	}
	name, err := cleanName("name", name)
	if err != nil {
		return nil, err
	}
	d, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Name = name
	if err := s.departments.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDepartment removes the department with its doctors and services.
func (s *Catalog) DeleteDepartment(ctx context.Context, p access.Policy, id uuid.UUID) error {
	if !p.CanManageStaff() {
		return domain.Invalid("role", "only an admin can manage departments")
	}
	return s.departments.Delete(ctx, id)
}

// PriceList returns every department with its services, departments without
// services included.
func (s *Catalog) PriceList(ctx context.Context) ([]PriceListEntry, error) {
	deps, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.services.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byDep := make(map[uuid.UUID][]*Service, len(deps))
	for _, svc := range all {
		byDep[svc.DepartmentID] = append(byDep[svc.DepartmentID], svc)
	}
	out := make([]PriceListEntry, 0, len(deps))
	for _, d := range deps {
		items := byDep[d.ID]
		if items == nil {
			items = []*Service{}
		}
		out = append(out, PriceListEntry{Department: d, Services: items})
	}
	return out, nil
}

// -- Doctors --

// CreateDoctor opens the doctor's account and profile in one transaction.
// Only an admin may set bonus_percent.
func (s *Catalog) CreateDoctor(ctx context.Context, p access.Policy, in CreateDoctorInput) (*Doctor, error) {
	if !p.CanManageCatalog() {
		return nil, errCatalogForbidden
	}
	bonus := 0
	if in.BonusPercent != nil {
		if !p.CanEditBonus() {
			return nil, domain.Invalid("bonus_percent", "only an admin can set the bonus percent")
		}
		bonus = *in.BonusPercent
	}
	if err := validateDoctorFields(in.Cabinet, bonus); err != nil {
		return nil, err
	}
	if _, err := s.departments.GetByID(ctx, in.DepartmentID); err != nil {
		return nil, err
	}

	var doc *Doctor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.accounts.CreateUser(ctx, identity.CreateUserInput{
			Email:     in.Email,
			Password:  in.Password,
			Role:      access.RoleDoctor,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Phone:     in.Phone,
		})
		if err != nil {
			return err
		}
		d := &Doctor{
			UserID:         u.ID,
			DepartmentID:   in.DepartmentID,
			Specialization: strings.TrimSpace(in.Specialization),
			Cabinet:        strings.TrimSpace(in.Cabinet),
			BonusPercent:   bonus,
			PhotoURL:       in.PhotoURL,
		}
		if err := s.doctors.Create(ctx, d); err != nil {
			return err
		}
		doc, err = s.doctors.GetByID(ctx, d.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Catalog) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Catalog) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

func (s *Catalog) CountDoctors(ctx context.Context) (int, error) {
	return s.doctors.Count(ctx)
}

// DoctorIDByUser resolves the profile of a doctor account.
func (s *Catalog) DoctorIDByUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	d, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return d.ID, nil
}

// UpdateDoctor applies a partial update to the profile and its account.
// A receptionist sending a different bonus_percent is rejected.
func (s *Catalog) UpdateDoctor(ctx context.Context, p access.Policy, id uuid.UUID, in UpdateDoctorInput) (*Doctor, error) {
	if !p.CanManageCatalog() {
		return nil, errCatalogForbidden
	}

	var doc *Doctor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.doctors.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if in.BonusPercent != nil && *in.BonusPercent != d.BonusPercent {
			if !p.CanEditBonus() {
				return domain.Invalid("bonus_percent", "only an admin can change the bonus percent")
			}
			d.BonusPercent = *in.BonusPercent
		}
		if in.DepartmentID != nil && *in.DepartmentID != d.DepartmentID {
			if _, err := s.departments.GetByID(ctx, *in.DepartmentID); err != nil {
				return err
			}
			d.DepartmentID = *in.DepartmentID
		}
		if in.Specialization != nil {
			d.Specialization = strings.TrimSpace(*in.Specialization)
		}
		if in.Cabinet != nil {
			d.Cabinet = strings.TrimSpace(*in.Cabinet)
		}
		if in.PhotoURL != nil {
			d.PhotoURL = in.PhotoURL
		}
		if err := validateDoctorFields(d.Cabinet, d.BonusPercent); err != nil {
			return err
		}

		acct := identity.UpdateUserInput{
			Email:     in.Email,
			Password:  in.Password,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Phone:     in.Phone,
		}
		if acct != (identity.UpdateUserInput{}) {
			if _, err := s.accounts.UpdateUser(ctx, d.UserID, acct); err != nil {
				return err
			}
		}
		if err := s.doctors.Update(ctx, d); err != nil {
			return err
		}
		doc, err = s.doctors.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetDoctorPhoto stores an uploaded JPEG, PNG or WebP image and points the
// doctor's photo_url at it.
func (s *Catalog) SetDoctorPhoto(ctx context.Context, p access.Policy, id uuid.UUID, r io.Reader) (*Doctor, error) {
	if !p.CanManageCatalog() {
		return nil, errCatalogForbidden
	}
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	data, contentType, ext, err := blobstore.ReadImage(r)
	switch {
	case errors.Is(err, blobstore.ErrTooLarge), errors.Is(err, blobstore.ErrUnsupported):
		return nil, domain.Invalid("photo", err.Error())
	case err != nil:
		return nil, err
	}

	key := "doctors/" + id.String() + ext
	if _, err := s.photos.Put(ctx, key, contentType, data); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}
	url := blobstore.URL(key)
	old := d.PhotoURL
	d.PhotoURL = &url
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	// A different extension leaves the previous file behind.
	if old != nil && *old != url && strings.HasPrefix(*old, blobstore.MediaPrefix) {
		_ = s.photos.Delete(ctx, strings.TrimPrefix(*old, blobstore.MediaPrefix))
	}
	return s.doctors.GetByID(ctx, id)
}

func (s *Catalog) DeleteDoctor(ctx context.Context, p access.Policy, id uuid.UUID) error {
	if !p.CanManageCatalog() {
		return errCatalogForbidden
	}
	return s.doctors.Delete(ctx, id)
}

// -- Services --

func (s *Catalog) CreateService(ctx context.Context, p access.Policy, in ServiceInput) (*Service, error) {
	if !p.CanManageCatalog() {
		return nil, errCatalogForbidden
	}
	svc := &Service{DepartmentID: in.DepartmentID, Name: in.Name, Price: in.Price}
	if err := s.checkService(ctx, svc); err != nil {
		return nil, err
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}
	return s.services.GetByID(ctx, svc.ID)
}

func (s *Catalog) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	return s.services.GetByID(ctx, id)
}

func (s *Catalog) ListServices(ctx context.Context, f ServiceFilter, limit, offset int) ([]*Service, int, error) {
	return s.services.List(ctx, f, limit, offset)
}

func (s *Catalog) UpdateService(ctx context.Context, p access.Policy, id uuid.UUID, in ServiceInput) (*Service, error) {
	if !p.CanManageCatalog() {
		return nil, errCatalogForbidden
	}
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.DepartmentID != uuid.Nil {
		svc.DepartmentID = in.DepartmentID
	}
	if in.Name != "" {
		svc.Name = in.Name
	}
	if !in.Price.IsZero() {
		svc.Price = in.Price
	}
	if err := s.checkService(ctx, svc); err != nil {
		return nil, err
	}
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, err
	}
	return s.services.GetByID(ctx, id)
}

func (s *Catalog) DeleteService(ctx context.Context, p access.Policy, id uuid.UUID) error {
	if !p.CanManageCatalog() {
		return errCatalogForbidden
	}
	return s.services.Delete(ctx, id)
}

func (s *Catalog) checkService(ctx context.Context, svc *Service) error {
	name, err := cleanName("name", svc.Name)
	if err != nil {
		return err
	}
	svc.Name = name
	if !svc.Price.IsPositive() {
		return domain.Invalid("price", "price must be greater than zero")
	}
	if !svc.Price.Equal(svc.Price.Round(2)) {
		return domain.Invalid("price", "price has more than two decimal places")
	}
	if _, err := s.departments.GetByID(ctx, svc.DepartmentID); err != nil {
		return err
	}
	return nil
}

func validateDoctorFields(cabinet string, bonus int) error {
	if bonus < 0 || bonus > 100 {
		return domain.Invalid("bonus_percent", "bonus percent must be between 0 and 100")
	}
	if utf8.RuneCountInString(strings.TrimSpace(cabinet)) > maxCabinetLen {
		return domain.Invalid("cabinet", fmt.Sprintf("cabinet must be at most %d characters", maxCabinetLen))
	}
	return nil
}

func cleanName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Invalid(field, "must not be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", domain.Invalid(field, fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
	return name, nil
}

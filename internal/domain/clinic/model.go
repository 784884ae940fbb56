package clinic

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
)

const (
	maxCabinetLen = 15
	maxNameLen    = 100
)

type Department struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Doctor is the clinical profile attached 1:1 to a user account with the
// doctor role. Name and contact fields are read from the account.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	DepartmentID   uuid.UUID `json:"department_id"`
	Specialization string    `json:"specialization"`
	Cabinet        string    `json:"cabinet"`
	BonusPercent   int       `json:"bonus_percent"`
	PhotoURL       *string   `json:"photo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	FullName       string `json:"full_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DepartmentName string `json:"department_name"`
}

func (d *Doctor) setFullName() {
	d.FullName = strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Service is a billable procedure offered by one department.
type Service struct {
	ID             uuid.UUID    `json:"id"`
	DepartmentID   uuid.UUID    `json:"department_id"`
	Name           string       `json:"name"`
	Price          domain.Money `json:"price"`
	CreatedAt      time.Time    `json:"created_at"`
	DepartmentName string       `json:"department_name"`
}

// PriceListEntry groups a department's services for the public price list.
type PriceListEntry struct {
	Department *Department `json:"department"`
	Services   []*Service  `json:"services"`
}

type DoctorFilter struct {
	DepartmentID *uuid.UUID
	Search       string
}

type ServiceFilter struct {
	DepartmentID *uuid.UUID
	Search       string
}

type CreateDoctorInput struct {
	Email          string    `json:"email"`
	Password       string    `json:"password"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	DepartmentID   uuid.UUID `json:"department_id"`
	Specialization string    `json:"specialization"`
	Cabinet        string    `json:"cabinet"`
	BonusPercent   *int      `json:"bonus_percent"`
	PhotoURL       *string   `json:"photo_url"`
}

// UpdateDoctorInput is a partial update of the profile and its account.
type UpdateDoctorInput struct {
	Email          *string    `json:"email"`
	Password       *string    `json:"password"`
	FirstName      *string    `json:"first_name"`
	LastName       *string    `json:"last_name"`
	Phone          *string    `json:"phone"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	Specialization *string    `json:"specialization"`
	Cabinet        *string    `json:"cabinet"`
	BonusPercent   *int       `json:"bonus_percent"`
	PhotoURL       *string    `json:"photo_url"`
}

type ServiceInput struct {
	DepartmentID uuid.UUID    `json:"department_id"`
	Name         string       `json:"name"`
	Price        domain.Money `json:"price"`
}

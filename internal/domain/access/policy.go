// Package access decides what an authenticated caller may see and change.
// A Policy is resolved once per request and handed to services, which pass
// its Scope down to every appointment, patient and payment query.
package access

import (
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RoleDoctor       Role = "doctor"
)

var roleLabels = map[Role]string{
	RoleAdmin:        "Администратор",
	RoleReceptionist: "Регистратура",
	RoleDoctor:       "Врач",
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleLabels[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Label() string { return roleLabels[r] }

type Kind uint8

const (
	KindAdmin Kind = iota + 1
	KindReceptionist
	KindDoctor
)

// Policy is a closed set of caller variants. The zero value grants nothing.
type Policy struct {
	kind     Kind
	userID   uuid.UUID
	doctorID uuid.UUID
}

func Admin(userID uuid.UUID) Policy { return Policy{kind: KindAdmin, userID: userID} }
func Receptionist(userID uuid.UUID) Policy { return Policy{kind: KindReceptionist, userID: userID} }

func Doctor(userID, doctorID uuid.UUID) Policy {
	return Policy{kind: KindDoctor, userID: userID, doctorID: doctorID}
}

func (p Policy) Kind() Kind { return p.kind }
func (p Policy) UserID() uuid.UUID { return p.userID }
func (p Policy) Valid() bool { return p.kind != 0 }
func (p Policy) IsDoctor() bool { return p.kind == KindDoctor }
func (p Policy) IsStaff() bool { return p.kind == KindAdmin || p.kind == KindReceptionist }
func (p Policy) DoctorID() uuid.UUID { return p.doctorID }

// Scope restricts row visibility. A nil DoctorID means every row.
type Scope struct {
	DoctorID *uuid.UUID
}

func (s Scope) All() bool { return s.DoctorID == nil }

// Allows reports whether a row owned by doctorID is visible.
func (s Scope) Allows(doctorID uuid.UUID) bool {
	return s.DoctorID == nil || *s.DoctorID == doctorID
}

// AppointmentScope is applied to appointment, patient and payment queries.
func (p Policy) AppointmentScope() Scope {
	switch p.kind {
	case KindAdmin, KindReceptionist:
		return Scope{}
	default:
		id := p.doctorID
		return Scope{DoctorID: &id}
	}
}

// Capabilities. Admin holds every one of them.

func (p Policy) CanManageStaff() bool { return p.kind == KindAdmin }
func (p Policy) CanManageCatalog() bool { return p.IsStaff() }
func (p Policy) CanEditBonus() bool { return p.kind == KindAdmin }
func (p Policy) CanManagePatients() bool { return p.IsStaff() }
func (p Policy) CanBook() bool { return p.IsStaff() }
func (p Policy) CanRecordPayment() bool { return p.IsStaff() }
func (p Policy) CanViewReports() bool { return p.IsStaff() }

// CanViewCloseReport allows staff any doctor and a doctor only themselves.
func (p Policy) CanViewCloseReport(doctorID uuid.UUID) bool {
	if p.IsStaff() {
		return true
	}
	return p.kind == KindDoctor && p.doctorID == doctorID
}

// RestrictedAppointmentEdit is true when only start, end and status of an
// own appointment may change.
func (p Policy) RestrictedAppointmentEdit() bool { return p.kind == KindDoctor }

package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain/access"
)

// User is a staff account. Role is a plain enumerated field; there is no
// role hierarchy.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         access.Role `json:"role"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Phone        string      `json:"phone"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserView is the API representation of a User.
type UserView struct {
	*User
	FullName  string `json:"full_name"`
	RoleLabel string `json:"role_label"`
}

func NewUserView(u *User) UserView {
	return UserView{User: u, FullName: u.FullName(), RoleLabel: u.Role.Label()}
}

type CreateUserInput struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      access.Role `json:"role"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
}

// UpdateUserInput carries a partial update; nil fields stay unchanged.
type UpdateUserInput struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Active    *bool   `json:"active"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain/access"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List filters by role when role is non-empty.
	List(ctx context.Context, role access.Role, limit, offset int) ([]*User, int, error)
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/platform/auth"
)

const minPasswordLen = 8

var errBadCredentials = &domain.ValidationError{Message: "invalid email or password"}

type Service struct {
	users   UserRepository
	tokens  *auth.TokenIssuer
	revoked auth.RevocationStore
	cost    int
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, revoked auth.RevocationStore) *Service {
	return &Service{users: users, tokens: tokens, revoked: revoked, cost: bcrypt.DefaultCost}
}

// -- Accounts --

// CreateUser registers an account of any role. It is used by the seed
// command and by doctor creation; API callers go through CreateStaffUser.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if _, err := access.ParseRole(string(in.Role)); err != nil {
		return nil, domain.Invalid("role", "unknown role")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateStaffUser lets an admin open doctor and receptionist accounts.
func (s *Service) CreateStaffUser(ctx context.Context, p access.Policy, in CreateUserInput) (*User, error) {
	if !p.CanManageStaff() {
		return nil, domain.Invalid("role", "only an admin can create accounts")
	}
	if in.Role != access.RoleDoctor && in.Role != access.RoleReceptionist {
		return nil, domain.Invalid("role", "role must be doctor or receptionist")
	}
	return s.CreateUser(ctx, in)
}

// EnsureAdmin returns the admin account with the given email, creating it
// when absent. An existing account with another role is an error.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*User, bool, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	switch {
	case err == nil:
		if u.Role != access.RoleAdmin {
			return nil, false, domain.Invalid("email", "account exists with role "+string(u.Role))
		}
		return u, false, nil
	case !domain.IsNotFound(err):
		return nil, false, err
	}
	u, err = s.CreateUser(ctx, CreateUserInput{Email: email, Password: password, Role: access.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role access.Role, limit, offset int) ([]*User, int, error) {
	if role != "" {
		if _, err := access.ParseRole(string(role)); err != nil {
			return nil, 0, domain.Invalid("role", "unknown role")
		}
	}
	return s.users.List(ctx, role, limit, offset)
}

// UpdateUser applies a partial update. A new password is re-hashed.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		u.Email = email
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, p access.Policy, id uuid.UUID) error {
	if !p.CanManageStaff() {
		return domain.Invalid("role", "only an admin can delete accounts")
	}
	if id == p.UserID() {
		return domain.Invalid("id", "cannot delete your own account")
	}
	return s.users.Delete(ctx, id)
}

// -- Sessions --

type LoginResult struct {
	User   UserView        `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// Login checks the password and that the account holds the role the client
// signed in as.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, errBadCredentials
	}
	if !u.Active {
		return nil, &domain.ValidationError{Message: "account is disabled"}
	}
	if in.Role != "" && access.Role(in.Role) != u.Role {
		return nil, domain.Invalid("role", "role does not match account")
	}

	pair, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: NewUserView(u), Tokens: pair}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, domain.Invalid("refresh", "invalid refresh token")
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, domain.Invalid("refresh", "refresh token revoked")
	}

	userID, _ := uuid.Parse(claims.Subject)
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.Invalid("refresh", "account no longer exists")
		}
		return nil, err
	}
	if !u.Active {
		return nil, &domain.ValidationError{Message: "account is disabled"}
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		return nil, err
	}
	return s.tokens.Issue(u.ID, string(u.Role))
}

// Logout revokes the refresh token and, when given, the access token.
func (s *Service) Logout(ctx context.Context, refreshToken, accessToken string) error {
	claims, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return domain.Invalid("refresh", "invalid refresh token")
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if accessToken == "" {
		return nil
	}
	ac, err := s.tokens.Parse(accessToken, auth.TokenTypeAccess)
	if err != nil || ac.Subject != claims.Subject {
		return nil
	}
	if err := s.revoked.Revoke(ctx, ac.ID, ac.Expiry()); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", domain.Invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Invalid("password", "password is too long")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Invalid("email", "invalid email address")
	}
	return email, nil
}

package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/platform/auth"
)

// -- Mock Repository --

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.Invalid("email", "email already registered")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFound("user", uuid.Nil)
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return domain.NotFound("user", u.ID)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, role access.Role, limit, offset int) ([]*User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			result = append(result, u)
		}
	}
	return result, len(result), nil
}

func newTestService() (*Service, *auth.MemoryRevocationStore) {
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "clinic-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})
	revoked := auth.NewMemoryRevocationStore(time.Hour)
	svc := NewService(newMockUserRepo(), tokens, revoked)
	svc.cost = bcrypt.MinCost
	return svc, revoked
}

func mustCreate(t *testing.T, svc *Service, email string, role access.Role) *User {
	t.Helper()
	u, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email: email, Password: "s3cret-pass", Role: role, FirstName: "Aida", LastName: "Usupova",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreateUser(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()

	u := mustCreate(t, svc, "  Doc@Clinic.KG ", access.RoleDoctor)
	if u.Email != "doc@clinic.kg" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "s3cret-pass" || u.PasswordHash == "" {
		t.Error("expected password to be hashed")
	}
	if u.FullName() != "Aida Usupova" {
		t.Errorf("unexpected full name %q", u.FullName())
	}
	if !u.Active {
		t.Error("new users are active")
	}
}

func TestCreateUser_Validation(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()

	cases := map[string]CreateUserInput{
		"email":    {Email: "not-an-email", Password: "s3cret-pass", Role: access.RoleDoctor},
		"password": {Email: "a@b.kg", Password: "short", Role: access.RoleDoctor},
		"role":     {Email: "a@b.kg", Password: "s3cret-pass", Role: "nurse"},
	}
	for field, in := range cases {
		_, err := svc.CreateUser(ctx, in)
		v, ok := domain.AsValidation(err)
		if !ok || v.Field != field {
			t.Errorf("%s: expected validation error on %s, got %v", field, field, err)
		}
	}

	mustCreate(t, svc, "dup@clinic.kg", access.RoleReceptionist)
	if _, err := svc.CreateUser(ctx, CreateUserInput{Email: "DUP@clinic.kg", Password: "s3cret-pass", Role: access.RoleDoctor}); !domain.IsValidation(err) {
		t.Errorf("expected duplicate email to be rejected, got %v", err)
	}
}

func TestCreateStaffUser_RoleLimits(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	admin := access.Admin(uuid.New())

	if _, err := svc.CreateStaffUser(ctx, admin, CreateUserInput{Email: "x@clinic.kg", Password: "s3cret-pass", Role: access.RoleAdmin}); !domain.IsValidation(err) {
		t.Errorf("expected admin role to be refused, got %v", err)
	}
	if _, err := svc.CreateStaffUser(ctx, access.Receptionist(uuid.New()), CreateUserInput{Email: "y@clinic.kg", Password: "s3cret-pass", Role: access.RoleDoctor}); !domain.IsValidation(err) {
		t.Errorf("expected receptionist to be refused, got %v", err)
	}
	if _, err := svc.CreateStaffUser(ctx, admin, CreateUserInput{Email: "z@clinic.kg", Password: "s3cret-pass", Role: access.RoleReceptionist}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	mustCreate(t, svc, "recep@clinic.kg", access.RoleReceptionist)

	res, err := svc.Login(ctx, LoginInput{Email: "recep@clinic.kg", Password: "s3cret-pass", Role: "receptionist"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tokens.Access == "" || res.User.RoleLabel != "Регистратура" {
		t.Errorf("unexpected login result %+v", res)
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "recep@clinic.kg", Password: "wrong-pass", Role: "receptionist"}); !domain.IsValidation(err) {
		t.Errorf("expected bad password to fail validation, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "nobody@clinic.kg", Password: "s3cret-pass"}); !domain.IsValidation(err) {
		t.Errorf("expected unknown email to fail validation, got %v", err)
	}
	_, err = svc.Login(ctx, LoginInput{Email: "recep@clinic.kg", Password: "s3cret-pass", Role: "admin"})
	if v, ok := domain.AsValidation(err); !ok || v.Field != "role" {
		t.Errorf("expected role mismatch, got %v", err)
	}
}

func TestLogin_Disabled(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	u := mustCreate(t, svc, "off@clinic.kg", access.RoleDoctor)
	inactive := false
	if _, err := svc.UpdateUser(ctx, u.ID, UpdateUserInput{Active: &inactive}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "off@clinic.kg", Password: "s3cret-pass", Role: "doctor"}); !domain.IsValidation(err) {
		t.Errorf("expected disabled account to be refused, got %v", err)
	}
}

func TestRefresh_Rotates(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	mustCreate(t, svc, "doc@clinic.kg", access.RoleDoctor)
	res, _ := svc.Login(ctx, LoginInput{Email: "doc@clinic.kg", Password: "s3cret-pass", Role: "doctor"})

	pair, err := svc.Refresh(ctx, res.Tokens.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.Refresh == res.Tokens.Refresh {
		t.Error("expected a new refresh token")
	}
	if _, err := svc.Refresh(ctx, res.Tokens.Refresh); !domain.IsValidation(err) {
		t.Errorf("expected reused refresh token to be rejected, got %v", err)
	}
	if _, err := svc.Refresh(ctx, res.Tokens.Access); !domain.IsValidation(err) {
		t.Errorf("expected access token to be rejected as refresh, got %v", err)
	}
}

func TestLogout_RevokesTokens(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	mustCreate(t, svc, "doc@clinic.kg", access.RoleDoctor)
	res, _ := svc.Login(ctx, LoginInput{Email: "doc@clinic.kg", Password: "s3cret-pass", Role: "doctor"})

	if err := svc.Logout(ctx, res.Tokens.Refresh, res.Tokens.Access); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if revoked.Count() != 2 {
		t.Errorf("expected refresh and access to be revoked, got %d entries", revoked.Count())
	}
	if _, err := svc.Refresh(ctx, res.Tokens.Refresh); !domain.IsValidation(err) {
		t.Errorf("expected refresh after logout to fail, got %v", err)
	}
	if err := svc.Logout(ctx, "garbage", ""); !domain.IsValidation(err) {
		t.Errorf("expected invalid refresh token to fail validation, got %v", err)
	}
}

func TestUpdateUser_Password(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	u := mustCreate(t, svc, "doc@clinic.kg", access.RoleDoctor)

	newPass := "another-pass"
	if _, err := svc.UpdateUser(ctx, u.ID, UpdateUserInput{Password: &newPass}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "doc@clinic.kg", Password: newPass}); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()
	admin := mustCreate(t, svc, "admin@clinic.kg", access.RoleAdmin)
	doc := mustCreate(t, svc, "doc@clinic.kg", access.RoleDoctor)
	p := access.Admin(admin.ID)

	if err := svc.DeleteUser(ctx, p, admin.ID); !domain.IsValidation(err) {
		t.Errorf("expected self delete to be refused, got %v", err)
	}
	if err := svc.DeleteUser(ctx, p, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetUser(ctx, doc.ID); !domain.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	ctx := context.Background()

	first, created, err := svc.EnsureAdmin(ctx, "admin@clinic.kg", "admin-pass")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !created || first.Role != access.RoleAdmin {
		t.Fatalf("expected a new admin, got created=%v role=%s", created, first.Role)
	}

	again, created, err := svc.EnsureAdmin(ctx, "Admin@Clinic.kg", "ignored-pass")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created || again.ID != first.ID {
		t.Errorf("expected the existing admin %s, got %s (created=%v)", first.ID, again.ID, created)
	}
}

func TestEnsureAdmin_OtherRole(t *testing.T) {
	svc, revoked := newTestService()
	defer revoked.Close()
	mustCreate(t, svc, "doc@clinic.kg", access.RoleDoctor)

	_, _, err := svc.EnsureAdmin(context.Background(), "doc@clinic.kg", "admin-pass")
	if !domain.IsValidation(err) {
		t.Errorf("expected validation error for a doctor account, got %v", err)
	}
}

package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

// -- Mocks --

type mockRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*AppointmentState
	payments     map[uuid.UUID]*Payment // keyed by appointment
	failComplete bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		appointments: make(map[uuid.UUID]*AppointmentState),
		payments:     make(map[uuid.UUID]*Payment),
	}
}

func (m *mockRepo) addAppointment(status scheduling.Status, price string) uuid.UUID {
	id := uuid.New()
	m.appointments[id] = &AppointmentState{ID: id, DoctorID: uuid.New(), Status: status, Price: domain.MustMoney(price)}
	return id
}

func (m *mockRepo) LockAppointment(_ context.Context, id uuid.UUID) (*AppointmentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.appointments[id]
	if !ok {
		return nil, domain.NotFound("appointment", id)
	}
	cp := *st
	_, cp.Paid = m.payments[id]
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.payments[p.AppointmentID]; exists {
		return errPaymentExists
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	m.payments[p.AppointmentID] = &cp
	return nil
}

func (m *mockRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failComplete {
		return errors.New("connection reset")
	}
	m.appointments[id].Status = scheduling.StatusCompleted
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, scope access.Scope, id uuid.UUID) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == id && scope.Allows(m.appointments[p.AppointmentID].DoctorID) {
			return p, nil
		}
	}
	return nil, domain.NotFound("payment", id)
}

func (m *mockRepo) List(_ context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Payment
	for _, p := range m.payments {
		if scope.Allows(m.appointments[p.AppointmentID].DoctorID) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

// serialTx runs one transaction at a time, like a row lock held for the
// whole transaction, and restores repository state when fn fails.
type serialTx struct {
	mu   sync.Mutex
	repo *mockRepo
}

func (t *serialTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.repo.mu.Lock()
	payments := make(map[uuid.UUID]*Payment, len(t.repo.payments))
	for k, v := range t.repo.payments {
		payments[k] = v
	}
	statuses := make(map[uuid.UUID]scheduling.Status, len(t.repo.appointments))
	for k, v := range t.repo.appointments {
		statuses[k] = v.Status
	}
	t.repo.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		t.repo.mu.Lock()
		t.repo.payments = payments
		for k, s := range statuses {
			t.repo.appointments[k].Status = s
		}
		t.repo.mu.Unlock()
	}
	return err
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, &serialTx{repo: repo}, zerolog.Nop()), repo
}

func expectMessage(t *testing.T, err error, field, message string) {
	t.Helper()
	v, ok := domain.AsValidation(err)
	if !ok {
		t.Fatalf("expected validation error %q, got %v", message, err)
	}
	if v.Field != field || v.Message != message {
		t.Errorf("expected %s: %s, got %s: %s", field, message, v.Field, v.Message)
	}
}

// -- Tests --

func TestRecordPayment(t *testing.T) {
	svc, repo := newTestService()
	apptID := repo.addAppointment(scheduling.StatusConfirmed, "1000")
	caller := uuid.New()

	pay, err := svc.RecordPayment(context.Background(), access.Receptionist(caller), RecordPaymentInput{
		AppointmentID: apptID,
		Amount:        domain.MustMoney("1000"),
		Method:        MethodCash,
		RegistrarID:   ptr(uuid.New()),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if pay.RegistrarID == nil || *pay.RegistrarID != caller {
		t.Errorf("expected registrar to be the caller %s, got %v", caller, pay.RegistrarID)
	}
	if repo.appointments[apptID].Status != scheduling.StatusCompleted {
		t.Errorf("expected appointment completed, got %s", repo.appointments[apptID].Status)
	}
}

func TestRecordPayment_PartialAmount(t *testing.T) {
	svc, repo := newTestService()
	apptID := repo.addAppointment(scheduling.StatusQueue, "1000")
	if _, err := svc.RecordPayment(context.Background(), access.Admin(uuid.New()), RecordPaymentInput{
		AppointmentID: apptID, Amount: domain.MustMoney("999.99"), Method: MethodCard,
	}); err != nil {
		t.Fatalf("amount below price must be accepted: %v", err)
	}
}

func TestRecordPayment_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  scheduling.Status
		amount  string
		method  Method
		field   string
		message string
	}{
		{"cancelled", scheduling.StatusCancelled, "100", MethodCash, "appointment_id", "cannot pay a cancelled appointment"},
		{"already completed", scheduling.StatusCompleted, "100", MethodCash, "appointment_id", "payment already exists"},
		{"over price", scheduling.StatusQueue, "1000.01", MethodCash, "amount", "amount exceeds service price"},
		{"zero", scheduling.StatusQueue, "0", MethodCash, "amount", "amount must be greater than zero"},
		{"negative", scheduling.StatusQueue, "-1", MethodCard, "amount", "amount must be greater than zero"},
		{"fraction of a cent", scheduling.StatusQueue, "10.001", MethodCard, "amount", "amount has more than two decimal places"},
		{"bad method", scheduling.StatusQueue, "100", "crypto", "method", "method must be cash or card"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			apptID := repo.addAppointment(tt.status, "1000")
			_, err := svc.RecordPayment(context.Background(), access.Receptionist(uuid.New()), RecordPaymentInput{
				AppointmentID: apptID, Amount: domain.MustMoney(tt.amount), Method: tt.method,
			})
			expectMessage(t, err, tt.field, tt.message)
			if len(repo.payments) != 0 {
				t.Error("rejected payment must not be stored")
			}
			if repo.appointments[apptID].Status != tt.status {
				t.Error("rejected payment must not change the appointment")
			}
		})
	}
}

func TestRecordPayment_Twice(t *testing.T) {
	svc, repo := newTestService()
	apptID := repo.addAppointment(scheduling.StatusConfirmed, "500")
	in := RecordPaymentInput{AppointmentID: apptID, Amount: domain.MustMoney("500"), Method: MethodCash}

	if _, err := svc.RecordPayment(context.Background(), access.Admin(uuid.New()), in); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	_, err := svc.RecordPayment(context.Background(), access.Admin(uuid.New()), in)
	expectMessage(t, err, "appointment_id", "payment already exists")
}

func TestRecordPayment_MissingAppointment(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.RecordPayment(context.Background(), access.Admin(uuid.New()), RecordPaymentInput{
		AppointmentID: uuid.New(), Amount: domain.MustMoney("1"), Method: MethodCash,
	})
	if !domain.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecordPayment_DoctorForbidden(t *testing.T) {
	svc, repo := newTestService()
	apptID := repo.addAppointment(scheduling.StatusQueue, "100")
	_, err := svc.RecordPayment(context.Background(), access.Doctor(uuid.New(), uuid.New()), RecordPaymentInput{
		AppointmentID: apptID, Amount: domain.MustMoney("100"), Method: MethodCash,
	})
	expectMessage(t, err, "role", "not allowed to record payments")
}

func TestRecordPayment_AtomicCompletion(t *testing.T) {
	svc, repo := newTestService()
	apptID := repo.addAppointment(scheduling.StatusQueue, "100")
	repo.failComplete = true

	_, err := svc.RecordPayment(context.Background(), access.Admin(uuid.New()), RecordPaymentInput{
		AppointmentID: apptID, Amount: domain.MustMoney("100"), Method: MethodCash,
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(repo.payments) != 0 {
		t.Error("payment must be rolled back when completion fails")
	}
	if repo.appointments[apptID].Status != scheduling.StatusQueue {
		t.Error("appointment must keep its status")
	}
}

func TestRecordPayment_Concurrent(t *testing.T) {
	svc, repo := newTestService()
	apptID := repo.addAppointment(scheduling.StatusConfirmed, "1000")
	const callers = 8

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordPayment(context.Background(), access.Receptionist(uuid.New()), RecordPaymentInput{
				AppointmentID: apptID, Amount: domain.MustMoney("1000"), Method: MethodCard,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		expectMessage(t, err, "appointment_id", "payment already exists")
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one success, got %d", succeeded)
	}
	if len(repo.payments) != 1 {
		t.Errorf("expected one stored payment, got %d", len(repo.payments))
	}
}

func TestListPayments_Scope(t *testing.T) {
	svc, repo := newTestService()
	a1 := repo.addAppointment(scheduling.StatusQueue, "100")
	a2 := repo.addAppointment(scheduling.StatusQueue, "100")
	admin := access.Admin(uuid.New())
	for _, id := range []uuid.UUID{a1, a2} {
		if _, err := svc.RecordPayment(context.Background(), admin, RecordPaymentInput{
			AppointmentID: id, Amount: domain.MustMoney("100"), Method: MethodCash,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	doc := access.Doctor(uuid.New(), repo.appointments[a1].DoctorID)
	_, total, err := svc.ListPayments(context.Background(), doc, Filter{}, 20, 0)
	if err != nil || total != 1 {
		t.Errorf("expected doctor to see 1 payment, got %d (%v)", total, err)
	}
	if _, _, err := svc.ListPayments(context.Background(), admin, Filter{Method: "cheque"}, 20, 0); !domain.IsValidation(err) {
		t.Errorf("expected bad method filter to be rejected, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/scheduling"
)

var tracer = otel.Tracer("github.com/medcrm/clinic/internal/domain/billing")

var errPaymentExists = domain.Invalid("appointment_id", "payment already exists")

type Service struct {
	repo   Repository
	tx     domain.TxRunner
	logger zerolog.Logger
}

func NewService(repo Repository, tx domain.TxRunner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger.With().Str("component", "billing").Logger()}
}

// RecordPayment settles an appointment: the payment is inserted and the
// appointment marked completed in one transaction. The appointment row is
// locked before any check, so of two concurrent calls for the same
// appointment exactly one succeeds. The registrar is always the caller.
func (s *Service) RecordPayment(ctx context.Context, p access.Policy, in RecordPaymentInput) (*Payment, error) {
	ctx, span := tracer.Start(ctx, "billing.RecordPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", in.AppointmentID.String()),
		attribute.String("payment.method", string(in.Method)),
	)

	pay, err := s.record(ctx, p, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.logger.Info().
		Str("payment_id", pay.ID.String()).
		Str("appointment_id", pay.AppointmentID.String()).
		Str("amount", pay.Amount.String()).
		Str("method", string(pay.Method)).
		Msg("payment recorded")
	return pay, nil
}

func (s *Service) record(ctx context.Context, p access.Policy, in RecordPaymentInput) (*Payment, error) {
	if !p.CanRecordPayment() {
		return nil, domain.Invalid("role", "not allowed to record payments")
	}
	if !in.Method.Valid() {
		return nil, domain.Invalid("method", "method must be cash or card")
	}
	if !in.Amount.IsPositive() {
		return nil, domain.Invalid("amount", "amount must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, domain.Invalid("amount", "amount has more than two decimal places")
	}
	registrar := p.UserID()

	pay := &Payment{
		AppointmentID: in.AppointmentID,
		Amount:        in.Amount,
		Method:        in.Method,
		RegistrarID:   &registrar,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		st, err := s.repo.LockAppointment(ctx, in.AppointmentID)
		if err != nil {
			return err
		}
		switch {
		case st.Status == scheduling.StatusCancelled:
			return domain.Invalid("appointment_id", "cannot pay a cancelled appointment")
		case st.Paid || st.Status == scheduling.StatusCompleted:
			return errPaymentExists
		case in.Amount.GreaterThan(st.Price.Decimal):
			return domain.Invalid("amount", "amount exceeds service price")
		}
		if err := s.repo.Create(ctx, pay); err != nil {
			return err
		}
		return s.repo.MarkCompleted(ctx, in.AppointmentID)
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}

func (s *Service) GetPayment(ctx context.Context, p access.Policy, id uuid.UUID) (*Payment, error) {
	return s.repo.GetByID(ctx, p.AppointmentScope(), id)
}

func (s *Service) ListPayments(ctx context.Context, p access.Policy, f Filter, limit, offset int) ([]*Payment, int, error) {
	if f.Method != "" && !f.Method.Valid() {
		return nil, 0, domain.Invalid("method", "method must be cash or card")
	}
	return s.repo.List(ctx, p.AppointmentScope(), f, limit, offset)
}

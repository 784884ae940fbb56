package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/scheduling"
	"github.com/medcrm/clinic/internal/platform/db"
)

// paymentUniqueConstraint guards one payment per appointment.
const paymentUniqueConstraint = "payment_appointment_id_key"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) LockAppointment(ctx context.Context, appointmentID uuid.UUID) (*AppointmentState, error) {
	var st AppointmentState
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT a.id, a.doctor_id, a.status, s.price,
			EXISTS (SELECT 1 FROM payment pay WHERE pay.appointment_id = a.id)
		FROM appointment a
		JOIN service s ON s.id = a.service_id
		WHERE a.id = $1
		FOR UPDATE OF a`, appointmentID,
	).Scan(&st.ID, &st.DoctorID, &st.Status, &st.Price, &st.Paid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("appointment", appointmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock appointment: %w", err)
	}
	return &st, nil
}

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment (id, appointment_id, amount, method, registrar_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		p.ID, p.AppointmentID, p.Amount, p.Method, p.RegistrarID,
	).Scan(&p.CreatedAt)
	if db.IsUniqueViolation(err, paymentUniqueConstraint) {
		return errPaymentExists
	}
	return err
}

func (r *repoPG) MarkCompleted(ctx context.Context, appointmentID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status = $2 WHERE id = $1`, appointmentID, scheduling.StatusCompleted)
	if err != nil {
		return fmt.Errorf("complete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("appointment", appointmentID)
	}
	return nil
}

const paymentSelect = `
	SELECT pay.id, pay.appointment_id, pay.amount, pay.method, pay.registrar_id, pay.created_at,
		p.full_name, a.doctor_id, TRIM(u.first_name || ' ' || u.last_name), s.name, s.price,
		dep.name, d.bonus_percent
	FROM payment pay
	JOIN appointment a ON a.id = pay.appointment_id
	JOIN patient p ON p.id = a.patient_id
	JOIN doctor d ON d.id = a.doctor_id
	JOIN users u ON u.id = d.user_id
	JOIN service s ON s.id = a.service_id
	JOIN department dep ON dep.id = a.department_id`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.AppointmentID, &p.Amount, &p.Method, &p.RegistrarID, &p.CreatedAt,
		&p.PatientName, &p.DoctorID, &p.DoctorName, &p.ServiceName, &p.ServicePrice,
		&p.DepartmentName, &p.BonusPercent)
	return &p, err
}

func (r *repoPG) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*Payment, error) {
	var w db.Where
	w.Add(`pay.id = $%d`, id)
	if scope.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *scope.DoctorID)
	}
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, paymentSelect+w.SQL(), w.Args()...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("payment", id)
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Payment, int, error) {
	var w db.Where
	if scope.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *scope.DoctorID)
	}
	if f.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *f.DoctorID)
	}
	if f.DepartmentID != nil {
		w.Add(`a.department_id = $%d`, *f.DepartmentID)
	}
	if f.Method != "" {
		w.Add(`pay.method = $%d`, f.Method)
	}
	if f.From != nil {
		w.Add(`pay.created_at >= $%d`, *f.From)
	}
	if f.To != nil {
		w.Add(`pay.created_at < $%d`, *f.To)
	}
	w.Contains(f.Search, "p.full_name")

	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM payment pay
		JOIN appointment a ON a.id = pay.appointment_id
		JOIN patient p ON p.id = a.patient_id`+w.SQL(), w.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	page := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		paymentSelect+w.SQL()+` ORDER BY pay.created_at DESC`+page,
		w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

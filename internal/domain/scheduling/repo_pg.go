package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const appointmentSelect = `
	SELECT a.id, a.patient_id, a.doctor_id, a.service_id, a.department_id, a.registrar_id,
		a.start_time, a.end_time, a.status, a.created_at,
		p.full_name, TRIM(u.first_name || ' ' || u.last_name), s.name, s.price, dep.name,
		pay.method, pay.amount
	FROM appointment a
	JOIN patient p ON p.id = a.patient_id
	JOIN doctor d ON d.id = a.doctor_id
	JOIN users u ON u.id = d.user_id
	JOIN service s ON s.id = a.service_id
	JOIN department dep ON dep.id = a.department_id
	LEFT JOIN payment pay ON pay.appointment_id = a.id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		method *string
		amount *domain.Money
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ServiceID, &a.DepartmentID, &a.RegistrarID,
		&a.Start, &a.End, &a.Status, &a.CreatedAt,
		&a.PatientName, &a.DoctorName, &a.ServiceName, &a.ServicePrice, &a.DepartmentName,
		&method, &amount)
	if err != nil {
		return nil, err
	}
	if method != nil && amount != nil {
		a.Payment = &PaymentInfo{Method: *method, Amount: *amount}
	}
	return &a, nil
}

func scopeWhere(w *db.Where, s access.Scope) {
	if s.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *s.DoctorID)
	}
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, service_id, department_id, registrar_id,
			start_time, end_time, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		a.ID, a.PatientID, a.DoctorID, a.ServiceID, a.DepartmentID, a.RegistrarID, a.Start, a.End, a.Status,
	).Scan(&a.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return domain.Invalid("", "referenced record no longer exists")
	}
	return err
}

func (r *repoPG) get(ctx context.Context, scope access.Scope, id uuid.UUID, suffix string) (*Appointment, error) {
	var w db.Where
	w.Add(`a.id = $%d`, id)
	scopeWhere(&w, scope)
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, appointmentSelect+w.SQL()+suffix, w.Args()...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("appointment", id)
	}
	return a, err
}

func (r *repoPG) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, scope, id, "")
}

func (r *repoPG) GetForUpdate(ctx context.Context, scope access.Scope, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, scope, id, ` FOR UPDATE OF a`)
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET patient_id=$2, doctor_id=$3, service_id=$4, department_id=$5,
			start_time=$6, end_time=$7, status=$8
		WHERE id = $1`,
		a.ID, a.PatientID, a.DoctorID, a.ServiceID, a.DepartmentID, a.Start, a.End, a.Status)
	if db.IsForeignKeyViolation(err) {
		return domain.Invalid("", "referenced record no longer exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("appointment", a.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("appointment", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var w db.Where
	scopeWhere(&w, scope)
	if f.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *f.DoctorID)
	}
	if f.DepartmentID != nil {
		w.Add(`a.department_id = $%d`, *f.DepartmentID)
	}
	if f.PatientID != nil {
		w.Add(`a.patient_id = $%d`, *f.PatientID)
	}
	if f.Status != "" {
		w.Add(`a.status = $%d`, f.Status)
	}
	if f.From != nil {
		w.Add(`a.start_time >= $%d`, *f.From)
	}
	if f.To != nil {
		w.Add(`a.start_time < $%d`, *f.To)
	}
	w.Contains(f.Search, "p.full_name")

	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointment a JOIN patient p ON p.id = a.patient_id`+w.SQL(), w.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	page := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		appointmentSelect+w.SQL()+` ORDER BY a.start_time DESC`+page,
		w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/scheduling"
	"github.com/medcrm/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) Payments(ctx context.Context, scope access.Scope, q PaymentQuery) ([]*PaymentRow, error) {
	var w db.Where
	w.Add(`a.status = $%d`, scheduling.StatusCompleted)
	w.Add(`pay.created_at >= $%d`, q.From)
	w.Add(`pay.created_at < $%d`, q.To)
	if scope.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *scope.DoctorID)
	}
	if q.DoctorID != nil {
		w.Add(`a.doctor_id = $%d`, *q.DoctorID)
	}
	if q.DepartmentID != nil {
		w.Add(`a.department_id = $%d`, *q.DepartmentID)
	}
	w.Contains(q.Search, "p.full_name")

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pay.id, pay.created_at, p.full_name, dep.name, a.doctor_id,
			TRIM(u.first_name || ' ' || u.last_name), s.name, s.price, pay.amount, pay.method,
			d.bonus_percent
		FROM payment pay
		JOIN appointment a ON a.id = pay.appointment_id
		JOIN patient p ON p.id = a.patient_id
		JOIN doctor d ON d.id = a.doctor_id
		JOIN users u ON u.id = d.user_id
		JOIN service s ON s.id = a.service_id
		JOIN department dep ON dep.id = a.department_id`+w.SQL()+`
		ORDER BY pay.created_at, pay.id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("report payments: %w", err)
	}
	defer rows.Close()

	var out []*PaymentRow
	for rows.Next() {
		var pr PaymentRow
		if err := rows.Scan(&pr.ID, &pr.CreatedAt, &pr.PatientName, &pr.DepartmentName, &pr.DoctorID,
			&pr.DoctorName, &pr.ServiceName, &pr.Price, &pr.Amount, &pr.Method, &pr.BonusPercent); err != nil {
			return nil, err
		}
		out = append(out, &pr)
	}
	return out, rows.Err()
}

func (r *repoPG) Appointments(ctx context.Context, from, to time.Time) ([]AppointmentPoint, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, start_time, status FROM appointment
		WHERE start_time >= $1 AND start_time < $2`, from, to)
	if err != nil {
		return nil, fmt.Errorf("report appointments: %w", err)
	}
	defer rows.Close()

	var out []AppointmentPoint
	for rows.Next() {
		var p AppointmentPoint
		if err := rows.Scan(&p.PatientID, &p.StartTime, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) VisitCounts(ctx context.Context) ([]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT COUNT(*) FROM appointment GROUP BY patient_id`)
	if err != nil {
		return nil, fmt.Errorf("visit counts: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *repoPG) CountDoctors(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&n)
	return n, err
}

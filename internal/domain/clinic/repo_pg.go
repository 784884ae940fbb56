package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/platform/db"
)

// -- Department --

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func (r *departmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO department (id, name) VALUES ($1, $2) RETURNING created_at`,
		d.ID, d.Name).Scan(&d.CreatedAt)
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	var d Department
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, created_at FROM department WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("department", id)
	}
	return &d, err
}

func (r *departmentRepoPG) Update(ctx context.Context, d *Department) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE department SET name = $2 WHERE id = $1`, d.ID, d.Name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("department", d.ID)
	}
	return nil
}

func (r *departmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM department WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("department", id)
	}
	return nil
}

func (r *departmentRepoPG) List(ctx context.Context) ([]*Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, created_at FROM department ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

// -- Doctor --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const doctorSelect = `
	SELECT d.id, d.user_id, d.department_id, d.specialization, d.cabinet, d.bonus_percent,
		d.photo_url, d.created_at, u.first_name, u.last_name, u.email, u.phone, dep.name
	FROM doctor d
	JOIN users u ON u.id = d.user_id
	JOIN department dep ON dep.id = d.department_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.DepartmentID, &d.Specialization, &d.Cabinet, &d.BonusPercent,
		&d.PhotoURL, &d.CreatedAt, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.DepartmentName)
	if err != nil {
		return nil, err
	}
	d.setFullName()
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, user_id, department_id, specialization, cabinet, bonus_percent, photo_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		d.ID, d.UserID, d.DepartmentID, d.Specialization, d.Cabinet, d.BonusPercent, d.PhotoURL,
	).Scan(&d.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return domain.NotFound("department", d.DepartmentID)
	}
	if db.IsUniqueViolation(err, "") {
		return domain.Invalid("user_id", "user already has a doctor profile")
	}
	return err
}

func (r *doctorRepoPG) getOne(ctx context.Context, where string, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, doctorSelect+` WHERE `+where, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("doctor", id)
	}
	return d, err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.getOne(ctx, `d.id = $1`, id)
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return r.getOne(ctx, `d.user_id = $1`, userID)
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET department_id=$2, specialization=$3, cabinet=$4, bonus_percent=$5, photo_url=$6
		WHERE id = $1`,
		d.ID, d.DepartmentID, d.Specialization, d.Cabinet, d.BonusPercent, d.PhotoURL)
	if db.IsForeignKeyViolation(err) {
		return domain.NotFound("department", d.DepartmentID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("doctor", d.ID)
	}
	return nil
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM users WHERE id = (SELECT user_id FROM doctor WHERE id = $1)`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("doctor", id)
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	w := doctorWhere(f)

	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM doctor d JOIN users u ON u.id = d.user_id`+w.SQL(), w.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	page := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		doctorSelect+w.SQL()+` ORDER BY u.last_name, u.first_name`+page,
		w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func doctorWhere(f DoctorFilter) *db.Where {
	var w db.Where
	if f.DepartmentID != nil {
		w.Add(`d.department_id = $%d`, *f.DepartmentID)
	}
	w.Contains(f.Search, "u.first_name || ' ' || u.last_name")
	return &w
}

func (r *doctorRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&n)
	return n, err
}

// -- Service --

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository { return &serviceRepoPG{pool: pool} }

func (r *serviceRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const serviceSelect = `
	SELECT s.id, s.department_id, s.name, s.price, s.created_at, dep.name
	FROM service s
	JOIN department dep ON dep.id = s.department_id`

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.DepartmentID, &s.Name, &s.Price, &s.CreatedAt, &s.DepartmentName)
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *Service) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO service (id, department_id, name, price) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		s.ID, s.DepartmentID, s.Name, s.Price,
	).Scan(&s.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return domain.NotFound("department", s.DepartmentID)
	}
	return err
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, serviceSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("service", id)
	}
	return s, err
}

func (r *serviceRepoPG) Update(ctx context.Context, s *Service) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE service SET department_id=$2, name=$3, price=$4 WHERE id = $1`,
		s.ID, s.DepartmentID, s.Name, s.Price)
	if db.IsForeignKeyViolation(err) {
		return domain.NotFound("department", s.DepartmentID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("service", s.ID)
	}
	return nil
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM service WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("service", id)
	}
	return nil
}

func (r *serviceRepoPG) List(ctx context.Context, f ServiceFilter, limit, offset int) ([]*Service, int, error) {
	var w db.Where
	if f.DepartmentID != nil {
		w.Add(`s.department_id = $%d`, *f.DepartmentID)
	}
	w.Contains(f.Search, "s.name")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service s`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}

	page := w.Page(limit, offset)
	items, err := r.query(ctx, serviceSelect+w.SQL()+` ORDER BY dep.name, s.name`+page, w.Args()...)
	return items, total, err
}

func (r *serviceRepoPG) ListAll(ctx context.Context) ([]*Service, error) {
	return r.query(ctx, serviceSelect+` ORDER BY dep.name, s.name`)
}

func (r *serviceRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Service, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

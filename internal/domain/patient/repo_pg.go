package patient

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

const patientCols = `p.id, p.full_name, p.birth_date, p.phone, p.gender, p.note, p.created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.BirthDate, &p.Phone, &p.Gender, &p.Note, &p.CreatedAt)
	return &p, err
}

func scopeWhere(w *db.Where, s access.Scope) {
	if s.DoctorID != nil {
		w.Add(`EXISTS (SELECT 1 FROM appointment a WHERE a.patient_id = p.id AND a.doctor_id = $%d)`, *s.DoctorID)
	}
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, full_name, birth_date, phone, gender, note)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		p.ID, p.FullName, p.BirthDate, p.Phone, p.Gender, p.Note,
	).Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*Patient, error) {
	var w db.Where
	w.Add(`p.id = $%d`, id)
	scopeWhere(&w, scope)
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient p`+w.SQL(), w.Args()...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("patient", id)
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET full_name=$2, birth_date=$3, phone=$4, gender=$5, note=$6
		WHERE id = $1`,
		p.ID, p.FullName, p.BirthDate, p.Phone, p.Gender, p.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("patient", p.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("patient", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, scope access.Scope, f Filter, limit, offset int) ([]*Patient, int, error) {
	var w db.Where
	scopeWhere(&w, scope)
	w.Contains(f.Search, "p.full_name", "p.phone")
	if f.Gender != "" {
		w.Add(`p.gender = $%d`, f.Gender)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient p`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	page := w.Page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient p`+w.SQL()+` ORDER BY p.created_at DESC`+page,
		w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

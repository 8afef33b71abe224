package admission

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tpadesk/tpa/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const admissionCols = `id, patient_id, admission_id, hospital_id, insurance_company, tpa_id, admitted_at, created_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.PatientID, &a.AdmissionID, &a.HospitalID, &a.InsuranceCompany,
		&a.TPAID, &a.AdmittedAt, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admissions (patient_id, admission_id, hospital_id, insurance_company, tpa_id, admitted_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		a.PatientID, a.AdmissionID, a.HospitalID, a.InsuranceCompany, a.TPAID, a.AdmittedAt,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *repoPG) LatestForPatient(ctx context.Context, patientID int64) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admissions WHERE patient_id = $1 ORDER BY id DESC LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Admission, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+admissionCols+` FROM admissions WHERE patient_id = $1 ORDER BY id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

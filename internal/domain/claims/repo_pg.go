package claims

import (
	"context"

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

const claimCols = `id, patient_id, patient_name, admission_id, status, reason, claim_id,
	amount, paid_amount, hospital_id, tpa_id, created_by, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.PatientID, &c.PatientName, &c.AdmissionID, &c.Status, &c.Reason, &c.ClaimID,
		&c.Amount, &c.PaidAmount, &c.HospitalID, &c.TPAID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Append(ctx context.Context, c *Claim) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO claims (patient_id, patient_name, admission_id, status, reason, claim_id,
			amount, paid_amount, hospital_id, tpa_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at`,
		c.PatientID, c.PatientName, c.AdmissionID, c.Status, c.Reason, c.ClaimID,
		c.Amount, c.PaidAmount, c.HospitalID, c.TPAID, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) PropagateClaimID(ctx context.Context, admissionID, claimID string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE claims SET claim_id = $1, updated_at = NOW() WHERE admission_id = $2`, claimID, admissionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) ListByAdmission(ctx context.Context, admissionID string) ([]*Claim, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+claimCols+` FROM claims WHERE admission_id = $1 ORDER BY id`, admissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

var claimFilters = map[string]db.FilterConfig{
	"status":       {Type: db.FilterExact, Column: "status"},
	"hospital_id":  {Type: db.FilterInt, Column: "hospital_id"},
	"tpa_id":       {Type: db.FilterInt, Column: "tpa_id"},
	"patient_id":   {Type: db.FilterInt, Column: "patient_id"},
	"admission_id": {Type: db.FilterExact, Column: "admission_id"},
	"claim_id":     {Type: db.FilterExact, Column: "claim_id"},
	"patient_name": {Type: db.FilterContains, Column: "patient_name"},
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Claim, int, error) {
	qb := db.NewSearchQuery("claims", claimCols)
	qb.ApplyFilters(params, claimFilters)
	qb.OrderBy("id DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

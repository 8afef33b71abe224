package preauth

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== PreAuthRequest Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const requestCols = `id, patient_id, admission_id, claim_id, hospital_id, company_id, tpa_id,
	name, gender, age, contact_number, email, policy_number, insured_card_number, employee_id,
	doctor_name, doctor_contact, nature_of_illness, clinical_findings, provisional_diagnosis,
	icd10_code, treatment_type, surgery_name, icd10_pcs_code,
	admission_date, admission_type, expected_stay_days, expected_icu_days, room_type,
	room_rent_per_day, investigation_cost, icu_charges, ot_charges, professional_fees,
	medicine_cost, other_charges, package_charges, total_cost,
	status, created_by, created_at, updated_at`

func scanRequest(row pgx.Row) (*PreAuthRequest, error) {
	var p PreAuthRequest
	err := row.Scan(&p.ID, &p.PatientID, &p.AdmissionID, &p.ClaimID, &p.HospitalID, &p.CompanyID, &p.TPAID,
		&p.Name, &p.Gender, &p.Age, &p.ContactNumber, &p.Email, &p.PolicyNumber, &p.InsuredCardNumber, &p.EmployeeID,
		&p.DoctorName, &p.DoctorContact, &p.NatureOfIllness, &p.ClinicalFindings, &p.ProvisionalDiagnosis,
		&p.ICD10Code, &p.TreatmentType, &p.SurgeryName, &p.ICD10PCSCode,
		&p.AdmissionDate, &p.AdmissionType, &p.ExpectedStayDays, &p.ExpectedICUDays, &p.RoomType,
		&p.RoomRentPerDay, &p.InvestigationCost, &p.ICUCharges, &p.OTCharges, &p.ProfessionalFees,
		&p.MedicineCost, &p.OtherCharges, &p.PackageCharges, &p.TotalCost,
		&p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *PreAuthRequest) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO preauth_request (patient_id, admission_id, claim_id, hospital_id, company_id, tpa_id,
			name, gender, age, contact_number, email, policy_number, insured_card_number, employee_id,
			doctor_name, doctor_contact, nature_of_illness, clinical_findings, provisional_diagnosis,
			icd10_code, treatment_type, surgery_name, icd10_pcs_code,
			admission_date, admission_type, expected_stay_days, expected_icu_days, room_type,
			room_rent_per_day, investigation_cost, icu_charges, ot_charges, professional_fees,
			medicine_cost, other_charges, package_charges, total_cost,
			status, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38,$39)
		RETURNING id, created_at, updated_at`,
		p.PatientID, p.AdmissionID, p.ClaimID, p.HospitalID, p.CompanyID, p.TPAID,
		p.Name, p.Gender, p.Age, p.ContactNumber, p.Email, p.PolicyNumber, p.InsuredCardNumber, p.EmployeeID,
		p.DoctorName, p.DoctorContact, p.NatureOfIllness, p.ClinicalFindings, p.ProvisionalDiagnosis,
		p.ICD10Code, p.TreatmentType, p.SurgeryName, p.ICD10PCSCode,
		p.AdmissionDate, p.AdmissionType, p.ExpectedStayDays, p.ExpectedICUDays, p.RoomType,
		p.RoomRentPerDay, p.InvestigationCost, p.ICUCharges, p.OTCharges, p.ProfessionalFees,
		p.MedicineCost, p.OtherCharges, p.PackageCharges, p.TotalCost,
		string(p.Status), p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*PreAuthRequest, error) {
	p, err := scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM preauth_request WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id int64, status Status, claimID *string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if claimID != nil {
		tag, err = r.conn(ctx).Exec(ctx,
			`UPDATE preauth_request SET status = $2, claim_id = $3, updated_at = NOW() WHERE id = $1`,
			id, string(status), *claimID)
	} else {
		tag, err = r.conn(ctx).Exec(ctx,
			`UPDATE preauth_request SET status = $2, updated_at = NOW() WHERE id = $1`,
			id, string(status))
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM preauth_request WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var requestFilters = map[string]db.FilterConfig{
	"status":       {Type: db.FilterExact, Column: "status"},
	"hospital_id":  {Type: db.FilterInt, Column: "hospital_id"},
	"patient_id":   {Type: db.FilterInt, Column: "patient_id"},
	"tpa_id":       {Type: db.FilterInt, Column: "tpa_id"},
	"company_id":   {Type: db.FilterExact, Column: "company_id"},
	"admission_id": {Type: db.FilterExact, Column: "admission_id"},
	"name":         {Type: db.FilterContains, Column: "name"},
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*PreAuthRequest, int, error) {
	qb := db.NewSearchQuery("preauth_request", requestCols)
	qb.ApplyFilters(params, requestFilters)
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
	var items []*PreAuthRequest
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Chat Repository ===========

type chatRepoPG struct{ pool *pgxpool.Pool }

func NewChatRepoPG(pool *pgxpool.Pool) ChatRepository { return &chatRepoPG{pool: pool} }

func (r *chatRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *chatRepoPG) Create(ctx context.Context, e *ChatEntry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat (request_id, from_email, to_email, subject, body, request_type)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		e.RequestID, e.FromEmail, e.ToEmail, e.Subject, e.Body, e.RequestType,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *chatRepoPG) FirstForRequest(ctx context.Context, requestID int64) (*ChatEntry, error) {
	var e ChatEntry
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, request_id, from_email, to_email, subject, body, request_type, created_at
		FROM chat WHERE request_id = $1 ORDER BY id LIMIT 1`, requestID,
	).Scan(&e.ID, &e.RequestID, &e.FromEmail, &e.ToEmail, &e.Subject, &e.Body, &e.RequestType, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *chatRepoPG) DeleteForRequest(ctx context.Context, requestID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM chat WHERE request_id = $1`, requestID)
	return err
}

package admission

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a patient has no admission on record.
var ErrNotFound = errors.New("no admission details found for patient")

// Admission is one hospital stay. The most recent row per patient carries
// the insurer and TPA the stay is billed through.
type Admission struct {
	ID               int64      `json:"id"`
	PatientID        int64      `json:"patient_id"`
	AdmissionID      string     `json:"admission_id"`
	HospitalID       *int64     `json:"hospital_id,omitempty"`
	InsuranceCompany *string    `json:"insurance_company,omitempty"`
	TPAID            *int64     `json:"tpa_id,omitempty"`
	AdmittedAt       *time.Time `json:"admitted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Binding is the insurer linkage copied onto a pre-authorization request.
// Values submitted by the client are never trusted for these fields.
type Binding struct {
	CompanyID   *string
	TPAID       *int64
	AdmissionID string
	HospitalID  *int64
}

func (a *Admission) Binding() *Binding {
	return &Binding{
		CompanyID:   a.InsuranceCompany,
		TPAID:       a.TPAID,
		AdmissionID: a.AdmissionID,
		HospitalID:  a.HospitalID,
	}
}

package claims

import "time"

// StatusPending is the status of the row written at intake.
const StatusPending = "Pending"

// SystemActor is recorded as created_by when a transition has no actor.
const SystemActor = "System Update"

// Claim is one row of the append-only claim history. Rows for the same
// hospital stay share AdmissionID; the newest row reflects the current state.
type Claim struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patient_id"`
	PatientName *string   `json:"patient_name,omitempty"`
	AdmissionID *string   `json:"admission_id,omitempty"`
	Status      string    `json:"status"`
	Reason      *string   `json:"reason,omitempty"`
	ClaimID     *string   `json:"claim_id,omitempty"`
	Amount      *float64  `json:"amount,omitempty"`
	PaidAmount  *float64  `json:"paid_amount,omitempty"`
	HospitalID  *int64    `json:"hospital_id,omitempty"`
	TPAID       *int64    `json:"tpa_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

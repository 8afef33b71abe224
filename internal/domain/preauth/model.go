package preauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tpadesk/tpa/internal/domain/claims"
)

// Status is an open enumeration. Operators may move a request from any
// status to any other; no transition graph is enforced.
type Status string

const (
	StatusDraft               Status = "Draft"
	StatusPending             Status = "Pending"
	StatusPreAuthSent         Status = "Pre auth Sent"
	StatusQueryRaised         Status = "Query Raised"
	StatusQueryAnswered       Status = "Query Answered"
	StatusEnhancementRequest  Status = "Enhancement Request"
	StatusEnhancementApproval Status = "Enhancement Approval"
	StatusInitialApproval     Status = "Initial Approval"
	StatusFinalApproval       Status = "Final Approval"
	StatusFinalDischargeSent  Status = "Final Discharge sent"
	StatusRejected            Status = "Rejected"
	StatusSettled             Status = "Settled"
)

// KnownStatuses returns the statuses offered in the desk UI, in workflow order.
func KnownStatuses() []Status {
	return []Status{
		StatusDraft, StatusPending, StatusPreAuthSent, StatusQueryRaised, StatusQueryAnswered,
		StatusEnhancementRequest, StatusEnhancementApproval, StatusInitialApproval,
		StatusFinalApproval, StatusFinalDischargeSent, StatusRejected, StatusSettled,
	}
}

// RequestTypePreAuth tags the chat row written at intake.
const RequestTypePreAuth = "Pre-Authorization"

var ErrNotFound = errors.New("pre-authorization request not found")

// ValidationError is returned before any write is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result types shown by the desk UI.
const (
	ResultInitial = "initial"
	ResultSuccess = "success"
	ResultError   = "error"
)

// FormResult is the short message returned to the submitting form.
type FormResult struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// PreAuthRequest is the snapshot captured at intake. Only Status and ClaimID
// change afterwards.
type PreAuthRequest struct {
	ID          int64   `json:"id"`
	PatientID   int64   `json:"patient_id"`
	AdmissionID *string `json:"admission_id,omitempty"`
	ClaimID     *string `json:"claim_id,omitempty"`
	HospitalID  *int64  `json:"hospital_id,omitempty"`
	CompanyID   *string `json:"company_id,omitempty"`
	TPAID       *int64  `json:"tpa_id,omitempty"`

	Name              *string `json:"name,omitempty"`
	Gender            *string `json:"gender,omitempty"`
	Age               *int    `json:"age,omitempty"`
	ContactNumber     *string `json:"contact_number,omitempty"`
	Email             *string `json:"email,omitempty"`
	PolicyNumber      *string `json:"policy_number,omitempty"`
	InsuredCardNumber *string `json:"insured_card_number,omitempty"`
	EmployeeID        *string `json:"employee_id,omitempty"`

	DoctorName           *string `json:"doctor_name,omitempty"`
	DoctorContact        *string `json:"doctor_contact,omitempty"`
	NatureOfIllness      *string `json:"nature_of_illness,omitempty"`
	ClinicalFindings     *string `json:"clinical_findings,omitempty"`
	ProvisionalDiagnosis *string `json:"provisional_diagnosis,omitempty"`
	ICD10Code            *string `json:"icd10_code,omitempty"`
	TreatmentType        *string `json:"treatment_type,omitempty"`
	SurgeryName          *string `json:"surgery_name,omitempty"`
	ICD10PCSCode         *string `json:"icd10_pcs_code,omitempty"`

	AdmissionDate    *time.Time `json:"admission_date,omitempty"`
	AdmissionType    *string    `json:"admission_type,omitempty"`
	ExpectedStayDays *int       `json:"expected_stay_days,omitempty"`
	ExpectedICUDays  *int       `json:"expected_icu_days,omitempty"`
	RoomType         *string    `json:"room_type,omitempty"`

	RoomRentPerDay    *float64 `json:"room_rent_per_day,omitempty"`
	InvestigationCost *float64 `json:"investigation_cost,omitempty"`
	ICUCharges        *float64 `json:"icu_charges,omitempty"`
	OTCharges         *float64 `json:"ot_charges,omitempty"`
	ProfessionalFees  *float64 `json:"professional_fees,omitempty"`
	MedicineCost      *float64 `json:"medicine_cost,omitempty"`
	OtherCharges      *float64 `json:"other_charges,omitempty"`
	PackageCharges    *float64 `json:"package_charges,omitempty"`
	TotalCost         *float64 `json:"total_cost,omitempty"`

	Status    Status    `json:"status"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatEntry logs the insurer email composed at intake.
type ChatEntry struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"request_id"`
	FromEmail   string    `json:"from_email"`
	ToEmail     string    `json:"to_email"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	RequestType string    `json:"request_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailFields is the insurer email block of the intake form.
type EmailFields struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Details string `json:"details"`
}

// Complete reports whether every field needed to send is present.
func (e EmailFields) Complete() bool {
	for _, v := range []string{e.From, e.To, e.Subject, e.Details} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// IntakeForm is the submitted payload. CompanyID and TPAID are accepted for
// compatibility with the desk form but never persisted; the admission record
// is authoritative for both.
type IntakeForm struct {
	PatientID   int64   `json:"patient_id"`
	AdmissionID *string `json:"admission_id,omitempty"`
	HospitalID  *int64  `json:"hospital_id,omitempty"`
	CompanyID   *string `json:"company_id,omitempty"`
	TPAID       *int64  `json:"tpa_id,omitempty"`

	Name              *string `json:"name,omitempty"`
	Gender            *string `json:"gender,omitempty"`
	Age               *int    `json:"age,omitempty"`
	ContactNumber     *string `json:"contact_number,omitempty"`
	Email             *string `json:"email,omitempty"`
	PolicyNumber      *string `json:"policy_number,omitempty"`
	InsuredCardNumber *string `json:"insured_card_number,omitempty"`
	EmployeeID        *string `json:"employee_id,omitempty"`

	DoctorName           *string `json:"doctor_name,omitempty"`
	DoctorContact        *string `json:"doctor_contact,omitempty"`
	NatureOfIllness      *string `json:"nature_of_illness,omitempty"`
	ClinicalFindings     *string `json:"clinical_findings,omitempty"`
	ProvisionalDiagnosis *string `json:"provisional_diagnosis,omitempty"`
	ICD10Code            *string `json:"icd10_code,omitempty"`
	TreatmentType        *string `json:"treatment_type,omitempty"`
	SurgeryName          *string `json:"surgery_name,omitempty"`
	ICD10PCSCode         *string `json:"icd10_pcs_code,omitempty"`

	AdmissionDate    *time.Time `json:"admission_date,omitempty"`
	AdmissionType    *string    `json:"admission_type,omitempty"`
	ExpectedStayDays *int       `json:"expected_stay_days,omitempty"`
	ExpectedICUDays  *int       `json:"expected_icu_days,omitempty"`
	RoomType         *string    `json:"room_type,omitempty"`

	RoomRentPerDay    *float64 `json:"room_rent_per_day,omitempty"`
	InvestigationCost *float64 `json:"investigation_cost,omitempty"`
	ICUCharges        *float64 `json:"icu_charges,omitempty"`
	OTCharges         *float64 `json:"ot_charges,omitempty"`
	ProfessionalFees  *float64 `json:"professional_fees,omitempty"`
	MedicineCost      *float64 `json:"medicine_cost,omitempty"`
	OtherCharges      *float64 `json:"other_charges,omitempty"`
	PackageCharges    *float64 `json:"package_charges,omitempty"`
	TotalCost         *float64 `json:"total_cost,omitempty"`

	MailBlock EmailFields `json:"email_details"`
}

// IntakeOptions carries what the form action decides rather than the payload.
type IntakeOptions struct {
	Status    Status
	SendEmail bool
	ActorID   string
}

// TransitionInput records one operator action on a request.
type TransitionInput struct {
	ID               int64    `json:"id"`
	Status           Status   `json:"status"`
	ClaimID          *string  `json:"claim_id,omitempty"`
	Reason           *string  `json:"reason,omitempty"`
	SanctionedAmount *float64 `json:"sanctioned_amount,omitempty"`
	ActorID          *string  `json:"-"`
}

// Detail is a request with its first chat row and full claim history.
type Detail struct {
	Request *PreAuthRequest `json:"request"`
	Chat    *ChatEntry      `json:"chat,omitempty"`
	History []*claims.Claim `json:"history"`
}

// snapshot copies the form onto a new request. Company, TPA and status are
// set by the caller.
func (f *IntakeForm) snapshot() *PreAuthRequest {
	return &PreAuthRequest{
		PatientID:            f.PatientID,
		AdmissionID:          f.AdmissionID,
		HospitalID:           f.HospitalID,
		Name:                 f.Name,
		Gender:               f.Gender,
		Age:                  f.Age,
		ContactNumber:        f.ContactNumber,
		Email:                f.Email,
		PolicyNumber:         f.PolicyNumber,
		InsuredCardNumber:    f.InsuredCardNumber,
		EmployeeID:           f.EmployeeID,
		DoctorName:           f.DoctorName,
		DoctorContact:        f.DoctorContact,
		NatureOfIllness:      f.NatureOfIllness,
		ClinicalFindings:     f.ClinicalFindings,
		ProvisionalDiagnosis: f.ProvisionalDiagnosis,
		ICD10Code:            f.ICD10Code,
		TreatmentType:        f.TreatmentType,
		SurgeryName:          f.SurgeryName,
		ICD10PCSCode:         f.ICD10PCSCode,
		AdmissionDate:        f.AdmissionDate,
		AdmissionType:        f.AdmissionType,
		ExpectedStayDays:     f.ExpectedStayDays,
		ExpectedICUDays:      f.ExpectedICUDays,
		RoomType:             f.RoomType,
		RoomRentPerDay:       f.RoomRentPerDay,
		InvestigationCost:    f.InvestigationCost,
		ICUCharges:           f.ICUCharges,
		OTCharges:            f.OTCharges,
		ProfessionalFees:     f.ProfessionalFees,
		MedicineCost:         f.MedicineCost,
		OtherCharges:         f.OtherCharges,
		PackageCharges:       f.PackageCharges,
		TotalCost:            f.TotalCost,
	}
}

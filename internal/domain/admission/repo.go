package admission

import "context"

type Repository interface {
	Create(ctx context.Context, a *Admission) error
	// LatestForPatient returns the admission with the highest id, or ErrNotFound.
	LatestForPatient(ctx context.Context, patientID int64) (*Admission, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Admission, error)
}

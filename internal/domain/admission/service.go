package admission

import (
	"context"
	"fmt"
)

// Resolver re-derives the insurer binding for a patient from their most
// recent admission.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns ErrNotFound (unwrapped) when the patient has never been
// admitted.
func (r *Resolver) Resolve(ctx context.Context, patientID int64) (*Binding, error) {
	a, err := r.repo.LatestForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return a.Binding(), nil
}

func (r *Resolver) ListByPatient(ctx context.Context, patientID int64) ([]*Admission, error) {
	if patientID <= 0 {
		return nil, fmt.Errorf("patient id must be positive")
	}
	return r.repo.ListByPatient(ctx, patientID)
}

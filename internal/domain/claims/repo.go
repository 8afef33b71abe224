package claims

import "context"

type Repository interface {
	// Append inserts a history row. Rows are never updated except through
	// PropagateClaimID.
	Append(ctx context.Context, c *Claim) error
	// PropagateClaimID stamps claimID on every row of the admission and
	// returns the number of rows touched.
	PropagateClaimID(ctx context.Context, admissionID, claimID string) (int64, error)
	ListByAdmission(ctx context.Context, admissionID string) ([]*Claim, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Claim, int, error)
}

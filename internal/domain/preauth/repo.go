package preauth

import "context"

type Repository interface {
	// Create inserts the request, including its status, and fills ID and
	// timestamps.
	Create(ctx context.Context, r *PreAuthRequest) error
	GetByID(ctx context.Context, id int64) (*PreAuthRequest, error)
	// UpdateStatus sets status, and claim_id when claimID is non-nil.
	// It returns ErrNotFound when no row matched.
	UpdateStatus(ctx context.Context, id int64, status Status, claimID *string) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*PreAuthRequest, int, error)
}

type ChatRepository interface {
	Create(ctx context.Context, e *ChatEntry) error
	// FirstForRequest returns the oldest chat row, or nil when there is none.
	FirstForRequest(ctx context.Context, requestID int64) (*ChatEntry, error)
	DeleteForRequest(ctx context.Context, requestID int64) error
}

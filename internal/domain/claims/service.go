package claims

import (
	"context"
	"fmt"
	"strings"
)

// FilterKeys lists the query parameters the claims list accepts.
var FilterKeys = []string{"status", "hospital_id", "tpa_id", "patient_id", "admission_id", "claim_id", "patient_name"}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters map[string]string, limit, offset int) ([]*Claim, int, error) {
	return s.repo.Search(ctx, filters, limit, offset)
}

// History returns every row recorded for an admission, oldest first.
func (s *Service) History(ctx context.Context, admissionID string) ([]*Claim, error) {
	admissionID = strings.TrimSpace(admissionID)
	if admissionID == "" {
		return nil, fmt.Errorf("admission id is required")
	}
	return s.repo.ListByAdmission(ctx, admissionID)
}

// Latest returns the newest row of an admission's history, or nil.
func Latest(history []*Claim) *Claim {
	var latest *Claim
	for _, c := range history {
		if latest == nil || c.ID > latest.ID {
			latest = c
		}
	}
	return latest
}

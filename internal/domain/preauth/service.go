package preauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/tpadesk/tpa/internal/domain/admission"
	"github.com/tpadesk/tpa/internal/domain/claims"
	"github.com/tpadesk/tpa/internal/platform/db"
	"github.com/tpadesk/tpa/internal/platform/notification"
)

// Cached list views refreshed after every committed write.
const (
	PreAuthListPath = "/api/v1/preauth"
	ClaimsListPath  = "/api/v1/claims"
)

// BindingResolver re-derives the insurer binding for a patient.
type BindingResolver interface {
	Resolve(ctx context.Context, patientID int64) (*admission.Binding, error)
}

// RouteInvalidator drops cached views for a tenant.
type RouteInvalidator interface {
	InvalidatePaths(ctx context.Context, tenant string, paths ...string) error
}

type Service struct {
	requests Repository
	chats    ChatRepository
	claims   claims.Repository
	resolver BindingResolver
	mailer   notification.EmailSender
	tx       db.Transactor
	cache    RouteInvalidator

	intakes     metric.Int64Counter
	transitions metric.Int64Counter
}

func NewService(requests Repository, chats ChatRepository, claimRepo claims.Repository,
	resolver BindingResolver, mailer notification.EmailSender, tx db.Transactor) *Service {
	meter := otel.Meter("github.com/tpadesk/tpa/internal/domain/preauth")
	intakes := newCounter(meter, "preauth.intakes", "Pre-authorization intake attempts by outcome")
	transitions := newCounter(meter, "preauth.transitions", "Pre-authorization status transitions by target status and outcome")

	return &Service{
		requests:    requests,
		chats:       chats,
		claims:      claimRepo,
		resolver:    resolver,
		mailer:      mailer,
		tx:          tx,
		intakes:     intakes,
		transitions: transitions,
	}
}

// newCounter reports instrument errors to the otel error handler and falls
// back to a no-op counter so recording never panics.
func newCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(fmt.Errorf("create counter %s: %w", name, err))
	}
	if c == nil {
		return noop.Int64Counter{}
	}
	return c
}

// SetRouteInvalidator attaches the cache whose list views are dropped after
// each committed write.
func (s *Service) SetRouteInvalidator(cache RouteInvalidator) {
	s.cache = cache
}

// Intake persists a new request, its optional email log and its first
// Pending history row as one unit of work. Company and TPA come from the
// patient's latest admission, never from the form.
func (s *Service) Intake(ctx context.Context, form *IntakeForm, opts IntakeOptions) (*PreAuthRequest, error) {
	if form == nil || form.PatientID <= 0 {
		return nil, &ValidationError{Field: "patient_id", Message: "Patient ID is required"}
	}
	status := opts.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusDraft {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("a new request must be %s or %s", StatusDraft, StatusPending)}
	}
	actor := strings.TrimSpace(opts.ActorID)

	var created *PreAuthRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		binding, err := s.resolver.Resolve(ctx, form.PatientID)
		if err != nil {
			return fmt.Errorf("resolve admission for patient %d: %w", form.PatientID, err)
		}

		dispatch := opts.SendEmail && form.MailBlock.Complete()
		if dispatch {
			if err := s.sendInsurerEmail(ctx, form.MailBlock); err != nil {
				return err
			}
		}

		req := form.snapshot()
		req.CompanyID = binding.CompanyID
		req.TPAID = binding.TPAID
		if req.AdmissionID == nil || strings.TrimSpace(*req.AdmissionID) == "" {
			admissionID := binding.AdmissionID
			req.AdmissionID = &admissionID
		}
		if req.HospitalID == nil {
			req.HospitalID = binding.HospitalID
		}
		req.Status = status
		if actor != "" {
			req.CreatedBy = &actor
		}
		if err := s.requests.Create(ctx, req); err != nil {
			return fmt.Errorf("insert pre-authorization request: %w", err)
		}

		if dispatch {
			entry := &ChatEntry{
				RequestID:   req.ID,
				FromEmail:   form.MailBlock.From,
				ToEmail:     form.MailBlock.To,
				Subject:     form.MailBlock.Subject,
				Body:        form.MailBlock.Details,
				RequestType: RequestTypePreAuth,
			}
			if err := s.chats.Create(ctx, entry); err != nil {
				return fmt.Errorf("insert chat entry: %w", err)
			}
		}

		createdBy := actor
		if createdBy == "" {
			createdBy = claims.SystemActor
		}
		first := &claims.Claim{
			PatientID:   req.PatientID,
			PatientName: req.Name,
			AdmissionID: req.AdmissionID,
			Status:      claims.StatusPending,
			Amount:      req.TotalCost,
			HospitalID:  req.HospitalID,
			TPAID:       req.TPAID,
			CreatedBy:   createdBy,
		}
		if err := s.claims.Append(ctx, first); err != nil {
			return fmt.Errorf("insert initial claim row: %w", err)
		}

		created = req
		return nil
	})
	s.intakes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, PreAuthListPath, ClaimsListPath)
	return created, nil
}

func (s *Service) sendInsurerEmail(ctx context.Context, fields EmailFields) error {
	if s.mailer == nil {
		return notification.ErrNotConfigured
	}
	err := s.mailer.SendEmail(ctx, notification.Email{
		From:    fields.From,
		To:      fields.To,
		Subject: fields.Subject,
		Body:    fields.Details,
	})
	if err != nil {
		return fmt.Errorf("send insurer email: %w", err)
	}
	return nil
}

// Transition records one operator action: the new status lands on the
// request, a supplied claim id is stamped on every history row of the
// admission, and a new history row is appended. Every call appends a row,
// even when repeated with identical input.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*claims.Claim, error) {
	if in.ID <= 0 {
		return nil, &ValidationError{Field: "id", Message: "Request ID is required"}
	}
	in.Status = Status(strings.TrimSpace(string(in.Status)))
	if in.Status == "" {
		return nil, &ValidationError{Field: "status", Message: "Status is required"}
	}
	claimID := trimmedOrNil(in.ClaimID)

	var row *claims.Claim
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.requests.UpdateStatus(ctx, in.ID, in.Status, claimID); err != nil {
			return fmt.Errorf("update request %d: %w", in.ID, err)
		}

		req, err := s.requests.GetByID(ctx, in.ID)
		if err != nil {
			return fmt.Errorf("reload request %d: %w", in.ID, err)
		}

		if claimID != nil && req.AdmissionID != nil && *req.AdmissionID != "" {
			if _, err := s.claims.PropagateClaimID(ctx, *req.AdmissionID, *claimID); err != nil {
				return fmt.Errorf("propagate claim id to admission %s: %w", *req.AdmissionID, err)
			}
		}

		actor := claims.SystemActor
		if a := trimmedOrNil(in.ActorID); a != nil {
			actor = *a
		}
		row = &claims.Claim{
			PatientID:   req.PatientID,
			PatientName: req.Name,
			AdmissionID: req.AdmissionID,
			Status:      string(in.Status),
			Reason:      in.Reason,
			ClaimID:     req.ClaimID,
			Amount:      req.TotalCost,
			PaidAmount:  in.SanctionedAmount,
			HospitalID:  req.HospitalID,
			TPAID:       req.TPAID,
			CreatedBy:   actor,
		}
		if err := s.claims.Append(ctx, row); err != nil {
			return fmt.Errorf("append claim history: %w", err)
		}
		return nil
	})
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(in.Status)),
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, PreAuthListPath, ClaimsListPath)
	return row, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	chat, err := s.chats.FirstForRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load chat for request %d: %w", id, err)
	}
	history := []*claims.Claim{}
	if req.AdmissionID != nil && *req.AdmissionID != "" {
		rows, err := s.claims.ListByAdmission(ctx, *req.AdmissionID)
		if err != nil {
			return nil, fmt.Errorf("load claim history for request %d: %w", id, err)
		}
		if rows != nil {
			history = rows
		}
	}
	return &Detail{Request: req, Chat: chat, History: history}, nil
}

func (s *Service) List(ctx context.Context, filters map[string]string, limit, offset int) ([]*PreAuthRequest, int, error) {
	return s.requests.Search(ctx, filters, limit, offset)
}

// Delete removes a request and its chat rows. The claim ledger is kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.chats.DeleteForRequest(ctx, id); err != nil {
			return fmt.Errorf("delete chat for request %d: %w", id, err)
		}
		if err := s.requests.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete request %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, PreAuthListPath)
	return nil
}

// invalidate runs after commit. Failures are logged, not returned.
func (s *Service) invalidate(ctx context.Context, paths ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePaths(ctx, db.TenantFromContext(ctx), paths...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Strs("paths", paths).Msg("route cache invalidation failed")
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// IsValidation reports whether err was raised before any write.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package preauth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tpadesk/tpa/internal/domain/admission"
	"github.com/tpadesk/tpa/internal/domain/claims"
)

// memStore backs every fake repository. memTx snapshots it on begin and
// restores the snapshot when the unit of work fails, so tests can observe
// rollback.
type memStore struct {
	mu sync.Mutex

	requests map[int64]PreAuthRequest
	chats    []ChatEntry
	claims   []claims.Claim
	bindings map[int64]admission.Binding

	nextRequest, nextChat, nextClaim int64

	failOn       map[string]error
	resolveCalls int
}

func newMemStore() *memStore {
	return &memStore{
		requests:    make(map[int64]PreAuthRequest),
		bindings:    make(map[int64]admission.Binding),
		failOn:      make(map[string]error),
		nextRequest: 1, nextChat: 1, nextClaim: 1,
	}
}

type snapshot struct {
	requests                         map[int64]PreAuthRequest
	chats                            []ChatEntry
	claims                           []claims.Claim
	nextRequest, nextChat, nextClaim int64
}

func (s *memStore) snapshot() snapshot {
	reqs := make(map[int64]PreAuthRequest, len(s.requests))
	for k, v := range s.requests {
		reqs[k] = v
	}
	return snapshot{
		requests:    reqs,
		chats:       append([]ChatEntry(nil), s.chats...),
		claims:      append([]claims.Claim(nil), s.claims...),
		nextRequest: s.nextRequest, nextChat: s.nextChat, nextClaim: s.nextClaim,
	}
}

func (s *memStore) restore(snap snapshot) {
	s.requests = snap.requests
	s.chats = snap.chats
	s.claims = snap.claims
	s.nextRequest, s.nextChat, s.nextClaim = snap.nextRequest, snap.nextChat, snap.nextClaim
}

func (s *memStore) fail(op string) error { return s.failOn[op] }

type txKey struct{}

var errOutsideTx = errors.New("write outside unit of work")

func inTx(ctx context.Context) bool { return ctx.Value(txKey{}) != nil }

type memTx struct {
	store    *memStore
	commits  int
	rollback int
}

func (t *memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	snap := t.store.snapshot()
	t.store.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.mu.Lock()
		t.store.restore(snap)
		t.store.mu.Unlock()
		t.rollback++
		return err
	}
	t.commits++
	return nil
}

// ----- requests -----

type memRequests struct{ s *memStore }

func (r memRequests) Create(ctx context.Context, p *PreAuthRequest) error {
	if !inTx(ctx) {
		return errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("requests.Create"); err != nil {
		return err
	}
	p.ID = r.s.nextRequest
	r.s.nextRequest++
	r.s.requests[p.ID] = *p
	return nil
}

func (r memRequests) GetByID(_ context.Context, id int64) (*PreAuthRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("requests.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r memRequests) UpdateStatus(ctx context.Context, id int64, status Status, claimID *string) error {
	if !inTx(ctx) {
		return errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("requests.UpdateStatus"); err != nil {
		return err
	}
	p, ok := r.s.requests[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	if claimID != nil {
		v := *claimID
		p.ClaimID = &v
	}
	r.s.requests[id] = p
	return nil
}

func (r memRequests) Delete(ctx context.Context, id int64) error {
	if !inTx(ctx) {
		return errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.requests, id)
	return nil
}

func (r memRequests) Search(_ context.Context, params map[string]string, limit, offset int) ([]*PreAuthRequest, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("requests.Search"); err != nil {
		return nil, 0, err
	}
	var out []*PreAuthRequest
	for _, p := range r.s.requests {
		p := p
		if v, ok := params["status"]; ok && string(p.Status) != v {
			continue
		}
		if v, ok := params["patient_id"]; ok && strconv.FormatInt(p.PatientID, 10) != v {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if offset > total {
		offset = total
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// ----- chats -----

type memChats struct{ s *memStore }

func (r memChats) Create(ctx context.Context, e *ChatEntry) error {
	if !inTx(ctx) {
		return errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("chats.Create"); err != nil {
		return err
	}
	e.ID = r.s.nextChat
	r.s.nextChat++
	r.s.chats = append(r.s.chats, *e)
	return nil
}

func (r memChats) FirstForRequest(_ context.Context, requestID int64) (*ChatEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.chats {
		if e.RequestID == requestID {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (r memChats) DeleteForRequest(ctx context.Context, requestID int64) error {
	if !inTx(ctx) {
		return errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.chats[:0:0]
	for _, e := range r.s.chats {
		if e.RequestID != requestID {
			kept = append(kept, e)
		}
	}
	r.s.chats = kept
	return nil
}

// ----- claims -----

type memClaims struct{ s *memStore }

func (r memClaims) Append(ctx context.Context, c *claims.Claim) error {
	if !inTx(ctx) {
		return errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("claims.Append"); err != nil {
		return err
	}
	c.ID = r.s.nextClaim
	r.s.nextClaim++
	r.s.claims = append(r.s.claims, *c)
	return nil
}

func (r memClaims) PropagateClaimID(ctx context.Context, admissionID, claimID string) (int64, error) {
	if !inTx(ctx) {
		return 0, errOutsideTx
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("claims.PropagateClaimID"); err != nil {
		return 0, err
	}
	var n int64
	for i := range r.s.claims {
		if r.s.claims[i].AdmissionID != nil && *r.s.claims[i].AdmissionID == admissionID {
			v := claimID
			r.s.claims[i].ClaimID = &v
			n++
		}
	}
	return n, nil
}

func (r memClaims) ListByAdmission(_ context.Context, admissionID string) ([]*claims.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*claims.Claim
	for _, c := range r.s.claims {
		if c.AdmissionID != nil && *c.AdmissionID == admissionID {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memClaims) Search(context.Context, map[string]string, int, int) ([]*claims.Claim, int, error) {
	return nil, 0, fmt.Errorf("not used")
}

// ----- admission resolver -----

type memResolver struct{ s *memStore }

func (r memResolver) Resolve(_ context.Context, patientID int64) (*admission.Binding, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resolveCalls++
	b, ok := r.s.bindings[patientID]
	if !ok {
		return nil, admission.ErrNotFound
	}
	return &b, nil
}

// ----- route cache -----

type recordingInvalidator struct {
	tenants []string
	paths   [][]string
	err     error
}

func (r *recordingInvalidator) InvalidatePaths(_ context.Context, tenant string, paths ...string) error {
	r.tenants = append(r.tenants, tenant)
	r.paths = append(r.paths, paths)
	return r.err
}

// ----- helpers -----

func ptr[T any](v T) *T { return &v }

// claimRowsFor returns the claim rows of an admission in insertion order.
func (s *memStore) claimRowsFor(admissionID string) []claims.Claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []claims.Claim
	for _, c := range s.claims {
		if c.AdmissionID != nil && *c.AdmissionID == admissionID {
			out = append(out, c)
		}
	}
	return out
}

func (s *memStore) counts() (requests, chats, claimRows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests), len(s.chats), len(s.claims)
}

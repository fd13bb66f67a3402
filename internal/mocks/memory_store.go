package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/store"
)

// MemoryDB holds sessions, batches, results and credentials in memory and
// hands out store implementations over them. The hook fields inject
// failures; they are consulted before the corresponding write.
type MemoryDB struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]domain.GenerationSession
	batches     map[uuid.UUID]domain.PromptBatch
	results     map[uuid.UUID]domain.GenerationResult
	credentials map[uuid.UUID]domain.Credential

	CreateBatchHook    func(b *domain.PromptBatch) error
	CreateResultHook   func(r *domain.GenerationResult) error
	IncrementUsageHook func(id uuid.UUID) error
	AdvanceHook        func(id uuid.UUID, completed, failed int) error
}

// NewMemoryDB creates an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		sessions:    make(map[uuid.UUID]domain.GenerationSession),
		batches:     make(map[uuid.UUID]domain.PromptBatch),
		results:     make(map[uuid.UUID]domain.GenerationResult),
		credentials: make(map[uuid.UUID]domain.Credential),
	}
}

// Sessions returns a SessionStore over db.
func (db *MemoryDB) Sessions() *MemorySessionStore { return &MemorySessionStore{db: db} }

// Batches returns a BatchStore over db.
func (db *MemoryDB) Batches() *MemoryBatchStore { return &MemoryBatchStore{db: db} }

// Results returns a ResultStore over db.
func (db *MemoryDB) Results() *MemoryResultStore { return &MemoryResultStore{db: db} }

// Credentials returns a CredentialStore over db.
func (db *MemoryDB) Credentials() *MemoryCredentialStore { return &MemoryCredentialStore{db: db} }

// Session returns a copy of the stored session.
func (db *MemoryDB) Session(id uuid.UUID) (domain.GenerationSession, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[id]
	return s, ok
}

// Credential returns a copy of the stored credential.
func (db *MemoryDB) Credential(id uuid.UUID) (domain.Credential, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.credentials[id]
	return c, ok
}

// ResultsForBatch returns the batch's results ordered by variation number.
func (db *MemoryDB) ResultsForBatch(batchID uuid.UUID) []domain.GenerationResult {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.GenerationResult
	for _, r := range db.results {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariationNumber < out[j].VariationNumber })
	return out
}

// BatchesForSession returns the session's batches ordered by prompt index.
func (db *MemoryDB) BatchesForSession(sessionID uuid.UUID) []domain.PromptBatch {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.PromptBatch
	for _, b := range db.batches {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromptIndex < out[j].PromptIndex })
	return out
}

// MemorySessionStore implements store.SessionStore.
type MemorySessionStore struct{ db *MemoryDB }

var _ store.SessionStore = (*MemorySessionStore)(nil)

// Create implements store.SessionStore.
func (s *MemorySessionStore) Create(ctx context.Context, sess *domain.GenerationSession) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.sessions[sess.ID]; ok {
		return store.ErrDuplicate
	}
	s.db.sessions[sess.ID] = *sess
	return nil
}

// GetByID implements store.SessionStore.
func (s *MemorySessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return &sess, nil
}

// MarkProcessing implements store.SessionStore.
func (s *MemorySessionStore) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	switch sess.Status {
	case domain.SessionStatusCompleted, domain.SessionStatusFailed:
		return &sess, store.ErrSessionTerminal
	case domain.SessionStatusPending:
		sess.Status = domain.SessionStatusProcessing
		sess.Version++
		sess.UpdatedAt = time.Now().UTC()
		s.db.sessions[id] = sess
	}
	return &sess, nil
}

// Advance implements store.SessionStore.
func (s *MemorySessionStore) Advance(ctx context.Context, id uuid.UUID, completed, failed int) (*domain.GenerationSession, error) {
	if hook := s.db.AdvanceHook; hook != nil {
		if err := hook(id, completed, failed); err != nil {
			return nil, err
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		return &sess, store.ErrSessionTerminal
	}
	if sess.CompletedPrompts+completed+sess.FailedPrompts+failed > sess.TotalPrompts {
		return &sess, store.ErrSessionCounterOverflow
	}
	sess.CompletedPrompts += completed
	sess.FailedPrompts += failed
	sess.Version++
	if sess.Status == domain.SessionStatusPending {
		sess.Status = domain.SessionStatusProcessing
	}
	sess.UpdatedAt = time.Now().UTC()
	s.db.sessions[id] = sess
	return &sess, nil
}

// Finalize implements store.SessionStore.
func (s *MemorySessionStore) Finalize(
	ctx context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
	reason string,
) (*domain.GenerationSession, error) {
	if !status.IsTerminal() {
		return nil, domain.ErrInvalidSessionStatus
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	if sess.Status.IsTerminal() {
		return &sess, store.ErrSessionTerminal
	}
	sess.Status = status
	sess.FailedPrompts = sess.TotalPrompts - sess.CompletedPrompts
	sess.FailureReason = reason
	sess.Version++
	sess.UpdatedAt = time.Now().UTC()
	s.db.sessions[id] = sess
	return &sess, nil
}

// ListByUser implements store.SessionStore.
func (s *MemorySessionStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SessionSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*domain.SessionSummary
	for _, sess := range s.db.sessions {
		if sess.UserID != userID {
			continue
		}
		summary := &domain.SessionSummary{GenerationSession: sess}
		for _, r := range s.db.results {
			if b, ok := s.db.batches[r.BatchID]; ok && b.SessionID == sess.ID {
				summary.ResultCount++
				if r.IsSelected {
					summary.SelectedCount++
				}
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []*domain.SessionSummary{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// WithTx implements store.SessionStore.
func (s *MemorySessionStore) WithTx(tx *sql.Tx) store.SessionStore { return s }

// MemoryBatchStore implements store.BatchStore.
type MemoryBatchStore struct{ db *MemoryDB }

var _ store.BatchStore = (*MemoryBatchStore)(nil)

// Create implements store.BatchStore.
func (s *MemoryBatchStore) Create(ctx context.Context, b *domain.PromptBatch) error {
	if hook := s.db.CreateBatchHook; hook != nil {
		if err := hook(b); err != nil {
			return err
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.sessions[b.SessionID]; !ok {
		return store.ErrInvalidEntity
	}
	for _, existing := range s.db.batches {
		if existing.SessionID == b.SessionID && existing.PromptIndex == b.PromptIndex {
			return store.ErrDuplicate
		}
	}
	s.db.batches[b.ID] = *b
	return nil
}

// GetBySessionAndIndex implements store.BatchStore.
func (s *MemoryBatchStore) GetBySessionAndIndex(ctx context.Context, sessionID uuid.UUID, index int) (*domain.PromptBatch, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.batches {
		if b.SessionID == sessionID && b.PromptIndex == index {
			return &b, nil
		}
	}
	return nil, store.ErrBatchNotFound
}

// MarkCompleted implements store.BatchStore.
func (s *MemoryBatchStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.batches[id]
	if !ok {
		return store.ErrBatchNotFound
	}
	b.Status = domain.BatchStatusCompleted
	b.UpdatedAt = time.Now().UTC()
	s.db.batches[id] = b
	return nil
}

// WithTx implements store.BatchStore.
func (s *MemoryBatchStore) WithTx(tx *sql.Tx) store.BatchStore { return s }

// MemoryResultStore implements store.ResultStore.
type MemoryResultStore struct{ db *MemoryDB }

var _ store.ResultStore = (*MemoryResultStore)(nil)

// Create implements store.ResultStore.
func (s *MemoryResultStore) Create(ctx context.Context, r *domain.GenerationResult) error {
	if hook := s.db.CreateResultHook; hook != nil {
		if err := hook(r); err != nil {
			return err
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.batches[r.BatchID]; !ok {
		return store.ErrInvalidEntity
	}
	for _, existing := range s.db.results {
		if existing.BatchID == r.BatchID && existing.VariationNumber == r.VariationNumber {
			return store.ErrDuplicateVariation
		}
	}
	s.db.results[r.ID] = *r
	return nil
}

// VariationNumbers implements store.ResultStore.
func (s *MemoryResultStore) VariationNumbers(ctx context.Context, batchID uuid.UUID) ([]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []int
	for _, r := range s.db.results {
		if r.BatchID == batchID {
			out = append(out, r.VariationNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

// CountBySession implements store.ResultStore.
func (s *MemoryResultStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, r := range s.db.results {
		if b, ok := s.db.batches[r.BatchID]; ok && b.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// ListBySession implements store.ResultStore.
func (s *MemoryResultStore) ListBySession(ctx context.Context, sessionID uuid.UUID, selectedOnly bool) ([]*domain.ResultView, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.ResultView
	for _, r := range s.db.results {
		b, ok := s.db.batches[r.BatchID]
		if !ok || b.SessionID != sessionID {
			continue
		}
		if selectedOnly && !r.IsSelected {
			continue
		}
		out = append(out, &domain.ResultView{
			GenerationResult: r,
			PromptIndex:      b.PromptIndex,
			PromptText:       b.PromptText,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PromptIndex != out[j].PromptIndex {
			return out[i].PromptIndex < out[j].PromptIndex
		}
		return out[i].VariationNumber < out[j].VariationNumber
	})
	return out, nil
}

// SetSelected implements store.ResultStore.
func (s *MemoryResultStore) SetSelected(ctx context.Context, id, userID uuid.UUID, selected bool) (*domain.GenerationResult, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.results[id]
	if !ok {
		return nil, store.ErrResultNotFound
	}
	b := s.db.batches[r.BatchID]
	if sess, ok := s.db.sessions[b.SessionID]; !ok || sess.UserID != userID {
		return nil, store.ErrResultNotFound
	}
	r.IsSelected = selected
	s.db.results[id] = r
	return &r, nil
}

// WithTx implements store.ResultStore.
func (s *MemoryResultStore) WithTx(tx *sql.Tx) store.ResultStore { return s }

// MemoryCredentialStore implements store.CredentialStore.
type MemoryCredentialStore struct{ db *MemoryDB }

var _ store.CredentialStore = (*MemoryCredentialStore)(nil)

// Upsert implements store.CredentialStore.
func (s *MemoryCredentialStore) Upsert(ctx context.Context, c *domain.Credential) (*domain.Credential, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, existing := range s.db.credentials {
		if existing.UserID == c.UserID && existing.Fingerprint == c.Fingerprint {
			existing.Name = c.Name
			existing.EncryptedKey = c.EncryptedKey
			existing.Preview = c.Preview
			existing.IsValid = c.IsValid
			existing.LastValidatedAt = c.LastValidatedAt
			existing.UpdatedAt = time.Now().UTC()
			s.db.credentials[id] = existing
			return &existing, nil
		}
	}
	stored := *c
	s.db.credentials[c.ID] = stored
	return &stored, nil
}

// Put stores c as is.
func (s *MemoryCredentialStore) Put(c domain.Credential) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.credentials[c.ID] = c
}

func (s *MemoryCredentialStore) list(userID uuid.UUID, validOnly bool) []*domain.Credential {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.Credential
	for _, c := range s.db.credentials {
		if c.UserID != userID || (validOnly && !c.IsValid) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListValid implements store.CredentialStore.
func (s *MemoryCredentialStore) ListValid(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return s.list(userID, true), nil
}

// ListByUser implements store.CredentialStore.
func (s *MemoryCredentialStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return s.list(userID, false), nil
}

// IncrementUsage implements store.CredentialStore.
func (s *MemoryCredentialStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	if hook := s.db.IncrementUsageHook; hook != nil {
		if err := hook(id); err != nil {
			return err
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.credentials[id]
	if !ok {
		return store.ErrCredentialNotFound
	}
	now := time.Now().UTC()
	c.UsageCount++
	c.LastUsedAt = &now
	s.db.credentials[id] = c
	return nil
}

// WithTx implements store.CredentialStore.
func (s *MemoryCredentialStore) WithTx(tx *sql.Tx) store.CredentialStore { return s }

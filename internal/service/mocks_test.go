package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/parts"
	"github.com/easelhq/easel-api/internal/provider"
	"github.com/easelhq/easel-api/internal/repository"
)

// In-memory repository fakes, mutex-guarded so tests can run in parallel.

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.GenerationJob

	createErr error
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*models.GenerationJob)}
}

func (m *mockJobRepo) Create(_ context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("UNIQUE constraint failed: generation_jobs.id")
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) GetByID(_ context.Context, id string) (*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *mockJobRepo) GetByUserID(_ context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GenerationJob
	for _, job := range m.jobs {
		if job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepo) Update(_ context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) ClaimUnstarted(_ context.Context) (*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *models.GenerationJob
	for _, job := range m.jobs {
		if job.Status != models.JobStatusProcessing || job.StartedAt != nil {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	now := time.Now()
	oldest.StartedAt = &now
	cp := *oldest
	return &cp, nil
}

func (m *mockJobRepo) CountProcessing(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.Status == models.JobStatusProcessing {
			count++
		}
	}
	return count, nil
}

func (m *mockJobRepo) FindStaleProcessing(_ context.Context, olderThan time.Duration) ([]*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []*models.GenerationJob
	for _, job := range m.jobs {
		if job.Status != models.JobStatusProcessing {
			continue
		}
		ref := job.CreatedAt
		if job.StartedAt != nil {
			ref = *job.StartedAt
		}
		if ref.Before(cutoff) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockArtifactRepo struct {
	mu        sync.Mutex
	artifacts map[string]*models.Artifact

	createErr error
}

func newMockArtifactRepo() *mockArtifactRepo {
	return &mockArtifactRepo{artifacts: make(map[string]*models.Artifact)}
}

func (m *mockArtifactRepo) Create(_ context.Context, a *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *a
	m.artifacts[a.ID] = &cp
	return nil
}

func (m *mockArtifactRepo) GetByID(_ context.Context, id string) (*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *mockArtifactRepo) GetByUserID(_ context.Context, userID string, limit, offset int) ([]*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Artifact
	for _, a := range m.artifacts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockArtifactRepo) UpdateTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return fmt.Errorf("artifact not found")
	}
	a.Title = title
	return nil
}

func (m *mockArtifactRepo) MaxVersion(_ context.Context, userID, title string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, a := range m.artifacts {
		if a.UserID == userID && a.Title == title && a.Version > max {
			max = a.Version
		}
	}
	return max, nil
}

type mockBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]*models.UserBalance
}

func newMockBalanceRepo() *mockBalanceRepo {
	return &mockBalanceRepo{balances: make(map[string]*models.UserBalance)}
}

func (m *mockBalanceRepo) Get(_ context.Context, userID string) (*models.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockBalanceRepo) Upsert(_ context.Context, b *models.UserBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.balances[b.UserID] = &cp
	return nil
}

type mockCreditTxRepo struct {
	mu  sync.Mutex
	txs []*models.CreditTransaction
}

func newMockCreditTxRepo() *mockCreditTxRepo {
	return &mockCreditTxRepo{}
}

func (m *mockCreditTxRepo) Create(_ context.Context, tx *models.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ExternalPaymentID != nil {
		for _, existing := range m.txs {
			if existing.ExternalPaymentID != nil && *existing.ExternalPaymentID == *tx.ExternalPaymentID {
				return fmt.Errorf("UNIQUE constraint failed: credit_transactions.external_payment_id")
			}
		}
	}
	cp := *tx
	m.txs = append(m.txs, &cp)
	return nil
}

func (m *mockCreditTxRepo) GetByUserID(_ context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditTransaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCreditTxRepo) GetByExternalPaymentID(_ context.Context, paymentID string) (*models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs {
		if tx.ExternalPaymentID != nil && *tx.ExternalPaymentID == paymentID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCreditTxRepo) byType(txType string) []*models.CreditTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditTransaction
	for _, tx := range m.txs {
		if tx.Type == txType {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out
}

type mockAPIKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*models.APIKey
}

func newMockAPIKeyRepo() *mockAPIKeyRepo {
	return &mockAPIKeyRepo{keys: make(map[string]*models.APIKey)}
}

func (m *mockAPIKeyRepo) Create(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *mockAPIKeyRepo) GetByID(_ context.Context, id string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, nil
	}
	cp := *key
	return &cp, nil
}

func (m *mockAPIKeyRepo) GetByKeyHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.keys {
		if key.KeyHash == keyHash && key.RevokedAt == nil {
			cp := *key
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockAPIKeyRepo) GetByUserID(_ context.Context, userID string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, key := range m.keys {
		if key.UserID == userID && key.RevokedAt == nil {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAPIKeyRepo) UpdateLastUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[id]; ok {
		now := time.Now()
		key.LastUsedAt = &now
	}
	return nil
}

func (m *mockAPIKeyRepo) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok || key.RevokedAt != nil {
		return fmt.Errorf("not found")
	}
	now := time.Now()
	key.RevokedAt = &now
	return nil
}

func newMockRepos() *repository.Repositories {
	return &repository.Repositories{
		Job:               newMockJobRepo(),
		Artifact:          newMockArtifactRepo(),
		Balance:           newMockBalanceRepo(),
		CreditTransaction: newMockCreditTxRepo(),
		APIKey:            newMockAPIKeyRepo(),
	}
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	putErr error
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key + "?sig=abc", nil
}

func (f *fakeStore) IsEnabled() bool { return true }

// stubGenerator returns canned bytes or a canned error.
type stubGenerator struct {
	name  string
	out   []byte
	err   error
	mu    sync.Mutex
	calls []provider.Options
	parts [][]parts.Part
}

func (g *stubGenerator) Name() string { return g.name }

func (g *stubGenerator) Generate(_ context.Context, ps []parts.Part, opts provider.Options) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, opts)
	g.parts = append(g.parts, ps)
	if g.err != nil {
		return nil, g.err
	}
	return g.out, nil
}

// stubSource resolves every provider name to the same generator.
type stubSource struct {
	gen provider.Generator
}

func (s *stubSource) Get(string) (provider.Generator, bool) {
	if s.gen == nil {
		return nil, false
	}
	return s.gen, true
}

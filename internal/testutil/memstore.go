package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rankwatch/internal/db"
	"rankwatch/internal/models"
)

// MemStore is an in-memory implementation of the Postgres store with the same
// guard semantics (claims, guarded clears, atomic ledger). Safe for concurrent
// use; every method holds a single lock.
type MemStore struct {
	mu           sync.Mutex
	projects     map[uuid.UUID]*models.Project
	keywords     map[uuid.UUID]*memKeyword
	positions    []models.KeywordPosition
	balances     map[uuid.UUID]*models.UserBalance
	transactions []models.Transaction

	// Failure injection. Checked on every call when set.
	FailMarkSubmitted error
	FailResolve       error

	now func() time.Time
}

type memKeyword struct {
	models.Keyword
	claimToken *uuid.UUID
	claimedAt  *time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		projects: make(map[uuid.UUID]*models.Project),
		keywords: make(map[uuid.UUID]*memKeyword),
		balances: make(map[uuid.UUID]*models.UserBalance),
		now:      time.Now,
	}
}

// SetClock overrides the store's notion of now.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Ping always succeeds.
func (m *MemStore) Ping(ctx context.Context) error { return nil }

// CreateProject stores p and assigns its ID.
func (m *MemStore) CreateProject(ctx context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = uuid.New()
	p.CreatedAt = m.now()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

// GetProjectByID returns a copy of the project.
func (m *MemStore) GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, db.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

// CreateKeyword stores k, enforcing project existence and term uniqueness.
func (m *MemStore) CreateKeyword(ctx context.Context, k *models.Keyword) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[k.ProjectID]; !ok {
		return db.ErrProjectNotFound
	}
	if k.Device == "" {
		k.Device = models.DeviceDesktop
	}
	if k.TrackingFrequency == "" {
		k.TrackingFrequency = models.FrequencyManual
	}
	for _, existing := range m.keywords {
		if existing.ProjectID == k.ProjectID && strings.EqualFold(existing.Term, k.Term) &&
			existing.Country == k.Country && existing.Device == k.Device {
			return db.ErrDuplicateKeyword
		}
	}

	k.ID = uuid.New()
	k.CreatedAt = m.now()
	m.keywords[k.ID] = &memKeyword{Keyword: *k}
	return nil
}

// Keyword returns a copy of the raw keyword row for assertions.
func (m *MemStore) Keyword(id uuid.UUID) (models.Keyword, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[id]
	if !ok {
		return models.Keyword{}, false
	}
	return k.Keyword, true
}

// Claimed reports whether the keyword currently holds a claim.
func (m *MemStore) Claimed(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[id]
	return ok && k.claimToken != nil
}

// SetInFlight forces a correlation ID onto a keyword.
func (m *MemStore) SetInFlight(id uuid.UUID, correlationID string, debitID *uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.keywords[id]; ok {
		now := m.now()
		k.CorrelationID = &correlationID
		k.SubmittedAt = &now
		k.DebitID = debitID
	}
}

// SetLastChecks overrides the auto and live check timestamps of a keyword.
func (m *MemStore) SetLastChecks(id uuid.UUID, auto, live *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.keywords[id]; ok {
		k.LastAutoCheck = auto
		k.LastLiveCheck = live
	}
}

func (m *MemStore) tracked(k *memKeyword) models.TrackedKeyword {
	p := m.projects[k.ProjectID]
	return models.TrackedKeyword{
		Keyword:       k.Keyword,
		UserID:        p.UserID,
		ProjectDomain: p.Domain,
		Language:      p.Language,
	}
}

// sortedKeywords returns keywords ordered by owner then creation time.
func (m *MemStore) sortedKeywords() []*memKeyword {
	out := make([]*memKeyword, 0, len(m.keywords))
	for _, k := range m.keywords {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ui, uj := m.projects[out[i].ProjectID].UserID, m.projects[out[j].ProjectID].UserID
		if ui != uj {
			return ui.String() < uj.String()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// GetTrackedKeyword returns the keyword joined with its project.
func (m *MemStore) GetTrackedKeyword(ctx context.Context, id uuid.UUID) (*models.TrackedKeyword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[id]
	if !ok {
		return nil, db.ErrKeywordNotFound
	}
	tk := m.tracked(k)
	return &tk, nil
}

// UpdateTrackingFrequency changes a keyword's tier.
func (m *MemStore) UpdateTrackingFrequency(ctx context.Context, id uuid.UUID, frequency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[id]
	if !ok {
		return db.ErrKeywordNotFound
	}
	k.TrackingFrequency = frequency
	return nil
}

// ClaimKeywords claims idle keywords matching filter.
func (m *MemStore) ClaimKeywords(ctx context.Context, filter models.KeywordFilter, token uuid.UUID, staleBefore time.Time) ([]models.TrackedKeyword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[uuid.UUID]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		ids[id] = true
	}

	now := m.now()
	var claimed []models.TrackedKeyword
	for _, k := range m.sortedKeywords() {
		p := m.projects[k.ProjectID]
		if filter.UserID != nil && p.UserID != *filter.UserID {
			continue
		}
		if filter.ProjectID != nil && k.ProjectID != *filter.ProjectID {
			continue
		}
		if len(ids) > 0 && !ids[k.ID] {
			continue
		}
		if k.InFlight() {
			continue
		}
		if k.claimToken != nil && !k.claimedAt.Before(staleBefore) {
			continue
		}
		tok := token
		k.claimToken = &tok
		k.claimedAt = &now
		claimed = append(claimed, m.tracked(k))
	}
	return claimed, nil
}

// ReleaseClaims clears claims held by token.
func (m *MemStore) ReleaseClaims(ctx context.Context, token uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if k, ok := m.keywords[id]; ok && k.claimToken != nil && *k.claimToken == token {
			k.claimToken = nil
			k.claimedAt = nil
		}
	}
	return nil
}

// ReleaseStaleClaims clears claims older than before without a correlation ID.
func (m *MemStore) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, k := range m.keywords {
		if k.claimToken != nil && !k.InFlight() && k.claimedAt.Before(before) {
			k.claimToken = nil
			k.claimedAt = nil
			n++
		}
	}
	return n, nil
}

// MarkSubmitted records the correlation ID on a keyword claimed by token.
func (m *MemStore) MarkSubmitted(ctx context.Context, token, keywordID uuid.UUID, correlationID string, debitID uuid.UUID, submittedAt time.Time, autoCheck bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailMarkSubmitted != nil {
		return m.FailMarkSubmitted
	}
	k, ok := m.keywords[keywordID]
	if !ok || k.claimToken == nil || *k.claimToken != token || k.InFlight() {
		return db.ErrKeywordNotClaimed
	}
	cid, did, at := correlationID, debitID, submittedAt
	k.CorrelationID = &cid
	k.DebitID = &did
	k.SubmittedAt = &at
	if autoCheck {
		k.LastAutoCheck = &at
	}
	k.claimToken = nil
	k.claimedAt = nil
	return nil
}

// ListPendingKeywords returns in-flight keywords, oldest submission first.
func (m *MemStore) ListPendingKeywords(ctx context.Context, limit int) ([]models.TrackedKeyword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []models.TrackedKeyword
	for _, k := range m.sortedKeywords() {
		if k.InFlight() {
			pending = append(pending, m.tracked(k))
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i].SubmittedAt, pending[j].SubmittedAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// CountPendingKeywords returns in-flight counts by tier.
func (m *MemStore) CountPendingKeywords(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, k := range m.keywords {
		if k.InFlight() {
			counts[k.TrackingFrequency]++
		}
	}
	return counts, nil
}

// ListDueKeywords returns idle auto-tracked keywords due at now.
func (m *MemStore) ListDueKeywords(ctx context.Context, now time.Time, intervals map[string]time.Duration) ([]models.TrackedKeyword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []models.TrackedKeyword
	for _, k := range m.sortedKeywords() {
		if k.TrackingFrequency == models.FrequencyManual || k.InFlight() {
			continue
		}
		iv, ok := intervals[k.TrackingFrequency]
		if !ok {
			iv = models.DefaultTierIntervals[k.TrackingFrequency]
		}
		if k.LastAutoCheck == nil || !k.LastAutoCheck.After(now.Add(-iv)) {
			due = append(due, m.tracked(k))
		}
	}
	return due, nil
}

// SetKeywordVolume caches volume unless one is already stored.
func (m *MemStore) SetKeywordVolume(ctx context.Context, id uuid.UUID, volume int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[id]
	if !ok || k.Volume != nil {
		return false, nil
	}
	v := volume
	k.Volume = &v
	return true, nil
}

func (m *MemStore) appendPosition(keywordID uuid.UUID, pos *models.KeywordPosition) {
	pos.ID = uuid.New()
	pos.KeywordID = keywordID
	if pos.Competitors == nil {
		pos.Competitors = []string{}
	}
	m.positions = append(m.positions, *pos)
}

// ResolveKeyword clears the correlation ID guarded by correlationID and
// appends pos.
func (m *MemStore) ResolveKeyword(ctx context.Context, keywordID uuid.UUID, correlationID string, pos *models.KeywordPosition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailResolve != nil {
		return false, m.FailResolve
	}
	k, ok := m.keywords[keywordID]
	if !ok || k.CorrelationID == nil || *k.CorrelationID != correlationID {
		return false, nil
	}
	k.CorrelationID = nil
	m.appendPosition(keywordID, pos)
	return true, nil
}

// AbandonTask clears the correlation ID without a position.
func (m *MemStore) AbandonTask(ctx context.Context, keywordID uuid.UUID, correlationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[keywordID]
	if !ok || k.CorrelationID == nil || *k.CorrelationID != correlationID {
		return false, nil
	}
	k.CorrelationID = nil
	return true, nil
}

// RecordLiveCheck appends a live position and releases the claim.
func (m *MemStore) RecordLiveCheck(ctx context.Context, token, keywordID uuid.UUID, pos *models.KeywordPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[keywordID]
	if !ok || k.claimToken == nil || *k.claimToken != token {
		return db.ErrKeywordNotClaimed
	}
	at := pos.CheckedAt
	k.LastLiveCheck = &at
	k.claimToken = nil
	k.claimedAt = nil
	m.appendPosition(keywordID, pos)
	return nil
}

// ListPositions returns the most recent positions for a keyword.
func (m *MemStore) ListPositions(ctx context.Context, keywordID uuid.UUID, limit int) ([]models.KeywordPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.KeywordPosition
	for i := len(m.positions) - 1; i >= 0; i-- {
		if m.positions[i].KeywordID == keywordID {
			out = append(out, m.positions[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Positions returns every stored position for a keyword in insertion order.
func (m *MemStore) Positions(keywordID uuid.UUID) []models.KeywordPosition {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.KeywordPosition
	for _, p := range m.positions {
		if p.KeywordID == keywordID {
			out = append(out, p)
		}
	}
	return out
}

func (m *MemStore) balance(userID uuid.UUID) *models.UserBalance {
	b, ok := m.balances[userID]
	if !ok {
		b = &models.UserBalance{UserID: userID}
		m.balances[userID] = b
	}
	return b
}

func (m *MemStore) appendTransaction(userID uuid.UUID, typ, action string, amount, after decimal.Decimal, metadata map[string]any) *models.Transaction {
	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	t := models.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         typ,
		Action:       action,
		Amount:       amount,
		BalanceAfter: after,
		Metadata:     meta,
		CreatedAt:    m.now(),
	}
	m.transactions = append(m.transactions, t)
	return &t
}

// ApplyDebit withdraws amount atomically.
func (m *MemStore) ApplyDebit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, db.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.balances[userID]
	if !ok || b.Balance.LessThan(amount) {
		return nil, db.ErrInsufficientFunds
	}
	b.Balance = b.Balance.Sub(amount)
	b.TotalSpent = b.TotalSpent.Add(amount)
	b.UpdatedAt = m.now()
	return m.appendTransaction(userID, models.TransactionDebit, action, amount, b.Balance, metadata), nil
}

// ApplyCredit adds amount atomically.
func (m *MemStore) ApplyCredit(ctx context.Context, userID uuid.UUID, action string, amount decimal.Decimal, metadata map[string]any) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, db.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.balance(userID)
	b.Balance = b.Balance.Add(amount)
	b.TotalRecharged = b.TotalRecharged.Add(amount)
	b.UpdatedAt = m.now()
	return m.appendTransaction(userID, models.TransactionCredit, action, amount, b.Balance, metadata), nil
}

// GetBalance returns a copy of the balance, zero when absent.
func (m *MemStore) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.balances[userID]
	if !ok {
		return &models.UserBalance{UserID: userID}, nil
	}
	cp := *b
	return &cp, nil
}

// SetNotifyEmail sets the low-balance contact for a user.
func (m *MemStore) SetNotifyEmail(ctx context.Context, userID uuid.UUID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.balance(userID)
	if email == "" {
		b.NotifyEmail = nil
	} else {
		e := email
		b.NotifyEmail = &e
	}
	return nil
}

// GetTransaction returns a single transaction.
func (m *MemStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.transactions {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, db.ErrTransactionNotFound
}

// ListTransactions returns the newest transactions first.
func (m *MemStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].UserID == userID {
			out = append(out, m.transactions[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Transactions returns every transaction for userID in insertion order.
func (m *MemStore) Transactions(userID uuid.UUID) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Transaction
	for _, t := range m.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

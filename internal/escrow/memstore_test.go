package escrow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
)

// memStore is a serializable in-memory Store: InTx holds one lock for the whole
// transaction and works on a copy that replaces the state only on success.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	transactions map[uuid.UUID]models.Transaction
	deposits     map[uuid.UUID]models.EscrowDeposit
	wallets      map[uuid.UUID]models.Wallet
	walletTxs    map[string]models.WalletTransaction
	disputes     map[uuid.UUID]models.Dispute
	audit        []models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		transactions: map[uuid.UUID]models.Transaction{},
		deposits:     map[uuid.UUID]models.EscrowDeposit{},
		wallets:      map[uuid.UUID]models.Wallet{},
		walletTxs:    map[string]models.WalletTransaction{},
		disputes:     map[uuid.UUID]models.Dispute{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		transactions: make(map[uuid.UUID]models.Transaction, len(s.transactions)),
		deposits:     make(map[uuid.UUID]models.EscrowDeposit, len(s.deposits)),
		wallets:      make(map[uuid.UUID]models.Wallet, len(s.wallets)),
		walletTxs:    make(map[string]models.WalletTransaction, len(s.walletTxs)),
		disputes:     make(map[uuid.UUID]models.Dispute, len(s.disputes)),
		audit:        append([]models.AuditLog(nil), s.audit...),
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.walletTxs {
		c.walletTxs[k] = v
	}
	for k, v := range s.disputes {
		c.disputes[k] = v
	}
	return c
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.state.wallets[userID]
	if !ok {
		return nil, apperr.NotFound("wallet")
	}
	return &w, nil
}

func (m *memStore) addTransaction(t models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.transactions[t.ID] = t
}

func (m *memStore) transaction(id uuid.UUID) models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.transactions[id]
}

func (m *memStore) depositCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.deposits)
}

func (m *memStore) dispute(id uuid.UUID) models.Dispute {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.disputes[id]
}

type memTx struct {
	s *memState
}

func (t *memTx) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tr, ok := t.s.transactions[id]
	if !ok {
		return nil, apperr.NotFound("transaction")
	}
	return &tr, nil
}

func (t *memTx) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tr, ok := t.s.transactions[id]
	if !ok {
		return apperr.NotFound("transaction")
	}
	if tr.Status != from {
		return apperr.New(apperr.CodeInvalidStatus, "transaction status changed concurrently")
	}
	now := time.Now()
	tr.Status = to
	tr.UpdatedAt = now
	switch to {
	case models.TxStatusDelivered:
		tr.DeliveredAt = &now
	case models.TxStatusCompleted:
		tr.CompletedAt = &now
	}
	t.s.transactions[id] = tr
	return nil
}

func (t *memTx) RecordCapture(ctx context.Context, id uuid.UUID, rec CaptureRecord) error {
	tr := t.s.transactions[id]
	tr.PaymentReference = &rec.Reference
	tr.FeePercent = &rec.FeePercent
	tr.PlatformFee = &rec.PlatformFee
	tr.SellerPayout = &rec.SellerPayout
	tr.PaidAmount = &rec.PaidAmount
	tr.PaymentChannel = &rec.Channel
	tr.PaidAt = &rec.PaidAt
	t.s.transactions[id] = tr
	return nil
}

func (t *memTx) InsertEscrowDeposit(ctx context.Context, d *models.EscrowDeposit) (bool, error) {
	for _, existing := range t.s.deposits {
		if existing.TransactionID == d.TransactionID || existing.Reference == d.Reference {
			return false, nil
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	t.s.deposits[d.ID] = *d
	return true, nil
}

func (t *memTx) LockEscrowDeposit(ctx context.Context, transactionID uuid.UUID) (*models.EscrowDeposit, error) {
	for _, d := range t.s.deposits {
		if d.TransactionID == transactionID {
			return &d, nil
		}
	}
	return nil, apperr.NotFound("escrow deposit")
}

func (t *memTx) SetEscrowStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	d, ok := t.s.deposits[id]
	if !ok {
		return apperr.NotFound("escrow deposit")
	}
	if d.Status != from {
		return apperr.New(apperr.CodeInvalidStatus, "escrow deposit status changed concurrently")
	}
	d.Status = to
	t.s.deposits[id] = d
	return nil
}

func (t *memTx) ApplyWalletDelta(ctx context.Context, userID uuid.UUID, currency string, delta models.WalletDelta) (*models.Wallet, error) {
	w, ok := t.s.wallets[userID]
	if !ok {
		w = models.Wallet{UserID: userID, Currency: currency}
	}
	if currency != "" && !strings.EqualFold(w.Currency, currency) {
		return nil, apperr.New(apperr.CodeAmountMismatch, "wallet holds "+w.Currency+", cannot apply "+currency)
	}
	next, ok := delta.Apply(w)
	if !ok {
		return nil, apperr.New(apperr.CodeInsufficientFunds, "insufficient balance")
	}
	next.UpdatedAt = time.Now()
	t.s.wallets[userID] = next
	return &next, nil
}

func (t *memTx) InsertWalletTransaction(ctx context.Context, wt *models.WalletTransaction) (bool, error) {
	if _, exists := t.s.walletTxs[wt.Reference]; exists {
		return false, nil
	}
	wt.ID = uuid.New()
	wt.CreatedAt = time.Now()
	wt.UpdatedAt = wt.CreatedAt
	t.s.walletTxs[wt.Reference] = *wt
	return true, nil
}

func (t *memTx) LockWalletTransaction(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	wt, ok := t.s.walletTxs[reference]
	if !ok {
		return nil, apperr.NotFound("wallet transaction")
	}
	return &wt, nil
}

func (t *memTx) SetWalletTransactionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	for ref, wt := range t.s.walletTxs {
		if wt.ID != id {
			continue
		}
		if wt.Status != from {
			return apperr.New(apperr.CodeInvalidStatus, "wallet transaction status changed concurrently")
		}
		wt.Status = to
		t.s.walletTxs[ref] = wt
		return nil
	}
	return apperr.NotFound("wallet transaction")
}

func (t *memTx) InsertDispute(ctx context.Context, d *models.Dispute) error {
	for _, existing := range t.s.disputes {
		if existing.TransactionID == d.TransactionID && existing.IsActive() {
			return apperr.New(apperr.CodeDuplicate, "a dispute is already open for this transaction")
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	t.s.disputes[d.ID] = *d
	return nil
}

func (t *memTx) LockDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, ok := t.s.disputes[id]
	if !ok {
		return nil, apperr.NotFound("dispute")
	}
	return &d, nil
}

func (t *memTx) ResolveDispute(ctx context.Context, id uuid.UUID, outcome, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error) {
	d := t.s.disputes[id]
	now := time.Now()
	d.Status = models.DisputeStatusResolved
	d.Outcome = &outcome
	d.Resolution = &resolution
	d.ResolvedBy = &resolvedBy
	d.ResolvedAt = &now
	t.s.disputes[id] = d
	return &d, nil
}

func (t *memTx) LogAudit(ctx context.Context, entry models.AuditLog) error {
	t.s.audit = append(t.s.audit, entry)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

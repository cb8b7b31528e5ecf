package service_test

// In-memory repository fakes mirroring the SQL semantics of the real
// implementations. DB() returns nil so services run their transaction
// closures directly.

import (
	"context"
	"errors"
	"sync"
	"time"

	"tillcore/internal/model"
	"tillcore/internal/money"
	"tillcore/internal/repository"
	"tillcore/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Cash repository ──────────────────────────────────────────────────────────

type fakeCashRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*model.CashSession
	movements []model.CashMovement
	counts    []model.CashCount
}

var _ repository.CashRepository = (*fakeCashRepo)(nil)

func newFakeCashRepo() *fakeCashRepo {
	return &fakeCashRepo{sessions: make(map[uuid.UUID]*model.CashSession)}
}

func (r *fakeCashRepo) DB() *gorm.DB { return nil }

func (r *fakeCashRepo) CreateSession(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeCashRepo) FindOpenSessionByStation(_ context.Context, tenantID uuid.UUID, stationID string) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.StationID == stationID && s.Status == model.SessionOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCashRepo) FindSessionByID(_ context.Context, tenantID, id uuid.UUID) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, nil
	}
	cp := *s
	cp.Movements = nil
	cp.Counts = nil
	for _, m := range r.movements {
		if m.SessionID == id {
			cp.Movements = append(cp.Movements, m)
		}
	}
	for _, c := range r.counts {
		if c.SessionID == id {
			cp.Counts = append(cp.Counts, c)
		}
	}
	return &cp, nil
}

func (r *fakeCashRepo) UpdateSession(_ context.Context, _ *gorm.DB, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeCashRepo) CreateMovement(_ context.Context, m *model.CashMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeCashRepo) SumMovementsByType(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) (map[model.MovementType]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sums := map[model.MovementType]decimal.Decimal{}
	for _, m := range r.movements {
		if m.SessionID == sessionID {
			sums[m.Type] = sums[m.Type].Add(m.Amount)
		}
	}
	return sums, nil
}

func (r *fakeCashRepo) CreateCount(_ context.Context, c *model.CashCount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	r.counts = append(r.counts, *c)
	return nil
}

func (r *fakeCashRepo) FindLatestFinalCount(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) (*model.CashCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.counts) - 1; i >= 0; i-- {
		if r.counts[i].SessionID == sessionID && r.counts[i].Kind == model.CountFinal {
			cp := r.counts[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCashRepo) ListSessionsOpenedBetween(_ context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CashSession
	for _, s := range r.sessions {
		if s.TenantID == tenantID && !s.OpenedAt.Before(from) && !s.OpenedAt.After(to) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeCashRepo) ListClosedSessions(_ context.Context, tenantID uuid.UUID, page, limit int) ([]model.CashSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed []model.CashSession
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.Status == model.SessionClosed {
			closed = append(closed, *s)
		}
	}
	total := int64(len(closed))
	start := (page - 1) * limit
	if start >= len(closed) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(closed) {
		end = len(closed)
	}
	return closed[start:end], total, nil
}

// ── Order repository ─────────────────────────────────────────────────────────

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
}

var _ repository.OrderRepository = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (r *fakeOrderRepo) DB() *gorm.DB { return nil }

func (r *fakeOrderRepo) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, _ *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	return r.FindByID(ctx, tx, tenantID, id)
}

// ── Payment repository ───────────────────────────────────────────────────────

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*model.Payment
	txns     []model.PaymentTransaction
}

var _ repository.PaymentRepository = (*fakePaymentRepo)(nil)

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (r *fakePaymentRepo) DB() *gorm.DB { return nil }

func (r *fakePaymentRepo) Create(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[id]; ok {
		p.Status = status
	}
	return nil
}

func (r *fakePaymentRepo) AttachSession(_ context.Context, tenantID, paymentID, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[paymentID]; ok && p.TenantID == tenantID {
		sid := sessionID
		p.SessionID = &sid
	}
	return nil
}

func (r *fakePaymentRepo) CreateTransaction(_ context.Context, _ *gorm.DB, t *model.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	r.txns = append(r.txns, *t)
	return nil
}

func (r *fakePaymentRepo) ListByOrder(_ context.Context, tenantID, orderID uuid.UUID) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListTransactions(_ context.Context, tenantID, paymentID uuid.UUID) ([]model.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PaymentTransaction
	for _, t := range r.txns {
		if t.TenantID == tenantID && t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) sumByType(tenantID, orderID uuid.UUID, typ model.TxnType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.txns {
		if t.TenantID != tenantID || t.Type != typ {
			continue
		}
		if p, ok := r.payments[t.PaymentID]; ok && p.OrderID == orderID && p.Status != model.PaymentCanceled {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func (r *fakePaymentRepo) SumCaptured(_ context.Context, _ *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sumByType(tenantID, orderID, model.TxnCapture), nil
}

func (r *fakePaymentRepo) SumRefunded(_ context.Context, _ *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sumByType(tenantID, orderID, model.TxnRefund), nil
}

func (r *fakePaymentRepo) SumRefundedByPayment(_ context.Context, _ *gorm.DB, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, t := range r.txns {
		if t.TenantID == tenantID && t.PaymentID == paymentID && t.Type == model.TxnRefund {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (r *fakePaymentRepo) SumCapturedBySession(_ context.Context, _ *gorm.DB, tenantID, sessionID uuid.UUID) (money.Map, money.CountMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byMethod := money.Map{}
	counts := money.CountMap{}
	var total int64
	for _, p := range r.payments {
		if p.TenantID != tenantID || p.SessionID == nil || *p.SessionID != sessionID || p.Status != model.PaymentCaptured {
			continue
		}
		byMethod[string(p.Method)] = byMethod[string(p.Method)].Add(p.Amount)
		counts[string(p.Method)]++
		total++
	}
	counts["total"] = total
	return byMethod, counts, nil
}

// ── Intent repository ────────────────────────────────────────────────────────

type fakeIntentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*model.PaymentIntent
	order   []uuid.UUID // creation order, newest last
}

var _ repository.IntentRepository = (*fakeIntentRepo)(nil)

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{intents: make(map[uuid.UUID]*model.PaymentIntent)}
}

func (r *fakeIntentRepo) DB() *gorm.DB { return nil }

func (r *fakeIntentRepo) Create(_ context.Context, _ *gorm.DB, i *model.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	i.CreatedAt = time.Now()
	cp := *i
	r.intents[i.ID] = &cp
	r.order = append(r.order, i.ID)
	return nil
}

func (r *fakeIntentRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.intents[id]
	if !ok || i.TenantID != tenantID {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (r *fakeIntentRepo) findLatest(tenantID, orderID uuid.UUID, status model.IntentStatus) *model.PaymentIntent {
	for n := len(r.order) - 1; n >= 0; n-- {
		i := r.intents[r.order[n]]
		if i.TenantID == tenantID && i.OrderID == orderID && i.Status == status {
			cp := *i
			return &cp
		}
	}
	return nil
}

func (r *fakeIntentRepo) FindLatestOpenByOrder(_ context.Context, _ *gorm.DB, tenantID, orderID uuid.UUID) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLatest(tenantID, orderID, model.IntentOpen), nil
}

func (r *fakeIntentRepo) FindLatestCompletedByOrder(_ context.Context, _ *gorm.DB, tenantID, orderID uuid.UUID) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLatest(tenantID, orderID, model.IntentCompleted), nil
}

func (r *fakeIntentRepo) CompleteCAS(_ context.Context, _ *gorm.DB, id uuid.UUID, version int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.intents[id]
	if !ok || i.Status != model.IntentOpen || i.Version != version {
		return false, nil
	}
	i.Status = model.IntentCompleted
	i.Version++
	return true, nil
}

// ── Provider gateway ─────────────────────────────────────────────────────────

var errGatewayDown = errors.New("gateway unavailable")

type fakeGateway struct {
	mu       sync.Mutex
	captures int
	refunds  int
	fail     bool
}

var _ service.ProviderGateway = (*fakeGateway)(nil)

func (g *fakeGateway) Capture(_ context.Context, _ service.ProviderCapture) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return "", errGatewayDown
	}
	g.captures++
	return "psp-" + uuid.NewString()[:8], nil
}

func (g *fakeGateway) Refund(_ context.Context, _ service.ProviderRefund) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return "", errGatewayDown
	}
	g.refunds++
	return "psp-rf-" + uuid.NewString()[:8], nil
}

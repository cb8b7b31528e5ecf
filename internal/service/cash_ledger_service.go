package service

import (
	"context"
	"fmt"
	"time"

	"tillcore/internal/apierror"
	"tillcore/internal/dto"
	"tillcore/internal/model"
	"tillcore/internal/money"
	"tillcore/internal/repository"
	"tillcore/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CashLedgerService interface {
	OpenSession(ctx context.Context, tenantID, userID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*dto.SessionResponse, error)
	CreateMovement(ctx context.Context, tenantID, userID uuid.UUID, req dto.MovementRequest) (*dto.MovementResponse, error)
	CreateCount(ctx context.Context, tenantID, userID uuid.UUID, req dto.CountRequest) (*dto.CountResponse, error)
	CloseSession(ctx context.Context, tenantID, sessionID uuid.UUID, note *string) (*dto.CloseSummaryResponse, error)
	ReopenSession(ctx context.Context, tenantID, sessionID uuid.UUID, reason string) (*dto.SessionResponse, error)
	ReportDaily(ctx context.Context, tenantID uuid.UUID, date time.Time) (*dto.DailyReportResponse, error)
	ListClosedSessions(ctx context.Context, tenantID uuid.UUID, page, limit int) (*dto.SessionListResponse, error)
	// TryAttachPaymentToOpenSession is called by the payment component after a
	// capture to link the payment to the station's open drawer. Best-effort:
	// missing station or no open session is a silent no-op.
	TryAttachPaymentToOpenSession(ctx context.Context, tenantID, paymentID uuid.UUID, stationID *string) error
}

type cashLedgerService struct {
	repo       repository.CashRepository
	payments   repository.PaymentRepository
	dispatcher *worker.Dispatcher
}

func NewCashLedgerService(repo repository.CashRepository, payments repository.PaymentRepository, dispatcher *worker.Dispatcher) CashLedgerService {
	return &cashLedgerService{repo: repo, payments: payments, dispatcher: dispatcher}
}

// ── OpenSession ───────────────────────────────────────────────────────────────

func (s *cashLedgerService) OpenSession(ctx context.Context, tenantID, userID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if req.StationID == "" {
		return nil, apierror.BadRequest("station_id is required")
	}

	// Guard: no duplicate open session per station. A racing open may slip
	// past this read; the partial unique index rejects the loser and callers
	// re-query for the authoritative open session.
	existing, err := s.repo.FindOpenSessionByStation(ctx, tenantID, req.StationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.Conflict("an open cash session already exists for this station")
	}

	opening := money.Map{}
	for method, amount := range req.OpeningFloat {
		opening[method] = money.Quantize(amount)
	}

	session := &model.CashSession{
		TenantID:       tenantID,
		StationID:      req.StationID,
		Status:         model.SessionOpen,
		OpenedByUserID: userID,
		OpeningFloat:   opening,
		OpenedAt:       time.Now().UTC(),
		Notes:          req.Notes,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return sessionToResponse(session), nil
}

// ── GetSession ────────────────────────────────────────────────────────────────

// GetSession is the per-drawer report: the session with its movements and
// counts, plus a live expected-cash projection while the drawer is open.
func (s *cashLedgerService) GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.loadSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	resp := sessionToResponse(session)
	for i := range session.Movements {
		resp.Movements = append(resp.Movements, *movementToResponse(&session.Movements[i]))
	}
	for i := range session.Counts {
		resp.Counts = append(resp.Counts, *countToResponse(&session.Counts[i]))
	}

	if session.Status == model.SessionOpen {
		byMethod, _, err := s.payments.SumCapturedBySession(ctx, nil, tenantID, sessionID)
		if err != nil {
			return nil, err
		}
		movSums, err := s.repo.SumMovementsByType(ctx, nil, sessionID)
		if err != nil {
			return nil, err
		}
		expected := money.String2(
			money.Quantize(session.OpeningFloat.Get(string(model.MethodCash))).
				Add(money.Quantize(movSums[model.MovementSuprimento])).
				Sub(money.Quantize(movSums[model.MovementSangria])).
				Add(money.Quantize(byMethod.Get(string(model.MethodCash)))))
		resp.CashExpected = &expected
	}
	return resp, nil
}

// ── CreateMovement ────────────────────────────────────────────────────────────
// Manual cash-in (SUPRIMENTO) / cash-out (SANGRIA). Movements are immutable —
// no Update/Delete.

func (s *cashLedgerService) CreateMovement(ctx context.Context, tenantID, userID uuid.UUID, req dto.MovementRequest) (*dto.MovementResponse, error) {
	movType := model.MovementType(req.Type)
	if !movType.Valid() {
		return nil, apierror.BadRequest("invalid movement type")
	}
	if model.PaymentMethod(req.Method) != model.MethodCash {
		return nil, apierror.BadRequest("cash movements only accept method CASH")
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apierror.BadRequest("invalid session_id")
	}
	if _, err := s.loadOpenSession(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	mov := &model.CashMovement{
		SessionID:       sessionID,
		TenantID:        tenantID,
		Type:            movType,
		Method:          model.MethodCash,
		Amount:          money.Quantize(req.Amount),
		Reason:          req.Reason,
		CreatedByUserID: userID,
	}
	if err := s.repo.CreateMovement(ctx, mov); err != nil {
		return nil, err
	}
	return movementToResponse(mov), nil
}

// ── CreateCount ───────────────────────────────────────────────────────────────

func (s *cashLedgerService) CreateCount(ctx context.Context, tenantID, userID uuid.UUID, req dto.CountRequest) (*dto.CountResponse, error) {
	kind := model.CountKind(req.Kind)
	if !kind.Valid() {
		return nil, apierror.BadRequest("invalid count kind")
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apierror.BadRequest("invalid session_id")
	}
	if _, err := s.loadOpenSession(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	count := &model.CashCount{
		SessionID:       sessionID,
		TenantID:        tenantID,
		Kind:            kind,
		Denominations:   req.Denominations,
		Total:           money.Quantize(req.Total),
		CountedByUserID: userID,
	}
	if err := s.repo.CreateCount(ctx, count); err != nil {
		return nil, err
	}
	return countToResponse(count), nil
}

// ── CloseSession ──────────────────────────────────────────────────────────────
// End-of-shift reconciliation. Totals are computed from captured payments and
// movements, then frozen on the session row inside one transaction:
//
//	cashExpected = openingCash + suprimentos − sangrias + capturedCash

func (s *cashLedgerService) CloseSession(ctx context.Context, tenantID, sessionID uuid.UUID, note *string) (*dto.CloseSummaryResponse, error) {
	session, err := s.loadSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionOpen {
		return nil, apierror.Conflict("cash session is already closed")
	}

	// Sums and the status flip share one transaction so a movement accepted
	// mid-close cannot desync the frozen summary from the ledger rows.
	var (
		openingCash, suprimentos, sangrias, capturedCash, cashExpected decimal.Decimal
		cashCountedFinal, cashDelta                                    *string
	)
	closedAt := time.Now().UTC()
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		byMethod, paymentsCount, err := s.payments.SumCapturedBySession(ctx, tx, tenantID, sessionID)
		if err != nil {
			return err
		}

		movSums, err := s.repo.SumMovementsByType(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		suprimentos = money.Quantize(movSums[model.MovementSuprimento])
		sangrias = money.Quantize(movSums[model.MovementSangria])

		openingCash = money.Quantize(session.OpeningFloat.Get(string(model.MethodCash)))
		capturedCash = money.Quantize(byMethod.Get(string(model.MethodCash)))
		cashExpected = openingCash.Add(suprimentos).Sub(sangrias).Add(capturedCash)

		finalCount, err := s.repo.FindLatestFinalCount(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if finalCount != nil {
			counted := money.String2(finalCount.Total)
			delta := money.String2(finalCount.Total.Sub(cashExpected))
			cashCountedFinal = &counted
			cashDelta = &delta
		}

		session.Status = model.SessionClosed
		session.ClosedAt = &closedAt
		session.TotalsByMethod = byMethod.Strings()
		session.PaymentsCount = paymentsCount
		if note != nil {
			session.Notes = note
		}
		return s.repo.UpdateSession(ctx, tx, session)
	})
	if txErr != nil {
		return nil, txErr
	}

	// Async Z-report (PDF + back-office email) — best-effort, never blocks
	// or fails the close.
	if s.dispatcher != nil {
		_ = s.dispatcher.EnqueueSessionClosed(ctx, worker.SessionClosedEvent{
			TenantID:  tenantID.String(),
			SessionID: sessionID.String(),
		})
	}

	return &dto.CloseSummaryResponse{
		SessionID:        sessionID.String(),
		TotalsByMethod:   session.TotalsByMethod,
		PaymentsCount:    session.PaymentsCount,
		OpeningCash:      money.String2(openingCash),
		Suprimentos:      money.String2(suprimentos),
		Sangrias:         money.String2(sangrias),
		CashExpected:     money.String2(cashExpected),
		CashCountedFinal: cashCountedFinal,
		CashDelta:        cashDelta,
		ClosedAt:         closedAt.Format(time.RFC3339),
	}, nil
}

// ── ReopenSession ─────────────────────────────────────────────────────────────
// Authorization is decided upstream; this only enforces state rules. The
// frozen totals are kept — a later close recomputes and overwrites them.

func (s *cashLedgerService) ReopenSession(ctx context.Context, tenantID, sessionID uuid.UUID, reason string) (*dto.SessionResponse, error) {
	session, err := s.loadSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionClosed {
		return nil, apierror.Conflict("only a closed session can be reopened")
	}

	open, err := s.repo.FindOpenSessionByStation(ctx, tenantID, session.StationID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apierror.Conflict("another session is already open for this station")
	}

	auditLine := fmt.Sprintf("[reopened %s] %s", time.Now().UTC().Format(time.RFC3339), reason)
	if session.Notes != nil && *session.Notes != "" {
		auditLine = *session.Notes + "\n" + auditLine
	}
	session.Status = model.SessionOpen
	session.ClosedAt = nil
	session.Notes = &auditLine

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.UpdateSession(ctx, tx, session)
	})
	if txErr != nil {
		return nil, txErr
	}
	return sessionToResponse(session), nil
}

// ── ReportDaily ───────────────────────────────────────────────────────────────
// Sums frozen totals_by_method across every session opened within the UTC day.

func (s *cashLedgerService) ReportDaily(ctx context.Context, tenantID uuid.UUID, date time.Time) (*dto.DailyReportResponse, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Millisecond)

	sessions, err := s.repo.ListSessionsOpenedBetween(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	totals := money.Map{}
	for _, session := range sessions {
		for method, amount := range session.TotalsByMethod {
			d, err := decimal.NewFromString(amount)
			if err != nil {
				continue
			}
			totals[method] = totals[method].Add(d)
		}
	}

	return &dto.DailyReportResponse{
		Date:   from.Format("2006-01-02"),
		Totals: totals.Strings(),
	}, nil
}

// ── ListClosedSessions ────────────────────────────────────────────────────────

func (s *cashLedgerService) ListClosedSessions(ctx context.Context, tenantID uuid.UUID, page, limit int) (*dto.SessionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	sessions, total, err := s.repo.ListClosedSessions(ctx, tenantID, page, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, *sessionToResponse(&sessions[i]))
	}
	return &dto.SessionListResponse{Data: items, Total: total, Page: page, Limit: limit}, nil
}

// ── TryAttachPaymentToOpenSession ─────────────────────────────────────────────

func (s *cashLedgerService) TryAttachPaymentToOpenSession(ctx context.Context, tenantID, paymentID uuid.UUID, stationID *string) error {
	if stationID == nil || *stationID == "" {
		return nil
	}
	session, err := s.repo.FindOpenSessionByStation(ctx, tenantID, *stationID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	return s.payments.AttachSession(ctx, tenantID, paymentID, session.ID)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *cashLedgerService) loadSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*model.CashSession, error) {
	session, err := s.repo.FindSessionByID(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apierror.NotFound("cash session not found")
	}
	return session, nil
}

func (s *cashLedgerService) loadOpenSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*model.CashSession, error) {
	session, err := s.loadSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionOpen {
		return nil, apierror.Conflict("cash session is not open")
	}
	return session, nil
}

func sessionToResponse(s *model.CashSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:             s.ID.String(),
		StationID:      s.StationID,
		Status:         string(s.Status),
		OpenedByUserID: s.OpenedByUserID.String(),
		OpeningFloat:   s.OpeningFloat.Strings(),
		TotalsByMethod: s.TotalsByMethod,
		PaymentsCount:  s.PaymentsCount,
		OpenedAt:       s.OpenedAt.Format(time.RFC3339),
		Notes:          s.Notes,
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}

func movementToResponse(m *model.CashMovement) *dto.MovementResponse {
	return &dto.MovementResponse{
		ID:        m.ID.String(),
		SessionID: m.SessionID.String(),
		Type:      string(m.Type),
		Method:    string(m.Method),
		Amount:    money.String2(m.Amount),
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func countToResponse(c *model.CashCount) *dto.CountResponse {
	return &dto.CountResponse{
		ID:            c.ID.String(),
		SessionID:     c.SessionID.String(),
		Kind:          string(c.Kind),
		Denominations: c.Denominations,
		Total:         money.String2(c.Total),
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}

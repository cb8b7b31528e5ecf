package service_test

import (
	"context"
	"testing"
	"time"

	"tillcore/internal/apierror"
	"tillcore/internal/dto"
	"tillcore/internal/model"
	"tillcore/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(cash *fakeCashRepo, payments *fakePaymentRepo) service.CashLedgerService {
	return service.NewCashLedgerService(cash, payments, nil)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func openSession(t *testing.T, svc service.CashLedgerService, tenantID, userID uuid.UUID, station, openingCash string) *dto.SessionResponse {
	t.Helper()
	resp, err := svc.OpenSession(context.Background(), tenantID, userID, dto.OpenSessionRequest{
		StationID:    station,
		OpeningFloat: map[string]decimal.Decimal{"CASH": dec(openingCash)},
	})
	require.NoError(t, err)
	return resp
}

func TestOpenSession(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID, userID := uuid.New(), uuid.New()

	resp := openSession(t, svc, tenantID, userID, "pos-1", "100.129")

	assert.Equal(t, "OPEN", resp.Status)
	assert.Equal(t, "pos-1", resp.StationID)
	// Opening float is quantized on the way in.
	assert.Equal(t, "100.13", resp.OpeningFloat["CASH"])
}

func TestOpenSession_DuplicateStation(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()

	openSession(t, svc, tenantID, uuid.New(), "pos-1", "50.00")

	_, err := svc.OpenSession(context.Background(), tenantID, uuid.New(), dto.OpenSessionRequest{StationID: "pos-1"})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindConflict, apiErr.Kind)
}

func TestOpenSession_SameStationOtherTenant(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())

	openSession(t, svc, uuid.New(), uuid.New(), "pos-1", "50.00")

	// Station ids are tenant-scoped; no cross-tenant conflict.
	_, err := svc.OpenSession(context.Background(), uuid.New(), uuid.New(), dto.OpenSessionRequest{StationID: "pos-1"})
	assert.NoError(t, err)
}

func TestCreateMovement_RejectsNonCash(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()
	session := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")

	_, err := svc.CreateMovement(context.Background(), tenantID, uuid.New(), dto.MovementRequest{
		SessionID: session.ID,
		Type:      "SANGRIA",
		Method:    "DEBIT",
		Amount:    dec("10.00"),
		Reason:    "vault drop",
	})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindBadRequest, apiErr.Kind)
}

func TestCreateMovement_RequiresOpenSession(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()
	session := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")

	_, err := svc.CloseSession(context.Background(), tenantID, uuid.MustParse(session.ID), nil)
	require.NoError(t, err)

	_, err = svc.CreateMovement(context.Background(), tenantID, uuid.New(), dto.MovementRequest{
		SessionID: session.ID,
		Type:      "SUPRIMENTO",
		Method:    "CASH",
		Amount:    dec("10.00"),
		Reason:    "change float",
	})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindConflict, apiErr.Kind)
}

// Shift arithmetic: opening 100 + suprimento 50 − sangria 30 + captured cash 40.
func TestCloseSession_CashExpected(t *testing.T) {
	cash := newFakeCashRepo()
	payments := newFakePaymentRepo()
	svc := newLedger(cash, payments)
	tenantID, userID := uuid.New(), uuid.New()

	session := openSession(t, svc, tenantID, userID, "pos-1", "100.00")
	sessionID := uuid.MustParse(session.ID)

	_, err := svc.CreateMovement(context.Background(), tenantID, userID, dto.MovementRequest{
		SessionID: session.ID, Type: "SUPRIMENTO", Method: "CASH", Amount: dec("50.00"), Reason: "change float",
	})
	require.NoError(t, err)
	_, err = svc.CreateMovement(context.Background(), tenantID, userID, dto.MovementRequest{
		SessionID: session.ID, Type: "SANGRIA", Method: "CASH", Amount: dec("30.00"), Reason: "vault drop",
	})
	require.NoError(t, err)

	// Captured tenders attached to this drawer: 40 cash + 25 debit.
	for _, p := range []*model.Payment{
		{TenantID: tenantID, OrderID: uuid.New(), SessionID: &sessionID, Method: model.MethodCash, Amount: dec("40.00"), Status: model.PaymentCaptured},
		{TenantID: tenantID, OrderID: uuid.New(), SessionID: &sessionID, Method: model.MethodDebit, Amount: dec("25.00"), Status: model.PaymentCaptured},
	} {
		require.NoError(t, payments.Create(context.Background(), nil, p))
	}

	summary, err := svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	require.NoError(t, err)

	assert.Equal(t, "100.00", summary.OpeningCash)
	assert.Equal(t, "50.00", summary.Suprimentos)
	assert.Equal(t, "30.00", summary.Sangrias)
	assert.Equal(t, "160.00", summary.CashExpected)
	assert.Equal(t, "40.00", summary.TotalsByMethod["CASH"])
	assert.Equal(t, "25.00", summary.TotalsByMethod["DEBIT"])
	assert.Equal(t, int64(2), summary.PaymentsCount["total"])
	assert.Nil(t, summary.CashCountedFinal)

	// Totals are frozen on the session row.
	stored, err := svc.GetSession(context.Background(), tenantID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", stored.Status)
	assert.Equal(t, "40.00", stored.TotalsByMethod["CASH"])
}

// Close must be reproducible: reopening and closing again recomputes the same
// frozen summary from the same ledger rows.
func TestCloseSession_RoundTrip(t *testing.T) {
	cash := newFakeCashRepo()
	payments := newFakePaymentRepo()
	svc := newLedger(cash, payments)
	tenantID, userID := uuid.New(), uuid.New()

	session := openSession(t, svc, tenantID, userID, "pos-1", "100.00")
	sessionID := uuid.MustParse(session.ID)

	_, err := svc.CreateMovement(context.Background(), tenantID, userID, dto.MovementRequest{
		SessionID: session.ID, Type: "SUPRIMENTO", Method: "CASH", Amount: dec("15.00"), Reason: "change float",
	})
	require.NoError(t, err)
	require.NoError(t, payments.Create(context.Background(), nil, &model.Payment{
		TenantID: tenantID, OrderID: uuid.New(), SessionID: &sessionID,
		Method: model.MethodCash, Amount: dec("40.00"), Status: model.PaymentCaptured,
	}))

	first, err := svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	require.NoError(t, err)
	_, err = svc.ReopenSession(context.Background(), tenantID, sessionID, "recount requested")
	require.NoError(t, err)
	second, err := svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	require.NoError(t, err)

	assert.Equal(t, first.CashExpected, second.CashExpected)
	assert.Equal(t, first.TotalsByMethod, second.TotalsByMethod)
	assert.Equal(t, first.Suprimentos, second.Suprimentos)
	assert.Equal(t, "155.00", second.CashExpected)
}

func TestGetSession_LiveProjection(t *testing.T) {
	cash := newFakeCashRepo()
	payments := newFakePaymentRepo()
	svc := newLedger(cash, payments)
	tenantID, userID := uuid.New(), uuid.New()

	session := openSession(t, svc, tenantID, userID, "pos-1", "100.00")
	sessionID := uuid.MustParse(session.ID)

	_, err := svc.CreateMovement(context.Background(), tenantID, userID, dto.MovementRequest{
		SessionID: session.ID, Type: "SUPRIMENTO", Method: "CASH", Amount: dec("50.00"), Reason: "change float",
	})
	require.NoError(t, err)
	_, err = svc.CreateMovement(context.Background(), tenantID, userID, dto.MovementRequest{
		SessionID: session.ID, Type: "SANGRIA", Method: "CASH", Amount: dec("30.00"), Reason: "vault drop",
	})
	require.NoError(t, err)
	require.NoError(t, payments.Create(context.Background(), nil, &model.Payment{
		TenantID: tenantID, OrderID: uuid.New(), SessionID: &sessionID,
		Method: model.MethodCash, Amount: dec("40.00"), Status: model.PaymentCaptured,
	}))

	report, err := svc.GetSession(context.Background(), tenantID, sessionID)
	require.NoError(t, err)

	require.NotNil(t, report.CashExpected)
	assert.Equal(t, "160.00", *report.CashExpected)
	assert.Len(t, report.Movements, 2)

	// The projection is only live while the drawer is open; afterwards the
	// frozen totals speak.
	_, err = svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	require.NoError(t, err)
	closed, err := svc.GetSession(context.Background(), tenantID, sessionID)
	require.NoError(t, err)
	assert.Nil(t, closed.CashExpected)
	assert.Equal(t, "40.00", closed.TotalsByMethod["CASH"])
}

func TestCloseSession_FinalCountDelta(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID, userID := uuid.New(), uuid.New()
	session := openSession(t, svc, tenantID, userID, "pos-1", "100.00")

	_, err := svc.CreateCount(context.Background(), tenantID, userID, dto.CountRequest{
		SessionID: session.ID, Kind: "FINAL", Total: dec("97.50"),
	})
	require.NoError(t, err)

	summary, err := svc.CloseSession(context.Background(), tenantID, uuid.MustParse(session.ID), nil)
	require.NoError(t, err)

	require.NotNil(t, summary.CashCountedFinal)
	require.NotNil(t, summary.CashDelta)
	assert.Equal(t, "97.50", *summary.CashCountedFinal)
	assert.Equal(t, "-2.50", *summary.CashDelta)
}

func TestCloseSession_AlreadyClosed(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()
	session := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")
	sessionID := uuid.MustParse(session.ID)

	_, err := svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	require.NoError(t, err)

	_, err = svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindConflict, apiErr.Kind)
}

func TestReopenSession(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()
	session := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")
	sessionID := uuid.MustParse(session.ID)

	_, err := svc.CloseSession(context.Background(), tenantID, sessionID, nil)
	require.NoError(t, err)

	reopened, err := svc.ReopenSession(context.Background(), tenantID, sessionID, "missed a sangria")
	require.NoError(t, err)
	assert.Equal(t, "OPEN", reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	require.NotNil(t, reopened.Notes)
	assert.Contains(t, *reopened.Notes, "missed a sangria")
	assert.Contains(t, *reopened.Notes, "[reopened ")
}

func TestReopenSession_StationBusy(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()
	first := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")
	firstID := uuid.MustParse(first.ID)

	_, err := svc.CloseSession(context.Background(), tenantID, firstID, nil)
	require.NoError(t, err)

	// A new shift took over the station.
	openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")

	_, err = svc.ReopenSession(context.Background(), tenantID, firstID, "forgot a movement")
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindConflict, apiErr.Kind)
}

func TestReopenSession_OnlyClosed(t *testing.T) {
	svc := newLedger(newFakeCashRepo(), newFakePaymentRepo())
	tenantID := uuid.New()
	session := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")

	_, err := svc.ReopenSession(context.Background(), tenantID, uuid.MustParse(session.ID), "oops")
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindConflict, apiErr.Kind)
}

func TestReportDaily_SumsFrozenTotals(t *testing.T) {
	cash := newFakeCashRepo()
	payments := newFakePaymentRepo()
	svc := newLedger(cash, payments)
	tenantID, userID := uuid.New(), uuid.New()

	for i, station := range []string{"pos-1", "pos-2"} {
		session := openSession(t, svc, tenantID, userID, station, "0.00")
		sessionID := uuid.MustParse(session.ID)
		require.NoError(t, payments.Create(context.Background(), nil, &model.Payment{
			TenantID: tenantID, OrderID: uuid.New(), SessionID: &sessionID,
			Method: model.MethodCash, Amount: dec("10.00").Mul(decimal.NewFromInt(int64(i + 1))),
			Status: model.PaymentCaptured,
		}))
		_, err := svc.CloseSession(context.Background(), tenantID, sessionID, nil)
		require.NoError(t, err)
	}

	report, err := svc.ReportDaily(context.Background(), tenantID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "30.00", report.Totals["CASH"])
}

func TestTryAttachPaymentToOpenSession(t *testing.T) {
	cash := newFakeCashRepo()
	payments := newFakePaymentRepo()
	svc := newLedger(cash, payments)
	tenantID := uuid.New()

	session := openSession(t, svc, tenantID, uuid.New(), "pos-1", "0.00")
	payment := &model.Payment{TenantID: tenantID, OrderID: uuid.New(), Method: model.MethodCash, Amount: dec("5.00"), Status: model.PaymentCaptured}
	require.NoError(t, payments.Create(context.Background(), nil, payment))

	station := "pos-1"
	require.NoError(t, svc.TryAttachPaymentToOpenSession(context.Background(), tenantID, payment.ID, &station))

	stored, err := payments.FindByID(context.Background(), tenantID, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SessionID)
	assert.Equal(t, session.ID, stored.SessionID.String())

	// Unknown station: silent no-op.
	ghost := "pos-99"
	other := &model.Payment{TenantID: tenantID, OrderID: uuid.New(), Method: model.MethodCash, Amount: dec("5.00"), Status: model.PaymentCaptured}
	require.NoError(t, payments.Create(context.Background(), nil, other))
	require.NoError(t, svc.TryAttachPaymentToOpenSession(context.Background(), tenantID, other.ID, &ghost))
	stored, err = payments.FindByID(context.Background(), tenantID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SessionID)
}

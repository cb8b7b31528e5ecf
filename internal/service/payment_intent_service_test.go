package service_test

import (
	"context"
	"testing"

	"tillcore/internal/apierror"
	"tillcore/internal/dto"
	"tillcore/internal/model"
	"tillcore/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intentFixture struct {
	intents  *fakeIntentRepo
	orders   *fakeOrderRepo
	payments *fakePaymentRepo
	svc      service.PaymentIntentService
	tenantID uuid.UUID
	actorID  uuid.UUID
}

func newIntentFixture() *intentFixture {
	f := &intentFixture{
		intents:  newFakeIntentRepo(),
		orders:   newFakeOrderRepo(),
		payments: newFakePaymentRepo(),
		tenantID: uuid.New(),
		actorID:  uuid.New(),
	}
	f.svc = service.NewPaymentIntentService(f.intents, f.orders, f.payments, "BRL")
	return f
}

func (f *intentFixture) closedOrder(t *testing.T, total string) *model.Order {
	t.Helper()
	order := &model.Order{TenantID: f.tenantID, Status: model.OrderClosed, Total: dec(total), CreatedByUserID: f.actorID}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

// capture records a CAPTURED payment plus its CAPTURE transaction, the same
// rows the payment processor writes.
func (f *intentFixture) capture(t *testing.T, orderID uuid.UUID, amount string) *model.Payment {
	t.Helper()
	p := &model.Payment{
		TenantID: f.tenantID, OrderID: orderID, Method: model.MethodCash,
		Amount: dec(amount), Status: model.PaymentCaptured, Provider: "internal", CapturedBy: f.actorID,
	}
	require.NoError(t, f.payments.Create(context.Background(), nil, p))
	require.NoError(t, f.payments.CreateTransaction(context.Background(), nil, &model.PaymentTransaction{
		TenantID: f.tenantID, PaymentID: p.ID, Type: model.TxnCapture, Amount: dec(amount), CreatedBy: f.actorID,
	}))
	return p
}

func TestCreateOrGet_NewIntent(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "75.50")

	intent, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)

	assert.Equal(t, model.IntentOpen, intent.Status)
	assert.True(t, intent.AmountDue.Equal(dec("75.50")))
	assert.Equal(t, "BRL", intent.Currency)
}

func TestCreateOrGet_Idempotent(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "75.50")

	first, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)
	second, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestCreateOrGet_PartiallyPaid(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "100.00")
	f.capture(t, order.ID, "40.00")

	intent, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)

	assert.Equal(t, model.IntentOpen, intent.Status)
	assert.True(t, intent.AmountDue.Equal(dec("60.00")))
}

// An order fully paid before any intent existed gets a synthetic COMPLETED
// intent so the audit trail still shows a collection target.
func TestCreateOrGet_PrePaidOrder(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "50.00")
	f.capture(t, order.ID, "50.00")

	intent, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.IntentCompleted, intent.Status)
	assert.True(t, intent.AmountDue.Equal(dec("50.00")))

	// Repeats reuse the synthesized row instead of stacking more.
	again, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)
	assert.Equal(t, intent.ID, again.ID)
}

// A capture the provider later voids never counted as collected: the CAPTURE
// transaction of a CANCELED payment must not feed the captured aggregate.
func TestCreateOrGet_CanceledPaymentNotCollected(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "30.00")
	p := f.capture(t, order.ID, "30.00")
	require.NoError(t, f.payments.UpdateStatus(context.Background(), nil, p.ID, model.PaymentCanceled))

	intent, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)

	assert.Equal(t, model.IntentOpen, intent.Status)
	assert.True(t, intent.AmountDue.Equal(dec("30.00")))
}

func TestCreateOrGet_OrderNotFound(t *testing.T) {
	f := newIntentFixture()

	_, err := f.svc.CreateOrGet(context.Background(), f.tenantID, uuid.New(), f.actorID, dto.CreateIntentRequest{})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindNotFound, apiErr.Kind)
}

func TestCreateOrGet_OrderNotClosed(t *testing.T) {
	f := newIntentFixture()
	order := &model.Order{TenantID: f.tenantID, Status: model.OrderOpen, Total: dec("10.00"), CreatedByUserID: f.actorID}
	require.NoError(t, f.orders.Create(context.Background(), order))

	_, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindConflict, apiErr.Kind)
}

func TestTryCompleteForOrder(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "50.00")
	intent, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)

	// Not fully paid yet.
	f.capture(t, order.ID, "20.00")
	done, err := f.svc.TryCompleteForOrder(context.Background(), f.tenantID, order.ID)
	require.NoError(t, err)
	assert.False(t, done)

	// Paid in full: this call performs the transition.
	f.capture(t, order.ID, "30.00")
	done, err = f.svc.TryCompleteForOrder(context.Background(), f.tenantID, order.ID)
	require.NoError(t, err)
	assert.True(t, done)

	stored, err := f.svc.GetByID(context.Background(), f.tenantID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntentCompleted, stored.Status)

	// Idempotent: no OPEN intent left, reports false without error.
	done, err = f.svc.TryCompleteForOrder(context.Background(), f.tenantID, order.ID)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestCompleteCAS_StaleVersion(t *testing.T) {
	f := newIntentFixture()
	order := f.closedOrder(t, "50.00")
	intent, err := f.svc.CreateOrGet(context.Background(), f.tenantID, order.ID, f.actorID, dto.CreateIntentRequest{})
	require.NoError(t, err)

	ok, err := f.intents.CompleteCAS(context.Background(), nil, intent.ID, intent.Version+1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.intents.CompleteCAS(context.Background(), nil, intent.ID, intent.Version)
	require.NoError(t, err)
	assert.True(t, ok)

	// Terminal: a second transition attempt loses.
	ok, err = f.intents.CompleteCAS(context.Background(), nil, intent.ID, intent.Version+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newIntentFixture()

	_, err := f.svc.GetByID(context.Background(), f.tenantID, uuid.New())
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindNotFound, apiErr.Kind)
}

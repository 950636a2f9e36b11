package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/idempotency"
	"github.com/TFFe0123/woody-nest/internal/payment"
	"github.com/TFFe0123/woody-nest/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	gateway *MockGateway
	store   *MockOrderStore
	catalog *MockCatalog
	claims  *MockClaims
	events  *MockPublisher
	svc     *ConfirmationService
}

func newFixture() *fixture {
	f := &fixture{
		gateway: &MockGateway{Result: &payment.Result{
			Status:      payment.StatusDone,
			PaymentKey:  "pk_1",
			OrderID:     "order_42_1700000000000",
			OrderName:   "주문 42",
			TotalAmount: 150000,
			Method:      "카드",
			ApprovedAt:  "2024-03-01T10:00:00+09:00",
		}},
		store: NewMockOrderStore(),
		catalog: &MockCatalog{Items: map[int64]*domain.Furniture{
			42: {ID: 42, Title: "Oak Table", Price: 150000},
		}},
		claims: &MockClaims{},
		events: &MockPublisher{},
	}
	log := logger.Discard()
	recorder := NewOrderRecorder(f.store, f.catalog, log)
	f.svc = NewConfirmationService(f.gateway, f.store, recorder, f.claims, f.events, log)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC) }
	return f
}

var alice = &auth.Identity{UserID: "user-alice"}

func scenarioRequest() domain.ConfirmRequest {
	return domain.ConfirmRequest{
		PaymentReference: "pk_1",
		OrderReference:   "order_42_1700000000000",
		Amount:           150000,
	}
}

func TestConfirm_RecordsCatalogTitle(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "pk_1", res.Payment.PaymentKey)

	order := res.Order
	require.NotNil(t, order.ItemID)
	assert.Equal(t, int64(42), *order.ItemID)
	assert.Equal(t, "Oak Table", order.ProductName)
	assert.Equal(t, int64(150000), order.Amount)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.Equal(t, "user-alice", order.UserID)
	assert.Equal(t, "pk_1", order.PaymentReference)

	assert.Equal(t, payment.ConfirmRequest{PaymentKey: "pk_1", OrderID: "order_42_1700000000000", Amount: 150000}, f.gateway.LastReq)
	assert.Equal(t, 1, f.store.OrderCount())
	require.Len(t, f.store.Payments, 1)
	assert.Equal(t, "카드", f.store.Payments[0].Method)
	require.NotNil(t, f.store.Payments[0].ApprovedAt)

	require.Len(t, f.events.Events, 1)
	assert.Equal(t, "order_42_1700000000000", f.events.Events[0].OrderReference)
	assert.Equal(t, "Oak Table", f.events.Events[0].ProductName)

	assert.Equal(t, []string{"order_42_1700000000000"}, f.claims.Claimed)
	assert.Equal(t, []string{"order_42_1700000000000"}, f.claims.Released)
}

func TestConfirm_CatalogFailureFallsBackToOrderName(t *testing.T) {
	f := newFixture()
	f.catalog.Err = errors.New("catalog unavailable")

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.Equal(t, "주문 42", res.Order.ProductName)
	require.NotNil(t, res.Order.ItemID)
	assert.Equal(t, int64(42), *res.Order.ItemID)
}

func TestConfirm_DefaultProductName(t *testing.T) {
	f := newFixture()
	f.gateway.Result.OrderName = ""

	req := scenarioRequest()
	req.OrderReference = "gift-1700000000000"

	res, err := f.svc.Confirm(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Nil(t, res.Order.ItemID)
	assert.Equal(t, domain.DefaultProductName, res.Order.ProductName)
	assert.Empty(t, f.catalog.Calls)
}

func TestConfirm_ExplicitItemIDWins(t *testing.T) {
	f := newFixture()
	f.catalog.Items[7] = &domain.Furniture{ID: 7, Title: "Teak Chair", Price: 150000}

	req := scenarioRequest()
	itemID := int64(7)
	req.ItemID = &itemID

	res, err := f.svc.Confirm(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Equal(t, "Teak Chair", res.Order.ProductName)
	assert.Equal(t, []int64{7}, f.catalog.Calls)
}

func TestConfirm_ProcessorPaymentKeyWins(t *testing.T) {
	f := newFixture()
	f.gateway.Result.PaymentKey = "pk_from_processor"

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.Equal(t, "pk_from_processor", res.Order.PaymentReference)
}

func TestConfirm_GatewayRejection(t *testing.T) {
	f := newFixture()
	rejection := &payment.RejectionError{StatusCode: 400, Status: "FAILED", Code: "REJECT_CARD_COMPANY", Message: "카드사 거절"}
	f.gateway.Err = rejection

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	assert.Nil(t, res)

	var rej *payment.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "REJECT_CARD_COMPANY", rej.Code)

	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.PaymentCalls)
	assert.Empty(t, f.events.Events)
	assert.Equal(t, []string{"order_42_1700000000000"}, f.claims.Released)
}

func TestConfirm_MissingSecret(t *testing.T) {
	f := newFixture()
	f.gateway.Err = payment.ErrMissingSecret

	_, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	assert.ErrorIs(t, err, payment.ErrMissingSecret)
	assert.Zero(t, f.store.OrderCount())
}

func TestConfirm_PersistenceFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.store.CreateErr = errors.New("connection reset")
	f.store.RecordErr = errors.New("connection reset")

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.Equal(t, "Oak Table", res.Order.ProductName)
	assert.Equal(t, 1, f.store.CreateCalls)
	assert.Len(t, f.events.Events, 1)
}

func TestConfirm_PublishFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.events.Err = errors.New("broker down")

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.NotNil(t, res.Order)
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestConfirm_DuplicateReturnsRecordedOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Confirm(ctx, alice, scenarioRequest())
	require.NoError(t, err)

	second, err := f.svc.Confirm(ctx, alice, scenarioRequest())
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, "pk_1", second.Payment.PaymentKey)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestConfirm_ReferenceOwnedByAnotherUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, alice, scenarioRequest())
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, &auth.Identity{UserID: "user-bob"}, scenarioRequest())
	assert.ErrorIs(t, err, ErrReferenceConflict)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
}

func TestConfirm_ClaimHeld(t *testing.T) {
	f := newFixture()
	f.claims.ClaimErr = idempotency.ErrClaimHeld

	_, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	assert.ErrorIs(t, err, idempotency.ErrClaimHeld)
	assert.Zero(t, f.gateway.Calls.Load())
	assert.Empty(t, f.claims.Released)
}

func TestConfirm_ResubmitAfterFailedOrderWrite(t *testing.T) {
	f := newFixture()
	f.store.CreateErr = errors.New("connection reset")

	first, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	require.Len(t, f.store.Payments, 1)
	assert.Zero(t, f.store.OrderCount())

	// the processor refuses a second confirm of a settled payment
	f.store.CreateErr = nil
	f.gateway.Err = &payment.RejectionError{StatusCode: 400, Code: "ALREADY_PROCESSED_PAYMENT", Message: "이미 처리된 결제 입니다."}

	second, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
	assert.Equal(t, 1, f.store.OrderCount())

	assert.Equal(t, "order_42_1700000000000", second.Order.OrderReference)
	assert.Equal(t, "Oak Table", second.Order.ProductName)
	assert.Equal(t, "pk_1", second.Payment.PaymentKey)
	assert.Equal(t, "카드", second.Payment.Method)
	assert.NotEmpty(t, second.Payment.ApprovedAt)
}

func TestConfirm_LedgerOnlyRestoreFailureStillDuplicate(t *testing.T) {
	f := newFixture()
	f.store.CreateErr = errors.New("connection reset")

	_, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
	assert.Zero(t, f.store.OrderCount())
}

func TestConfirm_LedgerReferenceOfAnotherUser(t *testing.T) {
	f := newFixture()
	f.store.CreateErr = errors.New("connection reset")

	_, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), &auth.Identity{UserID: "user-bob"}, scenarioRequest())
	assert.ErrorIs(t, err, ErrReferenceConflict)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
}

func TestConfirm_ClaimStoreDownProceeds(t *testing.T) {
	f := newFixture()
	f.claims.ClaimErr = errors.New("redis: connection refused")

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.NotNil(t, res.Order)
	assert.Empty(t, f.claims.Released)
}

func TestConfirm_LookupErrorProceeds(t *testing.T) {
	f := newFixture()
	f.store.GetErr = errors.New("timeout")

	res, err := f.svc.Confirm(context.Background(), alice, scenarioRequest())
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
}

func TestConfirm_ConcurrentSubmissionsCallProcessorOnce(t *testing.T) {
	f := newFixture()
	f.gateway.Entered = make(chan struct{}, 2)
	f.gateway.Release = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*ConfirmResult, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.svc.Confirm(context.Background(), alice, scenarioRequest())
	}()
	<-f.gateway.Entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.svc.Confirm(context.Background(), alice, scenarioRequest())
	}()
	time.Sleep(50 * time.Millisecond)
	close(f.gateway.Release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].Order.ID, results[1].Order.ID)
	assert.Equal(t, int32(1), f.gateway.Calls.Load())
	assert.Equal(t, 1, f.store.OrderCount())
}

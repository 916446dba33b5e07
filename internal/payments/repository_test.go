package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
)

func seedTxn(t *testing.T, repo Repository, orderID uuid.UUID, checkoutRequestID string, createdAt time.Time) *models.PaymentTransaction {
	t.Helper()
	txn := &models.PaymentTransaction{
		ID:                uuid.New(),
		OrderID:           orderID,
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: "mr-" + checkoutRequestID,
		Phone:             "254712345678",
		Amount:            decimal.RequireFromString("1020.00"),
		Status:            enums.PaymentStatusInitiated,
		CreatedAt:         createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), txn))
	return txn
}

func TestMarkResultFirstTerminalWins(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	txn := seedTxn(t, repo, uuid.New(), "ws_CO_mark", time.Now())
	now := time.Now()

	marked, err := repo.MarkResult(ctx, txn.ID, enums.PaymentStatusSucceeded, 0, "ok", "NLJ7RT61SV", now)
	require.NoError(t, err)
	require.True(t, marked)

	// the competing failure write must lose
	marked, err = repo.MarkResult(ctx, txn.ID, enums.PaymentStatusFailed, 1032, "cancelled", "", now)
	require.NoError(t, err)
	assert.False(t, marked)

	stored, err := repo.FindByCheckoutRequestID(ctx, "ws_CO_mark")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, stored.Status)
	require.NotNil(t, stored.MpesaReceipt)
	assert.Equal(t, "NLJ7RT61SV", *stored.MpesaReceipt)
	require.NotNil(t, stored.ResultCode)
	assert.Equal(t, 0, *stored.ResultCode)
	assert.NotNil(t, stored.ReconciledAt)
}

func TestFindByCheckoutRequestIDUnknown(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	_, err := repo.FindByCheckoutRequestID(context.Background(), "ws_CO_missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnknownTransaction))
}

func TestFindLatestByOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	latest, err := repo.FindLatestByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	seedTxn(t, repo, orderID, "ws_CO_first", time.Now().Add(-2*time.Minute))
	second := seedTxn(t, repo, orderID, "ws_CO_second", time.Now())

	latest, err = repo.FindLatestByOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.CheckoutRequestID, latest.CheckoutRequestID)
}

func TestFindStaleInitiated(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	old := seedTxn(t, repo, uuid.New(), "ws_CO_old", now.Add(-10*time.Minute))
	seedTxn(t, repo, uuid.New(), "ws_CO_fresh", now)
	settled := seedTxn(t, repo, uuid.New(), "ws_CO_settled", now.Add(-10*time.Minute))
	marked, err := repo.MarkResult(ctx, settled.ID, enums.PaymentStatusFailed, 1032, "cancelled", "", now)
	require.NoError(t, err)
	require.True(t, marked)

	stale, err := repo.FindStaleInitiated(ctx, now.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.CheckoutRequestID, stale[0].CheckoutRequestID)
}

package deliveries

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

type testTx struct {
	db *gorm.DB
}

func (t testTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:deliveries_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	schema := []string{`
CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'AWAITING_FULFILLMENT',
  notes TEXT,
  estimated_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS delivery_audit_logs (
  id TEXT PRIMARY KEY,
  delivery_id TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(testTx{db: db}, NewRepository(db), logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestCreateForOrderIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	orderID := uuid.New()

	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.CreateForOrder(ctx, tx, orderID)
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	var count int64
	if err := db.Model(&models.Delivery{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one delivery, got %d", count)
	}
}

func TestUpdateStatusAppendsAudit(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	orderID := uuid.New()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.CreateForOrder(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	fisherman := uuid.New()
	note := "handed to courier at the landing site"
	updated, err := svc.UpdateStatus(ctx, UpdateInput{
		OrderID:   orderID,
		Target:    enums.DeliveryStatusInTransit,
		ActorID:   fisherman,
		ActorRole: enums.ActorRoleFisherman,
		Note:      &note,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != enums.DeliveryStatusInTransit {
		t.Fatalf("expected IN_TRANSIT, got %s", updated.Status)
	}

	delivery, audit, err := svc.GetByOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if delivery.Status != enums.DeliveryStatusInTransit {
		t.Fatalf("persisted status %s", delivery.Status)
	}
	if len(audit) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit))
	}
	entry := audit[0]
	if entry.FromStatus != enums.DeliveryStatusAwaitingFulfillment || entry.ToStatus != enums.DeliveryStatusInTransit {
		t.Fatalf("audit recorded %s -> %s", entry.FromStatus, entry.ToStatus)
	}
	if entry.ActorID != fisherman || entry.ActorRole != enums.ActorRoleFisherman {
		t.Fatalf("audit actor %s (%s)", entry.ActorID, entry.ActorRole)
	}
	if entry.Note == nil || *entry.Note != note {
		t.Fatalf("audit note %+v", entry.Note)
	}
}

func TestUpdateStatusRejectsCustomers(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	orderID := uuid.New()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.CreateForOrder(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.UpdateStatus(ctx, UpdateInput{
		OrderID:   orderID,
		Target:    enums.DeliveryStatusInTransit,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleCustomer,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	delivery, _, err := svc.GetByOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if delivery.Status != enums.DeliveryStatusAwaitingFulfillment {
		t.Fatalf("status changed by forbidden actor: %s", delivery.Status)
	}
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	orderID := uuid.New()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.CreateForOrder(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// DELIVERED requires passing through IN_TRANSIT first
	_, err := svc.UpdateStatus(ctx, UpdateInput{
		OrderID:   orderID,
		Target:    enums.DeliveryStatusDelivered,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleCourier,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}

	var count int64
	if err := db.Model(&models.DeliveryAuditLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected transition left %d audit entries", count)
	}
}

func TestUpdateStatusTerminalIsFinal(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	orderID := uuid.New()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.CreateForOrder(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	courier := uuid.New()
	steps := []enums.DeliveryStatus{enums.DeliveryStatusInTransit, enums.DeliveryStatusDelivered}
	for _, target := range steps {
		if _, err := svc.UpdateStatus(ctx, UpdateInput{
			OrderID:   orderID,
			Target:    target,
			ActorID:   courier,
			ActorRole: enums.ActorRoleCourier,
		}); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	delivered, _, err := svc.GetByOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("get delivered: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatal("expected delivered_at stamp")
	}

	_, err = svc.UpdateStatus(ctx, UpdateInput{
		OrderID:   orderID,
		Target:    enums.DeliveryStatusCancelled,
		ActorID:   courier,
		ActorRole: enums.ActorRoleAdmin,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT after terminal, got %v", err)
	}
}

func TestGetByOrderMissing(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, _, err := svc.GetByOrder(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

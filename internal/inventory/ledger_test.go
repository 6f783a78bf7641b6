package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/db/dbtest"
	"github.com/greengrocer/storefront/pkg/enums"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
)

func newTestLedger(t *testing.T, conn *gorm.DB) Ledger {
	t.Helper()
	l, err := NewLedger(NewRepository(conn), db.Wrap(conn))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

func TestNewLedgerRequiresDependencies(t *testing.T) {
	if _, err := NewLedger(nil, nil); err == nil {
		t.Fatal("expected error without repository")
	}
	conn := dbtest.OpenSQLite(t)
	if _, err := NewLedger(NewRepository(conn), nil); err == nil {
		t.Fatal("expected error without tx runner")
	}
}

func TestReserveConsumesStockAndRecomputesAvailability(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	l := newTestLedger(t, conn)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, conn, "Eggs", "3.20", 3)

	got, err := l.Reserve(ctx, conn, ReserveInput{ProductID: product.ID, Delta: -2, Reason: enums.InventoryReasonCheckout})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got.Stock != 1 || !got.Available {
		t.Fatalf("expected stock 1 available, got stock=%d available=%v", got.Stock, got.Available)
	}

	got, err = l.Reserve(ctx, conn, ReserveInput{ProductID: product.ID, Delta: -1, Reason: enums.InventoryReasonCheckout})
	if err != nil {
		t.Fatalf("reserve last unit: %v", err)
	}
	if got.Stock != 0 || got.Available {
		t.Fatalf("expected stock 0 unavailable, got stock=%d available=%v", got.Stock, got.Available)
	}

	got, err = l.Reserve(ctx, conn, ReserveInput{ProductID: product.ID, Delta: 4, Reason: enums.InventoryReasonRelease})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.Stock != 4 || !got.Available {
		t.Fatalf("expected stock 4 available, got stock=%d available=%v", got.Stock, got.Available)
	}

	movements, err := l.Movements(ctx, product.ID)
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(movements))
	}
}

func TestReserveRejectsOversell(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	l := newTestLedger(t, conn)
	product := dbtest.MustCreateProduct(t, conn, "Milk", "1.10", 1)

	_, err := l.Reserve(context.Background(), conn, ReserveInput{ProductID: product.ID, Delta: -2, Reason: enums.InventoryReasonCheckout})
	shortage, ok := pkgerrors.ShortageFrom(err)
	if !ok {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if shortage.ProductName != "Milk" || shortage.Requested != 2 || shortage.Available != 1 {
		t.Fatalf("unexpected shortage %+v", shortage)
	}

	reloaded := dbtest.MustReloadProduct(t, conn, product.ID)
	if reloaded.Stock != 1 || !reloaded.Available {
		t.Fatalf("stock changed after failed reserve: %+v", reloaded)
	}
}

func TestReserveValidation(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	l := newTestLedger(t, conn)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, conn, "Rice", "2.00", 1)

	cases := map[string]ReserveInput{
		"missing product": {Delta: -1, Reason: enums.InventoryReasonCheckout},
		"zero delta":      {ProductID: product.ID, Reason: enums.InventoryReasonCheckout},
		"bad reason":      {ProductID: product.ID, Delta: -1, Reason: "gift"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Reserve(ctx, conn, input)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	_, err := l.Reserve(ctx, conn, ReserveInput{ProductID: uuid.New(), Delta: -1, Reason: enums.InventoryReasonCheckout})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetAndRestock(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	l := newTestLedger(t, conn)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, conn, "Oats", "4.00", 0)

	if _, err := l.Get(ctx, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := l.Restock(ctx, product.ID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	restocked, err := l.Restock(ctx, product.ID, 6)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if restocked.Stock != 6 || !restocked.Available {
		t.Fatalf("unexpected product after restock %+v", restocked)
	}

	movements, err := l.Movements(ctx, product.ID)
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(movements) != 1 || movements[0].Reason != enums.InventoryReasonRestock || movements[0].StockAfter != 6 {
		t.Fatalf("unexpected movements %+v", movements)
	}
}

func TestSetDisabledOverridesAvailability(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	l := newTestLedger(t, conn)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, conn, "Tuna", "6.50", 5)

	disabled, err := l.SetDisabled(ctx, product.ID, true)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if disabled.Available || !disabled.Disabled {
		t.Fatalf("expected disabled product to be unavailable, got %+v", disabled)
	}

	after, err := l.Reserve(ctx, conn, ReserveInput{ProductID: product.ID, Delta: 1, Reason: enums.InventoryReasonRestock})
	if err != nil {
		t.Fatalf("restock disabled: %v", err)
	}
	if after.Available {
		t.Fatal("restock must not re-enable a disabled product")
	}

	enabled, err := l.SetDisabled(ctx, product.ID, false)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !enabled.Available || enabled.Stock != 6 {
		t.Fatalf("expected enabled product with stock 6, got %+v", enabled)
	}

	if _, err := l.SetDisabled(ctx, uuid.New(), true); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReserveLinearizesConcurrentDecrements(t *testing.T) {
	conn := dbtest.OpenPostgres(t)
	l := newTestLedger(t, conn)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, conn, "Contested "+uuid.NewString()[:8], "1.00", 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Wrap(conn).WithTx(ctx, func(tx *gorm.DB) error {
				_, err := l.Reserve(ctx, tx, ReserveInput{ProductID: product.ID, Delta: -1, Reason: enums.InventoryReasonCheckout})
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful reservations, got %d", succeeded)
	}
	reloaded := dbtest.MustReloadProduct(t, conn, product.ID)
	if reloaded.Stock != 0 || reloaded.Available {
		t.Fatalf("expected sold out product, got %+v", reloaded)
	}
}

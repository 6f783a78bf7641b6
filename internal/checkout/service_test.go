package checkout

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/cart"
	"github.com/greengrocer/storefront/internal/inventory"
	"github.com/greengrocer/storefront/internal/orders"
	product "github.com/greengrocer/storefront/internal/products"
	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/db/dbtest"
	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/enums"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/metrics"
	"github.com/greengrocer/storefront/pkg/outbox"
	redisclient "github.com/greengrocer/storefront/pkg/redis"
)

type fixture struct {
	conn     *gorm.DB
	carts    cart.Service
	checkout Service
	orders   orders.Service
	account  *models.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.OpenSQLite(t))
}

func newFixtureOn(t *testing.T, conn *gorm.DB) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	runner := db.Wrap(conn)
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	carts, err := cart.NewService(cartRepo, runner, product.NewRepository(conn), redisclient.NewFromRaw(raw), time.Hour)
	require.NoError(t, err)
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn), runner)
	require.NoError(t, err)
	svc, err := NewService(runner, cartRepo, ordersRepo, ledger, outbox.NewService(outbox.NewRepository(conn), logg), metrics.NewCheckoutMetrics(prometheus.NewRegistry()), logg)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(ordersRepo)
	require.NoError(t, err)

	return &fixture{
		conn:     conn,
		carts:    carts,
		checkout: svc,
		orders:   orderSvc,
		account:  dbtest.MustCreateAccount(t, conn),
	}
}

func (f *fixture) principal() cart.Principal {
	id := f.account.ID
	return cart.Principal{AccountID: &id}
}

func (f *fixture) addTimes(t *testing.T, productID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.carts.AddToCart(context.Background(), f.principal(), productID)
		require.NoError(t, err)
	}
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestCheckoutConvertsCartIntoOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, f.conn, "P", "10.00", 5)

	f.addTimes(t, p.ID, 3)
	view, err := f.carts.ViewCart(ctx, f.principal())
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)

	detail, err := f.checkout.Checkout(ctx, f.account.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
	assert.Equal(t, p.ID, detail.Lines[0].ProductID)
	assert.Equal(t, 3, detail.Lines[0].Quantity)
	assert.True(t, detail.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, detail.TotalPrice.Equal(decimal.RequireFromString("30.00")))

	reloaded := dbtest.MustReloadProduct(t, f.conn, p.ID)
	assert.Equal(t, 2, reloaded.Stock)
	assert.True(t, reloaded.Available)

	view, err = f.carts.ViewCart(ctx, f.principal())
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	stored, err := f.orders.Detail(ctx, f.account.ID, detail.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("30.00")))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, detail.ID, events[0].AggregateID)
}

func TestCheckoutFreezesUnitPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, f.conn, "Cheese", "5.00", 4)
	f.addTimes(t, p.ID, 2)

	detail, err := f.checkout.Checkout(ctx, f.account.ID)
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", decimal.RequireFromString("7.00")).Error)

	stored, err := f.orders.Detail(ctx, f.account.ID, detail.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].UnitPrice.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestCheckoutInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := dbtest.MustCreateProduct(t, f.conn, "Q", "4.00", 2)
	f.addTimes(t, q.ID, 2)

	// a concurrent purchase drops stock to 1 after the shopper filled the cart
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", q.ID).Update("stock", 1).Error)

	_, err := f.checkout.Checkout(ctx, f.account.ID)
	shortage, ok := pkgerrors.ShortageFrom(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, q.ID.String(), shortage.ProductID)
	assert.Equal(t, "Q", shortage.ProductName)
	assert.Equal(t, 2, shortage.Requested)
	assert.Equal(t, 1, shortage.Available)

	assert.Equal(t, 1, dbtest.MustReloadProduct(t, f.conn, q.ID).Stock)
	view, err := f.carts.ViewCart(ctx, f.principal())
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Zero(t, f.countRows(t, &models.Order{}))
}

func TestCheckoutIsAtomicAcrossLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := dbtest.MustCreateProduct(t, f.conn, "First", "3.00", 10)
	second := dbtest.MustCreateProduct(t, f.conn, "Second", "2.00", 5)

	f.addTimes(t, first.ID, 2)
	f.addTimes(t, second.ID, 3)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", second.ID).Update("stock", 1).Error)

	_, err := f.checkout.Checkout(ctx, f.account.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	assert.Equal(t, 10, dbtest.MustReloadProduct(t, f.conn, first.ID).Stock)
	assert.Equal(t, 1, dbtest.MustReloadProduct(t, f.conn, second.ID).Stock)
	assert.Zero(t, f.countRows(t, &models.Order{}))
	assert.Zero(t, f.countRows(t, &models.OrderLine{}))
	assert.Zero(t, f.countRows(t, &models.InventoryMovement{}))
	assert.Zero(t, f.countRows(t, &models.OutboxEvent{}))

	view, err := f.carts.ViewCart(ctx, f.principal())
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "First", view.Lines[0].Name)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, "Second", view.Lines[1].Name)
	assert.Equal(t, 3, view.Lines[1].Quantity)
}

func TestCheckoutLinesFollowCartInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	names := []string{"Plums", "Anchovies", "Mint"}
	for _, name := range names {
		p := dbtest.MustCreateProduct(t, f.conn, name, "1.00", 3)
		f.addTimes(t, p.ID, 1)
	}

	detail, err := f.checkout.Checkout(ctx, f.account.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 3)
	for i, name := range names {
		assert.Equal(t, name, detail.Lines[i].ProductName)
	}
}

func TestCheckoutRejectsDisabledProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, f.conn, "Recalled", "1.00", 3)
	f.addTimes(t, p.ID, 1)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", p.ID).Updates(map[string]any{"disabled": true, "available": false}).Error)

	_, err := f.checkout.Checkout(ctx, f.account.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	assert.Equal(t, 3, dbtest.MustReloadProduct(t, f.conn, p.ID).Stock)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checkout.Checkout(ctx, f.account.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "no cart: got %v", err)

	p := dbtest.MustCreateProduct(t, f.conn, "Once", "1.00", 3)
	f.addTimes(t, p.ID, 1)
	_, err = f.carts.RemoveFromCart(ctx, f.principal(), p.ID)
	require.NoError(t, err)

	_, err = f.checkout.Checkout(ctx, f.account.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "emptied cart: got %v", err)
	assert.Zero(t, f.countRows(t, &models.Order{}))

	_, err = f.checkout.Checkout(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

func TestSecondCheckoutOfSameCartFindsItEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, f.conn, "Single", "2.00", 1)
	f.addTimes(t, p.ID, 1)

	_, err := f.checkout.Checkout(ctx, f.account.ID)
	require.NoError(t, err)
	_, err = f.checkout.Checkout(ctx, f.account.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "got %v", err)
	assert.Equal(t, 0, dbtest.MustReloadProduct(t, f.conn, p.ID).Stock)
}

func TestCheckoutReportsShortageInLockOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := dbtest.MustCreateProduct(t, f.conn, "X", "1.00", 5)
	y := dbtest.MustCreateProduct(t, f.conn, "Y", "1.00", 5)
	lo, hi := x, y
	if hi.ID.String() < lo.ID.String() {
		lo, hi = hi, lo
	}

	f.addTimes(t, hi.ID, 2)
	f.addTimes(t, lo.ID, 2)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id IN ?", []uuid.UUID{lo.ID, hi.ID}).Update("stock", 1).Error)

	_, err := f.checkout.Checkout(ctx, f.account.ID)
	shortage, ok := pkgerrors.ShortageFrom(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, lo.ID.String(), shortage.ProductID, "rows are locked by ascending product id")
}

func TestConcurrentCheckoutsOfOneCartPlaceOneOrder(t *testing.T) {
	f := newFixtureOn(t, dbtest.OpenPostgres(t))
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, f.conn, "Contested "+uuid.NewString()[:8], "2.50", 10)
	f.addTimes(t, p.ID, 3)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.checkout.Checkout(ctx, f.account.ID)
		}()
	}
	close(start)
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart) {
			t.Fatalf("expected EMPTY_CART for losing checkouts, got %v", err)
		}
	}
	if placed != 1 {
		t.Fatalf("expected exactly one checkout to succeed, got %d", placed)
	}

	var orderCount int64
	require.NoError(t, f.conn.Model(&models.Order{}).Where("account_id = ?", f.account.ID).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)

	var movements int64
	require.NoError(t, f.conn.Model(&models.InventoryMovement{}).Where("product_id = ?", p.ID).Count(&movements).Error)
	assert.Equal(t, int64(1), movements)
	assert.Equal(t, 7, dbtest.MustReloadProduct(t, f.conn, p.ID).Stock)
}

func TestConcurrentCheckoutsNeverOversellStock(t *testing.T) {
	conn := dbtest.OpenPostgres(t)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, conn, "Last units "+uuid.NewString()[:8], "4.00", 2)

	const shoppers = 6
	fixtures := make([]*fixture, shoppers)
	for i := range fixtures {
		fixtures[i] = newFixtureOn(t, conn)
		fixtures[i].addTimes(t, p.ID, 1)
	}

	errs := make([]error, shoppers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, f := range fixtures {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.checkout.Checkout(ctx, f.account.ID)
		}()
	}
	close(start)
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			t.Fatalf("expected INSUFFICIENT_STOCK for losing checkouts, got %v", err)
		}
	}
	assert.Equal(t, 2, placed)
	reloaded := dbtest.MustReloadProduct(t, conn, p.ID)
	assert.Equal(t, 0, reloaded.Stock)
	assert.False(t, reloaded.Available)
}
